package exchange

import (
	"context"
	"fmt"
	"strconv"

	"dcabot/backend/internal/util"

	"github.com/adshao/go-binance/v2"
)

// BinanceGateway trades on Binance spot
type BinanceGateway struct {
	client *binance.Client
}

// NewBinanceGateway creates a spot gateway. A non-empty baseURL overrides the
// default endpoint (testnet or a local fake).
func NewBinanceGateway(creds Credentials, baseURL string) *BinanceGateway {
	client := binance.NewClient(creds.Key, creds.Secret)
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	return &BinanceGateway{client: client}
}

func (g *BinanceGateway) ID() ID { return Binance }

func (g *BinanceGateway) Ping(ctx context.Context) error {
	return classify(g.client.NewPingService().Do(ctx))
}

func (g *BinanceGateway) QuoteBalance(ctx context.Context, symbol string) (float64, error) {
	_, quote := SplitSymbol(symbol)
	account, err := g.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, classify(err)
	}
	for _, b := range account.Balances {
		if b.Asset == quote {
			free, err := strconv.ParseFloat(b.Free, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid %s balance %q: %w", quote, b.Free, err)
			}
			return free, nil
		}
	}
	return 0, nil
}

func (g *BinanceGateway) PlaceMarketOrder(ctx context.Context, symbol string, amount float64, side Side) (*Fill, error) {
	svc := g.client.NewCreateOrderService().
		Symbol(BinanceSymbol(symbol)).
		Side(binanceSide(side)).
		Type(binance.OrderTypeMarket)
	if side == SideBuy {
		svc = svc.QuoteOrderQty(formatAmount(amount))
	} else {
		svc = svc.Quantity(formatAmount(amount))
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return fillFromBinance(res, 0)
}

func (g *BinanceGateway) PlaceLimitOrder(ctx context.Context, symbol string, amount, price float64, side Side) (*Fill, error) {
	if price <= 0 {
		return nil, fmt.Errorf("limit price must be positive")
	}
	qty := amount
	if side == SideBuy {
		qty = amount / price
	}

	res, err := g.client.NewCreateOrderService().
		Symbol(BinanceSymbol(symbol)).
		Side(binanceSide(side)).
		Type(binance.OrderTypeLimit).
		TimeInForce(binance.TimeInForceTypeGTC).
		Quantity(formatAmount(qty)).
		Price(formatAmount(price)).
		Do(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return fillFromBinance(res, price)
}

func binanceSide(side Side) binance.SideType {
	if side == SideSell {
		return binance.SideTypeSell
	}
	return binance.SideTypeBuy
}

// fillFromBinance derives the average price from the executed totals. Resting
// limit orders have nothing executed yet and report the limit price.
func fillFromBinance(res *binance.CreateOrderResponse, limitPrice float64) (*Fill, error) {
	executed, err := strconv.ParseFloat(res.ExecutedQuantity, 64)
	if err != nil {
		return nil, fmt.Errorf("order %d: invalid executed quantity %q: %w", res.OrderID, res.ExecutedQuantity, err)
	}
	quote, err := strconv.ParseFloat(res.CummulativeQuoteQuantity, 64)
	if err != nil {
		return nil, fmt.Errorf("order %d: invalid quote quantity %q: %w", res.OrderID, res.CummulativeQuoteQuantity, err)
	}

	fill := &Fill{
		OrderID:      strconv.FormatInt(res.OrderID, 10),
		FilledAmount: executed,
		QuoteAmount:  quote,
		Status:       string(res.Status),
		Price:        limitPrice,
	}
	if executed > 0 {
		fill.Price = quote / executed
	}
	return fill, nil
}

func formatAmount(v float64) string {
	return util.FormatDecimal(v, 8)
}
