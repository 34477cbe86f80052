package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"dcabot/backend/pkg/indodax"
)

// IndodaxGateway trades on Indodax through the private tapi
type IndodaxGateway struct {
	client *indodax.Client
	creds  Credentials
}

// NewIndodaxGateway creates a gateway bound to one account
func NewIndodaxGateway(client *indodax.Client, creds Credentials) *IndodaxGateway {
	return &IndodaxGateway{client: client, creds: creds}
}

func (g *IndodaxGateway) ID() ID { return Indodax }

func (g *IndodaxGateway) Ping(ctx context.Context) error {
	_, err := g.client.GetServerTime(ctx)
	return classify(err)
}

func (g *IndodaxGateway) QuoteBalance(ctx context.Context, symbol string) (float64, error) {
	info, err := g.client.GetInfo(ctx, g.creds.Key, g.creds.Secret)
	if err != nil {
		return 0, classify(err)
	}
	_, quote := SplitSymbol(symbol)
	return float64(info.Balance[strings.ToLower(quote)]), nil
}

func (g *IndodaxGateway) PlaceMarketOrder(ctx context.Context, symbol string, amount float64, side Side) (*Fill, error) {
	req := indodax.TradeRequest{
		Pair:      IndodaxPair(symbol),
		Type:      string(side),
		OrderType: "market",
	}
	if side == SideBuy {
		req.IDR = amount
	} else {
		req.Coin = amount
	}

	res, err := g.client.Trade(ctx, g.creds.Key, g.creds.Secret, req)
	if err != nil {
		return nil, classify(err)
	}
	return fillFromIndodax(res, symbol, side, 0), nil
}

func (g *IndodaxGateway) PlaceLimitOrder(ctx context.Context, symbol string, amount, price float64, side Side) (*Fill, error) {
	if price <= 0 {
		return nil, fmt.Errorf("limit price must be positive")
	}
	req := indodax.TradeRequest{
		Pair:      IndodaxPair(symbol),
		Type:      string(side),
		OrderType: "limit",
		Price:     price,
	}
	if side == SideBuy {
		req.IDR = amount
	} else {
		req.Coin = amount
	}

	res, err := g.client.Trade(ctx, g.creds.Key, g.creds.Secret, req)
	if err != nil {
		return nil, classify(err)
	}
	return fillFromIndodax(res, symbol, side, price), nil
}

func fillFromIndodax(res *indodax.TradeReturn, symbol string, side Side, limitPrice float64) *Fill {
	base, quote := SplitSymbol(symbol)
	base, quote = strings.ToLower(base), strings.ToLower(quote)

	var coin, spent float64
	if side == SideBuy {
		coin, spent = res.Receive[base], currencyAmount(res.Spend, quote)
	} else {
		coin, spent = res.Spend[base], currencyAmount(res.Receive, quote)
	}

	fill := &Fill{
		OrderID:      strconv.FormatInt(res.OrderID, 10),
		FilledAmount: coin,
		QuoteAmount:  spent,
		Price:        limitPrice,
		Status:       "FILLED",
	}
	if coin > 0 {
		fill.Price = spent / coin
	}
	if res.Remain[base] > 0 || currencyAmount(res.Remain, quote) > 0 {
		fill.Status = "NEW"
	}
	return fill
}

// currencyAmount looks up a trade field; rupiah fields are suffixed "rp"
func currencyAmount(m map[string]float64, currency string) float64 {
	if v, ok := m[currency]; ok {
		return v
	}
	if currency == "idr" {
		return m["rp"]
	}
	return 0
}
