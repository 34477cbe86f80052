package exchange

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/adshao/go-binance/v2"
	"github.com/google/uuid"
)

// PriceSource quotes the current price of a pair
type PriceSource interface {
	Price(ctx context.Context, symbol string) (float64, error)
}

// BinancePrices reads public ticker prices from Binance
type BinancePrices struct {
	client *binance.Client
}

// NewBinancePrices creates an unauthenticated price source
func NewBinancePrices(baseURL string) *BinancePrices {
	client := binance.NewClient("", "")
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	return &BinancePrices{client: client}
}

func (p *BinancePrices) Price(ctx context.Context, symbol string) (float64, error) {
	prices, err := p.client.NewListPricesService().Symbol(BinanceSymbol(symbol)).Do(ctx)
	if err != nil {
		return 0, classify(err)
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("no price for %s", symbol)
	}
	return strconv.ParseFloat(prices[0].Price, 64)
}

// StaticPrices is a fixed price table
type StaticPrices struct {
	mu     sync.RWMutex
	prices map[string]float64
}

// NewStaticPrices creates a table keyed by Binance-style symbol
func NewStaticPrices(prices map[string]float64) *StaticPrices {
	s := &StaticPrices{prices: make(map[string]float64, len(prices))}
	for symbol, price := range prices {
		s.prices[BinanceSymbol(symbol)] = price
	}
	return s
}

// Set updates a price
func (s *StaticPrices) Set(symbol string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[BinanceSymbol(symbol)] = price
}

func (s *StaticPrices) Price(_ context.Context, symbol string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	price, ok := s.prices[BinanceSymbol(symbol)]
	if !ok || price <= 0 {
		return 0, fmt.Errorf("no price for %s", symbol)
	}
	return price, nil
}

// PaperGateway simulates fills against a price source. Every account starts
// with the same quote balance.
type PaperGateway struct {
	prices PriceSource

	mu       sync.Mutex
	balances map[string]float64 // asset -> free
}

// NewPaperGateway creates a simulated account holding quoteBalance of every quote asset
func NewPaperGateway(prices PriceSource, quoteBalance float64) *PaperGateway {
	g := &PaperGateway{prices: prices, balances: map[string]float64{}}
	for _, q := range quoteAssets {
		g.balances[q] = quoteBalance
	}
	return g
}

func (g *PaperGateway) ID() ID { return Paper }

func (g *PaperGateway) Ping(context.Context) error { return nil }

func (g *PaperGateway) QuoteBalance(_ context.Context, symbol string) (float64, error) {
	_, quote := SplitSymbol(symbol)
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.balances[quote], nil
}

func (g *PaperGateway) PlaceMarketOrder(ctx context.Context, symbol string, amount float64, side Side) (*Fill, error) {
	price, err := g.prices.Price(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return g.fill(symbol, amount, price, side)
}

// PlaceLimitOrder fills immediately at the limit price
func (g *PaperGateway) PlaceLimitOrder(ctx context.Context, symbol string, amount, price float64, side Side) (*Fill, error) {
	if err := ctx.Err(); err != nil {
		return nil, classify(err)
	}
	if price <= 0 {
		return nil, fmt.Errorf("limit price must be positive")
	}
	return g.fill(symbol, amount, price, side)
}

func (g *PaperGateway) fill(symbol string, amount, price float64, side Side) (*Fill, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("order amount must be positive")
	}
	base, quote := SplitSymbol(symbol)

	g.mu.Lock()
	defer g.mu.Unlock()

	var coin, spent float64
	if side == SideBuy {
		if g.balances[quote] < amount {
			return nil, fmt.Errorf("insufficient %s balance: have %.2f, need %.2f", quote, g.balances[quote], amount)
		}
		coin, spent = amount/price, amount
		g.balances[quote] -= spent
		g.balances[base] += coin
	} else {
		if g.balances[base] < amount {
			return nil, fmt.Errorf("insufficient %s balance: have %.8f, need %.8f", base, g.balances[base], amount)
		}
		coin, spent = amount, amount*price
		g.balances[base] -= coin
		g.balances[quote] += spent
	}

	return &Fill{
		OrderID:      "paper-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
		Price:        price,
		FilledAmount: coin,
		QuoteAmount:  spent,
		Status:       "FILLED",
	}, nil
}
