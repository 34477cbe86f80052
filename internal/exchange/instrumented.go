package exchange

import (
	"context"
	"time"

	"dcabot/backend/internal/metrics"
)

// Instrumented records order counts and call latency for a gateway
type Instrumented struct {
	next Gateway
}

// Instrument wraps g with metrics
func Instrument(g Gateway) Gateway {
	if _, ok := g.(*Instrumented); ok {
		return g
	}
	return &Instrumented{next: g}
}

func (i *Instrumented) ID() ID { return i.next.ID() }

func (i *Instrumented) observe(op string, start time.Time) {
	metrics.ExchangeRequestDuration.WithLabelValues(string(i.next.ID()), op).Observe(time.Since(start).Seconds())
}

func (i *Instrumented) Ping(ctx context.Context) error {
	defer i.observe("ping", time.Now())
	return i.next.Ping(ctx)
}

func (i *Instrumented) QuoteBalance(ctx context.Context, symbol string) (float64, error) {
	defer i.observe("balance", time.Now())
	return i.next.QuoteBalance(ctx, symbol)
}

func (i *Instrumented) PlaceMarketOrder(ctx context.Context, symbol string, amount float64, side Side) (*Fill, error) {
	defer i.observe("order", time.Now())
	fill, err := i.next.PlaceMarketOrder(ctx, symbol, amount, side)
	metrics.OrdersTotal.WithLabelValues(string(i.next.ID()), string(side), "market", metrics.Result(err)).Inc()
	return fill, err
}

func (i *Instrumented) PlaceLimitOrder(ctx context.Context, symbol string, amount, price float64, side Side) (*Fill, error) {
	defer i.observe("order", time.Now())
	fill, err := i.next.PlaceLimitOrder(ctx, symbol, amount, price, side)
	metrics.OrdersTotal.WithLabelValues(string(i.next.ID()), string(side), "limit", metrics.Result(err)).Inc()
	return fill, err
}
