// Package exchange places entry and exit orders on the supported exchanges.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ID is an enumerated exchange identifier
type ID string

const (
	Binance ID = "binance"
	Indodax ID = "indodax"
	Paper   ID = "paper"
)

// Side is the order direction
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ErrUnknownOutcome marks an order request that was sent but whose result
// could not be observed. The order may or may not exist on the exchange.
var ErrUnknownOutcome = errors.New("order outcome unknown")

// ErrMissingCredentials is returned when a live exchange is built without keys
var ErrMissingCredentials = errors.New("exchange credentials required")

// UnknownExchangeError is returned for an exchange id with no implementation
type UnknownExchangeError struct {
	ID string
}

func (e *UnknownExchangeError) Error() string {
	return fmt.Sprintf("unsupported exchange %q", e.ID)
}

// ParseID maps a configured exchange name onto a supported ID
func ParseID(s string) (ID, error) {
	switch id := ID(strings.ToLower(strings.TrimSpace(s))); id {
	case Binance, Indodax, Paper:
		return id, nil
	}
	return "", &UnknownExchangeError{ID: s}
}

// Credentials are decrypted API keys
type Credentials struct {
	Key    string
	Secret string
}

// Empty reports whether no credentials were supplied
func (c Credentials) Empty() bool {
	return c.Key == "" || c.Secret == ""
}

// Fill is the realized result of an order. Price is the average fill price,
// or the limit price for a resting limit order.
type Fill struct {
	OrderID      string  `json:"order_id"`
	Price        float64 `json:"price"`
	FilledAmount float64 `json:"filled_amount"`
	QuoteAmount  float64 `json:"quote_amount"`
	Status       string  `json:"status,omitempty"`
}

// Gateway places orders on one exchange account. Buy amounts are in the
// quote currency; sell amounts are in the base currency.
type Gateway interface {
	ID() ID
	Ping(ctx context.Context) error
	QuoteBalance(ctx context.Context, symbol string) (float64, error)
	PlaceMarketOrder(ctx context.Context, symbol string, amount float64, side Side) (*Fill, error)
	PlaceLimitOrder(ctx context.Context, symbol string, amount, price float64, side Side) (*Fill, error)
}

// classify wraps transport failures whose effect cannot be known
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrUnknownOutcome, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrUnknownOutcome, err)
	}
	return err
}
