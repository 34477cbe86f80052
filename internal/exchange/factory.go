package exchange

import (
	"sync"

	"dcabot/backend/pkg/indodax"
)

// FactoryConfig holds per-exchange endpoints
type FactoryConfig struct {
	BinanceBaseURL      string
	IndodaxAPIURL       string
	PaperQuoteBalance   float64
	PaperPriceSource    PriceSource
	DisableInstrumented bool
}

// Factory builds gateways for an exchange id and account
type Factory struct {
	cfg     FactoryConfig
	indodax *indodax.Client

	paperMu sync.Mutex
	paper   map[string]*PaperGateway // keyed by account
}

// NewFactory creates a gateway factory
func NewFactory(cfg FactoryConfig) *Factory {
	if cfg.PaperPriceSource == nil {
		cfg.PaperPriceSource = NewBinancePrices(cfg.BinanceBaseURL)
	}
	return &Factory{
		cfg:     cfg,
		indodax: indodax.NewClient(cfg.IndodaxAPIURL),
		paper:   map[string]*PaperGateway{},
	}
}

// New returns a gateway for the exchange. Paper accounts are keyed by the
// credential key so balances persist across calls within the process.
func (f *Factory) New(exchange string, creds Credentials) (Gateway, error) {
	id, err := ParseID(exchange)
	if err != nil {
		return nil, err
	}

	var g Gateway
	switch id {
	case Binance:
		if creds.Empty() {
			return nil, ErrMissingCredentials
		}
		g = NewBinanceGateway(creds, f.cfg.BinanceBaseURL)
	case Indodax:
		if creds.Empty() {
			return nil, ErrMissingCredentials
		}
		g = NewIndodaxGateway(f.indodax, creds)
	case Paper:
		g = f.paperAccount(creds.Key)
	}

	if f.cfg.DisableInstrumented {
		return g, nil
	}
	return Instrument(g), nil
}

// RequiresCredentials reports whether the exchange needs stored API keys
func RequiresCredentials(exchange string) bool {
	id, err := ParseID(exchange)
	return err == nil && id != Paper
}

func (f *Factory) paperAccount(account string) *PaperGateway {
	f.paperMu.Lock()
	defer f.paperMu.Unlock()
	if g, ok := f.paper[account]; ok {
		return g
	}
	g := NewPaperGateway(f.cfg.PaperPriceSource, f.cfg.PaperQuoteBalance)
	f.paper[account] = g
	return g
}
