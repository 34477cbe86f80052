package service

import (
	"context"
	"errors"
	"fmt"

	"dcabot/backend/internal/exchange"
	"dcabot/backend/internal/model"
	"dcabot/backend/internal/repository"
	"dcabot/backend/internal/service/plan"

	"github.com/go-playground/validator/v10"
)

// PreflightReport lists everything that blocks a start and everything worth a warning
type PreflightReport struct {
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`

	// Gateway is the connected exchange, set when connectivity passed
	Gateway exchange.Gateway `json:"-"`
}

// OK reports whether the bot may start
func (r *PreflightReport) OK() bool {
	return len(r.Errors) == 0
}

func (r *PreflightReport) fail(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *PreflightReport) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// PreflightChecker validates a bot before a run is created. It collects every
// problem instead of stopping at the first one.
type PreflightChecker struct {
	validate *validator.Validate
	creds    CredentialSource
	gateways GatewayFactory
}

func NewPreflightChecker(creds CredentialSource, gateways GatewayFactory) *PreflightChecker {
	return &PreflightChecker{
		validate: validator.New(),
		creds:    creds,
		gateways: gateways,
	}
}

// Check inspects the bot config, credentials, connectivity and balance
func (p *PreflightChecker) Check(ctx context.Context, bot *model.BotConfig) *PreflightReport {
	report := &PreflightReport{}

	if !bot.CanStart() {
		report.fail("bot status %q does not allow a start", bot.Status)
	}

	p.checkConfig(bot, report)

	if _, err := exchange.ParseID(bot.Exchange); err != nil {
		report.fail("%v", err)
		return report
	}

	creds, err := p.creds.Credentials(ctx, bot.UserID, bot.Exchange)
	if err != nil {
		if errors.Is(err, repository.ErrExchangeKeyNotFound) {
			report.fail("no %s API key stored for this user", bot.Exchange)
		} else {
			report.fail("exchange credentials unavailable: %v", err)
		}
		return report
	}

	gw, err := p.gateways.New(bot.Exchange, creds)
	if err != nil {
		report.fail("exchange unavailable: %v", err)
		return report
	}
	if err := gw.Ping(ctx); err != nil {
		report.fail("exchange connectivity check failed: %v", err)
		return report
	}
	report.Gateway = gw

	balance, err := gw.QuoteBalance(ctx, bot.TradingPair)
	if err != nil {
		report.fail("could not read balance: %v", err)
		return report
	}
	if !bot.OrderType.IsConditional() && balance < bot.InitialAmount {
		report.fail("insufficient balance: %.8f available, %.8f required for the initial order", balance, bot.InitialAmount)
	}
	if balance < bot.RequiredCapital {
		report.warn("balance %.8f is below the required capital %.8f", balance, bot.RequiredCapital)
	}
	return report
}

func (p *PreflightChecker) checkConfig(bot *model.BotConfig, report *PreflightReport) {
	if err := p.validate.Struct(bot); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				report.fail("%s failed %q validation", fe.Namespace(), fe.Tag())
			}
		} else {
			report.fail("%v", err)
		}
	}

	if bot.OrderType.IsLimit() && bot.LimitPrice <= 0 {
		report.fail("order type %s requires limit_price", bot.OrderType)
	}
	if err := plan.ValidateConfig(bot); err != nil {
		report.fail("%v", err)
	}
}
