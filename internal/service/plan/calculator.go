// Package plan derives the DCA, take-profit, stop and pause levels of a run.
// Every function here is pure: identical inputs give identical plans.
package plan

import (
	"fmt"

	"dcabot/backend/internal/model"

	"github.com/shopspring/decimal"
)

const (
	pricePlaces  = 4
	pctPlaces    = 2
	amountPlaces = 2
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// ConfigError reports a bot configuration no plan can be derived from
type ConfigError struct {
	Field  string `json:"field"`
	Value  string `json:"value,omitempty"`
	Reason string `json:"reason"`
}

func (e *ConfigError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// ValidateConfig checks the fields the calculator depends on
func ValidateConfig(cfg *model.BotConfig) error {
	dca := cfg.DCA
	if dca.DCAOrders < 0 || dca.MaxDCAOrders < dca.DCAOrders {
		return &ConfigError{Field: "max_dca_orders", Value: fmt.Sprint(dca.MaxDCAOrders), Reason: "must be >= dca_orders >= 0"}
	}
	drop, err := dropSource(dca)
	if err != nil {
		return err
	}
	if dca.Condition == model.DCAConditionLossAmount {
		if cfg.InitialAmount <= 0 {
			return &ConfigError{Field: "initial_amount", Reason: "required for lossAmount condition"}
		}
		// the implied per-step drop is loss / initial
		if drop.GreaterThanOrEqual(decimal.NewFromFloat(cfg.InitialAmount)) {
			return &ConfigError{Field: "loss_amount", Value: fmt.Sprint(dca.LossAmount), Reason: "must be below initial_amount"}
		}
	} else if drop.GreaterThanOrEqual(hundred) {
		return &ConfigError{Field: dropField(dca.Condition), Value: drop.String(), Reason: "must be below 100"}
	}
	switch dca.AmountMode {
	case model.AmountModeFixed:
		if dca.FixedAmount <= 0 {
			return &ConfigError{Field: "fixed_amount", Reason: "required for fixed amount mode"}
		}
	case model.AmountModeMultiplier:
		if dca.Multiplier <= 0 {
			return &ConfigError{Field: "multiplier", Reason: "required for multiplier amount mode"}
		}
		if cfg.InitialAmount <= 0 {
			return &ConfigError{Field: "initial_amount", Reason: "required for multiplier amount mode"}
		}
	default:
		return &ConfigError{Field: "dca_amount_mode", Value: string(dca.AmountMode), Reason: "unsupported amount mode"}
	}
	if dca.ProgressiveMultiplier < 0 {
		return &ConfigError{Field: "progressive_multiplier", Reason: "must not be negative"}
	}
	return nil
}

func dropField(c model.DCACondition) string {
	switch c {
	case model.DCAConditionLastEntry:
		return "last_entry_drop"
	case model.DCAConditionAverageEntry:
		return "average_entry_drop"
	}
	return "loss_percentage"
}

// dropSource returns the configured drop percentage for the DCA condition.
// For lossAmount it returns the loss amount itself.
func dropSource(dca model.DCAConfig) (decimal.Decimal, error) {
	var v float64
	field := ""
	switch dca.Condition {
	case model.DCAConditionLossAmount:
		v, field = dca.LossAmount, "loss_amount"
	case model.DCAConditionLastEntry:
		v, field = dca.LastEntryDrop, "last_entry_drop"
	case model.DCAConditionAverageEntry:
		v, field = dca.AverageEntryDrop, "average_entry_drop"
	case model.DCAConditionLossPercent:
		v, field = dca.LossPercentage, "loss_percentage"
	default:
		return decimal.Zero, &ConfigError{Field: "dca_condition", Value: string(dca.Condition), Reason: "unsupported DCA condition"}
	}
	if v <= 0 {
		return decimal.Zero, &ConfigError{Field: field, Reason: fmt.Sprintf("must be positive for %s", dca.Condition)}
	}
	return decimal.NewFromFloat(v), nil
}

// DCALevels builds the averaging ladder below entryPrice. It returns at most
// max_dca_orders - dca_orders levels with steps counting from 1.
func DCALevels(cfg *model.BotConfig, entryPrice float64) ([]model.DCALevel, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if entryPrice <= 0 {
		return nil, &ConfigError{Field: "entry_price", Value: fmt.Sprint(entryPrice), Reason: "must be positive"}
	}

	dca := cfg.DCA
	steps := dca.MaxDCAOrders - dca.DCAOrders
	levels := make([]model.DCALevel, 0, steps)
	if steps <= 0 {
		return levels, nil
	}

	drop, _ := dropSource(dca)
	entry := decimal.NewFromFloat(entryPrice)
	initial := decimal.NewFromFloat(cfg.InitialAmount)

	progressive := decimal.NewFromInt(1)
	if dca.ProgressiveDrop && dca.ProgressiveMultiplier > 0 {
		progressive = decimal.NewFromFloat(dca.ProgressiveMultiplier)
	}

	current := entry
	currentAmount := initial
	for step := 1; step <= steps; step++ {
		var trigger, stepDrop decimal.Decimal
		if dca.Condition == model.DCAConditionLossAmount {
			// quantity = initial / entry, so the implied drop per unit is loss * entry / initial
			lossPerUnit := drop.Mul(entry).Div(initial)
			trigger = entry.Sub(lossPerUnit).Round(pricePlaces)
			stepDrop = lossPerUnit.Div(entry).Mul(hundred)
		} else {
			stepDrop = drop
			trigger = current.Mul(one.Sub(drop.Div(hundred))).Round(pricePlaces)
		}

		var amount decimal.Decimal
		if dca.AmountMode == model.AmountModeFixed {
			amount = decimal.NewFromFloat(dca.FixedAmount)
		} else {
			amount = currentAmount.Mul(decimal.NewFromFloat(dca.Multiplier)).Round(amountPlaces)
			currentAmount = amount
		}

		levels = append(levels, model.DCALevel{
			Step:         step,
			DropPct:      stepDrop.Round(pctPlaces).InexactFloat64(),
			TriggerPrice: trigger.InexactFloat64(),
			Amount:       amount.InexactFloat64(),
		})

		if dca.Condition != model.DCAConditionLossAmount {
			current = trigger
			if dca.ProgressiveDrop {
				drop = drop.Mul(progressive)
			}
		}
	}

	return levels, nil
}

// TakeProfitLevels places one sell trigger per configured target above
// avgEntryPrice. Targets missing a percentage or size are skipped; the step
// keeps the target's position in the configured list.
func TakeProfitLevels(cfg *model.BotConfig, avgEntryPrice float64) []model.TakeProfitLevel {
	levels := make([]model.TakeProfitLevel, 0, len(cfg.TakeProfit))
	avg := decimal.NewFromFloat(avgEntryPrice)

	for i, target := range cfg.TakeProfit {
		if target.TriggerPct == nil || target.PositionSize == nil {
			continue
		}
		pct := decimal.NewFromFloat(*target.TriggerPct)
		trigger := avg.Mul(one.Add(pct.Div(hundred))).Round(pricePlaces)

		levels = append(levels, model.TakeProfitLevel{
			Step:         i + 1,
			GainPct:      *target.TriggerPct,
			TriggerPrice: trigger.InexactFloat64(),
			PositionSize: *target.PositionSize,
		})
	}

	return levels
}

// StopPauseLevels converts the enabled stop and pause rules into fixed prices.
// priceDropFromLast measures from lastEntryPrice, priceDropFromAvg from avgEntryPrice.
func StopPauseLevels(cfg *model.BotConfig, avgEntryPrice, lastEntryPrice float64) model.StopPauseLevels {
	return model.StopPauseLevels{
		Stop:  dropLevels(cfg.StopRules, avgEntryPrice, lastEntryPrice),
		Pause: dropLevels(cfg.PauseRules, avgEntryPrice, lastEntryPrice),
	}
}

func dropLevels(rules map[model.DropType]model.DropRule, avgEntryPrice, lastEntryPrice float64) []model.StopPauseLevel {
	levels := make([]model.StopPauseLevel, 0, len(model.DropTypes))
	for _, t := range model.DropTypes {
		rule, ok := rules[t]
		if !ok || !rule.Enabled {
			continue
		}

		base := avgEntryPrice
		if t == model.DropFromLast {
			base = lastEntryPrice
		}
		pct := decimal.NewFromFloat(rule.Value)
		trigger := decimal.NewFromFloat(base).Mul(one.Sub(pct.Div(hundred))).Round(pricePlaces)

		levels = append(levels, model.StopPauseLevel{
			Type:         t,
			TriggerPrice: trigger.InexactFloat64(),
			DropPct:      rule.Value,
		})
	}
	return levels
}

// Build derives the full plan. An empty plan is a configuration error: a run
// must never proceed with zero levels.
func Build(cfg *model.BotConfig, avgEntryPrice, lastEntryPrice float64) (*model.TradePlan, error) {
	dca, err := DCALevels(cfg, lastEntryPrice)
	if err != nil {
		return nil, err
	}
	sp := StopPauseLevels(cfg, avgEntryPrice, lastEntryPrice)

	p := &model.TradePlan{
		AvgEntryPrice:  avgEntryPrice,
		LastEntryPrice: lastEntryPrice,
		DCA:            dca,
		TakeProfit:     TakeProfitLevels(cfg, avgEntryPrice),
		Stop:           sp.Stop,
		Pause:          sp.Pause,
	}
	if p.IsEmpty() {
		return nil, &ConfigError{Field: "plan", Reason: "no DCA, take-profit, stop or pause level could be derived"}
	}
	return p, nil
}
