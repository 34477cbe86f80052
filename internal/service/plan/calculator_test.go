package plan

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"dcabot/backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func lossPercentBot() *model.BotConfig {
	return &model.BotConfig{
		ID:            "bot-1",
		TradingPair:   "BTCUSDT",
		InitialAmount: 100,
		DCA: model.DCAConfig{
			Condition:      model.DCAConditionLossPercent,
			LossPercentage: 5,
			MaxDCAOrders:   3,
			AmountMode:     model.AmountModeFixed,
			FixedAmount:    100,
		},
		TakeProfit: []model.TakeProfitTarget{{TriggerPct: f(5), PositionSize: f(100)}},
	}
}

func TestDCALevelsChainedLossPercent(t *testing.T) {
	levels, err := DCALevels(lossPercentBot(), 100)
	require.NoError(t, err)
	require.Len(t, levels, 3)

	assert.Equal(t, []model.DCALevel{
		{Step: 1, DropPct: 5, TriggerPrice: 95, Amount: 100},
		{Step: 2, DropPct: 5, TriggerPrice: 90.25, Amount: 100},
		{Step: 3, DropPct: 5, TriggerPrice: 85.7375, Amount: 100},
	}, levels)
}

func TestDCALevelsRespectFilledOrders(t *testing.T) {
	bot := lossPercentBot()
	bot.DCA.MaxDCAOrders = 5
	bot.DCA.DCAOrders = 3

	levels, err := DCALevels(bot, 100)
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, 1, levels[0].Step)
	assert.Equal(t, 2, levels[1].Step)
}

func TestDCALevelsNoRemainingSteps(t *testing.T) {
	bot := lossPercentBot()
	bot.DCA.DCAOrders = 3

	levels, err := DCALevels(bot, 100)
	require.NoError(t, err)
	assert.Empty(t, levels)
	assert.NotNil(t, levels)
}

func TestDCALevelsMultiplierCompounds(t *testing.T) {
	bot := lossPercentBot()
	bot.DCA.AmountMode = model.AmountModeMultiplier
	bot.DCA.Multiplier = 2

	levels, err := DCALevels(bot, 100)
	require.NoError(t, err)
	require.Len(t, levels, 3)
	assert.Equal(t, 200.0, levels[0].Amount)
	assert.Equal(t, 400.0, levels[1].Amount)
	assert.Equal(t, 800.0, levels[2].Amount)
}

func TestDCALevelsProgressiveDropAppliesToNextStep(t *testing.T) {
	bot := lossPercentBot()
	bot.DCA.Condition = model.DCAConditionLastEntry
	bot.DCA.LastEntryDrop = 2
	bot.DCA.ProgressiveDrop = true
	bot.DCA.ProgressiveMultiplier = 2

	levels, err := DCALevels(bot, 100)
	require.NoError(t, err)
	require.Len(t, levels, 3)

	assert.Equal(t, 2.0, levels[0].DropPct)
	assert.Equal(t, 98.0, levels[0].TriggerPrice)
	assert.Equal(t, 4.0, levels[1].DropPct)
	assert.Equal(t, 94.08, levels[1].TriggerPrice)
	assert.Equal(t, 8.0, levels[2].DropPct)
	assert.Equal(t, 86.5536, levels[2].TriggerPrice)
}

func TestDCALevelsLossAmountIsNotChained(t *testing.T) {
	bot := lossPercentBot()
	bot.DCA.Condition = model.DCAConditionLossAmount
	bot.DCA.LossAmount = 10
	bot.DCA.ProgressiveDrop = true
	bot.DCA.ProgressiveMultiplier = 3

	levels, err := DCALevels(bot, 50)
	require.NoError(t, err)
	require.Len(t, levels, 3)
	for i, l := range levels {
		assert.Equal(t, i+1, l.Step)
		assert.Equal(t, 45.0, l.TriggerPrice)
		assert.Equal(t, 10.0, l.DropPct)
	}
}

func TestDCALevelsAverageEntry(t *testing.T) {
	bot := lossPercentBot()
	bot.DCA.Condition = model.DCAConditionAverageEntry
	bot.DCA.AverageEntryDrop = 10
	bot.DCA.MaxDCAOrders = 2

	levels, err := DCALevels(bot, 200)
	require.NoError(t, err)
	require.Len(t, levels, 2)
	assert.Equal(t, 180.0, levels[0].TriggerPrice)
	assert.Equal(t, 162.0, levels[1].TriggerPrice)
}

func TestDCALevelsStrictlyDecreasingForChainedModes(t *testing.T) {
	for _, cond := range []model.DCACondition{model.DCAConditionLastEntry, model.DCAConditionAverageEntry, model.DCAConditionLossPercent} {
		bot := lossPercentBot()
		bot.DCA.Condition = cond
		bot.DCA.LastEntryDrop = 1.5
		bot.DCA.AverageEntryDrop = 1.5
		bot.DCA.LossPercentage = 1.5
		bot.DCA.MaxDCAOrders = 10

		levels, err := DCALevels(bot, 27123.45)
		require.NoError(t, err, cond)
		require.Len(t, levels, 10)
		for i := 1; i < len(levels); i++ {
			assert.Equal(t, levels[i-1].Step+1, levels[i].Step)
			assert.Less(t, levels[i].TriggerPrice, levels[i-1].TriggerPrice, cond)
		}
	}
}

func TestDCALevelsConfigurationErrors(t *testing.T) {
	cases := []struct {
		name  string
		mut   func(b *model.BotConfig)
		price float64
		field string
	}{
		{"unsupported condition", func(b *model.BotConfig) { b.DCA.Condition = "trailing" }, 100, "dca_condition"},
		{"unsupported amount mode", func(b *model.BotConfig) { b.DCA.AmountMode = "random" }, 100, "dca_amount_mode"},
		{"missing fixed amount", func(b *model.BotConfig) { b.DCA.FixedAmount = 0 }, 100, "fixed_amount"},
		{"missing multiplier", func(b *model.BotConfig) {
			b.DCA.AmountMode = model.AmountModeMultiplier
		}, 100, "multiplier"},
		{"missing drop source", func(b *model.BotConfig) { b.DCA.LossPercentage = 0 }, 100, "loss_percentage"},
		{"inverted order counts", func(b *model.BotConfig) { b.DCA.DCAOrders = 4 }, 100, "max_dca_orders"},
		{"zero entry price", func(b *model.BotConfig) {}, 0, "entry_price"},
		{"loss amount without initial amount", func(b *model.BotConfig) {
			b.DCA.Condition = model.DCAConditionLossAmount
			b.DCA.LossAmount = 10
			b.InitialAmount = 0
		}, 100, "initial_amount"},
		{"loss amount wipes out the position", func(b *model.BotConfig) {
			b.DCA.Condition = model.DCAConditionLossAmount
			b.DCA.LossAmount = 100
		}, 100, "loss_amount"},
		{"full percentage drop", func(b *model.BotConfig) { b.DCA.LossPercentage = 100 }, 100, "loss_percentage"},
		{"last entry drop above 100", func(b *model.BotConfig) {
			b.DCA.Condition = model.DCAConditionLastEntry
			b.DCA.LastEntryDrop = 150
		}, 100, "last_entry_drop"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bot := lossPercentBot()
			tc.mut(bot)

			levels, err := DCALevels(bot, tc.price)
			require.Error(t, err)
			assert.Nil(t, levels)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}
}

func TestTakeProfitLevelsSkipPartialTargets(t *testing.T) {
	bot := lossPercentBot()
	bot.TakeProfit = []model.TakeProfitTarget{
		{TriggerPct: f(5), PositionSize: f(50)},
		{TriggerPct: nil, PositionSize: f(25)},
		{TriggerPct: f(10), PositionSize: nil},
		{TriggerPct: f(12.5), PositionSize: f(50)},
	}

	levels := TakeProfitLevels(bot, 100)
	require.Len(t, levels, 2)
	assert.Equal(t, model.TakeProfitLevel{Step: 1, GainPct: 5, TriggerPrice: 105, PositionSize: 50}, levels[0])
	assert.Equal(t, model.TakeProfitLevel{Step: 4, GainPct: 12.5, TriggerPrice: 112.5, PositionSize: 50}, levels[1])
}

func TestTakeProfitLevelsRoundToFourPlaces(t *testing.T) {
	bot := lossPercentBot()
	bot.TakeProfit = []model.TakeProfitTarget{{TriggerPct: f(3), PositionSize: f(100)}}

	levels := TakeProfitLevels(bot, 0.123456)
	require.Len(t, levels, 1)
	assert.Equal(t, 0.1272, levels[0].TriggerPrice)
}

func TestStopPauseLevels(t *testing.T) {
	bot := lossPercentBot()
	bot.StopRules = map[model.DropType]model.DropRule{
		model.DropFromAvg:  {Enabled: false, Value: 20},
		model.DropFromLast: {Enabled: true, Value: 10},
	}
	bot.PauseRules = map[model.DropType]model.DropRule{
		model.DropFromAvg: {Enabled: true, Value: 5},
	}

	levels := StopPauseLevels(bot, 100, 90)
	assert.Equal(t, []model.StopPauseLevel{{Type: model.DropFromLast, TriggerPrice: 81, DropPct: 10}}, levels.Stop)
	assert.Equal(t, []model.StopPauseLevel{{Type: model.DropFromAvg, TriggerPrice: 95, DropPct: 5}}, levels.Pause)
}

func TestStopPauseLevelsOrderIsFixed(t *testing.T) {
	bot := lossPercentBot()
	bot.StopRules = map[model.DropType]model.DropRule{
		model.DropFromAvg:  {Enabled: true, Value: 20},
		model.DropFromLast: {Enabled: true, Value: 10},
	}

	levels := StopPauseLevels(bot, 100, 90)
	require.Len(t, levels.Stop, 2)
	assert.Equal(t, model.DropFromLast, levels.Stop[0].Type)
	assert.Equal(t, model.DropFromAvg, levels.Stop[1].Type)
	assert.Equal(t, 80.0, levels.Stop[1].TriggerPrice)
	assert.Empty(t, levels.Pause)
}

func TestBuildIsDeterministic(t *testing.T) {
	bot := lossPercentBot()
	bot.DCA.ProgressiveDrop = true
	bot.DCA.ProgressiveMultiplier = 1.3
	bot.StopRules = map[model.DropType]model.DropRule{
		model.DropFromAvg:  {Enabled: true, Value: 20},
		model.DropFromLast: {Enabled: true, Value: 12.75},
	}
	bot.PauseRules = map[model.DropType]model.DropRule{
		model.DropFromLast: {Enabled: true, Value: 7},
	}

	first, err := Build(bot, 101.37, 99.91)
	require.NoError(t, err)
	second, err := Build(bot, 101.37, 99.91)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestBuildRejectsEmptyPlan(t *testing.T) {
	bot := lossPercentBot()
	bot.DCA.DCAOrders = 3
	bot.TakeProfit = []model.TakeProfitTarget{{TriggerPct: f(5)}}

	p, err := Build(bot, 100, 100)
	assert.Nil(t, p)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "plan", cfgErr.Field)
}

func TestBuildPropagatesCalculatorErrors(t *testing.T) {
	bot := lossPercentBot()
	bot.DCA.Condition = "unknown"

	p, err := Build(bot, 100, 100)
	assert.Nil(t, p)
	assert.Error(t, err)
}

func TestRecords(t *testing.T) {
	bot := lossPercentBot()
	bot.StopRules = map[model.DropType]model.DropRule{model.DropFromLast: {Enabled: true, Value: 10}}
	bot.PauseRules = map[model.DropType]model.DropRule{model.DropFromAvg: {Enabled: true, Value: 5}}

	p, err := Build(bot, 100, 100)
	require.NoError(t, err)

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	records := Records(p, "bot-1", "run-1", "BTCUSDT", now)
	require.Len(t, records, 6)

	assert.Equal(t, model.NoteDCAOrder, records[0].Note)
	assert.Equal(t, 95.0, records[0].Price)
	assert.Equal(t, model.NoteTakeProfit, records[3].Note)
	assert.Equal(t, 105.0, records[3].Price)
	assert.Equal(t, "STOP: priceDropFromLast", records[4].Note)
	assert.Equal(t, 0, records[4].Step)
	assert.Equal(t, 0.0, records[4].Amount)
	assert.Equal(t, "PAUSE: priceDropFromAvg", records[5].Note)
	for _, r := range records {
		assert.Equal(t, "run-1", r.RunID)
		assert.Equal(t, now, r.CreatedAt)
	}
}
