package plan

import (
	"time"

	"dcabot/backend/internal/model"
)

// Records flattens a plan into bot_trades rows. Stop and pause rows carry
// step 0 and amount 0.
func Records(p *model.TradePlan, botID, runID, symbol string, now time.Time) []*model.TradeRecord {
	records := make([]*model.TradeRecord, 0, len(p.DCA)+len(p.TakeProfit)+len(p.Stop)+len(p.Pause))
	row := func(price, amount, pct float64, step int, note string) {
		records = append(records, &model.TradeRecord{
			BotID:     botID,
			RunID:     runID,
			Symbol:    symbol,
			Price:     price,
			Amount:    amount,
			DropPct:   pct,
			Step:      step,
			Note:      note,
			CreatedAt: now,
		})
	}

	for _, l := range p.DCA {
		row(l.TriggerPrice, l.Amount, l.DropPct, l.Step, model.NoteDCAOrder)
	}
	for _, l := range p.TakeProfit {
		row(l.TriggerPrice, l.PositionSize, l.GainPct, l.Step, model.NoteTakeProfit)
	}
	for _, l := range p.Stop {
		row(l.TriggerPrice, 0, l.DropPct, 0, model.StopNote(l.Type))
	}
	for _, l := range p.Pause {
		row(l.TriggerPrice, 0, l.DropPct, 0, model.PauseNote(l.Type))
	}
	return records
}
