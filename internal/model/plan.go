package model

// DCALevel is one averaging order of the ladder
type DCALevel struct {
	Step         int     `json:"step"`
	DropPct      float64 `json:"drop_pct"`
	TriggerPrice float64 `json:"trigger_price"`
	Amount       float64 `json:"amount"`
}

// TakeProfitLevel is one sell trigger above the average entry
type TakeProfitLevel struct {
	Step         int     `json:"step"`
	GainPct      float64 `json:"gain_pct"`
	TriggerPrice float64 `json:"trigger_price"`
	PositionSize float64 `json:"position_size"`
}

// StopPauseLevel is a stop or pause trigger below an entry price
type StopPauseLevel struct {
	Type         DropType `json:"type"`
	TriggerPrice float64  `json:"trigger_price"`
	DropPct      float64  `json:"drop_pct"`
}

// StopPauseLevels groups the two protective ladders
type StopPauseLevels struct {
	Stop  []StopPauseLevel `json:"stop"`
	Pause []StopPauseLevel `json:"pause"`
}

// TradePlan is every level derived from a bot config and its realized entry
type TradePlan struct {
	AvgEntryPrice  float64           `json:"avg_entry_price"`
	LastEntryPrice float64           `json:"last_entry_price"`
	DCA            []DCALevel        `json:"dca_levels"`
	TakeProfit     []TakeProfitLevel `json:"take_profit_levels"`
	Stop           []StopPauseLevel  `json:"stop_levels"`
	Pause          []StopPauseLevel  `json:"pause_levels"`
}

// IsEmpty reports whether no level at all was derived
func (p *TradePlan) IsEmpty() bool {
	return len(p.DCA) == 0 && len(p.TakeProfit) == 0 && len(p.Stop) == 0 && len(p.Pause) == 0
}
