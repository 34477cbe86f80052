package model

import "time"

// Trade record notes
const (
	NoteInitialEntry = "Initial entry"
	NoteDCAOrder     = "DCA Order"
	NoteTakeProfit   = "Take Profit"
	NoteExit         = "Exit"
)

// TradeRecord is a row of the bot_trades archive: fills and planned levels
type TradeRecord struct {
	BotID     string    `json:"bot_id"`
	RunID     string    `json:"run_id"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side,omitempty"`
	OrderID   string    `json:"order_id,omitempty"`
	Price     float64   `json:"price"`
	Amount    float64   `json:"amount"`
	DropPct   float64   `json:"drop_pct"`
	Step      int       `json:"step"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
}

// StopNote labels an archived stop level
func StopNote(t DropType) string {
	return "STOP: " + string(t)
}

// PauseNote labels an archived pause level
func PauseNote(t DropType) string {
	return "PAUSE: " + string(t)
}
