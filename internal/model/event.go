package model

import "time"

// EventKind names a bot_logs event
type EventKind string

const (
	EventStarted             EventKind = "started"
	EventPaused              EventKind = "paused"
	EventResumed             EventKind = "resumed"
	EventStopped             EventKind = "stopped"
	EventInitialOrderPlaced  EventKind = "initial_order_placed"
	EventWaitingForCondition EventKind = "waiting_for_condition"
	EventEntryTriggered      EventKind = "entry_triggered"
	EventEntryExecuted       EventKind = "entry_executed"
	EventConditionTriggered  EventKind = "condition_triggered"
	EventConditionExpired    EventKind = "condition_expired"
	EventExitTriggered       EventKind = "exit_triggered"
	EventCompleted           EventKind = "completed"
	EventError               EventKind = "error"
)

// BotLog is one entry of the structured bot event stream
type BotLog struct {
	RunID     string                 `json:"run_id,omitempty"`
	BotID     string                 `json:"bot_id"`
	UserID    string                 `json:"user_id"`
	Event     EventKind              `json:"event"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Webhook sources
const (
	WebhookSourceSignal    = "signal"
	WebhookSourceCondition = "condition_token"
)

// WebhookLog audits an accepted or rejected webhook delivery
type WebhookLog struct {
	BotID       string    `json:"bot_id"`
	ConditionID string    `json:"condition_id,omitempty"`
	Signal      string    `json:"signal,omitempty"`
	Valid       bool      `json:"valid"`
	Reason      string    `json:"reason,omitempty"`
	Source      string    `json:"source"`
	RemoteAddr  string    `json:"remote_addr,omitempty"`
	ReceivedAt  time.Time `json:"received_at"`
}
