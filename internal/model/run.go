package model

import "time"

// RunStatus is the lifecycle state of a single run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusWaiting   RunStatus = "waiting"
	RunStatusPaused    RunStatus = "paused"
	RunStatusStopped   RunStatus = "stopped"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// ActiveRunStatuses are the statuses covered by the one-run-per-bot rule
var ActiveRunStatuses = []RunStatus{RunStatusRunning, RunStatusWaiting, RunStatusPaused}

// IsActive reports whether the run still holds the bot
func (s RunStatus) IsActive() bool {
	return s == RunStatusRunning || s == RunStatusWaiting || s == RunStatusPaused
}

// IsTerminal reports whether the run can no longer change
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusStopped || s == RunStatusCompleted || s == RunStatusFailed
}

// Run stages
const (
	StagePlacingInitialOrder = "placing_initial_order"
	StageWaitingForCondition = "waiting_for_condition"
	StageEntryTriggered      = "entry_triggered"
	StageInitialOrderPlaced  = "initial_order_placed"
	StageEntryExecuted       = "entry_executed"
	StagePlanLogged          = "plan_logged"
	StageExitTriggered       = "exit_triggered"
	StageCompleted           = "completed"
)

// Run is one execution attempt of a bot
type Run struct {
	RunID  string    `json:"run_id"`
	BotID  string    `json:"bot_id"`
	UserID string    `json:"user_id"`
	Status RunStatus `json:"status"`
	Stage  string    `json:"stage,omitempty"`

	EntryOrderID   string  `json:"entry_order_id,omitempty"`
	AvgEntryPrice  float64 `json:"avg_entry_price,omitempty"`
	LastEntryPrice float64 `json:"last_entry_price,omitempty"`
	FilledAmount   float64 `json:"filled_amount,omitempty"`

	FailureReason string `json:"failure_reason,omitempty"`

	StartedAt time.Time  `json:"started_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// StartResult is returned by a successful start
type StartResult struct {
	RunID    string     `json:"run_id"`
	Status   RunStatus  `json:"status"`
	Plan     *TradePlan `json:"plan,omitempty"`
	Warnings []string   `json:"warnings,omitempty"`
}

// ControlResult is returned by pause, resume and stop
type ControlResult struct {
	BotID     string    `json:"bot_id"`
	RunID     string    `json:"run_id,omitempty"`
	BotStatus string    `json:"bot_status"`
	RunStatus RunStatus `json:"run_status,omitempty"`
	Skipped   bool      `json:"skipped"`
	Reason    string    `json:"reason,omitempty"`
}
