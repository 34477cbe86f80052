package model

import "time"

// ConditionStatus is the lifecycle state of a gating condition
type ConditionStatus string

const (
	ConditionStatusWaiting   ConditionStatus = "waiting"
	ConditionStatusTriggered ConditionStatus = "triggered"
	ConditionStatusExpired   ConditionStatus = "expired"
	ConditionStatusCompleted ConditionStatus = "completed"
	ConditionStatusSkipped   ConditionStatus = "skipped"
)

// LogicOperator combines the conditions of one group
type LogicOperator string

const (
	LogicAnd LogicOperator = "and"
	LogicOr  LogicOperator = "or"
)

// ConditionStage separates pre-filters from the conditions that fire an action
type ConditionStage string

const (
	StageFilter  ConditionStage = "filter"
	StageTrigger ConditionStage = "trigger"
)

// ConditionAction is what a satisfied trigger gate does
type ConditionAction string

const (
	ActionEntry ConditionAction = "entry"
	ActionExit  ConditionAction = "exit"
)

// DefaultValiditySecs applies when a condition has no validity window
const DefaultValiditySecs = 300

// Condition is an externally triggered predicate gating a bot action
type Condition struct {
	ID            string          `json:"condition_id"`
	BotID         string          `json:"bot_id"`
	Name          string          `json:"name,omitempty"`
	Signal        string          `json:"signal,omitempty"`
	Token         string          `json:"webhook_token"`
	GroupNum      int             `json:"group_num"`
	LogicOperator LogicOperator   `json:"logic_operator"`
	Stage         ConditionStage  `json:"stage"`
	Action        ConditionAction `json:"action,omitempty"`
	Status        ConditionStatus `json:"status"`
	TriggeredAt   *time.Time      `json:"triggered_at,omitempty"`
	ValiditySecs  int             `json:"validity_secs"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Validity returns the trigger window, falling back to def seconds
func (c *Condition) Validity(def int) time.Duration {
	secs := c.ValiditySecs
	if secs <= 0 {
		secs = def
	}
	if secs <= 0 {
		secs = DefaultValiditySecs
	}
	return time.Duration(secs) * time.Second
}

// WithinValidity reports whether a recorded trigger is still actionable at now
func (c *Condition) WithinValidity(now time.Time, def int) bool {
	if c.TriggeredAt == nil {
		return false
	}
	return now.Sub(*c.TriggeredAt) < c.Validity(def)
}

// IsStale reports whether a triggered condition has outlived its window
func (c *Condition) IsStale(now time.Time, def int) bool {
	return c.Status == ConditionStatusTriggered && !c.WithinValidity(now, def)
}

// Operator returns the group operator, treating unknown values as AND
func (c *Condition) Operator() LogicOperator {
	if c.LogicOperator == LogicOr {
		return LogicOr
	}
	return LogicAnd
}

// EffectiveAction defaults trigger conditions to an entry
func (c *Condition) EffectiveAction() ConditionAction {
	if c.Action == "" {
		return ActionEntry
	}
	return c.Action
}

// GroupResult is the outcome of one condition group
type GroupResult struct {
	GroupNum   int           `json:"group_num"`
	Operator   LogicOperator `json:"logic_operator"`
	Passed     bool          `json:"passed"`
	HasExpired bool          `json:"has_expired,omitempty"`
	Triggered  int           `json:"triggered"`
	Total      int           `json:"total"`
}

// GateDecision is the evaluator's verdict for one bot
type GateDecision struct {
	BotID      string          `json:"bot_id"`
	Passed     bool            `json:"passed"`
	HasTrigger bool            `json:"has_trigger"`
	Action     ConditionAction `json:"action,omitempty"`
	Groups     []GroupResult   `json:"groups"`
	Expired    []string        `json:"expired,omitempty"`
	// Participants are the conditions evaluated in this pass
	Participants []*Condition `json:"-"`
}

// Fires reports whether the decision should run a gated action
func (d *GateDecision) Fires() bool {
	return d.Passed && d.HasTrigger
}

// Trigger delivery outcomes
const (
	DeliveryTriggered        = "triggered"
	DeliveryAlreadyTriggered = "already_triggered"
)

// TriggerResult is returned to a webhook caller
type TriggerResult struct {
	Status      string          `json:"status"`
	BotID       string          `json:"bot_id"`
	ConditionID string          `json:"condition_id"`
	TriggeredAt *time.Time      `json:"triggered_at,omitempty"`
	Fired       bool            `json:"fired"`
	Action      ConditionAction `json:"action,omitempty"`
	RunID       string          `json:"run_id,omitempty"`
	Gate        *GateDecision   `json:"gate,omitempty"`
}
