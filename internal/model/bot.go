package model

import (
	"time"
)

// Bot status constants
const (
	BotStatusInactive = "inactive"
	BotStatusStarting = "starting"
	BotStatusWaiting  = "waiting"
	BotStatusRunning  = "running"
	BotStatusPaused   = "paused"
	BotStatusStopped  = "stopped"
	BotStatusError    = "error"
)

// Trigger modes
const (
	TriggerModeImmediate = "immediate"
	TriggerModeWebhook   = "webhook"
)

// OrderType is the kind of entry order a run opens with
type OrderType string

const (
	OrderTypeMarket            OrderType = "market"
	OrderTypeLimit             OrderType = "limit"
	OrderTypeConditionalMarket OrderType = "conditional_market"
	OrderTypeConditionalLimit  OrderType = "conditional_limit"
)

// IsConditional reports whether the entry waits for a trigger
func (t OrderType) IsConditional() bool {
	return t == OrderTypeConditionalMarket || t == OrderTypeConditionalLimit
}

// IsLimit reports whether the entry is priced
func (t OrderType) IsLimit() bool {
	return t == OrderTypeLimit || t == OrderTypeConditionalLimit
}

// DCACondition selects where a DCA step's drop percentage comes from
type DCACondition string

const (
	DCAConditionLossAmount   DCACondition = "lossAmount"
	DCAConditionLastEntry    DCACondition = "lastEntry"
	DCAConditionAverageEntry DCACondition = "averageEntry"
	DCAConditionLossPercent  DCACondition = "lossPercent"
)

// AmountMode selects how DCA order sizes evolve
type AmountMode string

const (
	AmountModeFixed      AmountMode = "fixed"
	AmountModeMultiplier AmountMode = "multiplier"
)

// DropType identifies a stop/pause rule
type DropType string

const (
	DropFromLast DropType = "priceDropFromLast"
	DropFromAvg  DropType = "priceDropFromAvg"
)

// DropTypes lists every stop/pause rule type in evaluation order
var DropTypes = []DropType{DropFromLast, DropFromAvg}

// DropRule is one entry of a stop or pause condition set
type DropRule struct {
	Enabled bool    `json:"enabled"`
	Value   float64 `json:"value"`
}

// DCAConfig holds the averaging ladder parameters
type DCAConfig struct {
	Condition DCACondition `json:"dca_condition" validate:"required"`

	DCAOrders    int `json:"dca_orders" validate:"gte=0"`
	MaxDCAOrders int `json:"max_dca_orders" validate:"gtefield=DCAOrders"`

	LossAmount       float64 `json:"loss_amount,omitempty"`
	LastEntryDrop    float64 `json:"last_entry_drop,omitempty"`
	AverageEntryDrop float64 `json:"average_entry_drop,omitempty"`
	LossPercentage   float64 `json:"loss_percentage,omitempty"`

	AmountMode  AmountMode `json:"dca_amount_mode" validate:"required"`
	FixedAmount float64    `json:"fixed_amount,omitempty" validate:"required_if=AmountMode fixed,gte=0"`
	Multiplier  float64    `json:"multiplier,omitempty" validate:"required_if=AmountMode multiplier,gte=0"`

	ProgressiveDrop       bool    `json:"progressive_drop"`
	ProgressiveMultiplier float64 `json:"progressive_multiplier,omitempty" validate:"gte=0"`
}

// TakeProfitTarget is one rung of the take-profit ladder. Nil fields are unset.
type TakeProfitTarget struct {
	TriggerPct   *float64 `json:"trigger_pct"`
	PositionSize *float64 `json:"position_size"`
}

// BotConfig represents a DCA bot. It is read-only to the run engine.
type BotConfig struct {
	ID     string `json:"id"`
	UserID string `json:"user_id" validate:"required"`
	Name   string `json:"name"`

	TradingPair string `json:"trading_pair" validate:"required"`
	Exchange    string `json:"exchange" validate:"required"`

	// Webhook trigger mode
	TriggerMode   string `json:"trigger_mode" validate:"omitempty,oneof=immediate webhook"`
	WebhookSecret string `json:"webhook_secret,omitempty" validate:"required_if=TriggerMode webhook"`

	// Entry order
	OrderType       OrderType `json:"order_type" validate:"required,oneof=market limit conditional_market conditional_limit"`
	LimitPrice      float64   `json:"limit_price,omitempty" validate:"gte=0"`
	InitialAmount   float64   `json:"initial_amount" validate:"required,gt=0"`
	RequiredCapital float64   `json:"required_capital" validate:"required,gt=0"`

	DCA        DCAConfig             `json:"dca"`
	TakeProfit []TakeProfitTarget    `json:"take_profit" validate:"required,min=1"`
	StopRules  map[DropType]DropRule `json:"stop_conditions,omitempty"`
	PauseRules map[DropType]DropRule `json:"pause_conditions,omitempty"`

	// Status
	Status       string  `json:"status"`
	ErrorMessage *string `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CanStart reports whether the bot status allows a new run
func (b *BotConfig) CanStart() bool {
	return b.Status == BotStatusInactive || b.Status == BotStatusStopped || b.Status == ""
}

// UsesWebhook reports whether the bot accepts signal webhooks
func (b *BotConfig) UsesWebhook() bool {
	return b.TriggerMode == TriggerModeWebhook
}

// BotResponse is the public view of a bot
type BotResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	TradingPair  string    `json:"trading_pair"`
	Exchange     string    `json:"exchange"`
	OrderType    OrderType `json:"order_type"`
	TriggerMode  string    `json:"trigger_mode,omitempty"`
	Status       string    `json:"status"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ToResponse strips secrets from the bot
func (b *BotConfig) ToResponse() *BotResponse {
	return &BotResponse{
		ID:           b.ID,
		Name:         b.Name,
		TradingPair:  b.TradingPair,
		Exchange:     b.Exchange,
		OrderType:    b.OrderType,
		TriggerMode:  b.TriggerMode,
		Status:       b.Status,
		ErrorMessage: b.ErrorMessage,
		UpdatedAt:    b.UpdatedAt,
	}
}
