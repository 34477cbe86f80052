package service

import (
	"context"

	"dcabot/backend/internal/exchange"
	"dcabot/backend/internal/model"
	"dcabot/backend/internal/repository"
)

// BotStore reads bot configs and records their status
type BotStore interface {
	GetByID(ctx context.Context, botID string) (*model.BotConfig, error)
	UpdateStatus(ctx context.Context, botID, status string, errorMsg *string) error
	Delete(ctx context.Context, botID string) error
	ListByUser(ctx context.Context, userID string) ([]*model.BotConfig, error)
}

// RunStore persists runs and guards the one-active-run rule
type RunStore interface {
	CreateIfNoActive(ctx context.Context, run *model.Run) error
	GetByID(ctx context.Context, runID string) (*model.Run, error)
	GetActive(ctx context.Context, botID string) (*model.Run, error)
	LatestWithStatus(ctx context.Context, botID string, status model.RunStatus) (*model.Run, error)
	ListByBot(ctx context.Context, botID string, limit int) ([]*model.Run, error)
	CompareAndSetStatus(ctx context.Context, runID string, from []model.RunStatus, to model.RunStatus, mutate func(*model.Run)) (*model.Run, error)
	Update(ctx context.Context, runID string, allowed []model.RunStatus, mutate func(*model.Run)) (*model.Run, error)
	DeleteByBot(ctx context.Context, botID string) error
}

// ConditionStore persists gating conditions
type ConditionStore interface {
	GetByID(ctx context.Context, id string) (*model.Condition, error)
	GetByToken(ctx context.Context, token string) (*model.Condition, error)
	ListByBot(ctx context.Context, botID string) ([]*model.Condition, error)
	ListByStatus(ctx context.Context, status model.ConditionStatus) ([]*model.Condition, error)
	Transition(ctx context.Context, id string, from []model.ConditionStatus, mutate func(*model.Condition)) (*model.Condition, error)
	ApplyStatusChanges(ctx context.Context, changes []repository.StatusChange) error
	ResetByBot(ctx context.Context, botID string) error
	DeleteByBot(ctx context.Context, botID string) error
}

// TradeStore is the bot_trades archive
type TradeStore interface {
	Append(ctx context.Context, records ...*model.TradeRecord) error
	ListByBot(ctx context.Context, botID, runID string) ([]*model.TradeRecord, error)
	DeleteByBot(ctx context.Context, botID string) error
}

// LogStore holds bot events and the webhook audit trail
type LogStore interface {
	AppendBotLog(ctx context.Context, entry *model.BotLog) error
	ListBotLogs(ctx context.Context, botID string, limit int) ([]*model.BotLog, error)
	AppendWebhookLog(ctx context.Context, entry *model.WebhookLog) error
	ListWebhookLogs(ctx context.Context, botID string, limit int) ([]*model.WebhookLog, error)
	DeleteByBot(ctx context.Context, botID string) error
}

// ExchangeKeyStore holds sealed exchange credentials
type ExchangeKeyStore interface {
	Save(ctx context.Context, key *model.ExchangeKey) error
	Get(ctx context.Context, userID, exchange string) (*model.ExchangeKey, error)
	Delete(ctx context.Context, userID, exchange string) error
}

// GatewayFactory builds an exchange gateway for an account
type GatewayFactory interface {
	New(exchangeID string, creds exchange.Credentials) (exchange.Gateway, error)
}

// CredentialSource resolves the credentials a bot trades with
type CredentialSource interface {
	Credentials(ctx context.Context, userID, exchangeID string) (exchange.Credentials, error)
}

// EventLogger writes the structured bot event stream
type EventLogger interface {
	Log(ctx context.Context, runID, botID, userID string, kind model.EventKind, metadata map[string]interface{})
}
