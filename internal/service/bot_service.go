package service

import (
	"context"
	"errors"

	"dcabot/backend/internal/model"
	"dcabot/backend/internal/service/plan"
	"dcabot/backend/internal/util"
)

// ConditionLister reads a bot's conditions
type ConditionLister interface {
	ListByBot(ctx context.Context, botID string) ([]*model.Condition, error)
}

// BotService answers read-only questions about a user's bots
type BotService struct {
	bots       BotStore
	runs       RunStore
	conditions ConditionLister
	trades     TradeStore
	logs       LogStore
}

func NewBotService(bots BotStore, runs RunStore, conditions ConditionLister, trades TradeStore, logs LogStore) *BotService {
	return &BotService{
		bots:       bots,
		runs:       runs,
		conditions: conditions,
		trades:     trades,
		logs:       logs,
	}
}

// BotDetail is a bot with its active run, if any
type BotDetail struct {
	Bot       *model.BotResponse `json:"bot"`
	ActiveRun *model.Run         `json:"active_run,omitempty"`
}

// List returns the user's bots
func (s *BotService) List(ctx context.Context, userID string) ([]*model.BotResponse, error) {
	bots, err := s.bots.ListByUser(ctx, userID)
	if err != nil {
		return nil, util.ErrInternalServer("Failed to load bots")
	}
	out := make([]*model.BotResponse, 0, len(bots))
	for _, b := range bots {
		out = append(out, b.ToResponse())
	}
	return out, nil
}

// Get returns the bot and its active run
func (s *BotService) Get(ctx context.Context, botID, userID string) (*BotDetail, error) {
	bot, err := loadOwnedBot(ctx, s.bots, botID, userID)
	if err != nil {
		return nil, err
	}
	detail := &BotDetail{Bot: bot.ToResponse()}
	if run, err := s.runs.GetActive(ctx, botID); err == nil {
		detail.ActiveRun = run
	}
	return detail, nil
}

// Runs lists the bot's runs, newest first
func (s *BotService) Runs(ctx context.Context, botID, userID string, limit int) ([]*model.Run, error) {
	if _, err := loadOwnedBot(ctx, s.bots, botID, userID); err != nil {
		return nil, err
	}
	runs, err := s.runs.ListByBot(ctx, botID, limit)
	if err != nil {
		return nil, util.ErrInternalServer("Failed to load runs")
	}
	return runs, nil
}

// Logs returns the newest events of the bot
func (s *BotService) Logs(ctx context.Context, botID, userID string, limit int) ([]*model.BotLog, error) {
	if _, err := loadOwnedBot(ctx, s.bots, botID, userID); err != nil {
		return nil, err
	}
	logs, err := s.logs.ListBotLogs(ctx, botID, limit)
	if err != nil {
		return nil, util.ErrInternalServer("Failed to load bot logs")
	}
	return logs, nil
}

// WebhookLogs returns the newest webhook deliveries of the bot
func (s *BotService) WebhookLogs(ctx context.Context, botID, userID string, limit int) ([]*model.WebhookLog, error) {
	if _, err := loadOwnedBot(ctx, s.bots, botID, userID); err != nil {
		return nil, err
	}
	logs, err := s.logs.ListWebhookLogs(ctx, botID, limit)
	if err != nil {
		return nil, util.ErrInternalServer("Failed to load webhook logs")
	}
	return logs, nil
}

// Trades returns the trade archive, optionally for one run
func (s *BotService) Trades(ctx context.Context, botID, userID, runID string) ([]*model.TradeRecord, error) {
	if _, err := loadOwnedBot(ctx, s.bots, botID, userID); err != nil {
		return nil, err
	}
	trades, err := s.trades.ListByBot(ctx, botID, runID)
	if err != nil {
		return nil, util.ErrInternalServer("Failed to load trades")
	}
	return trades, nil
}

// Conditions returns the bot's conditions with their webhook tokens
func (s *BotService) Conditions(ctx context.Context, botID, userID string) ([]*model.Condition, error) {
	if _, err := loadOwnedBot(ctx, s.bots, botID, userID); err != nil {
		return nil, err
	}
	conds, err := s.conditions.ListByBot(ctx, botID)
	if err != nil {
		return nil, util.ErrInternalServer("Failed to load conditions")
	}
	return conds, nil
}

// PreviewPlan derives the plan for a hypothetical entry price. Nothing is stored.
func (s *BotService) PreviewPlan(ctx context.Context, botID, userID string, entryPrice float64) (*model.TradePlan, error) {
	if entryPrice <= 0 {
		return nil, util.ErrValidation("entry_price must be positive")
	}
	bot, err := loadOwnedBot(ctx, s.bots, botID, userID)
	if err != nil {
		return nil, err
	}
	p, err := plan.Build(bot, entryPrice, entryPrice)
	if err != nil {
		var cfgErr *plan.ConfigError
		if errors.As(err, &cfgErr) {
			return nil, util.ErrConfiguration(cfgErr.Error(), cfgErr)
		}
		return nil, err
	}
	return p, nil
}
