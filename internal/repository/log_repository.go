package repository

import (
	"context"
	"encoding/json"

	"dcabot/backend/internal/model"
	"dcabot/backend/pkg/redis"
)

// LogRepository stores the bot event stream and the webhook audit trail
type LogRepository struct {
	redis *redis.Client
}

func NewLogRepository(redisClient *redis.Client) *LogRepository {
	return &LogRepository{redis: redisClient}
}

// AppendBotLog appends an event to the bot's log
func (r *LogRepository) AppendBotLog(ctx context.Context, entry *model.BotLog) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return r.redis.RPush(ctx, redis.BotLogsKey(entry.BotID), data)
}

// ListBotLogs returns the newest limit events, oldest first. limit <= 0 returns all.
func (r *LogRepository) ListBotLogs(ctx context.Context, botID string, limit int) ([]*model.BotLog, error) {
	return listJSON[model.BotLog](ctx, r.redis, redis.BotLogsKey(botID), limit)
}

// AppendWebhookLog audits a webhook delivery
func (r *LogRepository) AppendWebhookLog(ctx context.Context, entry *model.WebhookLog) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return r.redis.RPush(ctx, redis.WebhookLogsKey(entry.BotID), data)
}

// ListWebhookLogs returns the newest limit deliveries, oldest first
func (r *LogRepository) ListWebhookLogs(ctx context.Context, botID string, limit int) ([]*model.WebhookLog, error) {
	return listJSON[model.WebhookLog](ctx, r.redis, redis.WebhookLogsKey(botID), limit)
}

// DeleteByBot drops both logs of the bot
func (r *LogRepository) DeleteByBot(ctx context.Context, botID string) error {
	return r.redis.Del(ctx, redis.BotLogsKey(botID), redis.WebhookLogsKey(botID))
}

func listJSON[T any](ctx context.Context, c *redis.Client, key string, limit int) ([]*T, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	items, err := c.LRange(ctx, key, start, -1)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(items))
	for _, item := range items {
		v := new(T)
		if err := json.Unmarshal([]byte(item), v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
