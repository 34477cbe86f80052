package repository

import (
	"context"
	"encoding/json"

	"dcabot/backend/internal/model"
	"dcabot/backend/pkg/redis"
)

// TradeRepository appends fills and planned levels to a bot's trade archive
type TradeRepository struct {
	redis *redis.Client
}

func NewTradeRepository(redisClient *redis.Client) *TradeRepository {
	return &TradeRepository{redis: redisClient}
}

// Append writes records in order as one push
func (r *TradeRepository) Append(ctx context.Context, records ...*model.TradeRecord) error {
	if len(records) == 0 {
		return nil
	}
	values := make([]interface{}, len(records))
	for i, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		values[i] = data
	}
	return r.redis.RPush(ctx, redis.BotTradesKey(records[0].BotID), values...)
}

// ListByBot returns the archive of the bot, optionally narrowed to one run
func (r *TradeRepository) ListByBot(ctx context.Context, botID, runID string) ([]*model.TradeRecord, error) {
	items, err := r.redis.LRange(ctx, redis.BotTradesKey(botID), 0, -1)
	if err != nil {
		return nil, err
	}
	records := make([]*model.TradeRecord, 0, len(items))
	for _, item := range items {
		var rec model.TradeRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, err
		}
		if runID != "" && rec.RunID != runID {
			continue
		}
		records = append(records, &rec)
	}
	return records, nil
}

// DeleteByBot drops the bot's archive
func (r *TradeRepository) DeleteByBot(ctx context.Context, botID string) error {
	return r.redis.Del(ctx, redis.BotTradesKey(botID))
}
