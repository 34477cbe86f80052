package repository

import (
	"context"
	"time"

	"dcabot/backend/internal/model"
	"dcabot/backend/pkg/redis"

	"github.com/google/uuid"
)

type BotRepository struct {
	redis *redis.Client
}

func NewBotRepository(redisClient *redis.Client) *BotRepository {
	return &BotRepository{
		redis: redisClient,
	}
}

// Create stores a new bot configuration
func (r *BotRepository) Create(ctx context.Context, bot *model.BotConfig) error {
	if bot.ID == "" {
		bot.ID = uuid.NewString()
	}
	if bot.Status == "" {
		bot.Status = model.BotStatusInactive
	}
	bot.CreatedAt = time.Now().UTC()
	bot.UpdatedAt = bot.CreatedAt

	pipe := r.redis.TxPipeline()
	if err := redis.PipeSetJSON(ctx, pipe, redis.BotKey(bot.ID), bot); err != nil {
		return err
	}
	pipe.SAdd(ctx, redis.UserBotsKey(bot.UserID), bot.ID)
	pipe.SAdd(ctx, redis.BotsByStatusKey(bot.Status), bot.ID)
	_, err := pipe.Exec(ctx)
	return err
}

// GetByID retrieves a bot by ID
func (r *BotRepository) GetByID(ctx context.Context, botID string) (*model.BotConfig, error) {
	var bot model.BotConfig
	if err := r.redis.GetJSON(ctx, redis.BotKey(botID), &bot); err != nil {
		if redis.IsNil(err) {
			return nil, ErrBotNotFound
		}
		return nil, err
	}
	return &bot, nil
}

// UpdateStatus sets the bot status and error message, keeping the status index in step
func (r *BotRepository) UpdateStatus(ctx context.Context, botID, status string, errorMsg *string) error {
	key := redis.BotKey(botID)
	return r.redis.WatchRetry(ctx, casAttempts, func(tx *redis.Tx) error {
		var bot model.BotConfig
		if err := redis.TxGetJSON(ctx, tx, key, &bot); err != nil {
			if redis.IsNil(err) {
				return ErrBotNotFound
			}
			return err
		}

		oldStatus := bot.Status
		bot.Status = status
		bot.ErrorMessage = errorMsg
		bot.UpdatedAt = time.Now().UTC()

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if err := redis.PipeSetJSON(ctx, pipe, key, &bot); err != nil {
				return err
			}
			if oldStatus != status {
				pipe.SRem(ctx, redis.BotsByStatusKey(oldStatus), botID)
				pipe.SAdd(ctx, redis.BotsByStatusKey(status), botID)
			}
			return nil
		})
		return err
	}, key)
}

// Delete removes a bot configuration and its indexes
func (r *BotRepository) Delete(ctx context.Context, botID string) error {
	bot, err := r.GetByID(ctx, botID)
	if err != nil {
		return err
	}

	pipe := r.redis.TxPipeline()
	pipe.Del(ctx, redis.BotKey(botID))
	pipe.SRem(ctx, redis.UserBotsKey(bot.UserID), botID)
	pipe.SRem(ctx, redis.BotsByStatusKey(bot.Status), botID)
	_, err = pipe.Exec(ctx)
	return err
}

// ListByUser retrieves all bots for a user
func (r *BotRepository) ListByUser(ctx context.Context, userID string) ([]*model.BotConfig, error) {
	return r.listFromSet(ctx, redis.UserBotsKey(userID))
}

// ListByStatus retrieves all bots with a specific status
func (r *BotRepository) ListByStatus(ctx context.Context, status string) ([]*model.BotConfig, error) {
	return r.listFromSet(ctx, redis.BotsByStatusKey(status))
}

func (r *BotRepository) listFromSet(ctx context.Context, setKey string) ([]*model.BotConfig, error) {
	botIDs, err := r.redis.SMembers(ctx, setKey)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(botIDs))
	for i, id := range botIDs {
		keys[i] = redis.BotKey(id)
	}
	return redis.GetJSONMany[model.BotConfig](ctx, r.redis, keys)
}
