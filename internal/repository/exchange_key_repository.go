package repository

import (
	"context"

	"dcabot/backend/internal/model"
	"dcabot/backend/pkg/redis"
)

// ExchangeKeyRepository handles sealed exchange credentials
type ExchangeKeyRepository struct {
	redis *redis.Client
}

// NewExchangeKeyRepository creates a new exchange key repository
func NewExchangeKeyRepository(redisClient *redis.Client) *ExchangeKeyRepository {
	return &ExchangeKeyRepository{
		redis: redisClient,
	}
}

// Save creates or replaces the user's key for an exchange
func (r *ExchangeKeyRepository) Save(ctx context.Context, key *model.ExchangeKey) error {
	return r.redis.SetJSON(ctx, redis.ExchangeKeyKey(key.UserID, key.Exchange), key, 0)
}

// Get gets the user's key for an exchange
func (r *ExchangeKeyRepository) Get(ctx context.Context, userID, exchange string) (*model.ExchangeKey, error) {
	var key model.ExchangeKey
	if err := r.redis.GetJSON(ctx, redis.ExchangeKeyKey(userID, exchange), &key); err != nil {
		if redis.IsNil(err) {
			return nil, ErrExchangeKeyNotFound
		}
		return nil, err
	}
	return &key, nil
}

// Delete deletes the user's key for an exchange
func (r *ExchangeKeyRepository) Delete(ctx context.Context, userID, exchange string) error {
	return r.redis.Del(ctx, redis.ExchangeKeyKey(userID, exchange))
}

// Exists checks if the user has a key for an exchange
func (r *ExchangeKeyRepository) Exists(ctx context.Context, userID, exchange string) (bool, error) {
	return r.redis.Exists(ctx, redis.ExchangeKeyKey(userID, exchange))
}
