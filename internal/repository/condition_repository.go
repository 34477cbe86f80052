package repository

import (
	"context"
	"time"

	"dcabot/backend/internal/model"
	"dcabot/backend/pkg/redis"

	"github.com/google/uuid"
)

// ConditionRepository stores the gating conditions of bots
type ConditionRepository struct {
	redis *redis.Client
}

func NewConditionRepository(redisClient *redis.Client) *ConditionRepository {
	return &ConditionRepository{redis: redisClient}
}

// StatusChange is one condition write paired with the status it had when read
type StatusChange struct {
	Condition *model.Condition
	From      model.ConditionStatus
}

// Create stores a condition and indexes it by bot, token and status
func (r *ConditionRepository) Create(ctx context.Context, c *model.Condition) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = model.ConditionStatusWaiting
	}
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt

	pipe := r.redis.TxPipeline()
	if err := redis.PipeSetJSON(ctx, pipe, redis.ConditionKey(c.ID), c); err != nil {
		return err
	}
	pipe.SAdd(ctx, redis.BotConditionsKey(c.BotID), c.ID)
	pipe.SAdd(ctx, redis.ConditionsByStatusKey(string(c.Status)), c.ID)
	if c.Token != "" {
		pipe.Set(ctx, redis.ConditionTokenKey(c.Token), c.ID, 0)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// GetByID retrieves a condition
func (r *ConditionRepository) GetByID(ctx context.Context, id string) (*model.Condition, error) {
	var c model.Condition
	if err := r.redis.GetJSON(ctx, redis.ConditionKey(id), &c); err != nil {
		if redis.IsNil(err) {
			return nil, ErrConditionNotFound
		}
		return nil, err
	}
	return &c, nil
}

// GetByToken resolves a webhook token to its condition
func (r *ConditionRepository) GetByToken(ctx context.Context, token string) (*model.Condition, error) {
	id, err := r.redis.Get(ctx, redis.ConditionTokenKey(token))
	if err != nil {
		if redis.IsNil(err) {
			return nil, ErrConditionNotFound
		}
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// ListByBot returns every condition of the bot
func (r *ConditionRepository) ListByBot(ctx context.Context, botID string) ([]*model.Condition, error) {
	return r.listFromSet(ctx, redis.BotConditionsKey(botID))
}

// ListByStatus returns every condition currently in status
func (r *ConditionRepository) ListByStatus(ctx context.Context, status model.ConditionStatus) ([]*model.Condition, error) {
	return r.listFromSet(ctx, redis.ConditionsByStatusKey(string(status)))
}

func (r *ConditionRepository) listFromSet(ctx context.Context, setKey string) ([]*model.Condition, error) {
	ids, err := r.redis.SMembers(ctx, setKey)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redis.ConditionKey(id)
	}
	return redis.GetJSONMany[model.Condition](ctx, r.redis, keys)
}

// Transition applies mutate if the condition's status is one of from.
// It returns the stored condition and ErrStatusConflict when the status did not match.
func (r *ConditionRepository) Transition(ctx context.Context, id string, from []model.ConditionStatus, mutate func(*model.Condition)) (*model.Condition, error) {
	key := redis.ConditionKey(id)

	var result *model.Condition
	err := r.redis.WatchRetry(ctx, casAttempts, func(tx *redis.Tx) error {
		var c model.Condition
		if err := redis.TxGetJSON(ctx, tx, key, &c); err != nil {
			if redis.IsNil(err) {
				return ErrConditionNotFound
			}
			return err
		}
		result = &c
		if !conditionStatusIn(c.Status, from) {
			return ErrStatusConflict
		}

		oldStatus := c.Status
		mutate(&c)
		c.UpdatedAt = time.Now().UTC()

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			return queueConditionWrite(ctx, pipe, &c, oldStatus)
		})
		return err
	}, key)
	return result, err
}

// ApplyStatusChanges writes a batch of condition updates atomically. Each
// change must hold the status it was read with so indexes stay consistent.
func (r *ConditionRepository) ApplyStatusChanges(ctx context.Context, changes []StatusChange) error {
	if len(changes) == 0 {
		return nil
	}
	now := time.Now().UTC()
	pipe := r.redis.TxPipeline()
	for _, ch := range changes {
		ch.Condition.UpdatedAt = now
		if err := queueConditionWrite(ctx, pipe, ch.Condition, ch.From); err != nil {
			return err
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

// ResetByBot returns every condition of the bot to waiting, clearing triggers
func (r *ConditionRepository) ResetByBot(ctx context.Context, botID string) error {
	conds, err := r.ListByBot(ctx, botID)
	if err != nil {
		return err
	}
	changes := make([]StatusChange, 0, len(conds))
	for _, c := range conds {
		from := c.Status
		c.Status = model.ConditionStatusWaiting
		c.TriggeredAt = nil
		changes = append(changes, StatusChange{Condition: c, From: from})
	}
	return r.ApplyStatusChanges(ctx, changes)
}

// DeleteByBot removes every condition of the bot with its token and status entries
func (r *ConditionRepository) DeleteByBot(ctx context.Context, botID string) error {
	conds, err := r.ListByBot(ctx, botID)
	if err != nil {
		return err
	}
	pipe := r.redis.TxPipeline()
	for _, c := range conds {
		pipe.Del(ctx, redis.ConditionKey(c.ID))
		pipe.SRem(ctx, redis.ConditionsByStatusKey(string(c.Status)), c.ID)
		if c.Token != "" {
			pipe.Del(ctx, redis.ConditionTokenKey(c.Token))
		}
	}
	pipe.Del(ctx, redis.BotConditionsKey(botID))
	_, err = pipe.Exec(ctx)
	return err
}

func queueConditionWrite(ctx context.Context, pipe redis.Pipeliner, c *model.Condition, oldStatus model.ConditionStatus) error {
	if err := redis.PipeSetJSON(ctx, pipe, redis.ConditionKey(c.ID), c); err != nil {
		return err
	}
	if oldStatus != c.Status {
		pipe.SRem(ctx, redis.ConditionsByStatusKey(string(oldStatus)), c.ID)
		pipe.SAdd(ctx, redis.ConditionsByStatusKey(string(c.Status)), c.ID)
	}
	return nil
}

func conditionStatusIn(s model.ConditionStatus, set []model.ConditionStatus) bool {
	if len(set) == 0 {
		return true
	}
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
