package repository

import (
	"context"
	"time"

	"dcabot/backend/internal/model"
	"dcabot/backend/pkg/redis"
)

// RunRepository stores bot runs. Each bot has at most one active run, tracked
// by a slot key that is claimed on create and released on a terminal status.
type RunRepository struct {
	redis *redis.Client
}

func NewRunRepository(redisClient *redis.Client) *RunRepository {
	return &RunRepository{redis: redisClient}
}

// CreateIfNoActive stores run and claims the bot's active slot. A slot that
// points at a missing or terminal run is reclaimed.
func (r *RunRepository) CreateIfNoActive(ctx context.Context, run *model.Run) error {
	slot := redis.BotActiveRunKey(run.BotID)
	now := time.Now().UTC()
	if run.StartedAt.IsZero() {
		run.StartedAt = now
	}
	run.UpdatedAt = now

	return r.redis.WatchRetry(ctx, casAttempts, func(tx *redis.Tx) error {
		currentID, err := tx.Get(ctx, slot).Result()
		if err != nil && !redis.IsNil(err) {
			return err
		}
		if currentID != "" {
			var current model.Run
			err := redis.TxGetJSON(ctx, tx, redis.RunKey(currentID), &current)
			switch {
			case err == nil && !current.Status.IsTerminal():
				return ErrActiveRunExists
			case err != nil && !redis.IsNil(err):
				return err
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if err := redis.PipeSetJSON(ctx, pipe, redis.RunKey(run.RunID), run); err != nil {
				return err
			}
			pipe.Set(ctx, slot, run.RunID, 0)
			pipe.ZAdd(ctx, redis.BotRunsKey(run.BotID), redis.Z{
				Score:  float64(run.StartedAt.UnixNano()),
				Member: run.RunID,
			})
			return nil
		})
		return err
	}, slot)
}

// GetByID retrieves a run
func (r *RunRepository) GetByID(ctx context.Context, runID string) (*model.Run, error) {
	var run model.Run
	if err := r.redis.GetJSON(ctx, redis.RunKey(runID), &run); err != nil {
		if redis.IsNil(err) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

// GetActive returns the bot's non-terminal run, or ErrRunNotFound
func (r *RunRepository) GetActive(ctx context.Context, botID string) (*model.Run, error) {
	runID, err := r.redis.Get(ctx, redis.BotActiveRunKey(botID))
	if err != nil {
		if redis.IsNil(err) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	run, err := r.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status.IsTerminal() {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// LatestWithStatus returns the most recently started run of the bot in status
func (r *RunRepository) LatestWithStatus(ctx context.Context, botID string, status model.RunStatus) (*model.Run, error) {
	runs, err := r.ListByBot(ctx, botID, 50)
	if err != nil {
		return nil, err
	}
	for _, run := range runs {
		if run.Status == status {
			return run, nil
		}
	}
	return nil, ErrRunNotFound
}

// ListByBot returns the bot's runs, newest first. limit <= 0 returns all.
func (r *RunRepository) ListByBot(ctx context.Context, botID string, limit int) ([]*model.Run, error) {
	stop := int64(limit) - 1
	if limit <= 0 {
		stop = -1
	}
	ids, err := r.redis.ZRevRange(ctx, redis.BotRunsKey(botID), 0, stop)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redis.RunKey(id)
	}
	return redis.GetJSONMany[model.Run](ctx, r.redis, keys)
}

// CompareAndSetStatus moves the run to status `to` if its current status is
// one of `from`. mutate, when non-nil, may adjust other fields in the same
// write. Reaching a terminal status releases the bot's active slot.
func (r *RunRepository) CompareAndSetStatus(ctx context.Context, runID string, from []model.RunStatus, to model.RunStatus, mutate func(*model.Run)) (*model.Run, error) {
	return r.update(ctx, runID, from, func(run *model.Run) {
		run.Status = to
		if mutate != nil {
			mutate(run)
		}
	})
}

// Update applies mutate to the run if its status is one of allowed (any, when empty)
func (r *RunRepository) Update(ctx context.Context, runID string, allowed []model.RunStatus, mutate func(*model.Run)) (*model.Run, error) {
	return r.update(ctx, runID, allowed, mutate)
}

func (r *RunRepository) update(ctx context.Context, runID string, allowed []model.RunStatus, mutate func(*model.Run)) (*model.Run, error) {
	existing, err := r.GetByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	runKey := redis.RunKey(runID)
	slot := redis.BotActiveRunKey(existing.BotID)

	var result *model.Run
	err = r.redis.WatchRetry(ctx, casAttempts, func(tx *redis.Tx) error {
		var run model.Run
		if err := redis.TxGetJSON(ctx, tx, runKey, &run); err != nil {
			if redis.IsNil(err) {
				return ErrRunNotFound
			}
			return err
		}
		if !statusIn(run.Status, allowed) {
			result = &run
			return ErrStatusConflict
		}

		wasTerminal := run.Status.IsTerminal()
		mutate(&run)
		now := time.Now().UTC()
		run.UpdatedAt = now
		if run.Status.IsTerminal() && !wasTerminal && run.EndedAt == nil {
			run.EndedAt = &now
		}

		slotID, err := tx.Get(ctx, slot).Result()
		if err != nil && !redis.IsNil(err) {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if err := redis.PipeSetJSON(ctx, pipe, runKey, &run); err != nil {
				return err
			}
			if run.Status.IsTerminal() && slotID == run.RunID {
				pipe.Del(ctx, slot)
			}
			return nil
		})
		if err == nil {
			result = &run
		}
		return err
	}, runKey, slot)
	return result, err
}

// DeleteByBot removes every run of the bot and its indexes
func (r *RunRepository) DeleteByBot(ctx context.Context, botID string) error {
	ids, err := r.redis.ZRevRange(ctx, redis.BotRunsKey(botID), 0, -1)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(ids)+2)
	for _, id := range ids {
		keys = append(keys, redis.RunKey(id))
	}
	keys = append(keys, redis.BotRunsKey(botID), redis.BotActiveRunKey(botID))
	return r.redis.Del(ctx, keys...)
}

// statusIn treats an empty set as "any status"
func statusIn(s model.RunStatus, set []model.RunStatus) bool {
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
