package service

import (
	"context"
	"time"

	"dcabot/backend/pkg/logger"
	"dcabot/backend/pkg/redis"
)

// Locker is a distributed lock with expiry
type Locker interface {
	LockKey(ctx context.Context, key string, expiration time.Duration) (bool, error)
	UnlockKey(ctx context.Context, key string) error
}

// ConditionSweeper periodically expires stale triggers. Only one process
// sweeps per tick; the others skip while the lock is held.
type ConditionSweeper struct {
	evaluator *ConditionEvaluator
	locker    Locker
	interval  time.Duration
	lockTTL   time.Duration
	log       *logger.Logger

	ticker *time.Ticker
	stop   chan struct{}
	done   chan struct{}
}

func NewConditionSweeper(evaluator *ConditionEvaluator, locker Locker, interval, lockTTL time.Duration) *ConditionSweeper {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if lockTTL <= 0 {
		lockTTL = interval
	}
	return &ConditionSweeper{
		evaluator: evaluator,
		locker:    locker,
		interval:  interval,
		lockTTL:   lockTTL,
		log:       logger.GetLogger(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start runs the sweep loop in the background
func (s *ConditionSweeper) Start() {
	s.ticker = time.NewTicker(s.interval)
	go func() {
		defer close(s.done)
		for {
			select {
			case <-s.ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), s.interval)
				s.Sweep(ctx)
				cancel()
			case <-s.stop:
				return
			}
		}
	}()
	s.log.Infof("Condition sweeper started (every %s)", s.interval)
}

// Sweep runs one pass and returns how many conditions expired
func (s *ConditionSweeper) Sweep(ctx context.Context) int {
	if s.locker != nil {
		ok, err := s.locker.LockKey(ctx, redis.SweepLockKey(), s.lockTTL)
		if err != nil {
			s.log.Error("Failed to take sweep lock", err)
			return 0
		}
		if !ok {
			return 0
		}
		defer func() {
			if err := s.locker.UnlockKey(context.Background(), redis.SweepLockKey()); err != nil {
				s.log.Warnf("Failed to release sweep lock: %v", err)
			}
		}()
	}

	n, err := s.evaluator.ExpireStale(ctx)
	if err != nil {
		s.log.Error("Condition sweep failed", err)
	}
	if n > 0 {
		s.log.Infof("Expired %d stale conditions", n)
	}
	return n
}

// Stop ends the loop and waits for an in-flight sweep
func (s *ConditionSweeper) Stop() {
	if s.ticker == nil {
		return
	}
	s.ticker.Stop()
	close(s.stop)
	<-s.done
}
