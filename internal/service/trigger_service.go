package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"dcabot/backend/internal/metrics"
	"dcabot/backend/internal/model"
	"dcabot/backend/internal/repository"
	"dcabot/backend/internal/util"
	"dcabot/backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/jxskiss/base62"
)

// RunAdvancer executes the action of a fired gate
type RunAdvancer interface {
	Advance(ctx context.Context, botID string, trigger map[string]interface{}) (*model.Run, error)
	Complete(ctx context.Context, botID string, trigger map[string]interface{}) (*model.Run, error)
}

// Delivery describes where a webhook came from, for the audit trail
type Delivery struct {
	Source     string
	RemoteAddr string
}

// TriggerService accepts webhook deliveries, records condition triggers and
// fires the gated action when the bot's groups are satisfied. Deliveries are
// at-least-once: a redelivery inside the trigger window is acknowledged as
// already triggered without firing again.
type TriggerService struct {
	bots       BotStore
	conditions ConditionStore
	logs       LogStore
	events     EventLogger
	evaluator  *ConditionEvaluator
	runs       RunAdvancer
	locks      *KeyedMutex
	now        func() time.Time
	log        *logger.Logger
}

func NewTriggerService(bots BotStore, conditions ConditionStore, logs LogStore, events EventLogger, evaluator *ConditionEvaluator, runs RunAdvancer, now func() time.Time) *TriggerService {
	if now == nil {
		now = time.Now
	}
	return &TriggerService{
		bots:       bots,
		conditions: conditions,
		logs:       logs,
		events:     events,
		evaluator:  evaluator,
		runs:       runs,
		locks:      NewKeyedMutex(),
		now:        now,
		log:        logger.GetLogger(),
	}
}

// NewWebhookToken returns an opaque token for a condition webhook URL
func NewWebhookToken() string {
	id := uuid.New()
	return base62.EncodeToString(id[:])
}

// DeliverConditionToken triggers the condition addressed by token
func (s *TriggerService) DeliverConditionToken(ctx context.Context, token string, from Delivery) (*model.TriggerResult, error) {
	from.Source = model.WebhookSourceCondition

	cond, err := s.conditions.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrConditionNotFound) {
			s.reject(ctx, "", "", "", "unknown condition token", from)
			return nil, util.ErrStaleSignal("unknown condition token")
		}
		return nil, util.ErrExternalService("failed to resolve token", err, nil)
	}

	bot, err := s.bots.GetByID(ctx, cond.BotID)
	if err != nil {
		if errors.Is(err, repository.ErrBotNotFound) {
			s.reject(ctx, cond.BotID, cond.ID, "", "bot no longer exists", from)
			return nil, util.ErrStaleSignal("condition belongs to a deleted bot")
		}
		return nil, util.ErrExternalService("failed to load bot", err, map[string]string{"bot_id": cond.BotID})
	}

	return s.deliver(ctx, bot, cond.ID, "", from)
}

// DeliverWebhook triggers the condition of a webhook-mode bot whose signal
// matches, after checking the bot's shared secret.
func (s *TriggerService) DeliverWebhook(ctx context.Context, botID, secret, signal string, from Delivery) (*model.TriggerResult, error) {
	from.Source = model.WebhookSourceSignal

	bot, err := s.bots.GetByID(ctx, botID)
	if err != nil {
		if errors.Is(err, repository.ErrBotNotFound) {
			s.reject(ctx, botID, "", signal, "bot not found", from)
			return nil, util.NewAppError(http.StatusNotFound, util.ErrCodeBotNotFound, "bot not found")
		}
		return nil, util.ErrExternalService("failed to load bot", err, map[string]string{"bot_id": botID})
	}

	if !bot.UsesWebhook() {
		s.reject(ctx, botID, "", signal, "bot is not in webhook trigger mode", from)
		return nil, util.ErrBadRequest("bot is not in webhook trigger mode")
	}
	if bot.WebhookSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(bot.WebhookSecret)) != 1 {
		s.reject(ctx, botID, "", signal, "invalid secret", from)
		return nil, util.ErrUnauthorized("invalid webhook secret")
	}

	conds, err := s.conditions.ListByBot(ctx, botID)
	if err != nil {
		return nil, util.ErrExternalService("failed to load conditions", err, map[string]string{"bot_id": botID})
	}
	var target *model.Condition
	for _, c := range conds {
		if c.Signal != "" && strings.EqualFold(c.Signal, signal) {
			target = c
			break
		}
	}
	if target == nil {
		s.reject(ctx, botID, "", signal, "no condition for signal", from)
		return nil, util.ErrStaleSignal("signal does not match any condition of the bot")
	}

	return s.deliver(ctx, bot, target.ID, signal, from)
}

// deliver records the trigger and evaluates the bot's gate under the bot's
// condition lock, so concurrent deliveries see each other's writes.
func (s *TriggerService) deliver(ctx context.Context, bot *model.BotConfig, conditionID, signal string, from Delivery) (*model.TriggerResult, error) {
	unlock := s.locks.Lock(bot.ID)
	defer unlock()

	cond, err := s.conditions.GetByID(ctx, conditionID)
	if err != nil {
		s.reject(ctx, bot.ID, conditionID, signal, "condition not found", from)
		return nil, util.ErrStaleSignal("condition not found")
	}

	now := s.now()
	validity := s.evaluator.ValiditySecs()
	result := &model.TriggerResult{BotID: bot.ID, ConditionID: cond.ID}

	switch cond.Status {
	case model.ConditionStatusTriggered, model.ConditionStatusCompleted:
		if cond.WithinValidity(now, validity) {
			result.Status = model.DeliveryAlreadyTriggered
			result.TriggeredAt = cond.TriggeredAt
			s.audit(ctx, bot.ID, cond.ID, signal, true, model.DeliveryAlreadyTriggered, from)
			metrics.WebhookDeliveries.WithLabelValues(from.Source, model.DeliveryAlreadyTriggered).Inc()
			return result, nil
		}
		if cond.Status == model.ConditionStatusCompleted {
			s.reject(ctx, bot.ID, cond.ID, signal, "condition already consumed", from)
			return nil, util.ErrStaleSignal("condition already consumed")
		}
	case model.ConditionStatusSkipped:
		s.reject(ctx, bot.ID, cond.ID, signal, "condition skipped in the last epoch", from)
		return nil, util.ErrStaleSignal("condition was skipped and needs a new run")
	}

	triggeredAt := now.UTC()
	cond, err = s.conditions.Transition(ctx, cond.ID, []model.ConditionStatus{
		model.ConditionStatusWaiting,
		model.ConditionStatusExpired,
		model.ConditionStatusTriggered,
	}, func(c *model.Condition) {
		c.Status = model.ConditionStatusTriggered
		c.TriggeredAt = &triggeredAt
	})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			s.reject(ctx, bot.ID, conditionID, signal, "condition changed concurrently", from)
			return nil, util.ErrStaleSignal("condition is no longer open")
		}
		return nil, util.ErrExternalService("failed to record trigger", err, map[string]string{"bot_id": bot.ID})
	}

	s.audit(ctx, bot.ID, cond.ID, signal, true, model.DeliveryTriggered, from)
	metrics.WebhookDeliveries.WithLabelValues(from.Source, model.DeliveryTriggered).Inc()
	s.events.Log(ctx, "", bot.ID, bot.UserID, model.EventConditionTriggered, map[string]interface{}{
		"condition_id": cond.ID,
		"group_num":    cond.GroupNum,
		"stage":        cond.Stage,
		"source":       from.Source,
	})

	result.Status = model.DeliveryTriggered
	result.TriggeredAt = cond.TriggeredAt

	decision, err := s.evaluator.EvaluateGates(ctx, bot.ID, bot.UserID, gatesFor(cond))
	if err != nil {
		return nil, util.ErrExternalService("failed to evaluate conditions", err, map[string]string{"bot_id": bot.ID})
	}
	result.Gate = decision
	if !decision.Fires() {
		return result, nil
	}

	// Close the epoch before acting so a redelivery cannot fire twice
	if err := s.evaluator.Consume(ctx, decision); err != nil {
		return nil, util.ErrExternalService("failed to consume conditions", err, map[string]string{"bot_id": bot.ID})
	}

	trigger := map[string]interface{}{
		"condition_id": cond.ID,
		"source":       from.Source,
	}
	var run *model.Run
	switch decision.Action {
	case model.ActionExit:
		run, err = s.runs.Complete(ctx, bot.ID, trigger)
	default:
		run, err = s.runs.Advance(ctx, bot.ID, trigger)
	}
	if err != nil {
		s.log.WithBot(bot.ID, "").Warnf("Gate fired %s but the run did not advance: %v", decision.Action, err)
		return nil, err
	}

	result.Fired = true
	result.Action = decision.Action
	result.RunID = run.RunID
	return result, nil
}

func (s *TriggerService) reject(ctx context.Context, botID, conditionID, signal, reason string, from Delivery) {
	s.audit(ctx, botID, conditionID, signal, false, reason, from)
	metrics.WebhookDeliveries.WithLabelValues(from.Source, "rejected").Inc()
}

// audit appends to webhook_logs. Deliveries that name no bot are only logged.
func (s *TriggerService) audit(ctx context.Context, botID, conditionID, signal string, valid bool, reason string, from Delivery) {
	entry := &model.WebhookLog{
		BotID:       botID,
		ConditionID: conditionID,
		Signal:      signal,
		Valid:       valid,
		Reason:      reason,
		Source:      from.Source,
		RemoteAddr:  from.RemoteAddr,
		ReceivedAt:  s.now().UTC(),
	}
	if botID == "" {
		s.log.WithFields(map[string]interface{}{
			"source": from.Source,
			"remote": from.RemoteAddr,
			"reason": reason,
		}).Warn("Rejected webhook for unknown target")
		return
	}
	if err := s.logs.AppendWebhookLog(ctx, entry); err != nil {
		s.log.WithBot(botID, "").Error("Failed to append webhook log", err)
	}
}
