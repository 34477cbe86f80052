package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"dcabot/backend/internal/metrics"
	"dcabot/backend/internal/model"
	"dcabot/backend/internal/repository"
	"dcabot/backend/pkg/logger"
)

// participating statuses take part in a gate decision. Conditions expired in
// an earlier pass drop out until they are triggered again.
var participating = map[model.ConditionStatus]bool{
	model.ConditionStatusWaiting:   true,
	model.ConditionStatusTriggered: true,
}

// gateActions is the order in which gates are tried when a filter-stage
// condition is delivered
var gateActions = []model.ConditionAction{model.ActionEntry, model.ActionExit}

// gatesFor returns the gate actions a delivered condition can complete
func gatesFor(c *model.Condition) []model.ConditionAction {
	if c.Stage == model.StageTrigger {
		return []model.ConditionAction{c.EffectiveAction()}
	}
	return gateActions
}

// scopeToAction keeps the filter-stage conditions, which gate every action,
// and the trigger-stage conditions of action.
func scopeToAction(conds []*model.Condition, action model.ConditionAction) []*model.Condition {
	scoped := make([]*model.Condition, 0, len(conds))
	for _, c := range conds {
		if c.Stage == model.StageTrigger && c.EffectiveAction() != action {
			continue
		}
		scoped = append(scoped, c)
	}
	return scoped
}

// ConditionEvaluator decides whether a bot's condition groups let its gated
// action fire. Stale triggers are expired before any group is judged.
type ConditionEvaluator struct {
	conditions   ConditionStore
	bots         BotStore
	events       EventLogger
	validitySecs int
	now          func() time.Time
	log          *logger.Logger
}

// NewConditionEvaluator creates an evaluator. validity is the window used
// for conditions that do not set their own.
func NewConditionEvaluator(conditions ConditionStore, bots BotStore, events EventLogger, validity time.Duration, now func() time.Time) *ConditionEvaluator {
	if now == nil {
		now = time.Now
	}
	secs := int(validity / time.Second)
	if secs <= 0 {
		secs = model.DefaultValiditySecs
	}
	return &ConditionEvaluator{
		conditions:   conditions,
		bots:         bots,
		events:       events,
		validitySecs: secs,
		now:          now,
		log:          logger.GetLogger(),
	}
}

// ValiditySecs is the default trigger window in seconds
func (e *ConditionEvaluator) ValiditySecs() int {
	return e.validitySecs
}

// Evaluate expires stale triggers of the bot and judges the groups of the
// gate for action. Trigger-stage conditions of the other action are left out.
func (e *ConditionEvaluator) Evaluate(ctx context.Context, botID, userID string, action model.ConditionAction) (*model.GateDecision, error) {
	return e.EvaluateGates(ctx, botID, userID, []model.ConditionAction{action})
}

// EvaluateGates expires stale triggers once and judges the gates of actions in
// order. It returns the first decision that fires, or the first decision when
// none does. A member expired here fails its group in every gate judged.
func (e *ConditionEvaluator) EvaluateGates(ctx context.Context, botID, userID string, actions []model.ConditionAction) (*model.GateDecision, error) {
	conds, err := e.conditions.ListByBot(ctx, botID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	live := make([]*model.Condition, 0, len(conds))
	expiredNow := map[string]bool{}
	for _, c := range conds {
		if !participating[c.Status] {
			continue
		}
		if c.IsStale(now, e.validitySecs) {
			updated, ok, err := e.expire(ctx, c, userID)
			if err != nil {
				return nil, err
			}
			if ok {
				expiredNow[c.ID] = true
			}
			c = updated
			if !ok && !participating[c.Status] {
				continue
			}
		}
		live = append(live, c)
	}

	var first *model.GateDecision
	for _, action := range actions {
		participants := scopeToAction(live, action)
		decision := Decide(botID, participants)
		for _, c := range participants {
			if expiredNow[c.ID] {
				decision.Expired = append(decision.Expired, c.ID)
			}
		}
		if decision.Fires() {
			return decision, nil
		}
		if first == nil {
			first = decision
		}
	}
	return first, nil
}

// Consume closes the trigger epoch of the fired gate: its triggered
// participants become completed and waiting ones skipped. Conditions of the
// other gate are untouched.
func (e *ConditionEvaluator) Consume(ctx context.Context, decision *model.GateDecision) error {
	changes := make([]repository.StatusChange, 0, len(decision.Participants))
	for _, c := range decision.Participants {
		from := c.Status
		switch from {
		case model.ConditionStatusTriggered:
			c.Status = model.ConditionStatusCompleted
		case model.ConditionStatusWaiting:
			c.Status = model.ConditionStatusSkipped
		default:
			continue
		}
		changes = append(changes, repository.StatusChange{Condition: c, From: from})
	}
	return e.conditions.ApplyStatusChanges(ctx, changes)
}

// ExpireStale expires every triggered condition past its window, across all
// bots. It returns how many were expired.
func (e *ConditionEvaluator) ExpireStale(ctx context.Context) (int, error) {
	triggered, err := e.conditions.ListByStatus(ctx, model.ConditionStatusTriggered)
	if err != nil {
		return 0, err
	}

	now := e.now()
	owners := map[string]string{}
	count := 0
	for _, c := range triggered {
		if !c.IsStale(now, e.validitySecs) {
			continue
		}
		userID, ok := owners[c.BotID]
		if !ok {
			if bot, err := e.bots.GetByID(ctx, c.BotID); err == nil {
				userID = bot.UserID
			}
			owners[c.BotID] = userID
		}
		if _, expired, err := e.expire(ctx, c, userID); err != nil {
			return count, err
		} else if expired {
			count++
		}
	}
	return count, nil
}

// expire moves a stale condition to expired. It reports false when the
// condition changed concurrently, returning the stored version.
func (e *ConditionEvaluator) expire(ctx context.Context, c *model.Condition, userID string) (*model.Condition, bool, error) {
	now := e.now()
	updated, err := e.conditions.Transition(ctx, c.ID, []model.ConditionStatus{model.ConditionStatusTriggered}, func(stored *model.Condition) {
		if stored.IsStale(now, e.validitySecs) {
			stored.Status = model.ConditionStatusExpired
		}
	})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) && updated != nil {
			return updated, false, nil
		}
		return nil, false, err
	}
	if updated.Status != model.ConditionStatusExpired {
		return updated, false, nil
	}

	metrics.ConditionsExpired.Inc()
	meta := map[string]interface{}{
		"condition_id":  c.ID,
		"group_num":     c.GroupNum,
		"validity_secs": int(c.Validity(e.validitySecs) / time.Second),
	}
	if c.TriggeredAt != nil {
		meta["triggered_at"] = c.TriggeredAt
	}
	e.events.Log(ctx, "", c.BotID, userID, model.EventConditionExpired, meta)
	return updated, true, nil
}

// Decide judges participants without touching storage. Each group passes
// under its operator unless a member expired in this pass; the gate passes
// when every group does. Zero groups pass trivially. The gate only fires once
// a trigger-stage condition has been triggered, and that condition names the
// action.
func Decide(botID string, participants []*model.Condition) *model.GateDecision {
	sorted := make([]*model.Condition, len(participants))
	copy(sorted, participants)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].GroupNum != sorted[j].GroupNum {
			return sorted[i].GroupNum < sorted[j].GroupNum
		}
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	decision := &model.GateDecision{
		BotID:        botID,
		Passed:       true,
		Participants: sorted,
	}

	for start := 0; start < len(sorted); {
		end := start
		for end < len(sorted) && sorted[end].GroupNum == sorted[start].GroupNum {
			end++
		}
		group := evaluateGroup(sorted[start:end])
		decision.Groups = append(decision.Groups, group)
		if !group.Passed {
			decision.Passed = false
		}
		start = end
	}

	for _, c := range sorted {
		if c.Stage == model.StageTrigger && c.Status == model.ConditionStatusTriggered {
			decision.HasTrigger = true
			decision.Action = c.EffectiveAction()
			break
		}
	}
	return decision
}

// evaluateGroup applies the group's operator. The first member's operator
// speaks for the group; unknown operators act as AND.
func evaluateGroup(members []*model.Condition) model.GroupResult {
	result := model.GroupResult{
		GroupNum: members[0].GroupNum,
		Operator: members[0].Operator(),
		Total:    len(members),
	}
	for _, c := range members {
		switch c.Status {
		case model.ConditionStatusTriggered:
			result.Triggered++
		case model.ConditionStatusExpired:
			result.HasExpired = true
		}
	}

	switch {
	case result.HasExpired:
		result.Passed = false
	case result.Operator == model.LogicOr:
		result.Passed = result.Triggered > 0
	default:
		result.Passed = result.Triggered == result.Total
	}
	return result
}
