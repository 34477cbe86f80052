package service

import (
	"context"
	"testing"
	"time"

	"dcabot/backend/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cond(id string, group int, op model.LogicOperator, stage model.ConditionStage, status model.ConditionStatus) *model.Condition {
	return &model.Condition{
		ID:            id,
		GroupNum:      group,
		LogicOperator: op,
		Stage:         stage,
		Status:        status,
	}
}

func TestDecideOperators(t *testing.T) {
	cases := []struct {
		name       string
		conds      []*model.Condition
		passed     bool
		hasTrigger bool
	}{
		{
			name: "and needs every member",
			conds: []*model.Condition{
				cond("a", 1, model.LogicAnd, model.StageFilter, model.ConditionStatusTriggered),
				cond("b", 1, model.LogicAnd, model.StageTrigger, model.ConditionStatusWaiting),
			},
			passed: false,
		},
		{
			name: "or needs one member",
			conds: []*model.Condition{
				cond("a", 1, model.LogicOr, model.StageFilter, model.ConditionStatusWaiting),
				cond("b", 1, model.LogicOr, model.StageTrigger, model.ConditionStatusTriggered),
			},
			passed:     true,
			hasTrigger: true,
		},
		{
			name: "member expired in this pass fails an or group",
			conds: []*model.Condition{
				cond("a", 1, model.LogicOr, model.StageFilter, model.ConditionStatusExpired),
				cond("b", 1, model.LogicOr, model.StageTrigger, model.ConditionStatusTriggered),
			},
			passed:     false,
			hasTrigger: true,
		},
		{
			name: "unknown operator acts as and",
			conds: []*model.Condition{
				cond("a", 1, "xor", model.StageTrigger, model.ConditionStatusTriggered),
				cond("b", 1, "xor", model.StageTrigger, model.ConditionStatusWaiting),
			},
			passed:     false,
			hasTrigger: true,
		},
		{
			name: "every group must pass",
			conds: []*model.Condition{
				cond("a", 1, model.LogicOr, model.StageTrigger, model.ConditionStatusTriggered),
				cond("b", 2, model.LogicAnd, model.StageFilter, model.ConditionStatusWaiting),
			},
			passed:     false,
			hasTrigger: true,
		},
		{
			name: "filters alone pass without a trigger",
			conds: []*model.Condition{
				cond("a", 1, model.LogicAnd, model.StageFilter, model.ConditionStatusTriggered),
			},
			passed: true,
		},
		{
			name:   "no conditions",
			passed: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Decide("bot-1", tc.conds)
			assert.Equal(t, tc.passed, d.Passed)
			assert.Equal(t, tc.hasTrigger, d.HasTrigger)
			assert.Equal(t, tc.passed && tc.hasTrigger, d.Fires())
		})
	}
}

func TestDecideGroupsAreOrdered(t *testing.T) {
	d := Decide("bot-1", []*model.Condition{
		cond("c", 3, model.LogicAnd, model.StageFilter, model.ConditionStatusTriggered),
		cond("a", 1, model.LogicOr, model.StageFilter, model.ConditionStatusTriggered),
		cond("b", 1, model.LogicOr, model.StageFilter, model.ConditionStatusWaiting),
	})
	require.Len(t, d.Groups, 2)
	assert.Equal(t, 1, d.Groups[0].GroupNum)
	assert.Equal(t, 2, d.Groups[0].Total)
	assert.Equal(t, 1, d.Groups[0].Triggered)
	assert.Equal(t, 3, d.Groups[1].GroupNum)
}

func TestDecideActionComesFromTrigger(t *testing.T) {
	exit := cond("x", 1, model.LogicOr, model.StageTrigger, model.ConditionStatusTriggered)
	exit.Action = model.ActionExit
	d := Decide("bot-1", []*model.Condition{exit})
	assert.True(t, d.Fires())
	assert.Equal(t, model.ActionExit, d.Action)

	entry := cond("e", 1, model.LogicOr, model.StageTrigger, model.ConditionStatusTriggered)
	d = Decide("bot-1", []*model.Condition{entry})
	assert.Equal(t, model.ActionEntry, d.Action)
}

func TestEvaluateExpiresStaleTriggers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bot := h.createBot(t, nil)
	c := h.addCondition(t, &model.Condition{BotID: bot.ID, Token: "tok-stale", Stage: model.StageFilter})

	triggeredAt := h.clock.Now()
	_, err := h.conds.Transition(ctx, c.ID, []model.ConditionStatus{model.ConditionStatusWaiting}, func(c *model.Condition) {
		c.Status = model.ConditionStatusTriggered
		c.TriggeredAt = &triggeredAt
	})
	require.NoError(t, err)

	h.clock.Advance(299 * time.Second)
	d, err := h.evaluator.Evaluate(ctx, bot.ID, bot.UserID, model.ActionEntry)
	require.NoError(t, err)
	assert.True(t, d.Passed)
	assert.Empty(t, d.Expired)

	h.clock.Advance(2 * time.Second)
	d, err = h.evaluator.Evaluate(ctx, bot.ID, bot.UserID, model.ActionEntry)
	require.NoError(t, err)
	assert.False(t, d.Passed)
	assert.Equal(t, []string{c.ID}, d.Expired)

	stored, err := h.conds.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConditionStatusExpired, stored.Status)
	assert.Equal(t, 1, countKind(h.eventKinds(t, bot.ID), model.EventConditionExpired))
}

func TestConditionValidityOverride(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bot := h.createBot(t, nil)
	c := h.addCondition(t, &model.Condition{BotID: bot.ID, Token: "tok-short", ValiditySecs: 10})

	triggeredAt := h.clock.Now()
	_, err := h.conds.Transition(ctx, c.ID, []model.ConditionStatus{model.ConditionStatusWaiting}, func(c *model.Condition) {
		c.Status = model.ConditionStatusTriggered
		c.TriggeredAt = &triggeredAt
	})
	require.NoError(t, err)

	h.clock.Advance(11 * time.Second)
	n, err := h.evaluator.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestConsumeClosesEpoch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bot := h.createBot(t, nil)
	fired := h.addCondition(t, &model.Condition{BotID: bot.ID, Token: "tok-a", LogicOperator: model.LogicOr})
	idle := h.addCondition(t, &model.Condition{BotID: bot.ID, Token: "tok-b", LogicOperator: model.LogicOr})

	triggeredAt := h.clock.Now()
	_, err := h.conds.Transition(ctx, fired.ID, []model.ConditionStatus{model.ConditionStatusWaiting}, func(c *model.Condition) {
		c.Status = model.ConditionStatusTriggered
		c.TriggeredAt = &triggeredAt
	})
	require.NoError(t, err)

	d, err := h.evaluator.Evaluate(ctx, bot.ID, bot.UserID, model.ActionEntry)
	require.NoError(t, err)
	require.True(t, d.Fires())
	require.NoError(t, h.evaluator.Consume(ctx, d))

	stored, err := h.conds.GetByID(ctx, fired.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConditionStatusCompleted, stored.Status)
	stored, err = h.conds.GetByID(ctx, idle.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConditionStatusSkipped, stored.Status)

	// consumed conditions no longer take part
	d, err = h.evaluator.Evaluate(ctx, bot.ID, bot.UserID, model.ActionEntry)
	require.NoError(t, err)
	assert.Empty(t, d.Groups)
	assert.False(t, d.Fires())
}

func markTriggered(t *testing.T, h *harness, id string, at time.Time) {
	t.Helper()
	_, err := h.conds.Transition(context.Background(), id, []model.ConditionStatus{
		model.ConditionStatusWaiting,
		model.ConditionStatusExpired,
	}, func(c *model.Condition) {
		c.Status = model.ConditionStatusTriggered
		c.TriggeredAt = &at
	})
	require.NoError(t, err)
}

func TestEvaluateDropsMembersExpiredEarlier(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bot := h.createBot(t, nil)
	stale := h.addCondition(t, &model.Condition{BotID: bot.ID, Token: "tok-old", LogicOperator: model.LogicOr, Stage: model.StageFilter})
	fresh := h.addCondition(t, &model.Condition{BotID: bot.ID, Token: "tok-new", LogicOperator: model.LogicOr})

	markTriggered(t, h, stale.ID, h.clock.Now())
	h.clock.Advance(301 * time.Second)
	n, err := h.evaluator.ExpireStale(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	markTriggered(t, h, fresh.ID, h.clock.Now())
	d, err := h.evaluator.Evaluate(ctx, bot.ID, bot.UserID, model.ActionEntry)
	require.NoError(t, err)
	require.Len(t, d.Groups, 1)
	assert.True(t, d.Groups[0].Passed)
	assert.False(t, d.Groups[0].HasExpired)
	assert.Equal(t, 1, d.Groups[0].Total)
	assert.True(t, d.Fires())
}

func TestEvaluateScopesGateToAction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bot := h.createBot(t, nil)
	filter := h.addCondition(t, &model.Condition{BotID: bot.ID, Token: "tok-f", GroupNum: 1, Stage: model.StageFilter})
	entry := h.addCondition(t, &model.Condition{BotID: bot.ID, Token: "tok-e", GroupNum: 1})
	exit := h.addCondition(t, &model.Condition{BotID: bot.ID, Token: "tok-x", GroupNum: 2, Action: model.ActionExit})

	markTriggered(t, h, filter.ID, h.clock.Now())
	markTriggered(t, h, entry.ID, h.clock.Now())

	d, err := h.evaluator.Evaluate(ctx, bot.ID, bot.UserID, model.ActionEntry)
	require.NoError(t, err)
	require.Len(t, d.Groups, 1)
	assert.Equal(t, 1, d.Groups[0].GroupNum)
	require.True(t, d.Fires())
	assert.Equal(t, model.ActionEntry, d.Action)
	require.NoError(t, h.evaluator.Consume(ctx, d))

	stored, err := h.conds.GetByID(ctx, exit.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ConditionStatusWaiting, stored.Status)

	markTriggered(t, h, exit.ID, h.clock.Now())
	d, err = h.evaluator.Evaluate(ctx, bot.ID, bot.UserID, model.ActionExit)
	require.NoError(t, err)
	require.Len(t, d.Groups, 1)
	assert.Equal(t, 2, d.Groups[0].GroupNum)
	assert.True(t, d.Fires())
	assert.Equal(t, model.ActionExit, d.Action)
}

func TestEvaluateGatesExpiryBlocksEveryGateInThePass(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	bot := h.createBot(t, nil)
	filter := h.addCondition(t, &model.Condition{BotID: bot.ID, Token: "tok-f", GroupNum: 1, Stage: model.StageFilter})
	exit := h.addCondition(t, &model.Condition{BotID: bot.ID, Token: "tok-x", GroupNum: 1, Action: model.ActionExit})

	markTriggered(t, h, filter.ID, h.clock.Now())
	h.clock.Advance(301 * time.Second)
	markTriggered(t, h, exit.ID, h.clock.Now())

	d, err := h.evaluator.EvaluateGates(ctx, bot.ID, bot.UserID, []model.ConditionAction{model.ActionEntry, model.ActionExit})
	require.NoError(t, err)
	assert.False(t, d.Fires())
	assert.Equal(t, []string{filter.ID}, d.Expired)

	// the filter expired in an earlier pass, so the exit gate stands on its own
	d, err = h.evaluator.Evaluate(ctx, bot.ID, bot.UserID, model.ActionExit)
	require.NoError(t, err)
	assert.Empty(t, d.Expired)
	assert.True(t, d.Fires())
	assert.Equal(t, model.ActionExit, d.Action)
}
