package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"dcabot/backend/internal/exchange"
	"dcabot/backend/internal/metrics"
	"dcabot/backend/internal/model"
	"dcabot/backend/internal/repository"
	"dcabot/backend/internal/service/plan"
	"dcabot/backend/internal/util"
	"dcabot/backend/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const defaultOrderTimeout = 15 * time.Second

// CoordinatorDeps are the collaborators of a RunCoordinator
type CoordinatorDeps struct {
	Bots       BotStore
	Runs       RunStore
	Conditions ConditionStore
	Trades     TradeStore
	Logs       LogStore
	Events     EventLogger
	Preflight  *PreflightChecker
	Creds      CredentialSource
	Gateways   GatewayFactory
	Locks      *KeyedMutex

	OrderTimeout time.Duration
	Now          func() time.Time
}

// RunCoordinator owns the bot run state machine. Every transition for a bot
// is taken under that bot's lock; exchange calls happen after the lock is
// released so pause and stop are never starved.
type RunCoordinator struct {
	bots       BotStore
	runs       RunStore
	conditions ConditionStore
	trades     TradeStore
	logs       LogStore
	events     EventLogger
	preflight  *PreflightChecker
	creds      CredentialSource
	gateways   GatewayFactory
	locks      *KeyedMutex

	orderTimeout time.Duration
	now          func() time.Time
	log          *logger.Logger
}

func NewRunCoordinator(deps CoordinatorDeps) *RunCoordinator {
	c := &RunCoordinator{
		bots:         deps.Bots,
		runs:         deps.Runs,
		conditions:   deps.Conditions,
		trades:       deps.Trades,
		logs:         deps.Logs,
		events:       deps.Events,
		preflight:    deps.Preflight,
		creds:        deps.Creds,
		gateways:     deps.Gateways,
		locks:        deps.Locks,
		orderTimeout: deps.OrderTimeout,
		now:          deps.Now,
		log:          logger.GetLogger(),
	}
	if c.locks == nil {
		c.locks = NewKeyedMutex()
	}
	if c.orderTimeout <= 0 {
		c.orderTimeout = defaultOrderTimeout
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Start creates a run for the bot. Market and limit entries are placed
// immediately and the plan is derived from the fill; conditional entries
// leave the run waiting for a trigger.
func (c *RunCoordinator) Start(ctx context.Context, botID, userID string) (*model.StartResult, error) {
	unlock := c.locks.Lock(botID)
	defer unlock()

	bot, err := c.loadBot(ctx, botID, userID)
	if err != nil {
		return nil, err
	}

	if active, err := c.runs.GetActive(ctx, botID); err == nil {
		return nil, util.ErrExclusivity(fmt.Sprintf("bot already has an active run %s (%s)", active.RunID, active.Status))
	} else if !errors.Is(err, repository.ErrRunNotFound) {
		return nil, util.ErrExternalService("failed to check active runs", err, map[string]string{"bot_id": botID})
	}

	report := c.preflight.Check(ctx, bot)
	if !report.OK() {
		return nil, util.ErrConfiguration("bot cannot start", report.Errors)
	}

	conditional := bot.OrderType.IsConditional()
	run := &model.Run{
		RunID:     uuid.NewString(),
		BotID:     bot.ID,
		UserID:    bot.UserID,
		Status:    model.RunStatusRunning,
		Stage:     model.StagePlacingInitialOrder,
		StartedAt: c.now().UTC(),
	}
	if conditional {
		run.Status = model.RunStatusWaiting
		run.Stage = model.StageWaitingForCondition
	}

	if err := c.runs.CreateIfNoActive(ctx, run); err != nil {
		if errors.Is(err, repository.ErrActiveRunExists) {
			return nil, util.ErrExclusivity("bot already has an active run")
		}
		return nil, util.ErrExternalService("failed to create run", err, map[string]string{"bot_id": botID})
	}
	metrics.RunsStarted.WithLabelValues(string(run.Status)).Inc()

	started := map[string]interface{}{
		"order_type": bot.OrderType,
		"exchange":   bot.Exchange,
		"symbol":     bot.TradingPair,
	}
	if len(report.Warnings) > 0 {
		started["warnings"] = report.Warnings
	}

	// Every run opens a fresh epoch for both entry and exit conditions
	if err := c.conditions.ResetByBot(ctx, bot.ID); err != nil {
		return nil, c.fail(ctx, bot, run, fmt.Errorf("reset conditions: %w", err), "")
	}

	if conditional {
		if err := c.bots.UpdateStatus(ctx, bot.ID, model.BotStatusWaiting, nil); err != nil {
			return nil, c.fail(ctx, bot, run, fmt.Errorf("update bot status: %w", err), "")
		}
		c.events.Log(ctx, run.RunID, bot.ID, bot.UserID, model.EventStarted, started)
		c.events.Log(ctx, run.RunID, bot.ID, bot.UserID, model.EventWaitingForCondition, map[string]interface{}{
			"order_type": bot.OrderType,
		})
		return &model.StartResult{RunID: run.RunID, Status: run.Status, Warnings: report.Warnings}, nil
	}

	if err := c.bots.UpdateStatus(ctx, bot.ID, model.BotStatusStarting, nil); err != nil {
		return nil, c.fail(ctx, bot, run, fmt.Errorf("update bot status: %w", err), "")
	}
	c.events.Log(ctx, run.RunID, bot.ID, bot.UserID, model.EventStarted, started)

	// The run now holds the active slot, so a second start fails on
	// exclusivity and no trigger can claim it. Let pause/stop through.
	unlock()

	run, p, err := c.executeEntry(ctx, bot, run, report.Gateway, false)
	if err != nil {
		return nil, err
	}
	return &model.StartResult{RunID: run.RunID, Status: run.Status, Plan: p, Warnings: report.Warnings}, nil
}

// Advance moves the bot's most recent waiting run to running and places the
// deferred entry order. It is driven by a fired entry gate.
func (c *RunCoordinator) Advance(ctx context.Context, botID string, trigger map[string]interface{}) (*model.Run, error) {
	unlock := c.locks.Lock(botID)
	defer unlock()

	bot, err := c.loadBot(ctx, botID, "")
	if err != nil {
		return nil, err
	}

	waiting, err := c.runs.LatestWithStatus(ctx, botID, model.RunStatusWaiting)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			return nil, util.ErrStaleSignal("bot has no waiting run")
		}
		return nil, util.ErrExternalService("failed to load waiting run", err, map[string]string{"bot_id": botID})
	}

	run, err := c.runs.CompareAndSetStatus(ctx, waiting.RunID, []model.RunStatus{model.RunStatusWaiting}, model.RunStatusRunning, func(r *model.Run) {
		r.Stage = model.StageEntryTriggered
	})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, util.ErrStaleSignal("waiting run was already advanced")
		}
		return nil, util.ErrExternalService("failed to advance run", err, map[string]string{"bot_id": botID, "run_id": waiting.RunID})
	}
	c.events.Log(ctx, run.RunID, bot.ID, bot.UserID, model.EventEntryTriggered, trigger)

	if err := c.bots.UpdateStatus(ctx, bot.ID, model.BotStatusStarting, nil); err != nil {
		return nil, c.fail(ctx, bot, run, fmt.Errorf("update bot status: %w", err), "")
	}

	gw, err := c.gateway(ctx, bot)
	if err != nil {
		return nil, c.fail(ctx, bot, run, err, "")
	}

	unlock()

	run, _, err = c.executeEntry(ctx, bot, run, gw, true)
	return run, err
}

// Complete closes the running run: it sells the filled amount at market and
// marks the run completed. It is driven by a fired exit gate.
func (c *RunCoordinator) Complete(ctx context.Context, botID string, trigger map[string]interface{}) (*model.Run, error) {
	unlock := c.locks.Lock(botID)
	defer unlock()

	bot, err := c.loadBot(ctx, botID, "")
	if err != nil {
		return nil, err
	}

	active, err := c.runs.GetActive(ctx, botID)
	if err != nil {
		if errors.Is(err, repository.ErrRunNotFound) {
			return nil, util.ErrStaleSignal("bot has no running run to exit")
		}
		return nil, util.ErrExternalService("failed to load active run", err, map[string]string{"bot_id": botID})
	}

	run, err := c.runs.Update(ctx, active.RunID, []model.RunStatus{model.RunStatusRunning}, func(r *model.Run) {
		r.Stage = model.StageExitTriggered
	})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, util.ErrStaleSignal(fmt.Sprintf("run is %s, not running", active.Status))
		}
		return nil, util.ErrExternalService("failed to update run", err, map[string]string{"bot_id": botID, "run_id": active.RunID})
	}
	c.events.Log(ctx, run.RunID, bot.ID, bot.UserID, model.EventExitTriggered, trigger)

	gw, err := c.gateway(ctx, bot)
	if err != nil {
		return nil, c.fail(ctx, bot, run, err, "")
	}

	unlock()

	var fill *exchange.Fill
	if run.FilledAmount > 0 {
		orderCtx, cancel := context.WithTimeout(ctx, c.orderTimeout)
		fill, err = gw.PlaceMarketOrder(orderCtx, bot.TradingPair, run.FilledAmount, exchange.SideSell)
		cancel()
		if err != nil {
			return nil, c.fail(ctx, bot, run, fmt.Errorf("exit order: %w", err), "")
		}
		rec := &model.TradeRecord{
			BotID:     bot.ID,
			RunID:     run.RunID,
			Symbol:    bot.TradingPair,
			Side:      string(exchange.SideSell),
			OrderID:   fill.OrderID,
			Price:     fill.Price,
			Amount:    fill.FilledAmount,
			Note:      model.NoteExit,
			CreatedAt: c.now().UTC(),
		}
		if err := c.trades.Append(ctx, rec); err != nil {
			return nil, c.fail(ctx, bot, run, fmt.Errorf("archive exit fill: %w", err), fill.OrderID)
		}
	}

	done, err := c.runs.CompareAndSetStatus(ctx, run.RunID, []model.RunStatus{model.RunStatusRunning}, model.RunStatusCompleted, func(r *model.Run) {
		r.Stage = model.StageCompleted
	})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) && done != nil {
			c.log.WithBot(bot.ID, run.RunID).Warnf("Exit filled but run moved to %s", done.Status)
			return done, nil
		}
		orderID := ""
		if fill != nil {
			orderID = fill.OrderID
		}
		return nil, c.fail(ctx, bot, run, fmt.Errorf("complete run: %w", err), orderID)
	}
	run = done

	if err := c.bots.UpdateStatus(ctx, bot.ID, model.BotStatusInactive, nil); err != nil {
		c.log.WithBot(bot.ID, run.RunID).Error("Failed to reset bot status after completion", err)
	}
	meta := map[string]interface{}{"filled_amount": run.FilledAmount}
	if fill != nil {
		meta["order_id"] = fill.OrderID
		meta["exit_price"] = fill.Price
	}
	c.events.Log(ctx, run.RunID, bot.ID, bot.UserID, model.EventCompleted, meta)
	metrics.RunsFinished.WithLabelValues(string(model.RunStatusCompleted)).Inc()
	return run, nil
}

// Pause suspends the running run
func (c *RunCoordinator) Pause(ctx context.Context, botID, userID string) (*model.ControlResult, error) {
	return c.control(ctx, botID, userID, controlOp{
		name:      "pause",
		from:      []model.RunStatus{model.RunStatusRunning, model.RunStatusPaused},
		to:        model.RunStatusPaused,
		botStatus: model.BotStatusPaused,
		event:     model.EventPaused,
	})
}

// Resume continues a paused run
func (c *RunCoordinator) Resume(ctx context.Context, botID, userID string) (*model.ControlResult, error) {
	return c.control(ctx, botID, userID, controlOp{
		name:      "resume",
		from:      []model.RunStatus{model.RunStatusPaused, model.RunStatusRunning},
		to:        model.RunStatusRunning,
		botStatus: model.BotStatusRunning,
		event:     model.EventResumed,
	})
}

// Stop ends the active run, including one still waiting for its entry. The
// bot is always left stopped, which also clears an error status.
func (c *RunCoordinator) Stop(ctx context.Context, botID, userID string) (*model.ControlResult, error) {
	return c.control(ctx, botID, userID, controlOp{
		name:           "stop",
		from:           model.ActiveRunStatuses,
		to:             model.RunStatusStopped,
		botStatus:      model.BotStatusStopped,
		event:          model.EventStopped,
		setBotWhenIdle: true,
	})
}

type controlOp struct {
	name      string
	from      []model.RunStatus
	to        model.RunStatus
	botStatus string
	event     model.EventKind

	// setBotWhenIdle writes botStatus even when no run is active
	setBotWhenIdle bool
}

// control applies an idempotent status write. With no active run the
// request is logged as skipped rather than rejected.
func (c *RunCoordinator) control(ctx context.Context, botID, userID string, op controlOp) (*model.ControlResult, error) {
	unlock := c.locks.Lock(botID)
	defer unlock()

	bot, err := c.loadBot(ctx, botID, userID)
	if err != nil {
		return nil, err
	}

	active, err := c.runs.GetActive(ctx, botID)
	if err != nil && !errors.Is(err, repository.ErrRunNotFound) {
		return nil, util.ErrExternalService("failed to load active run", err, map[string]string{"bot_id": botID})
	}

	if active == nil {
		result := &model.ControlResult{BotID: botID, BotStatus: bot.Status, Skipped: true, Reason: "no active run"}
		if op.setBotWhenIdle && bot.Status != op.botStatus {
			if err := c.bots.UpdateStatus(ctx, botID, op.botStatus, nil); err != nil {
				return nil, util.ErrExternalService("failed to update bot status", err, map[string]string{"bot_id": botID})
			}
			result.BotStatus = op.botStatus
		}
		c.events.Log(ctx, "", botID, bot.UserID, op.event, map[string]interface{}{"skipped": true, "reason": result.Reason})
		metrics.ControlRequests.WithLabelValues(op.name, "skipped").Inc()
		return result, nil
	}

	run, err := c.runs.CompareAndSetStatus(ctx, active.RunID, op.from, op.to, nil)
	if err != nil {
		details := map[string]string{"bot_id": botID, "run_id": active.RunID}
		if errors.Is(err, repository.ErrStatusConflict) && run != nil {
			metrics.ControlRequests.WithLabelValues(op.name, "rejected").Inc()
			return nil, util.ErrInvalidState(fmt.Sprintf("cannot %s a %s run", op.name, run.Status))
		}
		return nil, util.ErrExternalService("failed to update run", err, details)
	}

	if err := c.bots.UpdateStatus(ctx, botID, op.botStatus, nil); err != nil {
		return nil, util.ErrExternalService("failed to update bot status", err, map[string]string{"bot_id": botID, "run_id": run.RunID})
	}

	meta := map[string]interface{}{"previous_status": active.Status}
	c.events.Log(ctx, run.RunID, botID, bot.UserID, op.event, meta)
	metrics.ControlRequests.WithLabelValues(op.name, "applied").Inc()
	if run.Status.IsTerminal() {
		metrics.RunsFinished.WithLabelValues(string(run.Status)).Inc()
	}

	return &model.ControlResult{
		BotID:     botID,
		RunID:     run.RunID,
		BotStatus: op.botStatus,
		RunStatus: run.Status,
	}, nil
}

// Delete removes the bot and everything recorded for it. A bot with an
// active run must be stopped first.
func (c *RunCoordinator) Delete(ctx context.Context, botID, userID string) error {
	unlock := c.locks.Lock(botID)
	defer unlock()

	if _, err := c.loadBot(ctx, botID, userID); err != nil {
		return err
	}

	if active, err := c.runs.GetActive(ctx, botID); err == nil {
		return util.ErrExclusivity(fmt.Sprintf("bot has an active run %s; stop it before deleting", active.RunID))
	} else if !errors.Is(err, repository.ErrRunNotFound) {
		return util.ErrExternalService("failed to check active runs", err, map[string]string{"bot_id": botID})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.runs.DeleteByBot(gctx, botID) })
	g.Go(func() error { return c.conditions.DeleteByBot(gctx, botID) })
	g.Go(func() error { return c.trades.DeleteByBot(gctx, botID) })
	g.Go(func() error { return c.logs.DeleteByBot(gctx, botID) })
	if err := g.Wait(); err != nil {
		return util.ErrExternalService("failed to delete bot records", err, map[string]string{"bot_id": botID})
	}

	if err := c.bots.Delete(ctx, botID); err != nil {
		return util.ErrExternalService("failed to delete bot", err, map[string]string{"bot_id": botID})
	}
	c.log.WithBot(botID, "").Info("Bot deleted")
	return nil
}

// executeEntry places the entry order, archives the fill and the derived
// plan, and marks the run plan_logged. A run stopped while the order was in
// flight stays stopped; its fill is still archived.
func (c *RunCoordinator) executeEntry(ctx context.Context, bot *model.BotConfig, run *model.Run, gw exchange.Gateway, triggered bool) (*model.Run, *model.TradePlan, error) {
	log := c.log.WithBot(bot.ID, run.RunID)

	orderCtx, cancel := context.WithTimeout(ctx, c.orderTimeout)
	fill, err := placeEntry(orderCtx, gw, bot)
	cancel()
	if err != nil {
		return nil, nil, c.fail(ctx, bot, run, fmt.Errorf("entry order: %w", err), "")
	}
	if fill.Price <= 0 {
		return nil, nil, c.fail(ctx, bot, run, errors.New("exchange reported no fill price"), fill.OrderID)
	}

	placedStage, placedEvent := model.StageInitialOrderPlaced, model.EventInitialOrderPlaced
	if triggered {
		placedStage, placedEvent = model.StageEntryExecuted, model.EventEntryExecuted
	}

	inFlight := []model.RunStatus{model.RunStatusRunning, model.RunStatusPaused}
	updated, err := c.runs.Update(ctx, run.RunID, inFlight, func(r *model.Run) {
		r.Stage = placedStage
		r.EntryOrderID = fill.OrderID
		r.AvgEntryPrice = fill.Price
		r.LastEntryPrice = fill.Price
		r.FilledAmount = fill.FilledAmount
	})
	stoppedMeanwhile := errors.Is(err, repository.ErrStatusConflict)
	if err != nil && !stoppedMeanwhile {
		return nil, nil, c.fail(ctx, bot, run, fmt.Errorf("record entry fill: %w", err), fill.OrderID)
	}

	entry := &model.TradeRecord{
		BotID:     bot.ID,
		RunID:     run.RunID,
		Symbol:    bot.TradingPair,
		Side:      string(exchange.SideBuy),
		OrderID:   fill.OrderID,
		Price:     fill.Price,
		Amount:    fill.QuoteAmount,
		Note:      model.NoteInitialEntry,
		CreatedAt: c.now().UTC(),
	}
	if err := c.trades.Append(ctx, entry); err != nil {
		return nil, nil, c.fail(ctx, bot, run, fmt.Errorf("archive entry fill: %w", err), fill.OrderID)
	}
	c.events.Log(ctx, run.RunID, bot.ID, bot.UserID, placedEvent, map[string]interface{}{
		"order_id":      fill.OrderID,
		"price":         fill.Price,
		"filled_amount": fill.FilledAmount,
		"quote_amount":  fill.QuoteAmount,
	})

	if stoppedMeanwhile {
		log.Warnf("Run left %s while its entry order was in flight; order %s kept for reconciliation", updated.Status, fill.OrderID)
		return updated, nil, nil
	}

	p, err := plan.Build(bot, fill.Price, fill.Price)
	if err != nil {
		return nil, nil, c.fail(ctx, bot, run, err, fill.OrderID)
	}
	if err := c.trades.Append(ctx, plan.Records(p, bot.ID, run.RunID, bot.TradingPair, c.now().UTC())...); err != nil {
		return nil, nil, c.fail(ctx, bot, run, fmt.Errorf("archive plan: %w", err), fill.OrderID)
	}

	updated, err = c.runs.Update(ctx, run.RunID, inFlight, func(r *model.Run) {
		r.Stage = model.StagePlanLogged
	})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			log.Warnf("Run left %s after its plan was archived", updated.Status)
			return updated, p, nil
		}
		return nil, nil, c.fail(ctx, bot, run, fmt.Errorf("record plan stage: %w", err), fill.OrderID)
	}

	botStatus := model.BotStatusRunning
	if updated.Status == model.RunStatusPaused {
		botStatus = model.BotStatusPaused
	}
	if err := c.bots.UpdateStatus(ctx, bot.ID, botStatus, nil); err != nil {
		return nil, nil, c.fail(ctx, bot, run, fmt.Errorf("update bot status: %w", err), fill.OrderID)
	}

	log.Infof("Entry filled at %.8f, plan has %d DCA and %d take-profit levels", fill.Price, len(p.DCA), len(p.TakeProfit))
	return updated, p, nil
}

func placeEntry(ctx context.Context, gw exchange.Gateway, bot *model.BotConfig) (*exchange.Fill, error) {
	if bot.OrderType.IsLimit() {
		return gw.PlaceLimitOrder(ctx, bot.TradingPair, bot.InitialAmount, bot.LimitPrice, exchange.SideBuy)
	}
	return gw.PlaceMarketOrder(ctx, bot.TradingPair, bot.InitialAmount, exchange.SideBuy)
}

// fail moves the run to failed and the bot to error, logs the cause and
// returns the error for the caller. A timeout or lost response is logged
// with an unknown outcome: the order may exist on the exchange.
func (c *RunCoordinator) fail(ctx context.Context, bot *model.BotConfig, run *model.Run, cause error, orderID string) error {
	reason := cause.Error()
	log := c.log.WithBot(bot.ID, run.RunID)
	log.Error("Run failed", cause)

	failed, err := c.runs.CompareAndSetStatus(ctx, run.RunID, model.ActiveRunStatuses, model.RunStatusFailed, func(r *model.Run) {
		r.FailureReason = reason
	})
	switch {
	case err == nil:
		metrics.RunsFinished.WithLabelValues(string(model.RunStatusFailed)).Inc()
	case errors.Is(err, repository.ErrStatusConflict) && failed != nil:
		// stopped by an operator meanwhile; the bot keeps the status they set
		log.Warnf("Run already %s, not marking it failed", failed.Status)
	default:
		log.Error("Failed to mark run failed", err)
	}
	if err == nil || !errors.Is(err, repository.ErrStatusConflict) {
		if err := c.bots.UpdateStatus(ctx, bot.ID, model.BotStatusError, &reason); err != nil {
			log.Error("Failed to mark bot error", err)
		}
	}

	meta := map[string]interface{}{
		"reason": reason,
		"stage":  run.Stage,
	}
	if orderID != "" {
		meta["order_id"] = orderID
	}
	if errors.Is(cause, exchange.ErrUnknownOutcome) || errors.Is(cause, context.DeadlineExceeded) {
		meta["outcome"] = "unknown"
	}
	c.events.Log(ctx, run.RunID, bot.ID, bot.UserID, model.EventError, meta)

	var cfgErr *plan.ConfigError
	if errors.As(cause, &cfgErr) {
		return util.ErrConfiguration(cfgErr.Error(), map[string]string{"bot_id": bot.ID, "run_id": run.RunID})
	}
	details := map[string]string{"bot_id": bot.ID, "run_id": run.RunID}
	if orderID != "" {
		details["order_id"] = orderID
	}
	return util.ErrExternalService("run failed", cause, details)
}

func (c *RunCoordinator) gateway(ctx context.Context, bot *model.BotConfig) (exchange.Gateway, error) {
	creds, err := c.creds.Credentials(ctx, bot.UserID, bot.Exchange)
	if err != nil {
		return nil, fmt.Errorf("exchange credentials: %w", err)
	}
	return c.gateways.New(bot.Exchange, creds)
}

// loadBot fetches the bot, hiding bots owned by someone else. An empty
// userID skips the ownership check (webhook paths).
func (c *RunCoordinator) loadBot(ctx context.Context, botID, userID string) (*model.BotConfig, error) {
	return loadOwnedBot(ctx, c.bots, botID, userID)
}

func loadOwnedBot(ctx context.Context, bots BotStore, botID, userID string) (*model.BotConfig, error) {
	bot, err := bots.GetByID(ctx, botID)
	if err != nil {
		if errors.Is(err, repository.ErrBotNotFound) {
			return nil, util.NewAppError(http.StatusNotFound, util.ErrCodeBotNotFound, "bot not found")
		}
		return nil, util.ErrExternalService("failed to load bot", err, map[string]string{"bot_id": botID})
	}
	if userID != "" && bot.UserID != userID {
		return nil, util.NewAppError(http.StatusNotFound, util.ErrCodeBotNotFound, "bot not found")
	}
	return bot, nil
}
