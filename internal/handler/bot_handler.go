package handler

import (
	"context"
	"strconv"
	"strings"

	"dcabot/backend/internal/middleware"
	"dcabot/backend/internal/model"
	"dcabot/backend/internal/service"
	"dcabot/backend/internal/util"

	"github.com/gin-gonic/gin"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// BotHandler serves the run control surface and read-only bot queries
type BotHandler struct {
	coordinator *service.RunCoordinator
	queries     *service.BotService
	publicURL   string
}

func NewBotHandler(coordinator *service.RunCoordinator, queries *service.BotService, publicURL string) *BotHandler {
	return &BotHandler{
		coordinator: coordinator,
		queries:     queries,
		publicURL:   strings.TrimRight(publicURL, "/"),
	}
}

// ListBots handles GET /api/v1/bots
func (h *BotHandler) ListBots(c *gin.Context) {
	bots, err := h.queries.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		util.SendError(c, err)
		return
	}
	util.SendSuccess(c, bots)
}

// GetBot handles GET /api/v1/bots/:id
func (h *BotHandler) GetBot(c *gin.Context) {
	detail, err := h.queries.Get(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		util.SendError(c, err)
		return
	}
	util.SendSuccess(c, detail)
}

// StartBot handles POST /api/v1/bots/:id/start
func (h *BotHandler) StartBot(c *gin.Context) {
	result, err := h.coordinator.Start(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		util.SendError(c, err)
		return
	}

	msg := "Bot started successfully"
	if result.Status == model.RunStatusWaiting {
		msg = "Bot is waiting for its entry condition"
	}
	util.SendSuccessWithMessage(c, result, msg)
}

// PauseBot handles POST /api/v1/bots/:id/pause
func (h *BotHandler) PauseBot(c *gin.Context) {
	h.control(c, h.coordinator.Pause, "Bot paused")
}

// ResumeBot handles POST /api/v1/bots/:id/resume
func (h *BotHandler) ResumeBot(c *gin.Context) {
	h.control(c, h.coordinator.Resume, "Bot resumed")
}

// StopBot handles POST /api/v1/bots/:id/stop
func (h *BotHandler) StopBot(c *gin.Context) {
	h.control(c, h.coordinator.Stop, "Bot stopped")
}

type controlFunc func(ctx context.Context, botID, userID string) (*model.ControlResult, error)

func (h *BotHandler) control(c *gin.Context, op controlFunc, done string) {
	result, err := op(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		util.SendError(c, err)
		return
	}
	if result.Skipped {
		util.SendSuccessWithMessage(c, result, "No active run; nothing to do")
		return
	}
	util.SendSuccessWithMessage(c, result, done)
}

// DeleteBot handles DELETE /api/v1/bots/:id
func (h *BotHandler) DeleteBot(c *gin.Context) {
	if err := h.coordinator.Delete(c.Request.Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		util.SendError(c, err)
		return
	}
	util.SendSuccessWithMessage(c, nil, "Bot deleted successfully")
}

// ListRuns handles GET /api/v1/bots/:id/runs
func (h *BotHandler) ListRuns(c *gin.Context) {
	limit := queryLimit(c)
	runs, err := h.queries.Runs(c.Request.Context(), c.Param("id"), middleware.UserID(c), limit)
	if err != nil {
		util.SendError(c, err)
		return
	}
	util.SendList(c, runs, len(runs), limit)
}

// ListLogs handles GET /api/v1/bots/:id/logs
func (h *BotHandler) ListLogs(c *gin.Context) {
	limit := queryLimit(c)
	logs, err := h.queries.Logs(c.Request.Context(), c.Param("id"), middleware.UserID(c), limit)
	if err != nil {
		util.SendError(c, err)
		return
	}
	util.SendList(c, logs, len(logs), limit)
}

// ListWebhookLogs handles GET /api/v1/bots/:id/webhook-logs
func (h *BotHandler) ListWebhookLogs(c *gin.Context) {
	limit := queryLimit(c)
	logs, err := h.queries.WebhookLogs(c.Request.Context(), c.Param("id"), middleware.UserID(c), limit)
	if err != nil {
		util.SendError(c, err)
		return
	}
	util.SendList(c, logs, len(logs), limit)
}

// ListTrades handles GET /api/v1/bots/:id/trades?run_id=
func (h *BotHandler) ListTrades(c *gin.Context) {
	trades, err := h.queries.Trades(c.Request.Context(), c.Param("id"), middleware.UserID(c), c.Query("run_id"))
	if err != nil {
		util.SendError(c, err)
		return
	}
	util.SendSuccess(c, trades)
}

// conditionView adds the public trigger URL to a condition
type conditionView struct {
	*model.Condition
	WebhookURL string `json:"webhook_url"`
}

// ListConditions handles GET /api/v1/bots/:id/conditions
func (h *BotHandler) ListConditions(c *gin.Context) {
	conds, err := h.queries.Conditions(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		util.SendError(c, err)
		return
	}
	views := make([]conditionView, 0, len(conds))
	for _, cond := range conds {
		views = append(views, conditionView{Condition: cond, WebhookURL: h.publicURL + "/wc/" + cond.Token})
	}
	util.SendSuccess(c, views)
}

// PreviewPlan handles GET /api/v1/bots/:id/plan?entry_price=
func (h *BotHandler) PreviewPlan(c *gin.Context) {
	price, err := strconv.ParseFloat(c.Query("entry_price"), 64)
	if err != nil {
		util.SendError(c, util.ErrValidation("entry_price must be a number"))
		return
	}
	p, err := h.queries.PreviewPlan(c.Request.Context(), c.Param("id"), middleware.UserID(c), price)
	if err != nil {
		util.SendError(c, err)
		return
	}
	util.SendSuccess(c, p)
}

func queryLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
