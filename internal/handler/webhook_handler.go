package handler

import (
	"dcabot/backend/internal/model"
	"dcabot/backend/internal/service"
	"dcabot/backend/internal/util"

	"github.com/gin-gonic/gin"
)

// WebhookHandler receives public trigger deliveries
type WebhookHandler struct {
	triggers *service.TriggerService
}

func NewWebhookHandler(triggers *service.TriggerService) *WebhookHandler {
	return &WebhookHandler{triggers: triggers}
}

// SignalRequest is the body of POST /webhook
type SignalRequest struct {
	BotID  string `json:"bot_id" binding:"required"`
	Secret string `json:"secret" binding:"required"`
	Signal string `json:"signal" binding:"required"`
}

// ConditionRequest is the body of POST /webhook/condition
type ConditionRequest struct {
	Token string `json:"token" binding:"required"`
}

// Signal handles POST /webhook
func (h *WebhookHandler) Signal(c *gin.Context) {
	var req SignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.SendValidationError(c, err.Error())
		return
	}
	h.deliverSignal(c, req.BotID, req.Secret, req.Signal)
}

// SignalURL handles GET /w/:bot_id/:secret/:signal, for alert services that
// can only call a URL
func (h *WebhookHandler) SignalURL(c *gin.Context) {
	h.deliverSignal(c, c.Param("bot_id"), c.Param("secret"), c.Param("signal"))
}

// Condition handles POST /webhook/condition
func (h *WebhookHandler) Condition(c *gin.Context) {
	var req ConditionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.SendValidationError(c, err.Error())
		return
	}
	h.deliverToken(c, req.Token)
}

// ConditionURL handles GET and POST /wc/:token
func (h *WebhookHandler) ConditionURL(c *gin.Context) {
	h.deliverToken(c, c.Param("token"))
}

func (h *WebhookHandler) deliverSignal(c *gin.Context, botID, secret, signal string) {
	result, err := h.triggers.DeliverWebhook(c.Request.Context(), botID, secret, signal, delivery(c))
	respond(c, result, err)
}

func (h *WebhookHandler) deliverToken(c *gin.Context, token string) {
	result, err := h.triggers.DeliverConditionToken(c.Request.Context(), token, delivery(c))
	respond(c, result, err)
}

func delivery(c *gin.Context) service.Delivery {
	return service.Delivery{RemoteAddr: c.ClientIP()}
}

func respond(c *gin.Context, result *model.TriggerResult, err error) {
	if err != nil {
		util.SendError(c, err)
		return
	}
	switch {
	case result.Status == model.DeliveryAlreadyTriggered:
		util.SendSuccessWithMessage(c, result, "Condition already triggered")
	case result.Fired:
		util.SendSuccessWithMessage(c, result, "Condition triggered; "+string(result.Action)+" executed")
	default:
		util.SendSuccessWithMessage(c, result, "Condition triggered; waiting for the remaining conditions")
	}
}
