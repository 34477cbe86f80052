package handler

import (
	"dcabot/backend/internal/service"

	"github.com/gin-gonic/gin"
)

// Handlers groups every HTTP handler of the API
type Handlers struct {
	Bots         *BotHandler
	ExchangeKeys *ExchangeKeyHandler
	Webhooks     *WebhookHandler
	Events       *service.EventHub
}

// RegisterRoutes mounts the control API behind auth and the public webhooks
// behind webhookLimit.
func RegisterRoutes(r gin.IRouter, h Handlers, auth, apiLimit, webhookLimit gin.HandlerFunc) {
	v1 := r.Group("/api/v1")
	v1.Use(auth, apiLimit)
	{
		bots := v1.Group("/bots")
		{
			bots.GET("", h.Bots.ListBots)
			bots.GET("/:id", h.Bots.GetBot)
			bots.DELETE("/:id", h.Bots.DeleteBot)
			bots.POST("/:id/start", h.Bots.StartBot)
			bots.POST("/:id/pause", h.Bots.PauseBot)
			bots.POST("/:id/resume", h.Bots.ResumeBot)
			bots.POST("/:id/stop", h.Bots.StopBot)
			bots.GET("/:id/runs", h.Bots.ListRuns)
			bots.GET("/:id/logs", h.Bots.ListLogs)
			bots.GET("/:id/webhook-logs", h.Bots.ListWebhookLogs)
			bots.GET("/:id/trades", h.Bots.ListTrades)
			bots.GET("/:id/conditions", h.Bots.ListConditions)
			bots.GET("/:id/plan", h.Bots.PreviewPlan)
		}

		keys := v1.Group("/exchange-keys")
		{
			keys.POST("/:exchange", h.ExchangeKeys.Save)
			keys.GET("/:exchange", h.ExchangeKeys.Get)
			keys.DELETE("/:exchange", h.ExchangeKeys.Delete)
		}

		if h.Events != nil {
			v1.GET("/events/ws", h.Events.ServeWS)
		}
	}

	hooks := r.Group("")
	hooks.Use(webhookLimit)
	{
		hooks.POST("/webhook", h.Webhooks.Signal)
		hooks.GET("/w/:bot_id/:secret/:signal", h.Webhooks.SignalURL)
		hooks.POST("/webhook/condition", h.Webhooks.Condition)
		hooks.GET("/wc/:token", h.Webhooks.ConditionURL)
		hooks.POST("/wc/:token", h.Webhooks.ConditionURL)
	}
}
