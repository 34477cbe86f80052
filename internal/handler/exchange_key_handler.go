package handler

import (
	"dcabot/backend/internal/middleware"
	"dcabot/backend/internal/model"
	"dcabot/backend/internal/service"
	"dcabot/backend/internal/util"

	"github.com/gin-gonic/gin"
)

// ExchangeKeyHandler handles exchange credential endpoints
type ExchangeKeyHandler struct {
	keys *service.ExchangeKeyService
}

// NewExchangeKeyHandler creates a new exchange key handler
func NewExchangeKeyHandler(keys *service.ExchangeKeyService) *ExchangeKeyHandler {
	return &ExchangeKeyHandler{keys: keys}
}

// Save validates and stores a key
// POST /api/v1/exchange-keys/:exchange
func (h *ExchangeKeyHandler) Save(c *gin.Context) {
	var req model.ExchangeKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.SendValidationError(c, err.Error())
		return
	}

	key, err := h.keys.Save(c.Request.Context(), middleware.UserID(c), c.Param("exchange"), &req)
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendCreated(c, key, "Exchange key saved and validated successfully")
}

// Get returns the key status
// GET /api/v1/exchange-keys/:exchange
func (h *ExchangeKeyHandler) Get(c *gin.Context) {
	key, err := h.keys.Get(c.Request.Context(), middleware.UserID(c), c.Param("exchange"))
	if err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccess(c, key)
}

// Delete removes the key
// DELETE /api/v1/exchange-keys/:exchange
func (h *ExchangeKeyHandler) Delete(c *gin.Context) {
	if err := h.keys.Delete(c.Request.Context(), middleware.UserID(c), c.Param("exchange")); err != nil {
		util.SendError(c, err)
		return
	}

	util.SendSuccessWithMessage(c, nil, "Exchange key deleted successfully")
}
