package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dcabot/backend/internal/exchange"
	"dcabot/backend/internal/middleware"
	"dcabot/backend/internal/model"
	"dcabot/backend/internal/repository"
	"dcabot/backend/internal/service"
	"dcabot/backend/pkg/jwt"
	"dcabot/backend/pkg/redis/redistest"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiFixture struct {
	router *gin.Engine
	bots   *repository.BotRepository
	conds  *repository.ConditionRepository
	hub    *service.EventHub
	mr     *miniredis.Miniredis
	token  string
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rdb, mr := redistest.New(t)

	bots := repository.NewBotRepository(rdb)
	runs := repository.NewRunRepository(rdb)
	conds := repository.NewConditionRepository(rdb)
	trades := repository.NewTradeRepository(rdb)
	logs := repository.NewLogRepository(rdb)

	factory := exchange.NewFactory(exchange.FactoryConfig{
		PaperQuoteBalance: 10000,
		PaperPriceSource:  exchange.NewStaticPrices(map[string]float64{"BTCUSDT": 100}),
	})
	keys := service.NewExchangeKeyService(repository.NewExchangeKeyRepository(rdb), factory, "0123456789abcdef0123456789abcdef")
	events := service.NewEventService(logs, rdb)
	coordinator := service.NewRunCoordinator(service.CoordinatorDeps{
		Bots:       bots,
		Runs:       runs,
		Conditions: conds,
		Trades:     trades,
		Logs:       logs,
		Events:     events,
		Preflight:  service.NewPreflightChecker(keys, factory),
		Creds:      keys,
		Gateways:   factory,
	})
	evaluator := service.NewConditionEvaluator(conds, bots, events, 300*time.Second, nil)
	triggers := service.NewTriggerService(bots, conds, logs, events, evaluator, coordinator, nil)
	queries := service.NewBotService(bots, runs, conds, trades, logs)

	manager := jwt.NewJWTManager("test-secret", time.Hour)
	token, err := manager.GenerateAccessToken("user-1")
	require.NoError(t, err)

	hub := service.NewEventHub(rdb, nil)

	r := gin.New()
	pass := func(c *gin.Context) { c.Next() }
	RegisterRoutes(r, Handlers{
		Bots:         NewBotHandler(coordinator, queries, "https://bots.example/"),
		ExchangeKeys: NewExchangeKeyHandler(keys),
		Webhooks:     NewWebhookHandler(triggers),
		Events:       hub,
	}, middleware.AuthMiddleware(manager), pass, pass)

	return &apiFixture{router: r, bots: bots, conds: conds, hub: hub, mr: mr, token: token}
}

func (f *apiFixture) createBot(t *testing.T, mutate func(*model.BotConfig)) *model.BotConfig {
	t.Helper()
	tp, size := 2.0, 100.0
	bot := &model.BotConfig{
		UserID:          "user-1",
		Name:            "demo",
		TradingPair:     "BTCUSDT",
		Exchange:        "paper",
		OrderType:       model.OrderTypeMarket,
		InitialAmount:   100,
		RequiredCapital: 400,
		DCA: model.DCAConfig{
			Condition:      model.DCAConditionLossPercent,
			MaxDCAOrders:   2,
			LossPercentage: 10,
			AmountMode:     model.AmountModeFixed,
			FixedAmount:    100,
		},
		TakeProfit: []model.TakeProfitTarget{{TriggerPct: &tp, PositionSize: &size}},
	}
	if mutate != nil {
		mutate(bot)
	}
	require.NoError(t, f.bots.Create(context.Background(), bot))
	return bot
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Count   int             `json:"count"`
	Limit   int             `json:"limit"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}, auth bool) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func TestControlEndpointsRequireAuth(t *testing.T) {
	f := newAPI(t)
	bot := f.createBot(t, nil)

	code, env := f.do(t, http.MethodPost, "/api/v1/bots/"+bot.ID+"/start", nil, false)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
}

func TestStartPauseStopOverHTTP(t *testing.T) {
	f := newAPI(t)
	bot := f.createBot(t, nil)
	base := "/api/v1/bots/" + bot.ID

	code, env := f.do(t, http.MethodPost, base+"/start", nil, true)
	require.Equal(t, http.StatusOK, code, env.Message)
	var started model.StartResult
	require.NoError(t, json.Unmarshal(env.Data, &started))
	assert.Equal(t, model.RunStatusRunning, started.Status)
	require.NotNil(t, started.Plan)
	assert.Len(t, started.Plan.DCA, 2)

	code, env = f.do(t, http.MethodPost, base+"/start", nil, true)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "EXCLUSIVITY_VIOLATION", env.Error.Code)

	code, env = f.do(t, http.MethodDelete, base, nil, true)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "EXCLUSIVITY_VIOLATION", env.Error.Code)

	code, _ = f.do(t, http.MethodPost, base+"/pause", nil, true)
	assert.Equal(t, http.StatusOK, code)

	code, env = f.do(t, http.MethodPost, base+"/stop", nil, true)
	assert.Equal(t, http.StatusOK, code)
	var stopped model.ControlResult
	require.NoError(t, json.Unmarshal(env.Data, &stopped))
	assert.Equal(t, model.RunStatusStopped, stopped.RunStatus)

	code, env = f.do(t, http.MethodPost, base+"/stop", nil, true)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "No active run; nothing to do", env.Message)

	code, env = f.do(t, http.MethodGet, base+"/runs?limit=5", nil, true)
	assert.Equal(t, http.StatusOK, code)
	var runs []model.Run
	require.NoError(t, json.Unmarshal(env.Data, &runs))
	assert.Len(t, runs, 1)
	assert.Equal(t, 1, env.Count)
	assert.Equal(t, 5, env.Limit)

	code, _ = f.do(t, http.MethodDelete, base, nil, true)
	assert.Equal(t, http.StatusOK, code)
	code, env = f.do(t, http.MethodGet, base, nil, true)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "BOT_NOT_FOUND", env.Error.Code)
}

func TestStartConfigurationErrorOverHTTP(t *testing.T) {
	f := newAPI(t)
	bot := f.createBot(t, func(b *model.BotConfig) { b.DCA.AmountMode = "weird" })

	code, env := f.do(t, http.MethodPost, "/api/v1/bots/"+bot.ID+"/start", nil, true)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "CONFIGURATION_ERROR", env.Error.Code)
}

func TestPreviewPlanOverHTTP(t *testing.T) {
	f := newAPI(t)
	bot := f.createBot(t, nil)

	code, env := f.do(t, http.MethodGet, "/api/v1/bots/"+bot.ID+"/plan?entry_price=50", nil, true)
	require.Equal(t, http.StatusOK, code)
	var p model.TradePlan
	require.NoError(t, json.Unmarshal(env.Data, &p))
	require.Len(t, p.DCA, 2)
	assert.InDelta(t, 45.0, p.DCA[0].TriggerPrice, 1e-9)

	code, env = f.do(t, http.MethodGet, "/api/v1/bots/"+bot.ID+"/plan?entry_price=abc", nil, true)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestConditionWebhookFlow(t *testing.T) {
	f := newAPI(t)
	bot := f.createBot(t, func(b *model.BotConfig) {
		b.OrderType = model.OrderTypeConditionalMarket
		b.TriggerMode = model.TriggerModeWebhook
		b.WebhookSecret = "s3cret"
	})
	cond := &model.Condition{
		BotID:         bot.ID,
		Signal:        "go",
		Token:         service.NewWebhookToken(),
		GroupNum:      1,
		LogicOperator: model.LogicAnd,
		Stage:         model.StageTrigger,
	}
	require.NoError(t, f.conds.Create(context.Background(), cond))

	code, _ := f.do(t, http.MethodPost, "/api/v1/bots/"+bot.ID+"/start", nil, true)
	require.Equal(t, http.StatusOK, code)

	code, env := f.do(t, http.MethodGet, "/api/v1/bots/"+bot.ID+"/conditions", nil, true)
	require.Equal(t, http.StatusOK, code)
	var views []struct {
		WebhookURL string `json:"webhook_url"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &views))
	require.Len(t, views, 1)
	assert.Equal(t, "https://bots.example/wc/"+cond.Token, views[0].WebhookURL)

	code, env = f.do(t, http.MethodGet, "/w/"+bot.ID+"/wrong/go", nil, false)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, env.Success)

	code, env = f.do(t, http.MethodPost, "/webhook", SignalRequest{BotID: bot.ID, Secret: "s3cret", Signal: "go"}, false)
	require.Equal(t, http.StatusOK, code, env.Message)
	var result model.TriggerResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.True(t, result.Fired)
	assert.Equal(t, model.ActionEntry, result.Action)

	code, env = f.do(t, http.MethodPost, "/wc/"+cond.Token, nil, false)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Condition already triggered", env.Message)

	code, env = f.do(t, http.MethodPost, "/webhook/condition", ConditionRequest{Token: "missing"}, false)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "STALE_SIGNAL", env.Error.Code)

	code, env = f.do(t, http.MethodPost, "/webhook", map[string]string{"bot_id": bot.ID}, false)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestExchangeKeyEndpoints(t *testing.T) {
	f := newAPI(t)

	code, env := f.do(t, http.MethodGet, "/api/v1/exchange-keys/paper", nil, true)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	code, env = f.do(t, http.MethodPost, "/api/v1/exchange-keys/paper", model.ExchangeKeyRequest{Key: "k", Secret: "s"}, true)
	require.Equal(t, http.StatusCreated, code, env.Message)
	assert.NotContains(t, string(env.Data), "encrypted")

	code, _ = f.do(t, http.MethodGet, "/api/v1/exchange-keys/paper", nil, true)
	assert.Equal(t, http.StatusOK, code)

	code, env = f.do(t, http.MethodPost, "/api/v1/exchange-keys/kraken", model.ExchangeKeyRequest{Key: "k", Secret: "s"}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "CONFIGURATION_ERROR", env.Error.Code)

	code, _ = f.do(t, http.MethodDelete, "/api/v1/exchange-keys/paper", nil, true)
	assert.Equal(t, http.StatusOK, code)
}

func TestEventStreamOverWebSocket(t *testing.T) {
	f := newAPI(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go f.hub.Run(ctx)
	require.Eventually(t, func() bool { return f.mr.PubSubNumPat() == 1 }, 2*time.Second, 10*time.Millisecond)

	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events/ws?access_token=" + f.token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return f.hub.Connections("user-1") == 1 }, 2*time.Second, 10*time.Millisecond)

	bot := f.createBot(t, nil)
	code, env := f.do(t, http.MethodPost, "/api/v1/bots/"+bot.ID+"/start", nil, true)
	require.Equal(t, http.StatusOK, code, env.Message)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg model.WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, model.MessageTypeBotEvent, msg.Type)

	var entry model.BotLog
	require.NoError(t, json.Unmarshal(msg.Payload, &entry))
	assert.Equal(t, bot.ID, entry.BotID)
	assert.Equal(t, model.EventStarted, entry.Event)
}

func TestEventStreamRequiresToken(t *testing.T) {
	f := newAPI(t)
	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
