package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"dcabot/backend/internal/exchange"
	"dcabot/backend/internal/model"
	"dcabot/backend/internal/repository"
	"dcabot/backend/pkg/redis"
	"dcabot/backend/pkg/redis/redistest"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testEncryptionKey = "0123456789abcdef0123456789abcdef"

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	rdb    *redis.Client
	bots   *repository.BotRepository
	runs   *repository.RunRepository
	conds  *repository.ConditionRepository
	trades *repository.TradeRepository
	logs   *repository.LogRepository
	keys   *ExchangeKeyService

	prices *exchange.StaticPrices
	clock  *fakeClock

	coord     *RunCoordinator
	evaluator *ConditionEvaluator
	trigger   *TriggerService
	queries   *BotService
}

func newHarness(t *testing.T) *harness {
	prices := exchange.NewStaticPrices(map[string]float64{"BTCUSDT": 100})
	factory := exchange.NewFactory(exchange.FactoryConfig{
		PaperQuoteBalance: 10000,
		PaperPriceSource:  prices,
	})
	h := newHarnessWithFactory(t, factory)
	h.prices = prices
	return h
}

func newHarnessWithFactory(t *testing.T, factory GatewayFactory) *harness {
	t.Helper()
	rdb, _ := redistest.New(t)

	h := &harness{
		rdb:    rdb,
		bots:   repository.NewBotRepository(rdb),
		runs:   repository.NewRunRepository(rdb),
		conds:  repository.NewConditionRepository(rdb),
		trades: repository.NewTradeRepository(rdb),
		logs:   repository.NewLogRepository(rdb),
		clock:  newFakeClock(),
	}
	h.keys = NewExchangeKeyService(repository.NewExchangeKeyRepository(rdb), factory, testEncryptionKey)

	events := NewEventService(h.logs, rdb)
	h.coord = NewRunCoordinator(CoordinatorDeps{
		Bots:         h.bots,
		Runs:         h.runs,
		Conditions:   h.conds,
		Trades:       h.trades,
		Logs:         h.logs,
		Events:       events,
		Preflight:    NewPreflightChecker(h.keys, factory),
		Creds:        h.keys,
		Gateways:     factory,
		OrderTimeout: time.Second,
		Now:          h.clock.Now,
	})
	h.evaluator = NewConditionEvaluator(h.conds, h.bots, events, 300*time.Second, h.clock.Now)
	h.trigger = NewTriggerService(h.bots, h.conds, h.logs, events, h.evaluator, h.coord, h.clock.Now)
	h.queries = NewBotService(h.bots, h.runs, h.conds, h.trades, h.logs)
	return h
}

func ptr(v float64) *float64 { return &v }

func validBot() *model.BotConfig {
	return &model.BotConfig{
		UserID:          "user-1",
		Name:            "btc ladder",
		TradingPair:     "BTCUSDT",
		Exchange:        "paper",
		TriggerMode:     model.TriggerModeImmediate,
		OrderType:       model.OrderTypeMarket,
		InitialAmount:   100,
		RequiredCapital: 500,
		DCA: model.DCAConfig{
			Condition:      model.DCAConditionLossPercent,
			DCAOrders:      0,
			MaxDCAOrders:   3,
			LossPercentage: 5,
			AmountMode:     model.AmountModeFixed,
			FixedAmount:    100,
		},
		TakeProfit: []model.TakeProfitTarget{{TriggerPct: ptr(2), PositionSize: ptr(50)}},
	}
}

func (h *harness) createBot(t *testing.T, mutate func(*model.BotConfig)) *model.BotConfig {
	t.Helper()
	bot := validBot()
	if mutate != nil {
		mutate(bot)
	}
	require.NoError(t, h.bots.Create(context.Background(), bot))
	return bot
}

func (h *harness) addCondition(t *testing.T, c *model.Condition) *model.Condition {
	t.Helper()
	if c.LogicOperator == "" {
		c.LogicOperator = model.LogicAnd
	}
	if c.Stage == "" {
		c.Stage = model.StageTrigger
	}
	require.NoError(t, h.conds.Create(context.Background(), c))
	return c
}

func (h *harness) eventKinds(t *testing.T, botID string) []model.EventKind {
	t.Helper()
	logs, err := h.logs.ListBotLogs(context.Background(), botID, 0)
	require.NoError(t, err)
	kinds := make([]model.EventKind, len(logs))
	for i, l := range logs {
		kinds[i] = l.Event
	}
	return kinds
}

func (h *harness) botStatus(t *testing.T, botID string) string {
	t.Helper()
	bot, err := h.bots.GetByID(context.Background(), botID)
	require.NoError(t, err)
	return bot.Status
}

func countKind(kinds []model.EventKind, kind model.EventKind) int {
	n := 0
	for _, k := range kinds {
		if k == kind {
			n++
		}
	}
	return n
}

// mockGateway is a scripted exchange
type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) ID() exchange.ID { return exchange.Paper }

func (m *mockGateway) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockGateway) QuoteBalance(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockGateway) PlaceMarketOrder(ctx context.Context, symbol string, amount float64, side exchange.Side) (*exchange.Fill, error) {
	args := m.Called(ctx, symbol, amount, side)
	fill, _ := args.Get(0).(*exchange.Fill)
	return fill, args.Error(1)
}

func (m *mockGateway) PlaceLimitOrder(ctx context.Context, symbol string, amount, price float64, side exchange.Side) (*exchange.Fill, error) {
	args := m.Called(ctx, symbol, amount, price, side)
	fill, _ := args.Get(0).(*exchange.Fill)
	return fill, args.Error(1)
}

type staticFactory struct {
	gw exchange.Gateway
}

func (f staticFactory) New(string, exchange.Credentials) (exchange.Gateway, error) {
	return f.gw, nil
}
