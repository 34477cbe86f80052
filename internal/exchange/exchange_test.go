package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dcabot/backend/pkg/indodax"

	"github.com/adshao/go-binance/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitSymbol(t *testing.T) {
	cases := []struct {
		in, base, quote string
	}{
		{"BTCUSDT", "BTC", "USDT"},
		{"btc_idr", "BTC", "IDR"},
		{"ETH/USDC", "ETH", "USDC"},
		{"ETHBTC", "ETH", "BTC"},
		{"DOGE", "DOGE", ""},
	}
	for _, tc := range cases {
		base, quote := SplitSymbol(tc.in)
		assert.Equal(t, tc.base, base, tc.in)
		assert.Equal(t, tc.quote, quote, tc.in)
	}
	assert.Equal(t, "btc_idr", IndodaxPair("BTCIDR"))
	assert.Equal(t, "BTCUSDT", BinanceSymbol("btc/usdt"))
}

func TestParseID(t *testing.T) {
	id, err := ParseID(" Binance ")
	require.NoError(t, err)
	assert.Equal(t, Binance, id)

	_, err = ParseID("kraken")
	var unknown *UnknownExchangeError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "kraken", unknown.ID)
}

func TestPaperGateway_BuyThenSell(t *testing.T) {
	prices := NewStaticPrices(map[string]float64{"BTCUSDT": 100})
	g := NewPaperGateway(prices, 1000)
	ctx := context.Background()

	fill, err := g.PlaceMarketOrder(ctx, "BTCUSDT", 200, SideBuy)
	require.NoError(t, err)
	assert.Equal(t, 100.0, fill.Price)
	assert.Equal(t, 2.0, fill.FilledAmount)
	assert.Equal(t, 200.0, fill.QuoteAmount)
	assert.NotEmpty(t, fill.OrderID)

	bal, err := g.QuoteBalance(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 800.0, bal)

	prices.Set("BTCUSDT", 110)
	fill, err = g.PlaceMarketOrder(ctx, "BTCUSDT", 2, SideSell)
	require.NoError(t, err)
	assert.Equal(t, 220.0, fill.QuoteAmount)

	bal, _ = g.QuoteBalance(ctx, "BTCUSDT")
	assert.Equal(t, 1020.0, bal)
}

func TestPaperGateway_Rejects(t *testing.T) {
	g := NewPaperGateway(NewStaticPrices(map[string]float64{"BTCUSDT": 100}), 50)
	ctx := context.Background()

	_, err := g.PlaceMarketOrder(ctx, "BTCUSDT", 100, SideBuy)
	assert.Error(t, err)

	_, err = g.PlaceMarketOrder(ctx, "ETHUSDT", 10, SideBuy)
	assert.Error(t, err)

	_, err = g.PlaceMarketOrder(ctx, "BTCUSDT", 1, SideSell)
	assert.Error(t, err)
}

func TestPaperGateway_LimitFillsAtLimitPrice(t *testing.T) {
	g := NewPaperGateway(NewStaticPrices(nil), 1000)

	fill, err := g.PlaceLimitOrder(context.Background(), "BTCUSDT", 100, 50, SideBuy)
	require.NoError(t, err)
	assert.Equal(t, 50.0, fill.Price)
	assert.Equal(t, 2.0, fill.FilledAmount)
}

func TestPaperGateway_CanceledContextIsUnknownOutcome(t *testing.T) {
	g := NewPaperGateway(NewStaticPrices(nil), 1000)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.PlaceLimitOrder(ctx, "BTCUSDT", 100, 50, SideBuy)
	assert.ErrorIs(t, err, ErrUnknownOutcome)
}

func TestClassify(t *testing.T) {
	assert.Nil(t, classify(nil))
	assert.ErrorIs(t, classify(fmt.Errorf("post: %w", context.DeadlineExceeded)), ErrUnknownOutcome)

	plain := errors.New("insufficient balance")
	assert.Equal(t, plain, classify(plain))
}

func TestFactory(t *testing.T) {
	f := NewFactory(FactoryConfig{
		PaperQuoteBalance: 500,
		PaperPriceSource:  NewStaticPrices(map[string]float64{"BTCUSDT": 10}),
	})

	g, err := f.New("paper", Credentials{Key: "acct"})
	require.NoError(t, err)
	assert.Equal(t, Paper, g.ID())
	_, isInstrumented := g.(*Instrumented)
	assert.True(t, isInstrumented)

	_, err = g.PlaceMarketOrder(context.Background(), "BTCUSDT", 100, SideBuy)
	require.NoError(t, err)

	again, err := f.New("paper", Credentials{Key: "acct"})
	require.NoError(t, err)
	bal, err := again.QuoteBalance(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, 400.0, bal)

	_, err = f.New("binance", Credentials{})
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = f.New("ftx", Credentials{Key: "k", Secret: "s"})
	var unknown *UnknownExchangeError
	assert.ErrorAs(t, err, &unknown)

	assert.True(t, RequiresCredentials("indodax"))
	assert.False(t, RequiresCredentials("paper"))
}

func TestIndodaxGateway_MarketBuy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		switch r.Form.Get("method") {
		case "trade":
			assert.Equal(t, "btc_idr", r.Form.Get("pair"))
			assert.Equal(t, "100000", r.Form.Get("idr"))
			fmt.Fprint(w, `{"success":1,"return":{"order_id":42,"receive_btc":"0.001","spend_rp":100000,"remain_rp":0}}`)
		case "getInfo":
			fmt.Fprint(w, `{"success":1,"return":{"balance":{"idr":"2500000","btc":"0.5"}}}`)
		default:
			fmt.Fprint(w, `{"success":0,"error":"unknown method"}`)
		}
	}))
	defer srv.Close()

	g := NewIndodaxGateway(indodax.NewClient(srv.URL), Credentials{Key: "k", Secret: "s"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fill, err := g.PlaceMarketOrder(ctx, "BTCIDR", 100000, SideBuy)
	require.NoError(t, err)
	assert.Equal(t, "42", fill.OrderID)
	assert.InDelta(t, 0.001, fill.FilledAmount, 1e-12)
	assert.InDelta(t, 100000000.0, fill.Price, 1e-3)
	assert.Equal(t, "FILLED", fill.Status)

	bal, err := g.QuoteBalance(ctx, "btc_idr")
	require.NoError(t, err)
	assert.Equal(t, 2500000.0, bal)
}

func TestBinanceGateway_MarketBuy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "/api/v3/order", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.Form.Get("symbol"))
		assert.Equal(t, "100.50000000", r.Form.Get("quoteOrderQty"))
		fmt.Fprint(w, `{"symbol":"BTCUSDT","orderId":7,"executedQty":"0.002","cummulativeQuoteQty":"100.5","status":"FILLED"}`)
	}))
	defer srv.Close()

	g := NewBinanceGateway(Credentials{Key: "k", Secret: "s"}, srv.URL)
	fill, err := g.PlaceMarketOrder(context.Background(), "BTC/USDT", 100.5, SideBuy)
	require.NoError(t, err)
	assert.Equal(t, "7", fill.OrderID)
	assert.InDelta(t, 50250.0, fill.Price, 1e-6)
}

func TestFillFromBinanceRejectsMalformedQuantities(t *testing.T) {
	_, err := fillFromBinance(&binance.CreateOrderResponse{OrderID: 9, ExecutedQuantity: "n/a", CummulativeQuoteQuantity: "1"}, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "order 9")

	_, err = fillFromBinance(&binance.CreateOrderResponse{OrderID: 9, ExecutedQuantity: "1", CummulativeQuoteQuantity: ""}, 0)
	require.Error(t, err)

	fill, err := fillFromBinance(&binance.CreateOrderResponse{OrderID: 9, ExecutedQuantity: "0", CummulativeQuoteQuantity: "0", Status: binance.OrderStatusTypeNew}, 25)
	require.NoError(t, err)
	assert.Equal(t, 25.0, fill.Price)
	assert.Equal(t, "NEW", fill.Status)
}

func TestFormatAmountUsesFixedPlaces(t *testing.T) {
	assert.Equal(t, "0.00100000", formatAmount(0.001))
	assert.Equal(t, "85.73750000", formatAmount(90.25*0.95))
}
