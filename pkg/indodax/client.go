package indodax

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// privateCallsPerSecond caps tapi calls per client
const privateCallsPerSecond = 5

// Client represents Indodax API client
type Client struct {
	apiURL     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new Indodax client
func NewClient(apiURL string) *Client {
	return &Client{
		apiURL: apiURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(privateCallsPerSecond), privateCallsPerSecond),
	}
}

// APIError is an error reported by the private API
type APIError struct {
	Method  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("indodax %s: %s", e.Method, e.Message)
}

type privateResponse struct {
	Success int             `json:"success"`
	Return  json.RawMessage `json:"return"`
	Error   string          `json:"error,omitempty"`
}

// GetInfoReturn represents the return data from getInfo
type GetInfoReturn struct {
	ServerTime  int64             `json:"server_time"`
	Balance     map[string]Amount `json:"balance"`
	BalanceHold map[string]Amount `json:"balance_hold"`
	UserID      string            `json:"user_id"`
	Name        string            `json:"name"`
}

// Amount decodes numbers Indodax sends either as JSON numbers or strings
type Amount float64

// UnmarshalJSON implements json.Unmarshaler
func (a *Amount) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*a = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*a = Amount(v)
	return nil
}

// TradeRequest describes an order. Market buys spend IDR; everything else is
// sized in coin.
type TradeRequest struct {
	Pair      string // btc_idr
	Type      string // buy, sell
	OrderType string // market, limit
	Price     float64
	IDR       float64
	Coin      float64
}

// TradeReturn is the parsed result of a trade call. Indodax names the
// receive/spend fields after the currencies involved, so they are collected
// generically.
type TradeReturn struct {
	OrderID  int64
	Receive  map[string]float64
	Spend    map[string]float64
	Remain   map[string]float64
	Fee      float64
	Balances map[string]float64
}

// GetInfo gets account information
func (c *Client) GetInfo(ctx context.Context, key, secret string) (*GetInfoReturn, error) {
	var info GetInfoReturn
	if err := c.privateCall(ctx, key, secret, "getInfo", url.Values{}, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Trade places an order
func (c *Client) Trade(ctx context.Context, key, secret string, req TradeRequest) (*TradeReturn, error) {
	base := strings.SplitN(req.Pair, "_", 2)[0]

	params := url.Values{}
	params.Set("pair", req.Pair)
	params.Set("type", req.Type)
	params.Set("order_type", req.OrderType)
	if req.OrderType == "limit" {
		params.Set("price", strconv.FormatFloat(req.Price, 'f', -1, 64))
	}
	if req.IDR > 0 {
		params.Set("idr", strconv.FormatFloat(req.IDR, 'f', -1, 64))
	}
	if req.Coin > 0 {
		params.Set(base, strconv.FormatFloat(req.Coin, 'f', -1, 64))
	}

	var raw map[string]json.RawMessage
	if err := c.privateCall(ctx, key, secret, "trade", params, &raw); err != nil {
		return nil, err
	}
	return parseTradeReturn(raw)
}

func parseTradeReturn(raw map[string]json.RawMessage) (*TradeReturn, error) {
	out := &TradeReturn{
		Receive: map[string]float64{},
		Spend:   map[string]float64{},
		Remain:  map[string]float64{},
	}
	for field, value := range raw {
		switch {
		case field == "order_id":
			var id Amount
			if err := json.Unmarshal(value, &id); err != nil {
				return nil, fmt.Errorf("failed to parse order_id: %w", err)
			}
			out.OrderID = int64(id)
		case field == "fee":
			var fee Amount
			if err := json.Unmarshal(value, &fee); err == nil {
				out.Fee = float64(fee)
			}
		case field == "balance":
			var balances map[string]Amount
			if err := json.Unmarshal(value, &balances); err == nil {
				out.Balances = make(map[string]float64, len(balances))
				for k, v := range balances {
					out.Balances[k] = float64(v)
				}
			}
		case strings.HasPrefix(field, "receive_"):
			collect(out.Receive, strings.TrimPrefix(field, "receive_"), value)
		case strings.HasPrefix(field, "spend_"):
			collect(out.Spend, strings.TrimPrefix(field, "spend_"), value)
		case strings.HasPrefix(field, "remain_"):
			collect(out.Remain, strings.TrimPrefix(field, "remain_"), value)
		}
	}
	return out, nil
}

func collect(dst map[string]float64, currency string, value json.RawMessage) {
	var a Amount
	if err := json.Unmarshal(value, &a); err == nil {
		dst[currency] = float64(a)
	}
}

// GetServerTime gets Indodax server time (public API)
func (c *Client) GetServerTime(ctx context.Context) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/api/server_time", nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	var result struct {
		ServerTime int64 `json:"server_time"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, err
	}
	return result.ServerTime, nil
}

// privateCall signs and sends a tapi request, decoding "return" into out
func (c *Client) privateCall(ctx context.Context, key, secret, method string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	params.Set("method", method)
	params.Set("nonce", strconv.FormatInt(time.Now().UnixMilli(), 10))

	payload := params.Encode()
	signature := c.createSignature(payload, secret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/tapi", strings.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Key", key)
	req.Header.Set("Sign", signature)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var result privateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if result.Success != 1 || len(result.Return) == 0 {
		msg := result.Error
		if msg == "" {
			msg = "invalid response"
		}
		return &APIError{Method: method, Message: msg}
	}

	if err := json.Unmarshal(result.Return, out); err != nil {
		return fmt.Errorf("failed to parse %s return: %w", method, err)
	}
	return nil
}

// createSignature creates HMAC-SHA512 signature
func (c *Client) createSignature(message, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}
