package redis

import "fmt"

// Redis key patterns for the application
// Following the pattern: entity:id or entity:id:attribute

var keyPrefix string

// InitKeys sets a namespace prepended to every key
func InitKeys(prefix string) {
	keyPrefix = prefix
}

func k(format string, args ...interface{}) string {
	key := fmt.Sprintf(format, args...)
	if keyPrefix == "" {
		return key
	}
	return keyPrefix + ":" + key
}

// Bot keys
func BotKey(botID string) string {
	return k("bot:%s", botID)
}

func UserBotsKey(userID string) string {
	return k("user_bots:%s", userID)
}

func BotsByStatusKey(status string) string {
	return k("bots_by_status:%s", status)
}

// Run keys
func RunKey(runID string) string {
	return k("bot_run:%s", runID)
}

// BotRunsKey is a sorted set of run ids scored by start time
func BotRunsKey(botID string) string {
	return k("bot_runs:%s", botID)
}

// BotActiveRunKey holds the id of the bot's single non-terminal run
func BotActiveRunKey(botID string) string {
	return k("bot_active_run:%s", botID)
}

// Condition keys
func ConditionKey(conditionID string) string {
	return k("bot_condition:%s", conditionID)
}

func BotConditionsKey(botID string) string {
	return k("bot_conditions:%s", botID)
}

func ConditionTokenKey(token string) string {
	return k("condition_token:%s", token)
}

func ConditionsByStatusKey(status string) string {
	return k("conditions_by_status:%s", status)
}

// Trade and log keys
func BotTradesKey(botID string) string {
	return k("bot_trades:%s", botID)
}

func BotLogsKey(botID string) string {
	return k("bot_logs:%s", botID)
}

func WebhookLogsKey(botID string) string {
	return k("webhook_logs:%s", botID)
}

// Exchange credential keys
func ExchangeKeyKey(userID, exchange string) string {
	return k("exchange_key:%s:%s", userID, exchange)
}

// Rate limiting
func RateLimitKey(identifier, action string) string {
	return k("rate_limit:%s:%s", action, identifier)
}

// Locks
func SweepLockKey() string {
	return k("lock:condition_sweep")
}

// Pub/Sub channels
func BotEventsChannel(userID string) string {
	return k("bot_events:%s", userID)
}
