package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"dcabot/backend/internal/config"
	"dcabot/backend/internal/model"
	"dcabot/backend/internal/repository"
	"dcabot/backend/internal/service"
	"dcabot/backend/pkg/jwt"
	"dcabot/backend/pkg/redis"

	"github.com/joho/godotenv"
)

// seed creates a paper-trading demo bot gated by two conditions and prints
// a dev token and the webhook URLs to drive it.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(redis.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	redis.InitKeys(cfg.Redis.KeyPrefix)

	userID := "demo-user"
	if len(os.Args) > 1 {
		userID = os.Args[1]
	}

	ctx := context.Background()
	botRepo := repository.NewBotRepository(redisClient)
	conditionRepo := repository.NewConditionRepository(redisClient)

	tp1, size1 := 1.5, 50.0
	tp2, size2 := 3.0, 50.0
	bot := &model.BotConfig{
		UserID:          userID,
		Name:            "Demo BTC ladder",
		TradingPair:     "BTCUSDT",
		Exchange:        "paper",
		TriggerMode:     model.TriggerModeWebhook,
		WebhookSecret:   strings.ToLower(service.NewWebhookToken()),
		OrderType:       model.OrderTypeConditionalMarket,
		InitialAmount:   100,
		RequiredCapital: 600,
		DCA: model.DCAConfig{
			Condition:      model.DCAConditionLossPercent,
			MaxDCAOrders:   5,
			LossPercentage: 2,
			AmountMode:     model.AmountModeMultiplier,
			Multiplier:     1.5,
		},
		TakeProfit: []model.TakeProfitTarget{
			{TriggerPct: &tp1, PositionSize: &size1},
			{TriggerPct: &tp2, PositionSize: &size2},
		},
		StopRules: map[model.DropType]model.DropRule{
			model.DropFromAvg: {Enabled: true, Value: 15},
		},
	}
	if err := botRepo.Create(ctx, bot); err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	conditions := []*model.Condition{
		{BotID: bot.ID, Name: "RSI oversold", Signal: "rsi", GroupNum: 1, LogicOperator: model.LogicAnd, Stage: model.StageFilter},
		{BotID: bot.ID, Name: "Breakout", Signal: "breakout", GroupNum: 1, LogicOperator: model.LogicAnd, Stage: model.StageTrigger, Action: model.ActionEntry},
		{BotID: bot.ID, Name: "Exit", Signal: "exit", GroupNum: 2, LogicOperator: model.LogicOr, Stage: model.StageTrigger, Action: model.ActionExit},
	}
	for _, c := range conditions {
		c.Token = service.NewWebhookToken()
		if err := conditionRepo.Create(ctx, c); err != nil {
			log.Fatalf("Failed to create condition %q: %v", c.Name, err)
		}
	}

	token, err := jwt.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpire).GenerateAccessToken(userID)
	if err != nil {
		log.Fatalf("Failed to sign token: %v", err)
	}

	base := strings.TrimRight(cfg.Server.PublicURL, "/")
	fmt.Printf("✓ Demo bot created\n")
	fmt.Printf("  Bot ID:  %s\n", bot.ID)
	fmt.Printf("  User:    %s\n", userID)
	fmt.Printf("  Token:   %s\n", token)
	fmt.Printf("  Start:   curl -X POST -H 'Authorization: Bearer %s' %s/api/v1/bots/%s/start\n", token, base, bot.ID)
	for _, c := range conditions {
		fmt.Printf("  %-13s %s/wc/%s\n", c.Name+":", base, c.Token)
		fmt.Printf("  %-13s %s/w/%s/%s/%s\n", "", base, bot.ID, bot.WebhookSecret, c.Signal)
	}
}
