package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"dcabot/backend/internal/config"
	"dcabot/backend/internal/model"
	"dcabot/backend/internal/repository"
	"dcabot/backend/pkg/redis"

	"github.com/joho/godotenv"
)

// check_redis prints bot, run slot and condition state for debugging a
// running engine.
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
	ctx := context.Background()

	botRepo := repository.NewBotRepository(redisClient)
	runRepo := repository.NewRunRepository(redisClient)
	conditionRepo := repository.NewConditionRepository(redisClient)

	statuses := []string{
		model.BotStatusInactive,
		model.BotStatusWaiting,
		model.BotStatusRunning,
		model.BotStatusPaused,
		model.BotStatusStopped,
		model.BotStatusError,
	}
	for _, status := range statuses {
		bots, err := botRepo.ListByStatus(ctx, status)
		if err != nil {
			log.Fatalf("Failed to list %s bots: %v", status, err)
		}
		fmt.Printf("%-8s bots: %d\n", status, len(bots))

		for _, bot := range bots {
			run, err := runRepo.GetActive(ctx, bot.ID)
			switch {
			case errors.Is(err, repository.ErrRunNotFound):
				// Running, waiting and paused bots must own an active run
				if status == model.BotStatusRunning || status == model.BotStatusWaiting || status == model.BotStatusPaused {
					fmt.Printf("  ! %s (%s) has no active run\n", bot.ID, bot.TradingPair)
				}
			case err != nil:
				fmt.Printf("  ! %s: %v\n", bot.ID, err)
			default:
				fmt.Printf("  - %s (%s) run %s %s since %s\n", bot.ID, bot.TradingPair, run.RunID, run.Status, run.StartedAt.Format(time.RFC3339))
			}
			if bot.ErrorMessage != nil {
				fmt.Printf("    error: %s\n", *bot.ErrorMessage)
			}
		}
	}

	triggered, err := conditionRepo.ListByStatus(ctx, model.ConditionStatusTriggered)
	if err != nil {
		log.Fatalf("Failed to list triggered conditions: %v", err)
	}
	validity := int(cfg.Engine.ConditionValidity / time.Second)
	stale := 0
	for _, c := range triggered {
		if c.IsStale(time.Now(), validity) {
			stale++
		}
	}
	fmt.Printf("Triggered conditions: %d (%d past their window)\n", len(triggered), stale)
}
