package service

import (
	"context"
	"encoding/json"
	"time"

	"dcabot/backend/internal/model"
	"dcabot/backend/pkg/logger"
	"dcabot/backend/pkg/redis"
)

// Publisher fans events out to subscribers
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// EventService appends bot events to bot_logs and publishes them on the
// owner's channel. Failures are logged, never returned: the event stream
// must not change the outcome of the operation it describes.
type EventService struct {
	logs      LogStore
	publisher Publisher
	log       *logger.Logger
	now       func() time.Time
}

func NewEventService(logs LogStore, publisher Publisher) *EventService {
	return &EventService{
		logs:      logs,
		publisher: publisher,
		log:       logger.GetLogger(),
		now:       time.Now,
	}
}

// Log records one event
func (s *EventService) Log(ctx context.Context, runID, botID, userID string, kind model.EventKind, metadata map[string]interface{}) {
	entry := &model.BotLog{
		RunID:     runID,
		BotID:     botID,
		UserID:    userID,
		Event:     kind,
		Metadata:  metadata,
		CreatedAt: s.now().UTC(),
	}

	log := s.log.WithBot(botID, runID).WithField("event", kind)
	if err := s.logs.AppendBotLog(ctx, entry); err != nil {
		log.Error("Failed to append bot log", err)
	}

	if s.publisher != nil && userID != "" {
		data, err := json.Marshal(entry)
		if err != nil {
			log.Errorf("Failed to marshal bot event: %v", err)
		} else if err := s.publisher.Publish(ctx, redis.BotEventsChannel(userID), data); err != nil {
			log.Warnf("Failed to publish bot event: %v", err)
		}
	}

	if kind == model.EventError {
		log.WithFields(metadata).Warn("Bot event")
		return
	}
	log.WithFields(metadata).Info("Bot event")
}
