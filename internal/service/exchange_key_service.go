package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"dcabot/backend/internal/exchange"
	"dcabot/backend/internal/model"
	"dcabot/backend/internal/repository"
	"dcabot/backend/internal/util"
	"dcabot/backend/pkg/crypto"
	"dcabot/backend/pkg/logger"
)

// validationSymbols are pairs whose quote balance proves a key can read the account
var validationSymbols = map[exchange.ID]string{
	exchange.Binance: "BTCUSDT",
	exchange.Indodax: "btc_idr",
	exchange.Paper:   "BTCUSDT",
}

// ExchangeKeyService stores sealed exchange credentials per user and exchange
type ExchangeKeyService struct {
	keys          ExchangeKeyStore
	gateways      GatewayFactory
	encryptionKey string
	log           *logger.Logger
}

// NewExchangeKeyService creates a new exchange key service
func NewExchangeKeyService(keys ExchangeKeyStore, gateways GatewayFactory, encryptionKey string) *ExchangeKeyService {
	return &ExchangeKeyService{
		keys:          keys,
		gateways:      gateways,
		encryptionKey: encryptionKey,
		log:           logger.GetLogger(),
	}
}

// Save validates the credentials against the exchange, then stores them sealed
func (s *ExchangeKeyService) Save(ctx context.Context, userID, exchangeName string, req *model.ExchangeKeyRequest) (*model.ExchangeKeyResponse, error) {
	id, err := exchange.ParseID(exchangeName)
	if err != nil {
		return nil, util.ErrConfiguration(err.Error(), nil)
	}

	// Trim whitespace from key and secret (common issue from copy-paste)
	key := strings.TrimSpace(req.Key)
	secret := strings.TrimSpace(req.Secret)
	if key == "" || secret == "" {
		return nil, util.ErrValidation("key and secret cannot be empty")
	}

	s.log.Infof("Validating %s key for user %s: key=%s secret=%s", id, userID, crypto.Mask(key), crypto.Mask(secret))

	gw, err := s.gateways.New(string(id), exchange.Credentials{Key: key, Secret: secret})
	if err != nil {
		return nil, util.ErrConfiguration(err.Error(), nil)
	}
	if _, err := gw.QuoteBalance(ctx, validationSymbols[id]); err != nil {
		s.log.Warnf("Key validation failed for user %s on %s: %v", userID, id, err)
		return nil, util.NewAppErrorWithDetails(http.StatusBadRequest, util.ErrCodeAPIKeyInvalid,
			"Exchange rejected the credentials", err.Error())
	}

	encryptedKey, err := crypto.Encrypt(key, s.encryptionKey)
	if err != nil {
		return nil, util.ErrInternalServer("Failed to encrypt API key")
	}
	encryptedSecret, err := crypto.Encrypt(secret, s.encryptionKey)
	if err != nil {
		return nil, util.ErrInternalServer("Failed to encrypt API secret")
	}

	now := time.Now().UTC()
	record := &model.ExchangeKey{
		UserID:          userID,
		Exchange:        string(id),
		EncryptedKey:    encryptedKey,
		EncryptedSecret: encryptedSecret,
		IsValid:         true,
		LastValidatedAt: &now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if existing, err := s.keys.Get(ctx, userID, string(id)); err == nil {
		record.CreatedAt = existing.CreatedAt
	}

	if err := s.keys.Save(ctx, record); err != nil {
		return nil, util.ErrInternalServer("Failed to save API key")
	}
	return record.ToResponse(), nil
}

// Get returns the stored key status without credentials
func (s *ExchangeKeyService) Get(ctx context.Context, userID, exchangeName string) (*model.ExchangeKeyResponse, error) {
	record, err := s.keys.Get(ctx, userID, strings.ToLower(exchangeName))
	if err != nil {
		if errors.Is(err, repository.ErrExchangeKeyNotFound) {
			return nil, util.ErrNotFound("exchange key not found")
		}
		return nil, util.ErrInternalServer("Failed to load exchange key")
	}
	return record.ToResponse(), nil
}

// Delete removes the stored key
func (s *ExchangeKeyService) Delete(ctx context.Context, userID, exchangeName string) error {
	name := strings.ToLower(exchangeName)
	if _, err := s.keys.Get(ctx, userID, name); err != nil {
		return util.ErrNotFound("exchange key not found")
	}
	if err := s.keys.Delete(ctx, userID, name); err != nil {
		return util.ErrInternalServer("Failed to delete exchange key")
	}
	return nil
}

// Credentials opens the user's key for an exchange. Paper accounts need no
// stored key and are identified by the user.
func (s *ExchangeKeyService) Credentials(ctx context.Context, userID, exchangeName string) (exchange.Credentials, error) {
	if !exchange.RequiresCredentials(exchangeName) {
		return exchange.Credentials{Key: "paper:" + userID}, nil
	}

	record, err := s.keys.Get(ctx, userID, strings.ToLower(exchangeName))
	if err != nil {
		return exchange.Credentials{}, err
	}
	if !record.IsValid {
		return exchange.Credentials{}, errors.New("stored exchange key is marked invalid")
	}

	key, err := crypto.Decrypt(record.EncryptedKey, s.encryptionKey)
	if err != nil {
		s.log.Errorf("Failed to decrypt key for user %s on %s: %v", userID, exchangeName, err)
		return exchange.Credentials{}, err
	}
	secret, err := crypto.Decrypt(record.EncryptedSecret, s.encryptionKey)
	if err != nil {
		s.log.Errorf("Failed to decrypt secret for user %s on %s: %v", userID, exchangeName, err)
		return exchange.Credentials{}, err
	}
	return exchange.Credentials{Key: key, Secret: secret}, nil
}
