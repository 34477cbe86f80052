package model

import "time"

// ExchangeKey holds sealed exchange credentials for one user and exchange
type ExchangeKey struct {
	UserID          string     `json:"user_id"`
	Exchange        string     `json:"exchange"`
	EncryptedKey    string     `json:"encrypted_key"`
	EncryptedSecret string     `json:"encrypted_secret"`
	IsValid         bool       `json:"is_valid"`
	LastValidatedAt *time.Time `json:"last_validated_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ExchangeKeyRequest represents a credential upload
type ExchangeKeyRequest struct {
	Key    string `json:"key" binding:"required"`
	Secret string `json:"secret" binding:"required"`
}

// ExchangeKeyResponse represents stored credentials without secrets
type ExchangeKeyResponse struct {
	UserID          string     `json:"user_id"`
	Exchange        string     `json:"exchange"`
	IsValid         bool       `json:"is_valid"`
	LastValidatedAt *time.Time `json:"last_validated_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ToResponse converts ExchangeKey to ExchangeKeyResponse
func (k *ExchangeKey) ToResponse() *ExchangeKeyResponse {
	return &ExchangeKeyResponse{
		UserID:          k.UserID,
		Exchange:        k.Exchange,
		IsValid:         k.IsValid,
		LastValidatedAt: k.LastValidatedAt,
		CreatedAt:       k.CreatedAt,
		UpdatedAt:       k.UpdatedAt,
	}
}

