// Package repository provides data access for the application and interacts with Redis.
package repository

import "errors"

var (
	ErrBotNotFound         = errors.New("bot not found")
	ErrRunNotFound         = errors.New("run not found")
	ErrConditionNotFound   = errors.New("condition not found")
	ErrExchangeKeyNotFound = errors.New("exchange key not found")

	// ErrActiveRunExists is returned when a bot already holds a non-terminal run
	ErrActiveRunExists = errors.New("bot already has an active run")
	// ErrStatusConflict is returned when a compare-and-set saw an unexpected status
	ErrStatusConflict = errors.New("status changed concurrently")
)

// casAttempts bounds optimistic transaction retries
const casAttempts = 8
