package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrNoTarget is returned when neither --url nor --input is given.
	ErrNoTarget = errors.New("no target specified: provide --url or --input")

	// ErrConflictingTargets is returned when both --url and --input are given.
	ErrConflictingTargets = errors.New("conflicting targets: --url and --input cannot be used together")

	// ErrInvalidViewMode is returned for a view mode other than headless or headful.
	ErrInvalidViewMode = errors.New("invalid view mode: must be headless or headful")

	// ErrInvalidTimeout is returned when a timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidSettleDelay is returned when the settle delay is negative.
	ErrInvalidSettleDelay = errors.New("invalid settle delay: must be non-negative")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
