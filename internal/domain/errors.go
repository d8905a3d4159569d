package domain

import "errors"

var (
	// ErrNotFound is wrapped by repositories when a record does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput marks input-contract violations (malformed dates, non-positive units, ...)
	ErrInvalidInput = errors.New("invalid input")

	// ErrOversell is returned by the ledger when a sale exceeds the units held
	ErrOversell = errors.New("sell exceeds units held")

	// ErrNAVMismatch is returned when a supplied price differs from the official NAV
	ErrNAVMismatch = errors.New("price does not match official NAV")

	// ErrPriceUnavailable is returned when no NAV exists for a required date
	ErrPriceUnavailable = errors.New("price unavailable")

	// ErrCacheUnavailable is returned by cache adapters when the store cannot be reached
	ErrCacheUnavailable = errors.New("cache unavailable")
)
