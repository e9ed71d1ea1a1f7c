package scheduler

import (
	"errors"
	"fmt"
)

// SchedulerError represents an error returned by construction or admission.
//
// Errors are returned, never retried internally: the caller decides
// whether to back off, reroute or drop. Provenance failures are not
// SchedulerErrors; they are logged at commit and absorbed.
type SchedulerError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// DomainID identifies the affected domain, or -1.
	DomainID int

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes scheduler errors.
type ErrorCode string

const (
	// ErrCodeInvalidShardCount indicates shard count outside 1..8.
	ErrCodeInvalidShardCount ErrorCode = "INVALID_SHARD_COUNT"

	// ErrCodeInvalidDomainCount indicates zero domains or an out-of-range domain id.
	ErrCodeInvalidDomainCount ErrorCode = "INVALID_DOMAIN_COUNT"

	// ErrCodeInvalidRingCapacity indicates a ring capacity that is not a power of two >= 8.
	ErrCodeInvalidRingCapacity ErrorCode = "INVALID_RING_CAPACITY"

	// ErrCodeRingFull indicates the target tick slot cannot hold the delta.
	ErrCodeRingFull ErrorCode = "RING_FULL"

	// ErrCodeConversionFailed indicates the delta could not be made columnar.
	ErrCodeConversionFailed ErrorCode = "CONVERSION_FAILED"

	// ErrCodeLockchainConfig indicates the provenance sink could not be built.
	ErrCodeLockchainConfig ErrorCode = "LOCKCHAIN_CONFIG"
)

// Sentinels for errors.Is. Every SchedulerError matches the sentinel of
// its Code.
var (
	ErrInvalidShardCount   = errors.New("invalid shard count")
	ErrInvalidDomainCount  = errors.New("invalid domain count")
	ErrInvalidRingCapacity = errors.New("invalid ring capacity")
	ErrRingBufferFull      = errors.New("ring buffer full")
	ErrConversionFailed    = errors.New("conversion failed")
	ErrLockchainConfig     = errors.New("lockchain configuration failed")
)

var sentinels = map[ErrorCode]error{
	ErrCodeInvalidShardCount:   ErrInvalidShardCount,
	ErrCodeInvalidDomainCount:  ErrInvalidDomainCount,
	ErrCodeInvalidRingCapacity: ErrInvalidRingCapacity,
	ErrCodeRingFull:            ErrRingBufferFull,
	ErrCodeConversionFailed:    ErrConversionFailed,
	ErrCodeLockchainConfig:     ErrLockchainConfig,
}

// Error implements the error interface.
func (e *SchedulerError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.DomainID >= 0 {
		msg = fmt.Sprintf("%s (domain=%d)", msg, e.DomainID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *SchedulerError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for e.Code.
func (e *SchedulerError) Is(target error) bool {
	s, ok := sentinels[e.Code]
	return ok && s == target
}

// IsRingFull returns true if the error is a full-slot admission error.
// Uses errors.As to handle wrapped errors.
func IsRingFull(err error) bool {
	return hasCode(err, ErrCodeRingFull)
}

// IsConversionError returns true if the delta could not be converted.
func IsConversionError(err error) bool {
	return hasCode(err, ErrCodeConversionFailed)
}

// IsConfigError returns true for constructor validation errors.
func IsConfigError(err error) bool {
	var se *SchedulerError
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code {
	case ErrCodeInvalidShardCount, ErrCodeInvalidDomainCount, ErrCodeInvalidRingCapacity, ErrCodeLockchainConfig:
		return true
	}
	return false
}

func hasCode(err error, code ErrorCode) bool {
	var se *SchedulerError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

func newError(code ErrorCode, domainID int, err error, format string, args ...any) *SchedulerError {
	return &SchedulerError{
		Code:     code,
		Message:  fmt.Sprintf(format, args...),
		DomainID: domainID,
		Err:      err,
	}
}
