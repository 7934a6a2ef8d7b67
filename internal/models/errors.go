package models

import (
	"errors"
	"fmt"
)

// Error taxonomy. Callers classify with errors.Is against these sentinels;
// wrapped messages carry the offending value.
var (
	// ErrValidation marks malformed input, rejected before any persistence.
	ErrValidation = errors.New("validation error")

	// ErrInvalidState marks an operation attempted against a job or step
	// in an incompatible state. No state is mutated.
	ErrInvalidState = errors.New("invalid state")

	// ErrUnreachable marks a seed page that could not be loaded.
	ErrUnreachable = errors.New("unreachable")

	// ErrCrawlTimeout marks a crawl that exceeded its wall-clock budget.
	ErrCrawlTimeout = errors.New("crawl timeout")

	// ErrBuild marks an internal invariant violation in report assembly.
	ErrBuild = errors.New("report build error")
)

// NewValidationError wraps ErrValidation with a formatted message.
func NewValidationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NewInvalidStateError wraps ErrInvalidState with a formatted message.
func NewInvalidStateError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// NewUnreachableError wraps ErrUnreachable for a seed URL.
func NewUnreachableError(url string, cause error) error {
	if cause != nil {
		return fmt.Errorf("%w: %s: %v", ErrUnreachable, url, cause)
	}
	return fmt.Errorf("%w: %s", ErrUnreachable, url)
}

// NewCrawlTimeoutError wraps ErrCrawlTimeout for a domain.
func NewCrawlTimeoutError(domain string) error {
	return fmt.Errorf("%w: %s", ErrCrawlTimeout, domain)
}

// NewBuildError wraps ErrBuild with a formatted message.
func NewBuildError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrBuild, fmt.Sprintf(format, args...))
}
