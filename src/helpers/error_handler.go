package helpers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"trading-simulator/src/logger"

	"github.com/pkg/errors"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type SimulatorError struct {
	Message string
	Cause   error
}

func (e *SimulatorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SimulatorError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As checks
type ConfigurationError struct{ SimulatorError }
type NetworkError struct{ SimulatorError }
type DataSourceError struct{ SimulatorError }
type StorageError struct{ SimulatorError }
type ValidationError struct{ SimulatorError }

func NewValidationError(format string, args ...interface{}) error {
	return &ValidationError{SimulatorError{Message: fmt.Sprintf(format, args...)}}
}

func NewDataSourceError(message string, cause error) error {
	return &DataSourceError{SimulatorError{Message: message, Cause: cause}}
}

func NewNetworkError(message string, cause error) error {
	return &NetworkError{SimulatorError{Message: message, Cause: cause}}
}

func NewStorageError(message string, cause error) error {
	return &StorageError{SimulatorError{Message: message, Cause: cause}}
}

// -----------------------------------------------------------------------------
// Retry Logic
// -----------------------------------------------------------------------------

// RetryWithBackoff runs fn up to maxRetries times, doubling baseDelay between
// attempts. It stops early when ctx is cancelled.
func RetryWithBackoff(ctx context.Context, operation string, maxRetries int, baseDelay time.Duration, log *logger.Logger, fn func() error) error {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt == maxRetries-1 {
			break
		}

		delay := baseDelay * (1 << attempt)
		if log != nil {
			log.Warning("Attempt %d/%d failed for %s: %v. Retrying in %v", attempt+1, maxRetries, operation, err, delay)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return classify(operation, lastErr)
}

// classify wraps the last error into a typed error based on the operation name.
func classify(operation string, err error) error {
	lowerOp := strings.ToLower(operation)
	base := SimulatorError{Message: fmt.Sprintf("%s failed", operation), Cause: err}
	switch {
	case strings.Contains(lowerOp, "network") || strings.Contains(lowerOp, "fetch"):
		return &NetworkError{base}
	case strings.Contains(lowerOp, "database") || strings.Contains(lowerOp, "save") || strings.Contains(lowerOp, "load"):
		return &StorageError{base}
	default:
		return &base
	}
}

// -----------------------------------------------------------------------------
// Isolation
// -----------------------------------------------------------------------------

// SafeRun executes fn, logging any returned error and recovering from panics
// so the caller's loop keeps going. It returns the error or recovered panic.
func SafeRun(log *logger.Logger, operation string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.WithStack(fmt.Errorf("panic in %s: %v", operation, r))
			log.Error("%+v", err)
		}
	}()

	if err = fn(); err != nil {
		log.Error("%s failed: %v", operation, err)
	}
	return err
}
