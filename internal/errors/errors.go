// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Standard sentinel errors
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrContractNotFound  = errors.New("contract not found")
	ErrNoSnapshot        = errors.New("no market snapshot for date")
	ErrDuplicateContract = errors.New("duplicate contract key in snapshot")
	ErrOutOfOrderDate    = errors.New("dates must be processed in ascending order")
	ErrPositionClosed    = errors.New("position already closed")
	ErrConfigInvalid     = errors.New("invalid configuration")
	ErrRunNotFound       = errors.New("backtest run not found")
	ErrDatabaseError     = errors.New("database error")
)

// FatalError aborts a backtest run. It carries the simulated date and a
// reason so the failure can be reproduced; the partial ledger state is
// surfaced by the engine alongside it.
type FatalError struct {
	Date   time.Time
	Reason string
	Err    error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fatal [%s]: %s: %v", e.Date.Format("2006-01-02"), e.Reason, e.Err)
	}
	return fmt.Sprintf("fatal [%s]: %s", e.Date.Format("2006-01-02"), e.Reason)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// NewFatalError creates a new FatalError.
func NewFatalError(date time.Time, reason string, err error) *FatalError {
	return &FatalError{Date: date, Reason: reason, Err: err}
}

// IsFatal reports whether any error in err's chain is a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// DataError represents a market-data integrity error.
type DataError struct {
	Source  string
	Date    time.Time
	Message string
	Err     error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.Source, e.Date.Format("2006-01-02"), e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.Source, e.Date.Format("2006-01-02"), e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(source string, date time.Time, message string, err error) *DataError {
	return &DataError{Source: source, Date: date, Message: message, Err: err}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
