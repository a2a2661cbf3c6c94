package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies engine errors for propagation and retry decisions.
type ErrorCategory string

const (
	// Signal is malformed (zero-width stop, inverted levels). Reject, no retry.
	CategoryInvalidSignal ErrorCategory = "INVALID_SIGNAL"

	// A policy check rejected the signal. Reject, reason surfaced, no retry.
	CategoryValidationRejected ErrorCategory = "VALIDATION_REJECTED"

	// Requote, timeout, temporary disconnect. Retried per execution policy.
	CategoryTransient ErrorCategory = "TRANSIENT"

	// Authentication, permission, malformed venue response. Abort the
	// attempt, surface to the notification sink, no retry within the cycle.
	CategoryFatal ErrorCategory = "FATAL"

	// Daily drawdown breaker is tripped. Blocks new entries until the next day.
	CategoryCircuitBreaker ErrorCategory = "CIRCUIT_BREAKER"
)

// TradeError is a categorized error with component and reason-code context.
type TradeError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	ReasonCode string
	Message    string
	Underlying error
}

func (e *TradeError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

func (e *TradeError) Unwrap() error {
	return e.Underlying
}

// IsRetryable reports whether the execution layer may retry the failed call.
func (e *TradeError) IsRetryable() bool {
	return e.Category == CategoryTransient
}

// New creates a categorized error.
func New(category ErrorCategory, component, operation, reasonCode, message string) *TradeError {
	return &TradeError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		ReasonCode: reasonCode,
		Message:    message,
	}
}

// Wrap attaches category and context to an existing error. Returns nil for a nil error.
func Wrap(err error, category ErrorCategory, component, operation, reasonCode string) *TradeError {
	if err == nil {
		return nil
	}
	return &TradeError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		ReasonCode: reasonCode,
		Message:    "operation failed",
		Underlying: err,
	}
}

// CategoryOf extracts the category of an error, walking the unwrap chain.
// Unclassified errors report CategoryTransient so callers fail toward a
// retry rather than a silent drop.
func CategoryOf(err error) ErrorCategory {
	var te *TradeError
	if errors.As(err, &te) {
		return te.Category
	}
	return CategoryTransient
}

// ReasonOf extracts the stable reason code of an error, or "internal_error"
// when the error carries none.
func ReasonOf(err error) string {
	var te *TradeError
	if errors.As(err, &te) && te.ReasonCode != "" {
		return te.ReasonCode
	}
	return "internal_error"
}

func NewInvalidSignal(component, operation, reasonCode, message string) *TradeError {
	return New(CategoryInvalidSignal, component, operation, reasonCode, message)
}

func NewValidationRejected(component, operation, reasonCode, message string) *TradeError {
	return New(CategoryValidationRejected, component, operation, reasonCode, message)
}

func NewTransient(component, operation, reasonCode string, err error) *TradeError {
	return Wrap(err, CategoryTransient, component, operation, reasonCode)
}

func NewFatal(component, operation, reasonCode string, err error) *TradeError {
	return Wrap(err, CategoryFatal, component, operation, reasonCode)
}

func NewCircuitBreakerTripped(component, operation string) *TradeError {
	return New(CategoryCircuitBreaker, component, operation, "circuit_breaker_tripped",
		"daily drawdown limit exceeded, new entries blocked")
}
