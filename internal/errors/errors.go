// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrUnauthenticated   = errors.New("not authenticated")
	ErrTokenRejected     = errors.New("token rejected")
	ErrSessionSuperseded = errors.New("session changed while request was in flight")
	ErrNothingToPay      = errors.New("plan requires no payment")
	ErrRemoteUnavailable = errors.New("remote service unavailable")
	ErrTimeout           = errors.New("operation timed out")
	ErrConfigInvalid     = errors.New("invalid configuration")
	ErrTokenStoreFailure = errors.New("token store failure")
	ErrCacheMiss         = errors.New("cache miss")
)

// NetworkError reports that the remote collaborator could not be reached or
// did not answer in time.
type NetworkError struct {
	Method   string
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error [%s %s]: %v", e.Method, e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new NetworkError.
func NewNetworkError(method, endpoint string, err error) *NetworkError {
	return &NetworkError{
		Method:   method,
		Endpoint: endpoint,
		Err:      err,
	}
}

// AuthError represents rejected credentials or an invalid/expired token.
type AuthError struct {
	Operation string
	Message   string
	Err       error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth error [%s]: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("auth error [%s]: %s", e.Operation, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError creates a new AuthError.
func NewAuthError(operation, message string, err error) *AuthError {
	return &AuthError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// ValidationError represents a malformed ticker or missing field, usually
// reported back by the remote collaborator.
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
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// SubscriptionError represents a rejected tier upgrade.
type SubscriptionError struct {
	Tier    string
	Message string
	Err     error
}

func (e *SubscriptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("subscription error [%s]: %s: %v", e.Tier, e.Message, e.Err)
	}
	return fmt.Sprintf("subscription error [%s]: %s", e.Tier, e.Message)
}

func (e *SubscriptionError) Unwrap() error {
	return e.Err
}

// NewSubscriptionError creates a new SubscriptionError.
func NewSubscriptionError(tier, message string, err error) *SubscriptionError {
	return &SubscriptionError{
		Tier:    tier,
		Message: message,
		Err:     err,
	}
}

// PaymentError represents an unauthenticated or rejected checkout.
type PaymentError struct {
	Tier       string
	CryptoType string
	Message    string
	Err        error
}

func (e *PaymentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("payment error [%s/%s]: %s: %v", e.Tier, e.CryptoType, e.Message, e.Err)
	}
	return fmt.Sprintf("payment error [%s/%s]: %s", e.Tier, e.CryptoType, e.Message)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

// NewPaymentError creates a new PaymentError.
func NewPaymentError(tier, cryptoType, message string, err error) *PaymentError {
	return &PaymentError{
		Tier:       tier,
		CryptoType: cryptoType,
		Message:    message,
		Err:        err,
	}
}

// DataError represents a failed market data fetch cycle.
type DataError struct {
	DataType string
	Ticker   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Ticker, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Ticker, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, ticker, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Ticker:   ticker,
		Message:  message,
		Err:      err,
	}
}

// IsUnauthenticated reports whether err is, or wraps, ErrUnauthenticated.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}

// UserMessage returns the single line shown to the user for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var netErr *NetworkError
	var authErr *AuthError
	var valErr *ValidationError
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "please login first"
	case errors.As(err, &valErr):
		return valErr.Message
	case errors.As(err, &authErr):
		return authErr.Message
	case errors.As(err, &netErr):
		return "service unreachable, try again later"
	default:
		return err.Error()
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}
