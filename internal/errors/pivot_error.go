// Package errors provides standardized error types for pivot operations.
// This package defines PivotError for consistent error handling across
// the engine, the remote client and the reference service, with operation
// context and error wrapping support.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel causes. Match them with errors.Is on any PivotError.
var (
	// ErrUnknownAggregator indicates an aggregator name missing from the registry
	ErrUnknownAggregator = errors.New("unknown aggregator")

	// ErrAmbiguousAttribute indicates an attribute grouped more than once
	ErrAmbiguousAttribute = errors.New("ambiguous grouping attribute")

	// ErrMissingInput indicates fewer value attributes than the aggregator consumes
	ErrMissingInput = errors.New("missing aggregator input")

	// ErrInvalidOrder indicates an unrecognised row or column order
	ErrInvalidOrder = errors.New("invalid sort order")

	// ErrInvalidInput indicates a malformed argument or payload
	ErrInvalidInput = errors.New("invalid input")

	// ErrCancelled indicates a remote request aborted by its caller or superseded by a newer one
	ErrCancelled = errors.New("request was cancelled")

	// ErrNotDelegable indicates a configuration that cannot be expressed as a remote request
	ErrNotDelegable = errors.New("configuration cannot be delegated")

	// ErrUnknownTable indicates a table or connection missing from a service catalog
	ErrUnknownTable = errors.New("unknown table")
)

// PivotError represents standardized errors across all pivot operations
type PivotError struct {
	Op        string // Operation name (e.g., "NewPivotData", "ExecutePivot")
	Attribute string // Attribute name if applicable
	Message   string // Human-readable error description
	Cause     error  // Underlying error cause
}

// Error implements the error interface
func (e *PivotError) Error() string {
	if e.Attribute != "" {
		return fmt.Sprintf("%s failed on attribute '%s': %s", e.Op, e.Attribute, e.Message)
	}
	return fmt.Sprintf("%s failed: %s", e.Op, e.Message)
}

// Unwrap returns the underlying cause for error wrapping support
func (e *PivotError) Unwrap() error {
	return e.Cause
}

// IsConfiguration reports whether err is a configuration error, i.e. one that
// must prevent any render attempt.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrUnknownAggregator) ||
		errors.Is(err, ErrAmbiguousAttribute) ||
		errors.Is(err, ErrMissingInput) ||
		errors.Is(err, ErrInvalidOrder)
}

// IsCancelled reports whether err stems from a cancelled remote request
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// NewUnknownAggregatorError creates an error for an unregistered aggregator name
func NewUnknownAggregatorError(op, name string) *PivotError {
	return &PivotError{
		Op:      op,
		Message: fmt.Sprintf("aggregator %q is not registered", name),
		Cause:   ErrUnknownAggregator,
	}
}

// NewAmbiguousAttributeError creates an error for an attribute used twice in the grouping
func NewAmbiguousAttributeError(op, attribute, message string) *PivotError {
	return &PivotError{
		Op:        op,
		Attribute: attribute,
		Message:   message,
		Cause:     ErrAmbiguousAttribute,
	}
}

// NewMissingInputError creates an error for an aggregator given too few value attributes
func NewMissingInputError(op, aggregator string, want, got int) *PivotError {
	return &PivotError{
		Op:      op,
		Message: fmt.Sprintf("aggregator %q needs %d value attribute(s), got %d", aggregator, want, got),
		Cause:   ErrMissingInput,
	}
}

// NewInvalidOrderError creates an error for an unrecognised sort order
func NewInvalidOrderError(op, order string) *PivotError {
	return &PivotError{
		Op:      op,
		Message: fmt.Sprintf("unsupported order %q", order),
		Cause:   ErrInvalidOrder,
	}
}

// NewInvalidInputError creates an error for invalid operation inputs
func NewInvalidInputError(op, message string) *PivotError {
	return &PivotError{
		Op:      op,
		Message: message,
		Cause:   ErrInvalidInput,
	}
}

// NewNotDelegableError creates an error for local-only configuration features
func NewNotDelegableError(op, attribute, message string) *PivotError {
	return &PivotError{
		Op:        op,
		Attribute: attribute,
		Message:   message,
		Cause:     ErrNotDelegable,
	}
}

// NewUnknownTableError creates an error for a table the catalog cannot resolve
func NewUnknownTableError(op, connectionCode, table string) *PivotError {
	return &PivotError{
		Op:      op,
		Message: fmt.Sprintf("table %q not found for connection %q", table, connectionCode),
		Cause:   ErrUnknownTable,
	}
}

// NewCancelledError wraps a transport-level abort into ErrCancelled
func NewCancelledError(op string, cause error) *PivotError {
	return &PivotError{
		Op:      op,
		Message: ErrCancelled.Error(),
		Cause:   errors.Join(ErrCancelled, cause),
	}
}

// NewInternalError creates an error for internal operation failures
func NewInternalError(op string, cause error) *PivotError {
	return &PivotError{
		Op:      op,
		Message: "internal error occurred",
		Cause:   cause,
	}
}
