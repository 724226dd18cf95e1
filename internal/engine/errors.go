package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/pinsync/internal/graph"
	"github.com/roach88/pinsync/internal/ir"
)

// RuntimeError represents an error detected while reacting to host events
// or applying a parsed schema.
//
// Runtime errors include:
//   - Transport failure: the parsing service could not be reached or answered non-2xx
//   - Validation failure: the parsing service returned error messages
//   - Host-contract violation: an event carried an unknown direction or slot
//   - Unknown node: the target of an operation is missing or has the wrong type
//
// Unreconciled connections are not errors; they are counted and dropped.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// NodeID identifies the affected node, when there is one.
	NodeID graph.NodeID

	// Messages carries every validation message from the parsing service.
	Messages []string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeTransport indicates the parse request failed before a usable answer.
	ErrCodeTransport RuntimeErrorCode = "TRANSPORT_FAILURE"

	// ErrCodeValidation indicates the parsing service rejected the query.
	ErrCodeValidation RuntimeErrorCode = "VALIDATION_FAILED"

	// ErrCodeHostContract indicates the host reported something outside its
	// documented contract. It is fatal to the event loop.
	ErrCodeHostContract RuntimeErrorCode = "HOST_CONTRACT_VIOLATION"

	// ErrCodeUnknownNode indicates the node does not exist or is not of the
	// expected type.
	ErrCodeUnknownNode RuntimeErrorCode = "UNKNOWN_NODE"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := e.Message
	if len(e.Messages) > 0 {
		msg = msg + ": " + strings.Join(e.Messages, "; ")
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.NodeID != 0 {
		return fmt.Sprintf("%s: %s (node=%d)", e.Code, msg, e.NodeID)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsTransportError returns true if the error is a transport failure.
// Uses errors.As to handle wrapped errors.
func IsTransportError(err error) bool { return hasCode(err, ErrCodeTransport) }

// IsValidationError returns true if the error is a validation failure.
func IsValidationError(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsContractError returns true if the error is a host-contract violation.
func IsContractError(err error) bool { return hasCode(err, ErrCodeHostContract) }

// IsUnknownNodeError returns true if the error names a missing node.
func IsUnknownNodeError(err error) bool { return hasCode(err, ErrCodeUnknownNode) }

// NewTransportError wraps a failed parse call.
func NewTransportError(id graph.NodeID, err error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeTransport,
		Message: "parse request failed",
		NodeID:  id,
		Err:     err,
	}
}

// NewValidationError carries the parsing service's messages.
func NewValidationError(id graph.NodeID, messages []string) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeValidation,
		Message:  "query rejected",
		NodeID:   id,
		Messages: append([]string(nil), messages...),
	}
}

// NewContractError reports an event with a direction code outside the
// host's known set.
func NewContractError(id graph.NodeID, dir ir.Direction) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeHostContract,
		Message: fmt.Sprintf("unsupported connection direction %d", int(dir)),
		NodeID:  id,
	}
}

// NewSlotContractError reports an event naming a slot the node lacks.
func NewSlotContractError(id graph.NodeID, dir ir.Direction, slot int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeHostContract,
		Message: fmt.Sprintf("event for missing %s slot %d", dir, slot),
		NodeID:  id,
	}
}

// NewUnknownNodeError reports a missing node or one of the wrong type.
func NewUnknownNodeError(id graph.NodeID, want string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeUnknownNode,
		Message: fmt.Sprintf("no %s node with this id", want),
		NodeID:  id,
	}
}
