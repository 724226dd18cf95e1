package graph

import "errors"

var (
	// ErrUnknownNode is returned when a node id is not in the graph.
	ErrUnknownNode = errors.New("unknown node")

	// ErrUnknownType is returned by Create for an unregistered node type.
	ErrUnknownType = errors.New("unknown node type")

	// ErrUnknownLink is returned when a link id is not in the registry.
	ErrUnknownLink = errors.New("unknown link")

	// ErrSlotOutOfRange is returned for a slot index past the pin list.
	ErrSlotOutOfRange = errors.New("slot out of range")

	// ErrConnectionRejected is returned when a node's connect hook vetoes.
	ErrConnectionRejected = errors.New("connection rejected")

	// ErrTypeMismatch is returned when the two pin types cannot be wired.
	ErrTypeMismatch = errors.New("pin types are not compatible")
)

// IsSlotError reports whether err came from a slot that does not exist or
// whose type no longer fits.
func IsSlotError(err error) bool {
	return errors.Is(err, ErrSlotOutOfRange) || errors.Is(err, ErrTypeMismatch)
}
