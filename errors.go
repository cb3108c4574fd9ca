package placement

import "errors"

// Conditions reported by policies and Store. Store wraps them with the
// operation context, so callers should match them with errors.Is.
var (
	// ErrDuplicateNode is returned when a node with the same name is already
	// registered.
	ErrDuplicateNode = errors.New("node already exists")

	// ErrUnknownNode is returned when there is no node with given name.
	ErrUnknownNode = errors.New("node doesn't exist")

	// ErrNoNodesAvailable is returned when a resource has no node to be
	// stored on. A resource rejected with it is not stored.
	ErrNoNodesAvailable = errors.New("no nodes available")

	// ErrDuplicateResource is returned when the resource is already stored.
	ErrDuplicateResource = errors.New("resource already exists")
)

// reason returns a short label for err, used in metrics.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateNode):
		return "duplicate_node"
	case errors.Is(err, ErrUnknownNode):
		return "unknown_node"
	case errors.Is(err, ErrNoNodesAvailable):
		return "no_nodes"
	case errors.Is(err, ErrDuplicateResource):
		return "duplicate_resource"
	default:
		return "other"
	}
}
