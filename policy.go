package placement

import "io"

// Policy decides which node owns a key. It tracks node membership but never
// touches stored resources.
type Policy interface {
	// Name identifies the placement scheme. It is used for reporting only.
	Name() string

	// AddNode registers a node. It returns ErrDuplicateNode if the node is
	// already registered.
	AddNode(name string) error

	// RemoveNode deregisters a node. It returns ErrUnknownNode if there is no
	// such node.
	RemoveNode(name string) error

	// Locate returns the name of the node responsible for key.
	// It returns false when no nodes are registered.
	Locate(key string) (string, bool)

	// Nodes returns names of registered nodes.
	Nodes() []string

	// Dump writes policy internal state for diagnostics.
	Dump(w io.Writer) error
}

// Neighborhood is implemented by policies whose membership changes perturb
// only the key ranges next to the changed node. Store rebalances only the
// neighbors of such policies; every other policy causes a full rehash.
type Neighborhood interface {
	// Neighbors returns names of registered nodes (other than name) whose
	// resources may change owner when node name is added or removed.
	// It must be called before the change.
	Neighbors(name string) []string
}
