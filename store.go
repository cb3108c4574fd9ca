package placement

import (
	"fmt"
	"io"
	"sync"
)

// Store is a sharded datastore simulation. It keeps resources in nodes and
// moves them between nodes when the node set changes, so that every resource
// is held by the node its Policy locates it to.
//
// Store operations are serialized; Store is safe for concurrent use.
type Store struct {
	mu sync.Mutex

	policy     Policy
	rebalancer rebalancer

	// nodes is a mapping of node name to node. It always has the same set of
	// names as the policy membership.
	nodes map[string]*node

	// owners is a mapping of stored resource to the name of its node.
	owners map[Resource]string

	log     Logger
	metrics MetricsCollector
	trace   StoreTrace
}

// New creates a Store which places resources with p.
//
// If p implements Neighborhood, membership changes move only resources of the
// neighbor nodes. Otherwise every membership change reinserts every stored
// resource. Nodes already registered in p are adopted as empty nodes.
func New(p Policy, opts ...Option) *Store {
	s := &Store{
		policy:  p,
		nodes:   make(map[string]*node),
		owners:  make(map[Resource]string),
		log:     nopLogger{},
		metrics: nopMetrics{},
	}
	if nb, ok := p.(Neighborhood); ok {
		s.rebalancer = localRebalancer{nb}
	} else {
		s.rebalancer = fullRehash{}
	}
	for _, name := range p.Nodes() {
		s.nodes[name] = newNode(name)
	}
	for _, opt := range opts {
		opt(s)
	}
	setupStoreTrace(s)

	return s
}

// Policy returns the placement policy of s.
func (s *Store) Policy() Policy {
	return s.policy
}

// AddNode registers a node and migrates resources which now belong to it.
// It returns the number of migrated resources.
//
// Adding a node with a name already registered returns ErrDuplicateNode and
// changes nothing.
func (s *Store) AddNode(name string) (migrated int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	done := s.trace.onAddNode(name)
	defer func() {
		done(migrated, err)
	}()

	migrated, err = s.rebalancer.addNode(s, name)
	if err != nil {
		return 0, s.reject("add_node", fmt.Errorf("placement: add node %q: %w", name, err))
	}
	s.log.Info("node added",
		"policy", s.policy.Name(),
		"node", name,
		"migrated", migrated,
	)
	s.commit("add_node", migrated)

	return migrated, nil
}

// RemoveNode deregisters a node and migrates its resources to the rest of the
// nodes. It returns the number of migrated resources.
//
// Removing a node that does not exist returns ErrUnknownNode. Removing the
// last node while it holds resources returns ErrNoNodesAvailable. In both
// cases nothing is changed.
func (s *Store) RemoveNode(name string) (migrated int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	done := s.trace.onRemoveNode(name)
	defer func() {
		done(migrated, err)
	}()

	n, has := s.nodes[name]
	switch {
	case !has:
		err = ErrUnknownNode
	case len(s.nodes) == 1 && len(n.resources) > 0:
		err = ErrNoNodesAvailable
	default:
		migrated, err = s.rebalancer.removeNode(s, name)
	}
	if err != nil {
		return 0, s.reject("remove_node", fmt.Errorf("placement: remove node %q: %w", name, err))
	}
	s.log.Info("node removed",
		"policy", s.policy.Name(),
		"node", name,
		"migrated", migrated,
	)
	s.commit("remove_node", migrated)

	return migrated, nil
}

// AddResource stores r on the node located by the policy.
//
// It returns ErrNoNodesAvailable if there are no nodes; r is not stored then.
// It returns ErrDuplicateResource if r is already stored.
func (s *Store) AddResource(r Resource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, has := s.owners[r]; has {
		return s.reject("add_resource", fmt.Errorf("placement: add resource %q: %w", string(r), ErrDuplicateResource))
	}
	to, err := s.place(r)
	if err != nil {
		return s.reject("add_resource", fmt.Errorf("placement: add resource %q: %w", string(r), err))
	}
	s.log.Debug("resource added", "resource", string(r), "node", to)
	s.metrics.SetResources(s.policy.Name(), len(s.owners))
	assertInvariants(s)

	return nil
}

// Owner returns the name of the node holding r.
func (s *Store) Owner(r Resource) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, has := s.owners[r]
	return name, has
}

// Nodes returns node names in the policy order.
func (s *Store) Nodes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.policy.Nodes()
}

// Resources returns a copy of resources held by the named node in insertion
// order. It returns nil if there is no such node.
func (s *Store) Resources(name string) []Resource {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, has := s.nodes[name]
	if !has {
		return nil
	}
	return n.list()
}

// Len returns the number of stored resources.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.owners)
}

// Verify checks that node set matches the policy membership and that every
// stored resource is held exactly once, by the node the policy locates it to.
func (s *Store) Verify() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.verify()
}

// Dump writes the policy state followed by the contents of every node.
func (s *Store) Dump(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := fmt.Fprintf(w, "===== STORE =====\nUsing scheme: %s\n", s.policy.Name()); err != nil {
		return err
	}
	if err := s.policy.Dump(w); err != nil {
		return err
	}
	for _, name := range s.policy.Nodes() {
		n := s.nodes[name]
		if _, err := fmt.Fprintf(w, "[%s (%d items)]\n", n.name, len(n.resources)); err != nil {
			return err
		}
		for _, r := range n.resources {
			if _, err := fmt.Fprintf(w, "    - %s\n", string(r)); err != nil {
				return err
			}
		}
	}
	return nil
}

// place stores r on the node located by the policy.
// s.mu must be held.
func (s *Store) place(r Resource) (string, error) {
	to, ok := s.policy.Locate(string(r))
	if !ok {
		return "", ErrNoNodesAvailable
	}
	n, has := s.nodes[to]
	if !has {
		// Policy knows a node the Store doesn't.
		n = newNode(to)
		s.nodes[to] = n
	}
	n.push(r)
	s.owners[r] = to

	return to, nil
}

// move moves r from one node to another.
// s.mu must be held.
func (s *Store) move(r Resource, from, to string) {
	if !s.nodes[from].remove(r) {
		panic(fmt.Sprintf("placement: internal error: %q is not on node %q", string(r), from))
	}
	n, has := s.nodes[to]
	if !has {
		n = newNode(to)
		s.nodes[to] = n
	}
	n.push(r)
	s.owners[r] = to

	s.log.Debug("resource migrated", "resource", string(r), "from", from, "to", to)
	s.trace.onMigrate(r, from, to)
}

// relocate moves resources of the named node which the policy now locates
// elsewhere. It returns the number of moved resources.
// s.mu must be held.
func (s *Store) relocate(name string) (moved int) {
	n, has := s.nodes[name]
	if !has {
		return 0
	}
	for _, r := range n.list() {
		to, ok := s.policy.Locate(string(r))
		if !ok || to == name {
			continue
		}
		s.move(r, name, to)
		moved++
	}
	return moved
}

// reinsert puts resources taken from node from back through the regular
// placement path. It returns the number of reinserted resources.
// s.mu must be held and at least one node must be registered.
func (s *Store) reinsert(from string, rs []Resource) (n int) {
	for _, r := range rs {
		delete(s.owners, r)
		to, err := s.place(r)
		if err != nil {
			panic(fmt.Sprintf("placement: internal error: reinsert %q: %v", string(r), err))
		}
		s.log.Debug("resource migrated", "resource", string(r), "from", from, "to", to)
		s.trace.onMigrate(r, from, to)
		n++
	}
	return n
}

// held is a set of resources drained from a node.
type held struct {
	from      string
	resources []Resource
}

// drain empties the named nodes, in given order, and returns their
// resources.
// s.mu must be held.
func (s *Store) drain(names []string) []held {
	ret := make([]held, 0, len(names))
	for _, name := range names {
		n, has := s.nodes[name]
		if !has {
			continue
		}
		ret = append(ret, held{
			from:      name,
			resources: n.drain(),
		})
	}
	return ret
}

// s.mu must be held.
func (s *Store) reject(op string, err error) error {
	s.log.Warn("operation rejected",
		"policy", s.policy.Name(),
		"op", op,
		"error", err,
	)
	s.metrics.RecordRejected(s.policy.Name(), op, reason(err))
	s.trace.onReject(op, err)
	return err
}

// s.mu must be held.
func (s *Store) commit(op string, migrated int) {
	name := s.policy.Name()
	s.metrics.RecordMigrations(name, op, migrated)
	s.metrics.SetNodes(name, len(s.nodes))
	s.metrics.SetResources(name, len(s.owners))
	assertInvariants(s)
}

// s.mu must be held.
func (s *Store) verify() error {
	members := s.policy.Nodes()
	if len(members) != len(s.nodes) {
		return fmt.Errorf(
			"placement: store has %d nodes; policy has %d",
			len(s.nodes), len(members),
		)
	}
	for _, name := range members {
		if _, has := s.nodes[name]; !has {
			return fmt.Errorf("placement: node %q is missing in store", name)
		}
	}
	var total int
	for name, n := range s.nodes {
		for _, r := range n.resources {
			total++
			owner, has := s.owners[r]
			if !has {
				return fmt.Errorf("placement: resource %q on node %q is not indexed", string(r), name)
			}
			if owner != name {
				return fmt.Errorf("placement: resource %q is on node %q and %q", string(r), name, owner)
			}
			to, ok := s.policy.Locate(string(r))
			if !ok || to != name {
				return fmt.Errorf(
					"placement: resource %q is on node %q; policy locates it to %q",
					string(r), name, to,
				)
			}
		}
	}
	if total != len(s.owners) {
		return fmt.Errorf(
			"placement: %d resources are held by nodes; %d are indexed",
			total, len(s.owners),
		)
	}
	return nil
}
