package placement

// rebalancer is a migration procedure run by Store on membership changes.
// Both methods are called with Store.mu held. They must either return an
// error without changing anything or complete the whole migration.
type rebalancer interface {
	addNode(s *Store, name string) (int, error)
	removeNode(s *Store, name string) (int, error)
}

// localRebalancer moves only resources of the nodes next to the changed one.
type localRebalancer struct {
	Neighborhood
}

func (l localRebalancer) addNode(s *Store, name string) (int, error) {
	neighbors := l.Neighbors(name)
	if err := s.policy.AddNode(name); err != nil {
		return 0, err
	}
	s.nodes[name] = newNode(name)

	var n int
	for _, nb := range neighbors {
		n += s.relocate(nb)
	}
	return n, nil
}

func (l localRebalancer) removeNode(s *Store, name string) (int, error) {
	neighbors := l.Neighbors(name)
	if err := s.policy.RemoveNode(name); err != nil {
		return 0, err
	}
	rs := s.nodes[name].drain()
	delete(s.nodes, name)

	n := s.reinsert(name, rs)
	for _, nb := range neighbors {
		if nb != name {
			n += s.relocate(nb)
		}
	}
	return n, nil
}

// fullRehash reinserts every stored resource on any membership change.
// Every reinserted resource counts as migrated, even if it lands on the node
// it was taken from.
type fullRehash struct{}

func (fullRehash) addNode(s *Store, name string) (int, error) {
	if _, has := s.nodes[name]; has {
		return 0, ErrDuplicateNode
	}
	names := s.policy.Nodes()
	if err := s.policy.AddNode(name); err != nil {
		return 0, err
	}
	hs := s.drain(names)
	s.nodes[name] = newNode(name)

	return rehash(s, hs), nil
}

func (fullRehash) removeNode(s *Store, name string) (int, error) {
	names := s.policy.Nodes()
	if err := s.policy.RemoveNode(name); err != nil {
		return 0, err
	}
	hs := s.drain(names)
	delete(s.nodes, name)

	return rehash(s, hs), nil
}

func rehash(s *Store, hs []held) (n int) {
	for _, h := range hs {
		n += s.reinsert(h.from, h.resources)
	}
	return n
}
