package placement

import (
	"fmt"
	"io"
	"sync"

	"github.com/zeebo/xxh3"
	"golang.org/x/exp/slices"
)

// ModPolicyName is the name reported by ModPolicy.
const ModPolicyName = "Modular_Hash"

// ModPolicy places a key on the node with ordinal hash(key) mod N, where N is
// the number of registered nodes. Node ordinals follow registration order and
// are renumbered when a node leaves, so any membership change may move any
// key.
//
// It is goroutine safe. The zero value for ModPolicy is ready to use.
type ModPolicy struct {
	// Seed is an optional xxh3 seed. Zero means unseeded hashing.
	Seed uint64

	mu    sync.RWMutex
	nodes []string
}

var _ Policy = (*ModPolicy)(nil)

// Name implements Policy.
func (m *ModPolicy) Name() string {
	return ModPolicyName
}

// AddNode appends a node with the next ordinal.
func (m *ModPolicy) AddNode(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if slices.Contains(m.nodes, name) {
		return ErrDuplicateNode
	}
	m.nodes = append(m.nodes, name)
	return nil
}

// RemoveNode removes a node; nodes after it shift down by one ordinal.
func (m *ModPolicy) RemoveNode(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := slices.Index(m.nodes, name)
	if i == -1 {
		return ErrUnknownNode
	}
	m.nodes = slices.Delete(m.nodes, i, i+1)
	return nil
}

// Locate implements Policy.
func (m *ModPolicy) Locate(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := uint64(len(m.nodes))
	if n == 0 {
		return "", false
	}
	return m.nodes[m.hash(key)%n], true
}

// Nodes returns node names ordered by ordinal.
func (m *ModPolicy) Nodes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.nodes)
}

// Dump writes the modulus and the ordinal table.
func (m *ModPolicy) Dump(w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, err := fmt.Fprintf(w, "modulus: %d\n", len(m.nodes)); err != nil {
		return err
	}
	for i, name := range m.nodes {
		if _, err := fmt.Fprintf(w, "  %d: %s\n", i, name); err != nil {
			return err
		}
	}
	return nil
}

func (m *ModPolicy) hash(key string) uint64 {
	if m.Seed != 0 {
		return xxh3.HashStringSeed(key, m.Seed)
	}
	return xxh3.HashString(key)
}
