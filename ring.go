package placement

import (
	"container/list"
	"fmt"
	"hash"
	"io"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/gobwas/avl"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// RingPolicyName is the name reported by RingPolicy.
const RingPolicyName = "Consistent_Hash"

// DefaultReplicas is the number of points a node gets on the ring when
// RingPolicy.Replicas is zero.
const DefaultReplicas = 1

// RingPolicy is a consistent hashing placement policy.
// A key belongs to the node owning the first point clockwise from the key's
// digest. Adding or removing a node only changes ownership of the arcs next to
// that node's points.
//
// It is goroutine safe. RingPolicy instances must not be copied.
// The zero value for RingPolicy is an empty ring ready to use.
type RingPolicy struct {
	// Hash is an optional function used to build up a new 64-bit hash function
	// for digests of keys and node points. xxhash is used if Hash is nil.
	Hash func() hash.Hash64

	// Replicas is an optional number of points placed on the ring per node.
	// The more points, the more even the distribution of keys and the more
	// neighbors are affected by a membership change. It must not be changed
	// after the first node is added.
	//
	// If Replicas is zero, then the DefaultReplicas is used.
	Replicas int

	hashPool sync.Pool

	// mu serializes membership changes.
	mu sync.Mutex

	// members is protected by mu.
	members map[string]*member

	// collisions is a mapping of a collided point value to a tree of all
	// points having that value in their generations.
	// It is protected by mu.
	collisions map[uint64]avl.Tree // tree<collision>

	// fix holds points which must move to their next generation.
	// It's filled only during ring mutation and drained in the end of it.
	// It is protected by mu.
	fix list.List // list<*point>

	// ringMu serializes read & write operations on the ring tree.
	ringMu sync.RWMutex

	// ring is a tree holding node points.
	// Mutated versions of the tree are prepared while mu is held and then
	// swapped in under ringMu.
	ring avl.Tree // tree<*point>
}

var (
	_ Policy       = (*RingPolicy)(nil)
	_ Neighborhood = (*RingPolicy)(nil)
)

// Name implements Policy.
func (r *RingPolicy) Name() string {
	return RingPolicyName
}

// AddNode puts node with given name onto the ring.
// It returns ErrDuplicateNode when the node is already there.
func (r *RingPolicy) AddNode(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, has := r.members[name]; has {
		return ErrDuplicateNode
	}
	if r.members == nil {
		r.members = make(map[string]*member)
	}
	r.members[name] = &member{
		id:   r.digest(name),
		name: name,
	}
	r.rebuild()

	return nil
}

// RemoveNode removes node with given name from the ring.
// It returns ErrUnknownNode when there is no such node.
func (r *RingPolicy) RemoveNode(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, has := r.members[name]
	if !has {
		return ErrUnknownNode
	}
	m.removed = true
	r.rebuild()

	return nil
}

// Locate returns the name of the node owning key.
// It returns false only when the ring is empty.
func (r *RingPolicy) Locate(key string) (string, bool) {
	d := r.digest(key)

	r.ringMu.RLock()
	p := r.successor(d)
	r.ringMu.RUnlock()

	if p == nil {
		return "", false
	}
	return p.node.name, true
}

// Nodes returns names of the nodes on the ring in lexical order.
func (r *RingPolicy) Nodes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := maps.Keys(r.members)
	slices.Sort(names)
	return names
}

// Has reports whether node with given name is on the ring.
func (r *RingPolicy) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, has := r.members[name]
	return has
}

// Neighbors implements Neighborhood.
//
// For a node which is not on the ring it returns the owners of the positions
// the node's points would take. For a node on the ring it returns nodes whose
// points are tied to the node's points through collisions; their ownership
// changes too when the node leaves. If a position collides, all other nodes
// are returned.
func (r *RingPolicy) Neighbors(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ringMu.RLock()
	defer r.ringMu.RUnlock()

	if r.ring.Size() == 0 {
		return nil
	}
	if m, has := r.members[name]; has {
		for _, p := range m.points {
			if p.generation() > 0 {
				return r.others(name)
			}
		}
		return nil
	}
	seen := make(map[string]bool)
	for i := 0; i < r.replicas(); i++ {
		v := r.digest(name, encodeSuffix(0, i)...)
		if r.ring.Search(search(v)) != nil || r.collisions[v].Size() != 0 {
			return r.others(name)
		}
		seen[r.successor(v).node.name] = true
	}
	names := maps.Keys(seen)
	slices.Sort(names)
	return names
}

// Dump writes ring points in clockwise order.
func (r *RingPolicy) Dump(w io.Writer) (err error) {
	r.ringMu.RLock()
	defer r.ringMu.RUnlock()

	_, err = fmt.Fprintf(w, "ring: %d points (%d per node)\n", r.ring.Size(), r.replicas())
	r.ring.InOrder(func(x avl.Item) bool {
		if err != nil {
			return false
		}
		p := x.(*point)
		_, err = fmt.Fprintf(w, "  %020d %s[%d]\n", p.val, p.node.name, p.index)
		return true
	})
	return err
}

// r.mu must be held.
func (r *RingPolicy) others(name string) []string {
	names := make([]string, 0, len(r.members))
	for n := range r.members {
		if n != name {
			names = append(names, n)
		}
	}
	slices.Sort(names)
	return names
}

// r.ringMu must be held.
func (r *RingPolicy) successor(d uint64) *point {
	item := r.ring.Successor(search(d))
	if item == nil {
		item = r.ring.Min()
	}
	if item == nil {
		return nil
	}
	return item.(*point)
}

func (r *RingPolicy) replicas() int {
	if n := r.Replicas; n > 0 {
		return n
	}
	return DefaultReplicas
}

func (r *RingPolicy) digest(key string, suffix ...byte) uint64 {
	h, _ := r.hashPool.Get().(hash.Hash64)
	if h == nil {
		if r.Hash != nil {
			h = r.Hash()
		} else {
			h = xxhash.New()
		}
	}
	defer func() {
		h.Reset()
		r.hashPool.Put(h)
	}()

	_, err := io.WriteString(h, key)
	if err == nil {
		_, err = h.Write(suffix)
	}
	if err != nil {
		panic(fmt.Sprintf("placement: digest error: %v", err))
	}
	return h.Sum64()
}

// r.mu must be held.
func (r *RingPolicy) insertPoint(tree avl.Tree, p *point) (_ avl.Tree, inserted bool) {
	if c := r.collisions[p.val]; c.Size() != 0 {
		r.collisions[p.val] = mustInsertTree(c, collision{p})
		r.fix.PushBack(p)
		return tree, false
	}
	tree, existing := tree.Insert(p)
	if existing == nil {
		return tree, true
	}
	// Both points leave the ring until they get distinct values.
	d := existing.(*point)
	tree, existed := tree.Delete(d)
	if existed == nil {
		panic("placement: internal error: colliding point vanished")
	}
	if r.collisions == nil {
		r.collisions = make(map[uint64]avl.Tree)
	}
	c := r.collisions[p.val]
	c = mustInsertTree(c, collision{p})
	c = mustInsertTree(c, collision{d})
	r.collisions[p.val] = c

	assertNotExists(tree, d)
	assertNotExists(tree, p)
	r.fix.PushBack(d)
	r.fix.PushBack(p)

	return tree, false
}

// r.mu must be held.
func (r *RingPolicy) deletePoint(tree avl.Tree, p *point) (_ avl.Tree, removed bool) {
	var item avl.Item
	tree, item = tree.Delete(p)
	if item == nil {
		return tree, false
	}
	var (
		toDelete list.List
		toInsert list.List
	)
	for {
		for p.generation() > 0 {
			p.rewind()

			c, has := r.collisions[p.val]
			if !has {
				// Twin is being processed; its collisions are gone already.
				continue
			}
			c = mustDeleteTree(c, collision{p})
			if c.Size() > 1 {
				r.collisions[p.val] = c
				continue
			}
			delete(r.collisions, p.val)

			// The last twin has no reason to stay at its later generation.
			twin := c.Min().(collision).point
			var existed avl.Item
			tree, existed = tree.Delete(twin)
			if existed != nil {
				toDelete.PushBack(twin)
				toInsert.PushBack(twin)
			}
		}
		if toDelete.Len() == 0 {
			break
		}
		p = toDelete.Remove(toDelete.Front()).(*point)
	}
	for el := toInsert.Front(); el != nil; el = toInsert.Front() {
		p := toInsert.Remove(el).(*point)
		tree, _ = r.insertPoint(tree, p)
	}

	return tree, true
}

// r.mu must be held.
func (r *RingPolicy) rebuild() {
	n := r.replicas()

	r.ringMu.RLock()
	root := r.ring
	r.ringMu.RUnlock()

	for {
		for name, m := range r.members {
			size := n
			if m.removed {
				size = 0
			}
			for i := len(m.points); i > size; i-- {
				p := m.points[i-1]
				m.points = m.points[:i-1]
				root, _ = r.deletePoint(root, p)
			}
			for i := len(m.points); i < size; i++ {
				v := r.digest(m.name, encodeSuffix(0, i)...)
				p := newPoint(m, i, v)
				m.points = append(m.points, p)
				root, _ = r.insertPoint(root, p)
			}
			if m.removed {
				delete(r.members, name)
			}
		}
		for el := r.fix.Front(); el != nil; el = r.fix.Front() {
			p := r.fix.Remove(el).(*point)
			assertNotExists(root, p)

			g := p.generation()
			v := r.digest(p.node.name, encodeSuffix(g+1, p.index)...)
			p.proceed(v)
			root, _ = r.insertPoint(root, p)
		}
		if r.fix.Len() == 0 {
			break
		}
	}

	r.ringMu.Lock()
	r.ring = root
	r.ringMu.Unlock()
}

func mustInsertTree(tree avl.Tree, x avl.Item) avl.Tree {
	tree, existing := tree.Insert(x)
	if existing != nil {
		panic("placement: internal error: mustInsert failed")
	}
	return tree
}

func mustDeleteTree(tree avl.Tree, x avl.Item) avl.Tree {
	tree, existed := tree.Delete(x)
	if existed == nil {
		panic("placement: internal error: mustDelete failed")
	}
	return tree
}
