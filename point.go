package placement

import (
	"strings"

	"github.com/gobwas/avl"
)

// point is a position of a node on the ring.
// When it collides with a point of another node it moves to the next
// generation value; stack keeps the values it had before.
type point struct {
	node  *member
	index int

	val   uint64
	stack []uint64
}

func newPoint(m *member, i int, v uint64) *point {
	return &point{
		node:  m,
		index: i,
		val:   v,
	}
}

func (p *point) generation() int {
	return len(p.stack)
}

func (p *point) proceed(v uint64) {
	p.stack = append(p.stack, p.val)
	p.val = v
}

func (p *point) rewind() {
	n := len(p.stack)
	p.val = p.stack[n-1]
	p.stack = p.stack[:n-1]
}

func (p *point) Compare(x avl.Item) int {
	return compare(p.val, x.(*point).val)
}

// collision orders points sharing one ring value. The order does not depend
// on the value, so twins are resolved the same way regardless of which node
// was registered first.
type collision struct {
	*point
}

func (c collision) Compare(x avl.Item) int {
	p0 := c.point
	p1 := x.(collision).point
	if x := compare(p0.node.id, p1.node.id); x != 0 {
		return x
	}
	if x := strings.Compare(p0.node.name, p1.node.name); x != 0 {
		return x
	}
	return p0.index - p1.index
}

// member is a node registered on the ring.
type member struct {
	id      uint64
	name    string
	points  []*point
	removed bool
}

type search uint64

func (s search) Compare(x avl.Item) int {
	return compare(uint64(s), x.(*point).val)
}

func compare(x0, x1 uint64) int {
	if x0 < x1 {
		return -1
	}
	if x0 > x1 {
		return 1
	}
	return 0
}
