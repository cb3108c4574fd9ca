package placement

import "golang.org/x/exp/slices"

// Resource is a record stored in one of the nodes.
// Its value is its identity and is used as a placement key.
type Resource string

func (r Resource) String() string {
	return string(r)
}

// node is a named container of resources assigned to it. Resources are kept
// in insertion order.
type node struct {
	name      string
	resources []Resource
}

func newNode(name string) *node {
	return &node{name: name}
}

func (n *node) push(r Resource) {
	n.resources = append(n.resources, r)
}

// remove deletes r preserving the order of the rest.
func (n *node) remove(r Resource) bool {
	i := slices.Index(n.resources, r)
	if i < 0 {
		return false
	}
	n.resources = slices.Delete(n.resources, i, i+1)
	return true
}

// list returns a copy of node resources.
func (n *node) list() []Resource {
	return slices.Clone(n.resources)
}

// drain returns node resources and empties the node.
func (n *node) drain() []Resource {
	rs := n.resources
	n.resources = nil
	return rs
}
