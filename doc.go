/*
Package placement simulates a sharded datastore: resources (records) are
assigned to nodes by a placement policy and migrated between nodes when nodes
join or leave.

The core type is Store. It owns the nodes and their resources and consults a
Policy to find out which node a resource belongs to. After every Store
operation each stored resource is held by exactly one node, the one the
policy locates it to.

Two policies are provided:

RingPolicy is a consistent hashing ring. A node joining or leaving changes
ownership only of the arcs next to its points, so Store moves only resources
of the neighbor nodes. RingPolicy handles hash collisions of node points the
same way regardless of insertion order.

ModPolicy maps a key to the node with ordinal hash(key) mod N. Any membership
change changes the divisor, so Store reinserts every stored resource. This
is intended: the number of migrations it reports is the cost of modulus
placement compared to the ring.

For more theory about consistent hashing please see this great document:
https://theory.stanford.edu/~tim/s16/l/l1.pdf
*/
package placement
