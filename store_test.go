package placement

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gobwas/placement/internal/logging"
)

type migration struct {
	resource Resource
	from, to string
}

// recorder collects migrations and rejections reported by a Store.
type recorder struct {
	mu         sync.Mutex
	migrations []migration
	rejected   []string
}

func (r *recorder) trace() StoreTrace {
	return StoreTrace{
		OnMigrate: func(res Resource, from, to string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.migrations = append(r.migrations, migration{res, from, to})
		},
		OnReject: func(op string, err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.rejected = append(r.rejected, op)
		},
	}
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.migrations = nil
	r.rejected = nil
}

func snapshot(s *Store) map[string][]Resource {
	ret := make(map[string][]Resource)
	for _, name := range s.Nodes() {
		ret[name] = s.Resources(name)
	}
	return ret
}

func fillStore(t testing.TB, s *Store, n int) {
	for i := 0; i < n; i++ {
		require.NoError(t, s.AddResource(Resource("resource-"+strconv.Itoa(i))))
	}
}

func newTestStore(t testing.TB, p Policy, nodes ...string) (*Store, *recorder) {
	rec := new(recorder)
	s := New(p,
		WithLogger(logging.NewTest(t)),
		WithTrace(rec.trace()),
	)
	for _, name := range nodes {
		_, err := s.AddNode(name)
		require.NoError(t, err)
	}
	return s, rec
}

func policies() map[string]func() Policy {
	return map[string]func() Policy{
		"ring":    func() Policy { return &RingPolicy{} },
		"ring/16": func() Policy { return &RingPolicy{Replicas: 16} },
		"modulus": func() Policy { return &ModPolicy{} },
	}
}

func TestStoreInvariants(t *testing.T) {
	for name, newPolicy := range policies() {
		t.Run(name, func(t *testing.T) {
			s, _ := newTestStore(t, newPolicy(), "A", "B", "C")
			fillStore(t, s, 100)

			check := func() {
				t.Helper()
				require.NoError(t, s.Verify())
				assert.Equal(t, 100, s.Len())

				var total int
				seen := make(map[Resource]string)
				for node, rs := range snapshot(s) {
					for _, r := range rs {
						prev, dup := seen[r]
						require.False(t, dup, "%q is on %q and %q", r, prev, node)
						seen[r] = node
						total++

						owner, ok := s.Owner(r)
						require.True(t, ok)
						assert.Equal(t, node, owner)
					}
				}
				assert.Equal(t, 100, total)
			}
			check()

			for _, step := range []struct {
				add  bool
				node string
			}{
				{false, "A"},
				{true, "D"},
				{true, "A"},
				{false, "B"},
				{false, "C"},
				{true, "E"},
				{false, "D"},
			} {
				var err error
				if step.add {
					_, err = s.AddNode(step.node)
				} else {
					_, err = s.RemoveNode(step.node)
				}
				require.NoError(t, err)
				check()
				assert.ElementsMatch(t, s.Policy().Nodes(), s.Nodes())
			}
		})
	}
}

func TestStoreRingRemoveNode(t *testing.T) {
	s, rec := newTestStore(t, &RingPolicy{}, "A", "B", "C")
	fillStore(t, s, 100)

	before := snapshot(s)
	rec.reset()

	migrated, err := s.RemoveNode("A")
	require.NoError(t, err)
	assert.Equal(t, len(before["A"]), migrated)
	assert.Len(t, rec.migrations, migrated)
	for _, m := range rec.migrations {
		assert.Equal(t, "A", m.from)
	}

	after := snapshot(s)
	assert.NotContains(t, after, "A")
	for _, name := range []string{"B", "C"} {
		// Resources already held keep their relative order.
		assert.Equal(t, before[name], after[name][:len(before[name])])
	}
	assert.Equal(t, 100, s.Len())
	require.NoError(t, s.Verify())

	rec.reset()
	nb := s.Policy().(Neighborhood).Neighbors("A")
	require.Len(t, nb, 1)

	migrated, err = s.AddNode("A")
	require.NoError(t, err)
	assert.Len(t, rec.migrations, migrated)
	assert.Len(t, s.Resources("A"), migrated)
	for _, m := range rec.migrations {
		assert.Equal(t, "A", m.to)
		assert.Equal(t, nb[0], m.from)
	}
	assert.Equal(t, before, snapshot(s))
}

func TestStoreRingLocality(t *testing.T) {
	for _, replicas := range []int{1, 8} {
		t.Run(strconv.Itoa(replicas), func(t *testing.T) {
			p := &RingPolicy{Replicas: replicas}
			s, rec := newTestStore(t, p, "A", "B", "C")
			fillStore(t, s, 200)

			nb := p.Neighbors("D")
			isNeighbor := make(map[string]bool)
			for _, n := range nb {
				isNeighbor[n] = true
			}
			before := snapshot(s)
			rec.reset()

			migrated, err := s.AddNode("D")
			require.NoError(t, err)
			require.NoError(t, s.Verify())
			assert.Len(t, rec.migrations, migrated)

			after := snapshot(s)
			for name, rs := range before {
				if !isNeighbor[name] {
					assert.Equal(t, rs, after[name], "non-neighbor %q changed", name)
					continue
				}
				// Neighbors only lose resources, keeping the order of the rest.
				var kept []Resource
				for _, r := range rs {
					if owner, _ := s.Owner(r); owner == name {
						kept = append(kept, r)
					}
				}
				assert.Equal(t, kept, after[name])
			}
			for _, m := range rec.migrations {
				assert.Equal(t, "D", m.to)
				assert.True(t, isNeighbor[m.from], "%q is not a neighbor", m.from)
			}
		})
	}
}

func TestStoreModulusFullRehash(t *testing.T) {
	s, rec := newTestStore(t, &ModPolicy{}, "A", "B", "C")
	fillStore(t, s, 100)
	rec.reset()

	migrated, err := s.AddNode("D")
	require.NoError(t, err)
	assert.Equal(t, 100, migrated)
	assert.Len(t, rec.migrations, 100)

	migrated, err = s.RemoveNode("B")
	require.NoError(t, err)
	assert.Equal(t, 100, migrated)

	assert.Equal(t, []string{"A", "C", "D"}, s.Nodes())
	assert.Equal(t, 100, s.Len())
	require.NoError(t, s.Verify())
}

func TestStoreNoopOperations(t *testing.T) {
	for name, newPolicy := range policies() {
		t.Run(name, func(t *testing.T) {
			s, rec := newTestStore(t, newPolicy(), "A", "B")
			fillStore(t, s, 50)
			before := snapshot(s)
			rec.reset()

			migrated, err := s.RemoveNode("X")
			assert.ErrorIs(t, err, ErrUnknownNode)
			assert.Zero(t, migrated)

			migrated, err = s.AddNode("A")
			assert.ErrorIs(t, err, ErrDuplicateNode)
			assert.Zero(t, migrated)

			assert.Equal(t, before, snapshot(s))
			assert.Empty(t, rec.migrations)
			assert.Equal(t, []string{"remove_node", "add_node"}, rec.rejected)
			require.NoError(t, s.Verify())
		})
	}
}

func TestStoreAddResourceNoNodes(t *testing.T) {
	for name, newPolicy := range policies() {
		t.Run(name, func(t *testing.T) {
			s, rec := newTestStore(t, newPolicy())

			err := s.AddResource("foo")
			assert.ErrorIs(t, err, ErrNoNodesAvailable)
			assert.Zero(t, s.Len())
			_, has := s.Owner("foo")
			assert.False(t, has)
			assert.Equal(t, []string{"add_resource"}, rec.rejected)

			_, err = s.AddNode("A")
			require.NoError(t, err)
			require.NoError(t, s.AddResource("foo"))
			assert.Equal(t, []Resource{"foo"}, s.Resources("A"))
		})
	}
}

func TestStoreAddResourceDuplicate(t *testing.T) {
	s, _ := newTestStore(t, &RingPolicy{}, "A", "B")
	require.NoError(t, s.AddResource("foo"))
	assert.ErrorIs(t, s.AddResource("foo"), ErrDuplicateResource)
	assert.Equal(t, 1, s.Len())
	require.NoError(t, s.Verify())
}

func TestStoreRemoveLastNode(t *testing.T) {
	for name, newPolicy := range policies() {
		t.Run(name, func(t *testing.T) {
			s, _ := newTestStore(t, newPolicy(), "A")
			require.NoError(t, s.AddResource("foo"))

			migrated, err := s.RemoveNode("A")
			assert.ErrorIs(t, err, ErrNoNodesAvailable)
			assert.Zero(t, migrated)
			assert.Equal(t, []string{"A"}, s.Nodes())
			assert.Equal(t, []Resource{"foo"}, s.Resources("A"))
			require.NoError(t, s.Verify())

			e, _ := newTestStore(t, newPolicy(), "A")
			migrated, err = e.RemoveNode("A")
			require.NoError(t, err)
			assert.Zero(t, migrated)
			assert.Empty(t, e.Nodes())
		})
	}
}

func TestStoreRemoveNodeMovesToRest(t *testing.T) {
	for name, newPolicy := range policies() {
		t.Run(name, func(t *testing.T) {
			s, _ := newTestStore(t, newPolicy(), "A", "B")
			fillStore(t, s, 20)

			_, err := s.RemoveNode("A")
			require.NoError(t, err)
			assert.Len(t, s.Resources("B"), 20)
			assert.Nil(t, s.Resources("A"))
		})
	}
}

func TestStoreAdoptsPolicyNodes(t *testing.T) {
	p := new(ModPolicy)
	require.NoError(t, p.AddNode("A"))
	require.NoError(t, p.AddNode("B"))

	s := New(p)
	assert.Equal(t, []string{"A", "B"}, s.Nodes())
	fillStore(t, s, 10)
	assert.Len(t, append(s.Resources("A"), s.Resources("B")...), 10)
	require.NoError(t, s.Verify())
}

func TestStoreVerifyDetectsDesync(t *testing.T) {
	p := new(ModPolicy)
	s, _ := newTestStore(t, p, "A", "B")
	fillStore(t, s, 10)
	require.NoError(t, s.Verify())

	require.NoError(t, p.RemoveNode("B"))
	assert.Error(t, s.Verify())
}

func TestStoreTraceCompose(t *testing.T) {
	var calls []string
	hook := func(id string) StoreTrace {
		return StoreTrace{
			OnAddNode: func(name string) func(int, error) {
				calls = append(calls, id+" add "+name)
				return func(migrated int, err error) {
					calls = append(calls, fmt.Sprintf("%s added %s %d %v", id, name, migrated, err))
				}
			},
			OnRemoveNode: func(name string) func(int, error) {
				calls = append(calls, id+" remove "+name)
				return nil
			},
		}
	}
	s := New(&ModPolicy{}, WithTrace(hook("1")), WithTrace(hook("2")))
	_, err := s.AddNode("A")
	require.NoError(t, err)
	_, err = s.RemoveNode("B")
	require.Error(t, err)

	assert.Equal(t, []string{
		"1 add A",
		"2 add A",
		"1 added A 0 <nil>",
		"2 added A 0 <nil>",
		"1 remove B",
		"2 remove B",
	}, calls)
}

func TestStoreDump(t *testing.T) {
	s, _ := newTestStore(t, &ModPolicy{}, "A")
	require.NoError(t, s.AddResource("foo"))
	require.NoError(t, s.AddResource("bar"))

	var sb strings.Builder
	require.NoError(t, s.Dump(&sb))
	assert.Equal(t, ""+
		"===== STORE =====\n"+
		"Using scheme: Modular_Hash\n"+
		"modulus: 1\n"+
		"  0: A\n"+
		"[A (2 items)]\n"+
		"    - foo\n"+
		"    - bar\n",
		sb.String(),
	)
}

func TestStoreConcurrentAddResource(t *testing.T) {
	for name, newPolicy := range policies() {
		t.Run(name, func(t *testing.T) {
			s, _ := newTestStore(t, newPolicy(), "A", "B", "C")

			const (
				workers = 8
				each    = 100
			)
			var wg sync.WaitGroup
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					for j := 0; j < each; j++ {
						assert.NoError(t, s.AddResource(Resource(fmt.Sprintf("%d-%d", i, j))))
					}
				}(i)
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.AddNode("D")
				assert.NoError(t, err)
			}()
			wg.Wait()

			assert.Equal(t, workers*each, s.Len())
			require.NoError(t, s.Verify())
		})
	}
}

func TestStoreDebugAssertions(t *testing.T) {
	// Skip if no `-tags placement_debug` was given.
	if !debug {
		t.Skip("no placement_debug buildtag")
	}
	p := new(ModPolicy)
	s, _ := newTestStore(t, p, "A", "B")
	fillStore(t, s, 10)

	require.NoError(t, p.RemoveNode("B"))
	assert.Panics(t, func() {
		_ = s.AddResource("foo")
	})
}
