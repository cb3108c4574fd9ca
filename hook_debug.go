//go:build placement_debug

package placement

import (
	"fmt"
	"log"
	"strings"

	"github.com/gobwas/avl"
)

const debug = true

func assertNotExists(tree avl.Tree, p *point) {
	if x := tree.Search(p); x != nil && x.(*point) == p {
		// NOTE: x could be another point collided with p.
		panic("placement: internal error: point must not exist on the ring")
	}
}

// s.mu must be held.
func assertInvariants(s *Store) {
	if err := s.verify(); err != nil {
		panic(fmt.Sprintf("placement: internal error: %v", err))
	}
}

func setupStoreTrace(s *Store) {
	log.SetFlags(0)

	var depth int
	enter := func() {
		depth++
		log.SetPrefix(strings.Repeat(" ", depth*4))
	}
	leave := func() {
		depth--
		log.SetPrefix(strings.Repeat(" ", depth*4))
	}
	done := func(op string) func(int, error) {
		return func(migrated int, err error) {
			leave()
			if err != nil {
				log.Printf("%s failed: %v", op, err)
				return
			}
			log.Printf("%s done: %d migrated", op, migrated)
		}
	}
	s.trace = s.trace.Compose(StoreTrace{
		OnAddNode: func(name string) func(int, error) {
			log.Println("adding node:", name)
			enter()
			return done("add")
		},
		OnRemoveNode: func(name string) func(int, error) {
			log.Println("removing node:", name)
			enter()
			return done("remove")
		},
		OnMigrate: func(r Resource, from, to string) {
			log.Printf("migrate %q: %s -> %s", string(r), from, to)
		},
		OnReject: func(op string, err error) {
			log.Printf("%s rejected: %v", op, err)
		},
	})
}
