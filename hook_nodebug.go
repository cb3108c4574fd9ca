//go:build !placement_debug

package placement

import (
	"github.com/gobwas/avl"
)

const debug = false

func assertNotExists(avl.Tree, *point) {}
func assertInvariants(*Store)          {}
func setupStoreTrace(*Store)           {}
