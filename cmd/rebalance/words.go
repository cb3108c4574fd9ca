package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/gobwas/placement"
)

// readWords reads at most n distinct words from the file at path, one per
// line. Anything after a '/' on a line is ignored (dictionary affix flags).
func readWords(path string, n int) ([]placement.Resource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open words file: %w", err)
	}
	defer f.Close()

	var (
		ret  []placement.Resource
		seen = make(map[string]bool)
	)
	sc := bufio.NewScanner(f)
	for sc.Scan() && len(ret) < n {
		w, _, _ := strings.Cut(sc.Text(), "/")
		w = strings.TrimSpace(w)
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		ret = append(ret, placement.Resource(w))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read words file: %w", err)
	}
	return ret, nil
}
