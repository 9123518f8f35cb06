package catalog

import (
	"strconv"
	"strings"
)

// Select resolves a comma-separated list of 1-based indices against networks.
//
// Blank, non-numeric and out-of-range entries are dropped silently. A network
// listed twice is kept once, at its first position. The result may be empty;
// callers decide whether that is fatal.
func Select(networks []Network, input string) []Network {
	seen := make(map[int]struct{})
	selected := make([]Network, 0, len(networks))

	for _, field := range strings.Split(input, ",") {
		idx, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || idx < 1 || idx > len(networks) {
			continue
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		selected = append(selected, networks[idx-1])
	}
	return selected
}
