package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// parseDays reads "1,2,5" or "1-3"; an empty list selects every scheduled day.
func parseDays(raw string, scheduled []int) ([]int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return scheduled, nil
	}
	seen := map[int]bool{}
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi := part, part
		if i := strings.IndexByte(part, '-'); i > 0 {
			lo, hi = part[:i], part[i+1:]
		}
		from, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("bad day %q", part)
		}
		to, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil || to < from {
			return nil, fmt.Errorf("bad day range %q", part)
		}
		for d := from; d <= to; d++ {
			if !seen[d] {
				seen[d] = true
				out = append(out, d)
			}
		}
	}
	sort.Ints(out)
	return out, nil
}
