package line

import (
	"sort"
	"strings"
)

// Network summarizes the lines sharing a trip id prefix.
type Network struct {
	Prefix    string   `json:"prefix"`
	LineCount int      `json:"line_count"`
	Lines     []string `json:"lines"`
	Operators []string `json:"operators"`
	Vehicles  []string `json:"vehicles"`
}

// NetworkPrefix returns the network part of a trip id: everything before the
// first colon, or the whole id when it has none.
func NetworkPrefix(tripID string) string {
	if i := strings.IndexByte(tripID, ':'); i >= 0 {
		return tripID[:i]
	}
	return tripID
}

// Networks groups the collection by network prefix, sorted by prefix.
// The prefixes are valid filter values for Filter.
func Networks(c Collection) []Network {
	type acc struct {
		lines     map[string]bool
		operators map[string]bool
		vehicles  map[string]bool
		count     int
	}
	groups := make(map[string]*acc)

	for _, id := range c.IDs() {
		l := c[id]
		p := NetworkPrefix(l.ID)
		a, ok := groups[p]
		if !ok {
			a = &acc{lines: map[string]bool{}, operators: map[string]bool{}, vehicles: map[string]bool{}}
			groups[p] = a
		}
		a.count++
		addNonEmpty(a.lines, l.Name)
		addNonEmpty(a.operators, l.Operator)
		addNonEmpty(a.vehicles, l.Vehicle)
	}

	out := make([]Network, 0, len(groups))
	for p, a := range groups {
		out = append(out, Network{
			Prefix:    p,
			LineCount: a.count,
			Lines:     sortedKeys(a.lines),
			Operators: sortedKeys(a.operators),
			Vehicles:  sortedKeys(a.vehicles),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Prefix < out[j].Prefix })
	return out
}

func addNonEmpty(m map[string]bool, v string) {
	if v != "" {
		m[v] = true
	}
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
