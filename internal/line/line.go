// Package line defines the line index derived from the stop catalogue.
package line

import (
	"slices"
	"sort"
	"strings"

	"github.com/vvo-tools/vvograph/internal/stop"
)

// Line is one trip identifier of the network and every stop it serves.
type Line struct {
	ID       string `json:"id"`       // trip id, e.g. "voe:11003: :H:j24"
	Name     string `json:"name"`     // line number, e.g. "3"
	Vehicle  string `json:"vehicle"`  // e.g. "Straßenbahn"
	Operator string `json:"operator"` // e.g. "DVB"
	Route    string `json:"route"`    // human readable route

	// Stops lists every stop where the line runs, including depot trips.
	// The order carries no meaning.
	Stops []string `json:"stops"`

	// Routes is reserved for concrete stop sequences and is not populated.
	Routes [][]string `json:"routes"`
}

// Collection maps trip ids to lines.
type Collection map[string]Line

// Extract derives the line index from the stop catalogue.
// The first stop listing a trip id provides the line attributes; stops are
// appended once each in catalogue order.
func Extract(stops []stop.Stop) Collection {
	lines := make(Collection)
	for _, s := range stops {
		for _, sl := range s.Lines {
			l, ok := lines[sl.TripID]
			if !ok {
				lines[sl.TripID] = Line{
					ID:       sl.TripID,
					Name:     sl.LineNr,
					Vehicle:  sl.Vehicle,
					Operator: sl.Operator,
					Route:    sl.Route,
					Stops:    []string{s.ID},
					Routes:   [][]string{},
				}
				continue
			}
			if !slices.Contains(l.Stops, s.ID) {
				l.Stops = append(l.Stops, s.ID)
				lines[sl.TripID] = l
			}
		}
	}
	return lines
}

// IDs returns the trip ids of the collection in sorted order.
func (c Collection) IDs() []string {
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Filter returns the lines whose id starts with any of the prefixes.
// A short prefix such as "voe" acts as a wildcard for a whole network.
// The receiver is not modified.
func Filter(c Collection, prefixes []string) Collection {
	out := make(Collection)
	for id, l := range c {
		for _, p := range prefixes {
			if strings.HasPrefix(l.ID, p) {
				out[id] = l
				break
			}
		}
	}
	return out
}
