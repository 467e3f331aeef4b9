// Package stop defines the stop catalogue: immutable reference data for every
// stop of the network and the lines serving it.
package stop

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/btree"
)

// Stop is a single record of the stop catalogue.
// Coordinates are kept as text, the way the open data feed ships them.
type Stop struct {
	ID    string     `json:"id"`
	GID   string     `json:"gid,omitempty"` // global id (DHID)
	Name  string     `json:"name"`
	Place string     `json:"place"`
	X     string     `json:"x"` // longitude
	Y     string     `json:"y"` // latitude
	Lines []StopLine `json:"Lines"`
}

// StopLine is a line serving a stop, as listed in the catalogue.
type StopLine struct {
	TripID   string `json:"TripID"`
	LineNr   string `json:"LineNr"`
	Vehicle  string `json:"Vehicle"`
	Operator string `json:"Operator"`
	Route    string `json:"Route"`
}

// ErrNoCoordinates is returned when a stop has empty or unparsable coordinates.
var ErrNoCoordinates = errors.New("stop has no usable coordinates")

// ErrUnknownStop is returned when a stop id is not in the catalogue.
var ErrUnknownStop = errors.New("stop not in catalogue")

// ParseCoord parses a text-encoded coordinate component.
func ParseCoord(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrNoCoordinates
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNoCoordinates, s)
	}
	return v, nil
}

// Coordinates returns the stop position as [x, y] (longitude, latitude).
func (s Stop) Coordinates() ([2]float64, error) {
	x, err := ParseCoord(s.X)
	if err != nil {
		return [2]float64{}, fmt.Errorf("stop %s x: %w", s.ID, err)
	}
	y, err := ParseCoord(s.Y)
	if err != nil {
		return [2]float64{}, fmt.Errorf("stop %s y: %w", s.ID, err)
	}
	return [2]float64{x, y}, nil
}

// HasCoordinates reports whether both coordinate components parse.
func (s Stop) HasCoordinates() bool {
	_, err := s.Coordinates()
	return err == nil
}

// Catalog is a read-only index of stops by id.
// Iteration is ordered by stop id.
type Catalog struct {
	byID btree.Map[string, Stop]
}

// NewCatalog indexes the given stops. Later duplicates of an id are ignored,
// matching a first-match lookup over the raw list.
func NewCatalog(stops []Stop) *Catalog {
	c := &Catalog{}
	for _, s := range stops {
		if _, exists := c.byID.Get(s.ID); exists {
			continue
		}
		c.byID.Set(s.ID, s)
	}
	return c
}

// Lookup returns the stop with the given id.
func (c *Catalog) Lookup(id string) (Stop, bool) {
	if c == nil {
		return Stop{}, false
	}
	return c.byID.Get(id)
}

// Coordinates returns the [x, y] position of the stop with the given id.
func (c *Catalog) Coordinates(id string) ([2]float64, error) {
	s, ok := c.Lookup(id)
	if !ok {
		return [2]float64{}, fmt.Errorf("%w: %s", ErrUnknownStop, id)
	}
	return s.Coordinates()
}

// Len returns the number of indexed stops.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return c.byID.Len()
}

// Stops returns all stops ordered by id.
func (c *Catalog) Stops() []Stop {
	if c == nil {
		return nil
	}
	out := make([]Stop, 0, c.byID.Len())
	c.byID.Scan(func(_ string, s Stop) bool {
		out = append(out, s)
		return true
	})
	return out
}

// RetrieveStops returns the catalogue entries for the given stop ids that
// carry coordinates, in the order of ids. Unknown ids are skipped.
func (c *Catalog) RetrieveStops(ids []string) []Stop {
	var out []Stop
	for _, id := range ids {
		s, ok := c.Lookup(id)
		if !ok || !s.HasCoordinates() {
			continue
		}
		out = append(out, s)
	}
	return out
}
