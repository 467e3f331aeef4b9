// Package geo projects the network graph and the stop catalogue to GeoJSON.
package geo

import (
	"errors"
	"fmt"

	"github.com/vvo-tools/vvograph/internal/graph"
	"github.com/vvo-tools/vvograph/internal/stop"
)

// GeoJSON object types.
const (
	TypeFeatureCollection = "FeatureCollection"
	TypeFeature           = "Feature"
	TypePoint             = "Point"
	TypeLineString        = "LineString"
)

// FeatureCollection is a GeoJSON feature collection.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is a GeoJSON feature. Geometry holds a PointGeometry or a
// LineStringGeometry; Properties holds StopProps or EdgeProps.
type Feature struct {
	Type       string `json:"type"`
	ID         string `json:"id,omitempty"`
	Properties any    `json:"properties"`
	Geometry   any    `json:"geometry"`
}

// PointGeometry is a [lon, lat] position.
type PointGeometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

// LineStringGeometry is a sequence of [lon, lat] positions.
type LineStringGeometry struct {
	Type        string       `json:"type"`
	Coordinates [][2]float64 `json:"coordinates"`
}

// StopProps are the properties of a stop feature.
type StopProps struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Place string `json:"place,omitempty"`
}

// EdgeProps are the properties of an edge feature.
type EdgeProps struct {
	ID      string   `json:"id"`
	TripIDs []string `json:"tripIds"`
	Lines   []string `json:"lines"`
	Time    int      `json:"time"`
}

// FeatureError reports an edge that could not be located.
type FeatureError struct {
	EdgeID string
	StopID string
	Err    error
}

func (e *FeatureError) Error() string {
	return fmt.Sprintf("edge %s: stop %s: %v", e.EdgeID, e.StopID, e.Err)
}

func (e *FeatureError) Unwrap() error {
	return e.Err
}

// Count returns the number of point and line string features.
func (fc *FeatureCollection) Count() (points, lines int) {
	for _, f := range fc.Features {
		switch f.Geometry.(type) {
		case PointGeometry:
			points++
		case LineStringGeometry:
			lines++
		}
	}
	return points, lines
}

// NewFeatureCollection returns an empty collection.
func NewFeatureCollection() *FeatureCollection {
	return &FeatureCollection{Type: TypeFeatureCollection, Features: []Feature{}}
}

// Point builds a point feature.
func Point(id string, coords [2]float64, props any) Feature {
	return Feature{
		Type:       TypeFeature,
		ID:         id,
		Properties: props,
		Geometry:   PointGeometry{Type: TypePoint, Coordinates: coords},
	}
}

// LineString builds a line string feature.
func LineString(id string, coords [][2]float64, props any) Feature {
	return Feature{
		Type:       TypeFeature,
		ID:         id,
		Properties: props,
		Geometry:   LineStringGeometry{Type: TypeLineString, Coordinates: coords},
	}
}

// Project converts nodes to points at their stored position and edges to
// two-point line strings between the catalogue positions of their endpoints.
//
// Unlocated nodes get no point. Edges with an endpoint that cannot be located
// are left out. Each of them
// yields a *FeatureError; the errors are joined and returned together with
// the collection of every feature that could be built.
func Project(g *graph.Graph, catalog *stop.Catalog) (*FeatureCollection, error) {
	fc := NewFeatureCollection()

	for _, n := range g.Nodes() {
		if n.Metadata.Unlocated {
			continue
		}
		fc.Features = append(fc.Features, Point(n.ID,
			[2]float64{n.Metadata.X, n.Metadata.Y},
			StopProps{ID: n.ID, Name: n.Label}))
	}

	var errs []error
	for _, e := range g.Edges() {
		from, err := catalog.Coordinates(e.Source)
		if err != nil {
			errs = append(errs, &FeatureError{EdgeID: e.ID, StopID: e.Source, Err: err})
			continue
		}
		to, err := catalog.Coordinates(e.Target)
		if err != nil {
			errs = append(errs, &FeatureError{EdgeID: e.ID, StopID: e.Target, Err: err})
			continue
		}
		fc.Features = append(fc.Features, LineString(e.ID,
			[][2]float64{from, to},
			EdgeProps{
				ID:      e.ID,
				TripIDs: e.Metadata.TripIDs,
				Lines:   e.Metadata.Lines,
				Time:    e.Metadata.Time,
			}))
	}

	return fc, errors.Join(errs...)
}

// ProjectStops returns a point for every stop that has coordinates.
func ProjectStops(stops []stop.Stop) *FeatureCollection {
	fc := NewFeatureCollection()
	for _, s := range stops {
		coords, err := s.Coordinates()
		if err != nil {
			continue
		}
		fc.Features = append(fc.Features, Point(s.ID, coords,
			StopProps{ID: s.ID, Name: s.Name, Place: s.Place}))
	}
	return fc
}

// FeatureErrors extracts the per-edge errors from an error returned by Project.
func FeatureErrors(err error) []*FeatureError {
	if err == nil {
		return nil
	}
	var out []*FeatureError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, FeatureErrors(e)...)
		}
		return out
	}
	var fe *FeatureError
	if errors.As(err, &fe) {
		out = append(out, fe)
	}
	return out
}
