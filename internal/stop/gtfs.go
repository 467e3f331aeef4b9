package stop

import (
	"fmt"
	"os"
	"strconv"

	"github.com/jamespfennell/gtfs"
)

// LoadGTFS reads a GTFS static feed archive and derives a stop catalogue from it.
func LoadGTFS(path string) ([]Stop, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading GTFS feed: %w", err)
	}
	static, err := gtfs.ParseStatic(b, gtfs.ParseStaticOptions{})
	if err != nil {
		return nil, fmt.Errorf("parsing GTFS feed: %w", err)
	}
	return FromGTFS(static), nil
}

// FromGTFS derives catalogue records from a parsed GTFS feed.
// Platforms are folded into their root station, and every route with a trip
// calling at the station becomes one StopLine keyed by the route id.
func FromGTFS(static *gtfs.Static) []Stop {
	if static == nil {
		return nil
	}

	byID := make(map[string]*Stop)
	var order []string
	seenLine := make(map[string]map[string]bool)

	ensure := func(gs *gtfs.Stop) *Stop {
		root := gs.Root()
		if s, ok := byID[root.Id]; ok {
			return s
		}
		s := &Stop{ID: root.Id, Name: root.Name, Place: root.Description}
		if root.Longitude != nil && root.Latitude != nil {
			s.X = strconv.FormatFloat(*root.Longitude, 'f', -1, 64)
			s.Y = strconv.FormatFloat(*root.Latitude, 'f', -1, 64)
		}
		byID[root.Id] = s
		order = append(order, root.Id)
		seenLine[root.Id] = make(map[string]bool)
		return s
	}

	for i := range static.Stops {
		ensure(&static.Stops[i])
	}

	for _, trip := range static.Trips {
		if trip.Route == nil {
			continue
		}
		sl := routeToStopLine(trip.Route)
		for _, st := range trip.StopTimes {
			if st.Stop == nil {
				continue
			}
			s := ensure(st.Stop)
			if seenLine[s.ID][sl.TripID] {
				continue
			}
			seenLine[s.ID][sl.TripID] = true
			s.Lines = append(s.Lines, sl)
		}
	}

	out := make([]Stop, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

func routeToStopLine(r *gtfs.Route) StopLine {
	sl := StopLine{
		TripID:  r.Id,
		LineNr:  r.ShortName,
		Vehicle: fmt.Sprint(r.Type),
		Route:   r.LongName,
	}
	if sl.LineNr == "" {
		sl.LineNr = r.LongName
	}
	if r.Agency != nil {
		sl.Operator = r.Agency.Name
	}
	return sl
}
