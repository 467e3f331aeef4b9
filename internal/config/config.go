// Package config handles the data directory layout and global configuration.
package config

import (
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultDataDir   = "data"
	StopsFile        = "stops.json"
	LinesFile        = "lines.json"
	GraphFile        = "vvo-graph.json"
	CheckpointFile   = "vvo-graph-tmp.json"
	GeoJSONFile      = "vvo-graph.geojson"
	StopsGeoJSONFile = "vvo-stops.geojson"
	NetworksFile     = "networks.json"
	VizFile          = "vvo-graph.html"
	CacheDir         = "cache"
	DBFile           = "vvograph.db"
	LogDir           = "log"
)

// StopsPath returns the path to the cached stop catalogue.
func StopsPath(root string) string {
	return filepath.Join(root, StopsFile)
}

// LinesPath returns the path to the cached line index.
func LinesPath(root string) string {
	return filepath.Join(root, LinesFile)
}

// GraphPath returns the path to the graph document.
func GraphPath(root string) string {
	return filepath.Join(root, GraphFile)
}

// CheckpointPath returns the path to the build checkpoint.
func CheckpointPath(root string) string {
	return filepath.Join(root, CheckpointFile)
}

// GeoJSONPath returns the path to the projected graph.
func GeoJSONPath(root string) string {
	return filepath.Join(root, GeoJSONFile)
}

// StopsGeoJSONPath returns the path to the projected stop catalogue.
func StopsGeoJSONPath(root string) string {
	return filepath.Join(root, StopsGeoJSONFile)
}

// NetworksPath returns the path to the networks summary.
func NetworksPath(root string) string {
	return filepath.Join(root, NetworksFile)
}

// VizPath returns the path to the HTML visualization.
func VizPath(root string) string {
	return filepath.Join(root, VizFile)
}

// CachePath returns the path to the cache directory.
func CachePath(root string) string {
	return filepath.Join(root, CacheDir)
}

// DBPath returns the path to the diagnostics database.
func DBPath(root string) string {
	return filepath.Join(root, CacheDir, DBFile)
}

// FailureLogPath returns the failure log of a build started at the given time.
func FailureLogPath(root string, startedAt time.Time) string {
	name := startedAt.UTC().Format("20060102T150405Z") + ".jsonl"
	return filepath.Join(root, LogDir, name)
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}
