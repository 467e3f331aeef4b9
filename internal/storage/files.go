package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vvo-tools/vvograph/internal/graph"
	"github.com/vvo-tools/vvograph/internal/jgf"
	"github.com/vvo-tools/vvograph/internal/line"
	"github.com/vvo-tools/vvograph/internal/stop"
)

// ErrGraphNotBuilt is returned when the graph document does not exist yet.
var ErrGraphNotBuilt = errors.New("graph has not been built")

// ErrNoStops is returned when the stop catalogue has not been fetched yet.
var ErrNoStops = errors.New("stop catalogue has not been fetched")

// WriteFile writes data to path atomically. Parent directories are created.
func WriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}

// WriteJSON writes v as indented JSON.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	return WriteFile(path, append(data, '\n'))
}

// ReadJSON decodes the JSON file at path into v. A missing file yields an
// error matching fs.ErrNotExist.
func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// WriteGraph stores g as a JSON Graph Format document.
func WriteGraph(path string, g *graph.Graph) error {
	data, err := jgf.Marshal(g)
	if err != nil {
		return fmt.Errorf("encoding graph: %w", err)
	}
	return WriteFile(path, append(data, '\n'))
}

// ReadGraph loads a graph document. A missing document yields ErrGraphNotBuilt.
func ReadGraph(path string) (*graph.Graph, error) {
	g, err := readGraph(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s not found", ErrGraphNotBuilt, path)
	}
	return g, err
}

func readGraph(path string) (*graph.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	g, err := jgf.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return g, nil
}

// Checkpoint stores the intermediate graph of a running build.
type Checkpoint struct {
	Path string
}

// LoadCheckpoint reads the checkpoint. A missing checkpoint yields an error
// matching fs.ErrNotExist.
func (c Checkpoint) LoadCheckpoint() (*graph.Graph, error) {
	return readGraph(c.Path)
}

// SaveCheckpoint overwrites the checkpoint with g.
func (c Checkpoint) SaveCheckpoint(g *graph.Graph) error {
	return WriteGraph(c.Path, g)
}

// Remove deletes the checkpoint. A missing checkpoint is not an error.
func (c Checkpoint) Remove() error {
	if err := os.Remove(c.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing checkpoint: %w", err)
	}
	return nil
}

// WriteStops caches the stop catalogue.
func WriteStops(path string, stops []stop.Stop) error {
	return WriteJSON(path, stops)
}

// ReadStops loads the cached stop catalogue. A missing cache yields ErrNoStops.
func ReadStops(path string) ([]stop.Stop, error) {
	var stops []stop.Stop
	if err := ReadJSON(path, &stops); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", ErrNoStops, path)
		}
		return nil, err
	}
	return stops, nil
}

// WriteLines caches the line index.
func WriteLines(path string, lines line.Collection) error {
	return WriteJSON(path, lines)
}

// ReadLines loads the cached line index.
func ReadLines(path string) (line.Collection, error) {
	lines := make(line.Collection)
	if err := ReadJSON(path, &lines); err != nil {
		return nil, err
	}
	return lines, nil
}

// LoadLines returns the cached line index, deriving it from stops when the
// cache does not exist.
func LoadLines(path string, stops []stop.Stop) (line.Collection, error) {
	lines, err := ReadLines(path)
	if err == nil {
		return lines, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	lines = line.Extract(stops)
	if err := WriteLines(path, lines); err != nil {
		return nil, err
	}
	return lines, nil
}
