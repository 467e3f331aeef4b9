package storage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/vvo-tools/vvograph/internal/graph"
	"github.com/vvo-tools/vvograph/internal/line"
	"github.com/vvo-tools/vvograph/internal/stop"
)

func testGraph() *graph.Graph {
	g := graph.New(graph.DefaultID, graph.DefaultType, "test")
	g.AddNode(graph.Node{ID: "1", Label: "Postplatz", Metadata: graph.NodeMetadata{X: 13.0, Y: 51.0}})
	g.AddNode(graph.Node{ID: "2", Label: "Altmarkt", Metadata: graph.NodeMetadata{X: 13.1, Y: 51.1}})
	g.AddEdge(graph.NewEdge("1", "2", "3", "voe:11003", 120))
	g.Metadata.ProcessedLines = []string{"voe:11003"}
	return g
}

func TestWriteReadGraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "vvo-graph.json")

	if err := WriteGraph(path, testGraph()); err != nil {
		t.Fatalf("WriteGraph() error = %v", err)
	}

	got, err := ReadGraph(path)
	if err != nil {
		t.Fatalf("ReadGraph() error = %v", err)
	}
	if got.NodeCount() != 2 {
		t.Errorf("NodeCount() = %d, want 2", got.NodeCount())
	}
	if got.EdgeCount() != 1 {
		t.Errorf("EdgeCount() = %d, want 1", got.EdgeCount())
	}
	if len(got.EdgesBetween("2", "1")) != 1 {
		t.Error("edge 1-2 not found after reload")
	}
	if got.ID != graph.DefaultID {
		t.Errorf("ID = %q, want %q", got.ID, graph.DefaultID)
	}
}

func TestReadGraph_Missing(t *testing.T) {
	_, err := ReadGraph(filepath.Join(t.TempDir(), "vvo-graph.json"))
	if !errors.Is(err, ErrGraphNotBuilt) {
		t.Fatalf("ReadGraph() error = %v, want ErrGraphNotBuilt", err)
	}
}

func TestReadGraph_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vvo-graph.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := ReadGraph(path)
	if err == nil {
		t.Fatal("expected error for corrupt document")
	}
	if errors.Is(err, ErrGraphNotBuilt) {
		t.Error("corrupt document reported as not built")
	}
}

func TestWriteFile_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	for i := 0; i < 2; i++ {
		if err := WriteFile(path, []byte("{}")); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "out.json" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory contains %v, want only out.json", names)
	}
}

func TestCheckpoint(t *testing.T) {
	cp := Checkpoint{Path: filepath.Join(t.TempDir(), "vvo-graph-tmp.json")}

	if _, err := cp.LoadCheckpoint(); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("LoadCheckpoint() on missing file error = %v, want fs.ErrNotExist", err)
	}

	if err := cp.SaveCheckpoint(testGraph()); err != nil {
		t.Fatalf("SaveCheckpoint() error = %v", err)
	}
	g, err := cp.LoadCheckpoint()
	if err != nil {
		t.Fatalf("LoadCheckpoint() error = %v", err)
	}
	if len(g.Metadata.ProcessedLines) != 1 || g.Metadata.ProcessedLines[0] != "voe:11003" {
		t.Errorf("ProcessedLines = %v", g.Metadata.ProcessedLines)
	}

	if err := cp.Remove(); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if err := cp.Remove(); err != nil {
		t.Errorf("second Remove() error = %v", err)
	}
}

func TestStopsCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stops.json")

	if _, err := ReadStops(path); !errors.Is(err, ErrNoStops) {
		t.Fatalf("ReadStops() on missing file error = %v, want ErrNoStops", err)
	}

	stops := []stop.Stop{{
		ID: "33000028", Name: "Hauptbahnhof", Place: "Dresden", X: "13.732", Y: "51.040",
		Lines: []stop.StopLine{{TripID: "voe:11003: :H:j24", LineNr: "3"}},
	}}
	if err := WriteStops(path, stops); err != nil {
		t.Fatalf("WriteStops() error = %v", err)
	}
	got, err := ReadStops(path)
	if err != nil {
		t.Fatalf("ReadStops() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != "Hauptbahnhof" || len(got[0].Lines) != 1 {
		t.Errorf("ReadStops() = %+v", got)
	}
}

func TestLoadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lines.json")
	stops := []stop.Stop{
		{ID: "1", Lines: []stop.StopLine{{TripID: "voe:1", LineNr: "1"}}},
		{ID: "2", Lines: []stop.StopLine{{TripID: "voe:1", LineNr: "1"}}},
	}

	lines, err := LoadLines(path, stops)
	if err != nil {
		t.Fatalf("LoadLines() error = %v", err)
	}
	if got := lines["voe:1"].Stops; len(got) != 2 {
		t.Errorf("derived stops = %v, want 2", got)
	}

	// The cache wins over the catalogue once written.
	cached, err := LoadLines(path, nil)
	if err != nil {
		t.Fatalf("LoadLines() from cache error = %v", err)
	}
	if _, ok := cached["voe:1"]; !ok {
		t.Error("cached line index missing voe:1")
	}

	if err := WriteLines(path, line.Collection{}); err != nil {
		t.Fatal(err)
	}
	empty, err := ReadLines(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(empty) != 0 {
		t.Errorf("ReadLines() = %v, want empty", empty)
	}
}
