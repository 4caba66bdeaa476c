package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/agentkernel/society/internal/graph"
)

func TestOpenMissingIsEmpty(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(s.Nodes()) != 0 || s.IsDirty() {
		t.Error("expected empty clean store")
	}
}

func TestPersistAndOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "workspace.json")

	s := graph.New()
	a := s.AddAgentNode(graph.Position{X: 1, Y: 2})
	b := s.AddAgentNode(graph.Position{X: 3, Y: 4})
	if _, err := s.AddRelationEdge(a.ID, b.ID, nil); err != nil {
		t.Fatalf("AddRelationEdge failed: %v", err)
	}
	s.RemoveNode(s.AddAgentNode(graph.Position{}).ID)

	if err := Persist(path, s); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	loaded, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if len(loaded.Nodes()) != 2 || len(loaded.Edges()) != 1 {
		t.Fatalf("unexpected graph: %d nodes, %d edges", len(loaded.Nodes()), len(loaded.Edges()))
	}
	if !loaded.IsDirty() {
		t.Error("expected dirty flag to survive")
	}
	if n := loaded.AddAgentNode(graph.Position{}); n.ID == "agent_3" {
		t.Error("expected the deleted id agent_3 not to be reissued")
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the workspace file, got %d entries", len(entries))
	}
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workspace.json")
	os.WriteFile(path, []byte("{not json"), 0o644)

	if _, err := Open(path); err == nil {
		t.Fatal("expected error for corrupt workspace")
	}
}

func TestDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workspace.json")
	if err := Delete(path); err != nil {
		t.Fatalf("Delete of missing file failed: %v", err)
	}
	Save(path, graph.State{})
	if err := Delete(path); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected file to be gone")
	}
}
