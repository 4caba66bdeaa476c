// Package workspace persists the editor session between CLI invocations.
package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentkernel/society/internal/config"
	"github.com/agentkernel/society/internal/graph"
)

// DefaultPath returns <config dir>/workspace.json.
func DefaultPath() string {
	return filepath.Join(config.ConfigDir(), "workspace.json")
}

// Load reads a session file, returning an empty session if it doesn't exist.
func Load(path string) (graph.State, error) {
	var st graph.State
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, fmt.Errorf("read workspace: %w", err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("parse workspace %s: %w", path, err)
	}
	return st, nil
}

// Open loads the session at path into a new store.
func Open(path string) (*graph.Store, error) {
	st, err := Load(path)
	if err != nil {
		return nil, err
	}
	s := graph.New()
	if err := s.Restore(st); err != nil {
		return nil, fmt.Errorf("workspace %s: %w", path, err)
	}
	return s, nil
}

// Save writes the session atomically: a temp file in the same directory is
// renamed over path.
func Save(path string, st graph.State) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode workspace: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".workspace-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Persist snapshots store and saves it to path.
func Persist(path string, s *graph.Store) error {
	return Save(path, s.Snapshot())
}

// Delete removes the session file. Ids issued so far may be reused after.
func Delete(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
