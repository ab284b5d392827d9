// Package file provides a file-based persistence implementation backed by JSON
// documents, intended for development and tests.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Persistence implements persistence.Persistence on top of JSON files, one per
// collection, guarded by a single RWMutex. State is loaded at startup and
// flushed on every mutation.
type Persistence struct {
	root string
	mu   sync.RWMutex

	workflows map[string]json.RawMessage
	schedules map[string]json.RawMessage
	templates map[string]json.RawMessage
	approvals map[string]json.RawMessage
	logs      []json.RawMessage
}

// NewPersistence creates a file persistence rooted at the given directory.
func NewPersistence(root string) (*Persistence, error) {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	if err := os.MkdirAll(cleanRoot, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	fp := &Persistence{
		root:      cleanRoot,
		workflows: make(map[string]json.RawMessage),
		schedules: make(map[string]json.RawMessage),
		templates: make(map[string]json.RawMessage),
		approvals: make(map[string]json.RawMessage),
	}

	for name, target := range map[string]*map[string]json.RawMessage{
		"workflows.json": &fp.workflows,
		"schedules.json": &fp.schedules,
		"templates.json": &fp.templates,
		"approvals.json": &fp.approvals,
	} {
		if err := fp.loadMap(name, target); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", name, err)
		}
	}

	if err := fp.loadList("execution_log.json", &fp.logs); err != nil {
		return nil, fmt.Errorf("failed to load execution_log.json: %w", err)
	}

	return fp, nil
}

// Close performs any necessary cleanup. File persistence has nothing to release.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory still exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) loadMap(name string, target *map[string]json.RawMessage) error {
	data, err := os.ReadFile(filepath.Join(fp.root, name))
	if os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return err
	}

	return json.Unmarshal(data, target)
}

func (fp *Persistence) loadList(name string, target *[]json.RawMessage) error {
	data, err := os.ReadFile(filepath.Join(fp.root, name))
	if os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return err
	}

	return json.Unmarshal(data, target)
}

// flush writes a collection to its file. Callers hold the write lock.
func (fp *Persistence) flush(name string, collection any) error {
	data, err := json.MarshalIndent(collection, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", name, err)
	}

	path := filepath.Join(fp.root, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}

	return nil
}

func encode(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}

	return data, nil
}

func decode[T any](raw json.RawMessage) (*T, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}

	return &out, nil
}
