// Package core keeps the run context: the last submitted request for each
// report kind, so a failed run can be retried with the same parameters, also
// from a later invocation of the CLI.
package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Backland-Labs/reportrun/internal/report"
)

// RunContext is the remembered submission for one kind
type RunContext struct {
	Request report.Request `json:"request"`
	SavedAt time.Time      `json:"saved_at"`
}

// State is the on-disk form of all run contexts
type State struct {
	Contexts map[report.Kind]RunContext `json:"contexts"`
}

// LoadState loads the state from a JSON file.
// If the file doesn't exist, it returns an empty State (not an error)
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{Contexts: map[report.Kind]RunContext{}}, nil
		}
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if state.Contexts == nil {
		state.Contexts = map[report.Kind]RunContext{}
	}
	return &state, nil
}

// Save writes the state to a JSON file with pretty-printing (2-space indentation)
func (s *State) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	// write to a sibling file first so a crash never leaves half a document
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

// FileStore persists run contexts in a JSON file. Every call reads the file
// afresh, so the file stays the single source of truth between invocations.
type FileStore struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewFileStore returns a store backed by path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Path returns the backing file
func (f *FileStore) Path() string {
	return f.path
}

// Get returns the remembered request for kind
func (f *FileStore) Get(kind report.Kind) (report.Request, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := LoadState(f.path)
	if err != nil {
		return report.Request{}, false, err
	}
	rc, ok := state.Contexts[kind]
	if !ok {
		return report.Request{}, false, nil
	}
	return rc.Request.Clone(), true, nil
}

// Set remembers req, replacing any earlier request of the same kind
func (f *FileStore) Set(req report.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := LoadState(f.path)
	if err != nil {
		return err
	}
	state.Contexts[req.Kind] = RunContext{Request: req.Clone(), SavedAt: f.now().UTC()}
	return state.Save(f.path)
}

// Clear forgets the request for kind. Clearing an absent kind is a no-op.
func (f *FileStore) Clear(kind report.Kind) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := LoadState(f.path)
	if err != nil {
		return err
	}
	if _, ok := state.Contexts[kind]; !ok {
		return nil
	}
	delete(state.Contexts, kind)
	return state.Save(f.path)
}

// List returns every remembered context ordered by kind
func (f *FileStore) List() ([]RunContext, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, err := LoadState(f.path)
	if err != nil {
		return nil, err
	}
	out := make([]RunContext, 0, len(state.Contexts))
	for _, rc := range state.Contexts {
		out = append(out, rc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Request.Kind < out[j].Request.Kind })
	return out, nil
}

// MemoryStore keeps run contexts for the lifetime of the process
type MemoryStore struct {
	mu       sync.Mutex
	contexts map[report.Kind]report.Request
}

// NewMemoryStore returns an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{contexts: map[report.Kind]report.Request{}}
}

// Get returns the remembered request for kind
func (m *MemoryStore) Get(kind report.Kind) (report.Request, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.contexts[kind]
	if !ok {
		return report.Request{}, false, nil
	}
	return req.Clone(), true, nil
}

// Set remembers req
func (m *MemoryStore) Set(req report.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contexts[req.Kind] = req.Clone()
	return nil
}

// Clear forgets the request for kind
func (m *MemoryStore) Clear(kind report.Kind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.contexts, kind)
	return nil
}
