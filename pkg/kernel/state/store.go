package state

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	pipelineSubdir = "pipeline"
	activeSubdir   = "active"
	completedSubdir = "completed"
	indexFile      = "index.yaml"
)

// Store persists PipelineState under <base>/pipeline/{active,completed}/
// plus an index.yaml summary file (spec §4.5).
//
// Concurrency: at most one Controller owns a given pipeline id at a
// time (spec §5), so per-pipeline writes need no locking. The index
// file is shared across every pipeline under this base directory, so
// index updates are serialized with an in-process mutex and written
// atomically, matching the temp-then-rename discipline used for every
// other write in this codebase (artifact.Store, worklock.Lock).
type Store struct {
	base string
	mu   sync.Mutex
}

// New creates a State Store rooted at baseDir (typically ".agentforge").
func New(baseDir string) *Store {
	return &Store{base: baseDir}
}

func (s *Store) activeDir() string    { return filepath.Join(s.base, pipelineSubdir, activeSubdir) }
func (s *Store) completedDir() string { return filepath.Join(s.base, pipelineSubdir, completedSubdir) }
func (s *Store) indexPath() string    { return filepath.Join(s.base, pipelineSubdir, indexFile) }

func writeAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state store: create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("state store: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("state store: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("state store: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(dir, name)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("state store: rename into place: %w", err)
	}
	return nil
}

func (p *PipelineState) validate() error {
	if p.ID == "" {
		return fmt.Errorf("state store: pipeline ID is required")
	}
	return nil
}

// Save persists p and updates the index (spec §4.5).
func (s *Store) Save(p *PipelineState) error {
	if err := p.validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("state store: marshal %s: %w", p.ID, err)
	}

	name := p.ID + ".yaml"
	var writeDir, staleDir string
	if p.Status.Terminal() {
		writeDir, staleDir = s.completedDir(), s.activeDir()
	} else {
		writeDir, staleDir = s.activeDir(), s.completedDir()
	}

	if err := writeAtomic(writeDir, name, data); err != nil {
		return err
	}
	_ = os.Remove(filepath.Join(staleDir, name)) // best-effort; absence is expected

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateIndexLocked(p.summary())
}

// Load reads a pipeline's state, checking active/ then completed/.
func (s *Store) Load(pipelineID string) (*PipelineState, error) {
	name := pipelineID + ".yaml"
	for _, dir := range []string{s.activeDir(), s.completedDir()} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("state store: read %s: %w", pipelineID, err)
		}
		var p PipelineState
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("state store: decode %s: %w", pipelineID, err)
		}
		return &p, nil
	}
	return nil, nil // not found: caller treats nil, nil as "no such pipeline"
}

func (s *Store) readIndexLocked() (map[string]Summary, error) {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Summary{}, nil
		}
		return nil, fmt.Errorf("state store: read index: %w", err)
	}
	idx := map[string]Summary{}
	if err := yaml.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("state store: decode index: %w", err)
	}
	return idx, nil
}

func (s *Store) updateIndexLocked(sum Summary) error {
	idx, err := s.readIndexLocked()
	if err != nil {
		return err
	}
	idx[sum.ID] = sum
	data, err := yaml.Marshal(idx)
	if err != nil {
		return fmt.Errorf("state store: marshal index: %w", err)
	}
	return writeAtomic(filepath.Join(s.base, pipelineSubdir), indexFile, data)
}

// List returns pipeline summaries, newest-first, optionally filtered by
// status and capped at limit (0 means unlimited).
func (s *Store) List(statusFilter *Status, limit int) ([]Summary, error) {
	s.mu.Lock()
	idx, err := s.readIndexLocked()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	out := make([]Summary, 0, len(idx))
	for _, sum := range idx {
		if statusFilter != nil && sum.Status != *statusFilter {
			continue
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
