package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/agentforge/agentforge/pkg/kernel/stage"
	"gopkg.in/yaml.v3"
)

// artifactsSubdir roots all persisted artifacts under a single
// directory within the project's state root.
const artifactsSubdir = "artifacts"

// Store persists artifacts under <base>/artifacts/<pipeline_id>/.
// Writes are atomic (temp file + rename, per spec §4.4) and artifacts
// are never modified in place: a re-run of a stage writes a new
// iteration-tagged file rather than overwriting history the Audit Log
// may already reference.
type Store struct {
	base string
}

// New creates an artifact Store rooted at baseDir (typically
// ".agentforge").
func New(baseDir string) *Store {
	return &Store{base: baseDir}
}

func (s *Store) pipelineDir(pipelineID string) string {
	return filepath.Join(s.base, artifactsSubdir, pipelineID)
}

// fileName returns the deterministic path segment for a (stage index,
// stage name, iteration) triple. Iteration 1 uses the bare
// "NN-stage.yaml" name so the common case (no re-runs) matches the
// layout documented in spec §4.4 exactly; iteration 2+ appends a
// ".iterN" suffix so history is never overwritten.
func fileName(idx int, name stage.Name, iteration int) string {
	if iteration <= 1 {
		return fmt.Sprintf("%02d-%s.yaml", idx, name)
	}
	return fmt.Sprintf("%02d-%s.iter%d.yaml", idx, name, iteration)
}

// Write persists an artifact atomically and returns its relative path
// (relative to the store base) and content hash.
func (s *Store) Write(a *Artifact) (relPath string, hash string, err error) {
	dir := s.pipelineDir(a.Metadata.PipelineID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", "", fmt.Errorf("artifact store: create dir: %w", err)
	}

	hash, data, err := Hash(a)
	if err != nil {
		return "", "", err
	}

	name := fileName(a.Metadata.StageIndex, a.Metadata.Stage, a.Metadata.Iteration)
	finalPath := filepath.Join(dir, name)

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", "", fmt.Errorf("artifact store: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", "", fmt.Errorf("artifact store: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", "", fmt.Errorf("artifact store: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", "", fmt.Errorf("artifact store: rename into place: %w", err)
	}

	rel, err := filepath.Rel(s.base, finalPath)
	if err != nil {
		rel = finalPath
	}
	return rel, hash, nil
}

// Read loads an artifact by its path relative to the store base.
func (s *Store) Read(relPath string) (*Artifact, error) {
	data, err := os.ReadFile(filepath.Join(s.base, relPath))
	if err != nil {
		return nil, fmt.Errorf("artifact store: read %s: %w", relPath, err)
	}
	var a Artifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("artifact store: decode %s: %w", relPath, err)
	}
	return &a, nil
}

// List returns the relative paths of every artifact file persisted for
// a pipeline, sorted by stage index then iteration.
func (s *Store) List(pipelineID string) ([]string, error) {
	dir := s.pipelineDir(pipelineID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("artifact store: list %s: %w", pipelineID, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		names = append(names, e.Name())
	}
	key := func(n string) (int, int) {
		idx, iter := 0, 1
		fmt.Sscanf(n, "%d-", &idx)
		if i := strings.LastIndex(n, ".iter"); i >= 0 {
			fmt.Sscanf(n[i:], ".iter%d.yaml", &iter)
		}
		return idx, iter
	}
	sort.Slice(names, func(i, j int) bool {
		ai, an := key(names[i])
		bi, bn := key(names[j])
		return ai < bi || (ai == bi && an < bn)
	})
	rels := make([]string, len(names))
	for i, n := range names {
		rels[i] = filepath.Join(artifactsSubdir, pipelineID, n)
	}
	return rels, nil
}

// SnapshotDir returns the directory used for before/after filesystem
// snapshots of a pipeline's project working tree.
func (s *Store) SnapshotDir(pipelineID, label string) string {
	return filepath.Join(s.pipelineDir(pipelineID), "snapshots", label)
}

// WriteSnapshot persists a flat set of (relative path -> content) file
// snapshots under SnapshotDir(pipelineID, label). Used by stages that
// mutate the project filesystem to record before/after state.
func (s *Store) WriteSnapshot(pipelineID, label string, files map[string][]byte) error {
	dir := s.SnapshotDir(pipelineID, label)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("artifact store: snapshot dir: %w", err)
	}
	for rel, content := range files {
		target := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("artifact store: snapshot subdir: %w", err)
		}
		if err := os.WriteFile(target, content, 0o644); err != nil {
			return fmt.Errorf("artifact store: write snapshot file %s: %w", rel, err)
		}
	}
	return nil
}
