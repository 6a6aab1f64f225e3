// Package worklock implements the workspace lock that resolves
// spec.md §9's open question ("the exact lock primitive is not
// specified"): a sentinel file under .agentforge/pipeline/active
// naming the one pipeline currently allowed to mutate a project path,
// so a second pipeline targeting the same checkout fails fast instead
// of racing the first's filesystem and git operations.
//
// The sentinel-file-plus-polling idiom is grounded directly on
// pkg/kernel/escalation.Manager: a durable record under the project's
// own .agentforge directory, read back and compared before acting,
// removed once its owner is done.
package worklock

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentforge/agentforge/pkg/kernel/kernelerr"
)

const activeSubdir = "pipeline/active"

// Lock holds the on-disk sentinel for one project path.
type Lock struct {
	base string // .agentforge directory
	path string // full path to the sentinel file
}

// New returns a Lock scoped to baseDir (a project's ".agentforge"
// directory) and the project path it protects. The sentinel's file
// name is derived from the project path so unrelated projects sharing
// a common state root never collide.
func New(baseDir, projectPath string) *Lock {
	sum := sha256.Sum256([]byte(projectPath))
	name := hex.EncodeToString(sum[:])[:16] + ".lock"
	return &Lock{base: baseDir, path: filepath.Join(baseDir, activeSubdir, name)}
}

// Acquire claims the lock for pipelineID. It fails fast with a
// kernelerr.PersistenceError if a different pipeline already holds it
// (whether that pipeline is still running is not checked; a lock left
// by a crashed process blocks until removed); acquiring on behalf of
// the same pipeline id that
// already holds it (e.g. a resumed process re-entering runLoop) is a
// no-op.
func (l *Lock) Acquire(pipelineID string) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return kernelerr.Wrap(kernelerr.PersistenceError, "", "create workspace lock dir", err)
	}

	if owner, ok, err := l.read(); err != nil {
		return err
	} else if ok && owner != pipelineID {
		return kernelerr.New(kernelerr.PersistenceError, "",
			fmt.Sprintf("workspace is locked by pipeline %s", owner))
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".tmp-lock-*")
	if err != nil {
		return kernelerr.Wrap(kernelerr.PersistenceError, "", "create workspace lock", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.WriteString(pipelineID); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return kernelerr.Wrap(kernelerr.PersistenceError, "", "write workspace lock", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return kernelerr.Wrap(kernelerr.PersistenceError, "", "close workspace lock", err)
	}
	if err := os.Rename(tmpPath, l.path); err != nil {
		os.Remove(tmpPath)
		return kernelerr.Wrap(kernelerr.PersistenceError, "", "rename workspace lock into place", err)
	}
	return nil
}

// Release removes the sentinel if and only if pipelineID still owns
// it — a stale Release call from a pipeline that already lost the
// lock (e.g. a crashed process restarted and later re-releases) never
// deletes someone else's lock.
func (l *Lock) Release(pipelineID string) error {
	owner, ok, err := l.read()
	if err != nil {
		return err
	}
	if !ok || owner != pipelineID {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return kernelerr.Wrap(kernelerr.PersistenceError, "", "remove workspace lock", err)
	}
	return nil
}

// Owner returns the pipeline id currently holding the lock, if any.
func (l *Lock) Owner() (string, bool, error) {
	return l.read()
}

func (l *Lock) read() (string, bool, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, kernelerr.Wrap(kernelerr.PersistenceError, "", "read workspace lock", err)
	}
	return string(data), true, nil
}
