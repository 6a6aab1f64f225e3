// Package artifact implements the Artifact Store (spec §4.4): content-
// addressed, append-like YAML persistence of per-(pipeline, stage,
// iteration) artifacts, plus before/after filesystem snapshots.
//
// The on-disk shape and the atomic-write discipline are grounded on the
// teacher's internal/runrecord package (one JSON file per run, written
// under a base directory) and pkg/memory/file (temp-write-then-rename
// semantics, sidecar metadata).
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/agentforge/agentforge/pkg/kernel/stage"
	"gopkg.in/yaml.v3"
)

// Metadata is the envelope every persisted artifact carries alongside
// its stage-specific body (spec §3 Artifact).
type Metadata struct {
	Stage         stage.Name `yaml:"stage"`
	ArtifactType  string     `yaml:"artifact_type"`
	SchemaVersion string     `yaml:"schema_version"`
	Timestamp     time.Time  `yaml:"timestamp"`
	PipelineID    string     `yaml:"pipeline_id"`
	StageIndex    int        `yaml:"stage_index"`
	Iteration     int        `yaml:"iteration"`
}

// Artifact is a structured mapping produced by a stage and persisted.
// Body holds the stage-specific fields; it round-trips through YAML as
// a generic mapping so the kernel never needs stage-specific schemas.
type Artifact struct {
	Metadata Metadata       `yaml:"metadata"`
	Body     map[string]any `yaml:"body"`
}

// Get returns a body field, or nil if absent.
func (a *Artifact) Get(key string) any {
	if a == nil || a.Body == nil {
		return nil
	}
	return a.Body[key]
}

// GetString returns a body field as a string, or "" if absent or not a string.
func (a *Artifact) GetString(key string) string {
	v, _ := a.Get(key).(string)
	return v
}

// GetBool returns a body field as a bool, or false if absent or not a bool.
func (a *Artifact) GetBool(key string) bool {
	v, _ := a.Get(key).(bool)
	return v
}

// Has reports whether key is present (and non-nil) in the body.
func (a *Artifact) Has(key string) bool {
	if a == nil || a.Body == nil {
		return false
	}
	v, ok := a.Body[key]
	return ok && v != nil
}

// Hash returns the content hash of the artifact as it would be
// serialized, used to record provenance in the Audit Log.
func Hash(a *Artifact) (string, []byte, error) {
	data, err := yaml.Marshal(a)
	if err != nil {
		return "", nil, fmt.Errorf("artifact: marshal for hash: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), data, nil
}

// New builds an Artifact with a populated metadata envelope.
func New(pipelineID string, idx int, name stage.Name, iteration int, artifactType string, body map[string]any) *Artifact {
	if body == nil {
		body = map[string]any{}
	}
	return &Artifact{
		Metadata: Metadata{
			Stage:         name,
			ArtifactType:  artifactType,
			SchemaVersion: "1",
			Timestamp:     time.Now().UTC(),
			PipelineID:    pipelineID,
			StageIndex:    idx,
			Iteration:     iteration,
		},
		Body: body,
	}
}
