package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/agentforge/agentforge/internal/id"
	"gopkg.in/yaml.v3"
)

const specsDir = stateDir + "/specs"

// persistedSpec is the on-disk shape of .agentforge/specs/<spec_id>.yaml
// (spec §6: "persisted specification artifacts, referenced by implement
// --from-spec").
type persistedSpec struct {
	ID         string         `yaml:"id"`
	PipelineID string         `yaml:"pipeline_id"`
	CreatedAt  time.Time      `yaml:"created_at"`
	Components any            `yaml:"components"`
	Deliverable map[string]any `yaml:"deliverable,omitempty"`
}

// writeSpec persists a design pipeline's spec-stage deliverable under
// .agentforge/specs/<spec_id>.yaml, returning the new spec id.
func writeSpec(projectPath, pipelineID string, deliverable map[string]any) (string, error) {
	specID := id.NewSpecID()
	ps := persistedSpec{
		ID:          specID,
		PipelineID:  pipelineID,
		CreatedAt:   time.Now().UTC(),
		Components:  deliverable["components"],
		Deliverable: deliverable,
	}
	data, err := yaml.Marshal(ps)
	if err != nil {
		return "", fmt.Errorf("specs: marshal %s: %w", specID, err)
	}
	dir := filepath.Join(projectPath, specsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("specs: create dir: %w", err)
	}
	path := filepath.Join(dir, specID+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("specs: write %s: %w", specID, err)
	}
	return specID, nil
}

// readSpecComponents loads .agentforge/specs/<spec_id>.yaml and returns
// its components field for seeding `implement --from-spec`.
func readSpecComponents(projectPath, specID string) (any, error) {
	path := filepath.Join(projectPath, specsDir, specID+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("specs: read %s: %w", specID, err)
	}
	var ps persistedSpec
	if err := yaml.Unmarshal(data, &ps); err != nil {
		return nil, fmt.Errorf("specs: parse %s: %w", specID, err)
	}
	return ps.Components, nil
}
