package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentforge/agentforge/internal/config"
	"github.com/agentforge/agentforge/pkg/kernel/templateconfig"
	"gopkg.in/yaml.v3"
)

// loadStageOverrides merges .agentforge/config/stages/<stage>.yaml
// files (spec §6: per-stage config overrides) into every template
// that does not already set its own override for that stage. A
// missing directory is not an error — stage overrides are optional.
func loadStageOverrides(cfg *templateconfig.KernelConfig, dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		stageName := strings.TrimSuffix(entry.Name(), ".yaml")
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		var ov templateconfig.StageOverride
		if err := yaml.Unmarshal([]byte(config.Substitute(string(data))), &ov); err != nil {
			return fmt.Errorf("parse stages/%s: %w", entry.Name(), err)
		}
		for name, tmpl := range cfg.Templates {
			if tmpl.Overrides == nil {
				tmpl.Overrides = map[string]templateconfig.StageOverride{}
			}
			if _, exists := tmpl.Overrides[stageName]; !exists {
				tmpl.Overrides[stageName] = ov
			}
			cfg.Templates[name] = tmpl
		}
	}
	return nil
}

// loadTemplateFiles merges .agentforge/pipelines/<template>.yaml files
// (spec §6: standalone pipeline template files) into cfg.Templates,
// keyed by each file's own "name" field (falling back to the file's
// basename). A missing directory is not an error.
func loadTemplateFiles(cfg *templateconfig.KernelConfig, dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}

	if cfg.Templates == nil {
		cfg.Templates = map[string]templateconfig.Template{}
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		var tmpl templateconfig.Template
		if err := yaml.Unmarshal([]byte(config.Substitute(string(data))), &tmpl); err != nil {
			return fmt.Errorf("parse pipelines/%s: %w", entry.Name(), err)
		}
		name := tmpl.Name
		if name == "" {
			name = strings.TrimSuffix(entry.Name(), ".yaml")
		}
		cfg.Templates[name] = tmpl
	}
	return nil
}
