package cli

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/agentforge/agentforge/pkg/kernel/templateconfig"
	"gopkg.in/yaml.v3"
)

// defaultSettingsYAML seeds a new project's .agentforge/config/settings.yaml
// with the two built-in templates spec §6's "design"/"implement"
// commands rely on. ${VAR} placeholders let operators point at any
// provider without hardcoding a key in a checked-in file.
const defaultSettingsYAML = `version: "1"
provider: anthropic
model: claude-sonnet-4-5
supervised_by_default: false
auto_commit: true

cost:
  max_cost_per_pipeline_usd: 5.0
  alert_thresholds: [0.5, 0.8]

escalation:
  poll_interval: 3s
  max_wait: 30m

templates:
  implement:
    name: implement
    description: Full intake-through-deliver pipeline.
    stages: [intake, clarify, analyze, spec, red, green, refactor, deliver]
    supervised: false
    iteration_enabled: true
    max_iterations: 3
    max_retries: 2
    timeout_seconds: 3600

  design:
    name: design
    description: Intake through spec only, for review before implementation.
    stages: [intake, clarify, analyze, spec]
    exit_after: spec
    supervised: false
    iteration_enabled: true
    max_iterations: 3
    max_retries: 2
    timeout_seconds: 1800
`

// runConfig implements `config {init|show|validate}` (spec §6).
func (a *App) runConfig(args []string) int {
	if len(args) == 0 {
		a.errf("Usage: agentforge config {init|show|validate} [--project <path>]\n")
		return ExitUsage
	}

	sub := args[0]
	fs := flag.NewFlagSet("config "+sub, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	project := fs.String("project", ".", "project working tree to configure")
	if err := fs.Parse(args[1:]); err != nil {
		return ExitUsage
	}

	switch sub {
	case "init":
		return a.configInit(*project)
	case "show":
		return a.configShow(*project)
	case "validate":
		return a.configValidate(*project)
	default:
		a.errf("Error: unknown config subcommand %q (valid: init, show, validate)\n", sub)
		return ExitUsage
	}
}

func (a *App) configInit(project string) int {
	path := filepath.Join(project, settingsPath)
	if _, err := os.Stat(path); err == nil {
		a.errf("Error: %s already exists\n", path)
		return ExitUsage
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}
	if err := os.WriteFile(path, []byte(defaultSettingsYAML), 0o644); err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}
	for _, dir := range []string{stageCfgDir, templatesDir, specsDir} {
		if err := os.MkdirAll(filepath.Join(project, dir), 0o755); err != nil {
			a.errf("Error: %v\n", err)
			return ExitUsage
		}
	}

	a.outf("Created %s\n", path)
	a.outf("Next steps:\n")
	a.outf("  export ANTHROPIC_API_KEY=sk-ant-...  # or OPENAI_API_KEY / GEMINI_API_KEY\n")
	a.outf("  agentforge start \"<your request>\"\n")
	return ExitOK
}

func (a *App) configShow(project string) int {
	cfg, err := templateconfig.Load(filepath.Join(project, settingsPath))
	if err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}
	if err := loadStageOverrides(cfg, filepath.Join(project, stageCfgDir)); err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}
	if err := loadTemplateFiles(cfg, filepath.Join(project, templatesDir)); err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}
	a.outf("%s", data)
	return ExitOK
}

func (a *App) configValidate(project string) int {
	path := filepath.Join(project, settingsPath)
	cfg, err := templateconfig.Load(path)
	if err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}
	if err := loadStageOverrides(cfg, filepath.Join(project, stageCfgDir)); err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}
	if err := loadTemplateFiles(cfg, filepath.Join(project, templatesDir)); err != nil {
		a.errf("Error: %v\n", err)
		return ExitUsage
	}
	a.outf("%s is valid (%d templates).\n", path, len(cfg.Templates))
	return ExitOK
}
