// Package conformance implements the kernel's stand-in for the
// Contracts & Conformance subsystem (spec.md §1: out of scope, consumed
// as an external contract `validate(artifact, contract_id) → {ok |
// errors}`). Rather than a generic JSON Schema engine, contracts here
// are loaded from YAML documents (gopkg.in/yaml.v3) describing required
// fields and basic per-field type constraints, checked against a
// hand-written predicate — the same "named contract, required fields,
// artifact-type-specific rule" shape as pkg/kernel/validator, but keyed
// by an arbitrary contract_id string instead of a (from, to) stage
// pair, so callers outside the Controller (the CLI, the Tool Bridge)
// can ask "does this artifact satisfy contract X" without reference to
// pipeline stage sequencing at all.
package conformance

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// FieldType is the set of primitive type constraints a contract field
// can declare.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeBool    FieldType = "boolean"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
	TypeAny     FieldType = "any"
)

// FieldRule is one field's constraint within a contract.
type FieldRule struct {
	Required bool      `yaml:"required"`
	Type     FieldType `yaml:"type"`
}

// Contract is a named set of field rules an artifact must satisfy.
type Contract struct {
	ID          string               `yaml:"id"`
	Description string               `yaml:"description,omitempty"`
	Fields      map[string]FieldRule `yaml:"fields"`
}

// Result is the outcome of checking one artifact against one contract.
type Result struct {
	OK     bool
	Errors []string
}

// Registry holds loaded contracts keyed by ID.
type Registry struct {
	contracts map[string]Contract
}

// NewRegistry returns an empty contract registry.
func NewRegistry() *Registry {
	return &Registry{contracts: make(map[string]Contract)}
}

// Add registers c, overwriting any existing contract with the same ID.
func (r *Registry) Add(c Contract) {
	r.contracts[c.ID] = c
}

// LoadDir reads every *.yaml/*.yml file in dir as a Contract and adds
// it to the registry.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("conformance: read contracts dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("conformance: read %s: %w", name, err)
		}
		var c Contract
		if err := yaml.Unmarshal(data, &c); err != nil {
			return fmt.Errorf("conformance: parse %s: %w", name, err)
		}
		if c.ID == "" {
			return fmt.Errorf("conformance: %s: contract has no id", name)
		}
		r.Add(c)
	}
	return nil
}

// Validate checks artifact against the contract registered under
// contractID.
func (r *Registry) Validate(artifact map[string]any, contractID string) (Result, error) {
	c, ok := r.contracts[contractID]
	if !ok {
		return Result{}, fmt.Errorf("conformance: no contract registered for id %q", contractID)
	}

	var errs []string
	for name, rule := range c.Fields {
		v, present := artifact[name]
		if !present || v == nil {
			if rule.Required {
				errs = append(errs, fmt.Sprintf("missing required field %q", name))
			}
			continue
		}
		if rule.Type != "" && rule.Type != TypeAny && !matchesType(v, rule.Type) {
			errs = append(errs, fmt.Sprintf("field %q has type %s, expected %s", name, goTypeName(v), rule.Type))
		}
	}
	return Result{OK: len(errs) == 0, Errors: errs}, nil
}

// IDs returns every registered contract ID, in no particular order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.contracts))
	for id := range r.contracts {
		ids = append(ids, id)
	}
	return ids
}

func matchesType(v any, t FieldType) bool {
	switch t {
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeNumber:
		switch v.(type) {
		case int, int64, float64:
			return true
		}
		return false
	case TypeBool:
		_, ok := v.(bool)
		return ok
	case TypeArray:
		_, ok := v.([]any)
		return ok
	case TypeObject:
		_, ok := v.(map[string]any)
		return ok
	default:
		return true
	}
}

func goTypeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case int, int64, float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
