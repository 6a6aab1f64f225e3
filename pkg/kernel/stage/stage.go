// Package stage defines the closed set of pipeline stage names and the
// artifact-type invariants checked at each stage's output boundary.
package stage

import "fmt"

// Name identifies a step in the pipeline sequence. The set is closed:
// a Stage Executor must be registered under one of these names for the
// Stage Registry to resolve it (spec §4.3).
type Name string

const (
	Intake   Name = "intake"
	Clarify  Name = "clarify"
	Analyze  Name = "analyze"
	Spec     Name = "spec"
	Red      Name = "red"
	Green    Name = "green"
	Refactor Name = "refactor"
	Deliver  Name = "deliver"
)

// All lists every known stage name in canonical pipeline order. Pipeline
// templates may select any ordered subset of this set; Validate rejects
// names outside it.
var All = []Name{Intake, Clarify, Analyze, Spec, Red, Green, Refactor, Deliver}

var known = func() map[Name]bool {
	m := make(map[Name]bool, len(All))
	for _, n := range All {
		m[n] = true
	}
	return m
}()

// Valid reports whether n is one of the closed set of stage names.
func (n Name) Valid() bool { return known[n] }

func (n Name) String() string { return string(n) }

// ParseName validates a raw stage name string from configuration.
func ParseName(s string) (Name, error) {
	n := Name(s)
	if !n.Valid() {
		return "", fmt.Errorf("stage: unknown stage name %q", s)
	}
	return n, nil
}

// Sequence is an ordered, immutable-for-the-run list of stage names
// (spec §3 Pipeline.configured_stage_sequence).
type Sequence []Name

// ValidateSequence checks that every name in seq is a known stage and
// that no name repeats (a pipeline never revisits a stage by name).
func ValidateSequence(seq []string) (Sequence, error) {
	out := make(Sequence, 0, len(seq))
	seen := make(map[Name]bool, len(seq))
	for _, raw := range seq {
		n, err := ParseName(raw)
		if err != nil {
			return nil, err
		}
		if seen[n] {
			return nil, fmt.Errorf("stage: sequence repeats stage %q", n)
		}
		seen[n] = true
		out = append(out, n)
	}
	if len(out) == 0 {
		return out, nil // zero-length sequence is valid (spec §8 boundary behavior)
	}
	return out, nil
}

// IndexOf returns the position of name in seq, or -1 if absent.
func (s Sequence) IndexOf(name Name) int {
	for i, n := range s {
		if n == name {
			return i
		}
	}
	return -1
}
