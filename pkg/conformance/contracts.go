package conformance

import "gopkg.in/yaml.v3"

// defaultContractYAML holds the built-in contracts mirroring the stage
// artifact types from spec.md §4.2, expressed the same way a
// hand-authored contracts/*.yaml file on disk would be. Default()
// parses these the same way LoadDir parses a user-supplied file, so
// the built-ins and custom contracts are indistinguishable once loaded.
var defaultContractYAML = []string{
	`
id: intake_artifact
description: Output of the intake stage.
fields:
  detected_scope: {required: true, type: string}
  priority: {required: true, type: string}
  questions: {required: false, type: array}
`,
	`
id: clarify_artifact
description: Output of the clarify stage.
fields:
  clarified_requirements: {required: true, type: string}
  ready_for_analysis: {required: false, type: boolean}
`,
	`
id: analyze_artifact
description: Output of the analyze stage.
fields:
  analysis: {required: true, type: object}
  affected_files: {required: false, type: array}
  components: {required: false, type: array}
`,
	`
id: spec_artifact
description: Output of the spec stage.
fields:
  components: {required: true, type: array}
  test_cases: {required: false, type: array}
`,
	`
id: red_artifact
description: Output of the red (failing-tests) stage.
fields:
  test_files: {required: true, type: array}
  test_results: {required: false, type: object}
`,
	`
id: green_artifact
description: Output of the green (implementation) stage.
fields:
  implementation_files: {required: true, type: array}
  all_tests_pass: {required: false, type: boolean}
`,
	`
id: refactor_artifact
description: Output of the refactor stage.
fields:
  tests_still_passing: {required: true, type: boolean}
`,
	`
id: deliver_artifact
description: Output of the deliver stage.
fields:
  deliverable_type: {required: true, type: string}
`,
}

// Default returns a Registry pre-loaded with the built-in contracts for
// every stage's artifact type.
func Default() (*Registry, error) {
	r := NewRegistry()
	for _, doc := range defaultContractYAML {
		var c Contract
		if err := yaml.Unmarshal([]byte(doc), &c); err != nil {
			return nil, err
		}
		r.Add(c)
	}
	return r, nil
}
