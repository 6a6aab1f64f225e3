package toolkit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/agentforge/agentforge/pkg/tool"
)

// maxSearchMatches caps a single code_search call's output so one
// overly broad pattern can't blow the executor's context budget.
const maxSearchMatches = 200

// CodeSearchTool greps project files for a regular expression, walking
// the tree with filepath.WalkDir and skipping version-control and
// dependency directories.
type CodeSearchTool struct {
	Root string
}

func (t *CodeSearchTool) Name() string { return "code_search" }
func (t *CodeSearchTool) Description() string {
	return "Search project files for a regular expression, returning matching file:line:text entries."
}
func (t *CodeSearchTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]*tool.Schema{
			"pattern": {Type: "string", Description: "RE2 regular expression to search for."},
			"path":    {Type: "string", Description: "Directory relative to the project root to search (default: project root)."},
		},
		Required: []string{"pattern"},
	}
}

type codeSearchInput struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path"`
}

var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, ".agentforge": true,
}

func (t *CodeSearchTool) Execute(_ context.Context, input json.RawMessage) (string, error) {
	var in codeSearchInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("code_search: invalid input: %w", err)
	}
	re, err := regexp.Compile(in.Pattern)
	if err != nil {
		return "", fmt.Errorf("code_search: invalid pattern: %w", err)
	}
	root, err := rootedPath(t.Root, in.Path)
	if err != nil {
		return "", err
	}

	var matches []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if len(matches) >= maxSearchMatches {
			return nil
		}
		found, scanErr := grepFile(path, re)
		if scanErr != nil {
			return nil // unreadable/binary file: skip, don't fail the whole search
		}
		rel, relErr := filepath.Rel(t.Root, path)
		if relErr != nil {
			return relErr
		}
		for _, m := range found {
			if len(matches) >= maxSearchMatches {
				break
			}
			matches = append(matches, fmt.Sprintf("%s:%d:%s", rel, m.line, m.text))
		}
		return nil
	})
	if walkErr != nil {
		return "", fmt.Errorf("code_search: walk: %w", walkErr)
	}
	if len(matches) == 0 {
		return "no matches", nil
	}
	return strings.Join(matches, "\n"), nil
}

type lineMatch struct {
	line int
	text string
}

func grepFile(path string, re *regexp.Regexp) ([]lineMatch, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []lineMatch
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := scanner.Text()
		if re.MatchString(text) {
			out = append(out, lineMatch{line: lineNo, text: strings.TrimSpace(text)})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
