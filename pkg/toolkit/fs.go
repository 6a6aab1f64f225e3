// Package toolkit provides concrete tool.Tool implementations for the
// Tool Bridge (spec §4.9): filesystem access, code search, test
// execution, and git operations against the pipeline's ProjectPath.
//
// Every tool here is a thin, auditable wrapper over a stdlib or
// go-git call — no tool holds state beyond its configured root
// directory, so a single instance is safe to register once and reuse
// across every stage and every pipeline.
package toolkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/agentforge/agentforge/pkg/tool"
)

// rootedPath resolves a tool-relative path against root, rejecting any
// path that would escape it via "..". A project-scoped tool must never
// let an executor read or write outside the pipeline's working tree.
func rootedPath(root, relPath string) (string, error) {
	if relPath == "" {
		relPath = "."
	}
	clean := filepath.Join(root, relPath)
	rel, err := filepath.Rel(root, clean)
	if err != nil {
		return "", fmt.Errorf("toolkit: resolve path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("toolkit: path %q escapes project root", relPath)
	}
	return clean, nil
}

// FileReadTool reads a UTF-8 text file under Root.
type FileReadTool struct {
	Root string
}

func (t *FileReadTool) Name() string        { return "fs_read" }
func (t *FileReadTool) Description() string { return "Read the contents of a text file within the project." }
func (t *FileReadTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]*tool.Schema{
			"path": {Type: "string", Description: "Path relative to the project root."},
		},
		Required: []string{"path"},
	}
}

type fileReadInput struct {
	Path string `json:"path"`
}

func (t *FileReadTool) Execute(_ context.Context, input json.RawMessage) (string, error) {
	var in fileReadInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("fs_read: invalid input: %w", err)
	}
	path, err := rootedPath(t.Root, in.Path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("fs_read: %w", err)
	}
	return string(data), nil
}

// FileWriteTool creates or overwrites a text file under Root, creating
// parent directories as needed.
type FileWriteTool struct {
	Root string
}

func (t *FileWriteTool) Name() string        { return "fs_write" }
func (t *FileWriteTool) Description() string { return "Create or overwrite a text file within the project." }
func (t *FileWriteTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]*tool.Schema{
			"path":    {Type: "string", Description: "Path relative to the project root."},
			"content": {Type: "string", Description: "Full file contents to write."},
		},
		Required: []string{"path", "content"},
	}
}

type fileWriteInput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (t *FileWriteTool) Execute(_ context.Context, input json.RawMessage) (string, error) {
	var in fileWriteInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("fs_write: invalid input: %w", err)
	}
	path, err := rootedPath(t.Root, in.Path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("fs_write: mkdir: %w", err)
	}
	if err := os.WriteFile(path, []byte(in.Content), 0o644); err != nil {
		return "", fmt.Errorf("fs_write: %w", err)
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(in.Content), in.Path), nil
}

// FileEditTool performs a literal find-and-replace within one file
// under Root. It fails closed when old is not found, or is found more
// than once and ReplaceAll is false, so a blind edit cannot silently
// touch the wrong occurrence.
type FileEditTool struct {
	Root string
}

func (t *FileEditTool) Name() string        { return "fs_edit" }
func (t *FileEditTool) Description() string { return "Replace an exact text match within a file." }
func (t *FileEditTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]*tool.Schema{
			"path":        {Type: "string", Description: "Path relative to the project root."},
			"old":         {Type: "string", Description: "Exact text to find."},
			"new":         {Type: "string", Description: "Replacement text."},
			"replace_all": {Type: "boolean", Description: "Replace every occurrence instead of requiring exactly one."},
		},
		Required: []string{"path", "old", "new"},
	}
}

type fileEditInput struct {
	Path       string `json:"path"`
	Old        string `json:"old"`
	New        string `json:"new"`
	ReplaceAll bool   `json:"replace_all"`
}

func (t *FileEditTool) Execute(_ context.Context, input json.RawMessage) (string, error) {
	var in fileEditInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("fs_edit: invalid input: %w", err)
	}
	path, err := rootedPath(t.Root, in.Path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("fs_edit: %w", err)
	}
	body := string(data)
	count := strings.Count(body, in.Old)
	switch {
	case count == 0:
		return "", fmt.Errorf("fs_edit: %q not found in %s", in.Old, in.Path)
	case count > 1 && !in.ReplaceAll:
		return "", fmt.Errorf("fs_edit: %q matches %d times in %s; pass replace_all or narrow the match", in.Old, count, in.Path)
	}
	var updated string
	if in.ReplaceAll {
		updated = strings.ReplaceAll(body, in.Old, in.New)
	} else {
		updated = strings.Replace(body, in.Old, in.New, 1)
	}
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		return "", fmt.Errorf("fs_edit: write: %w", err)
	}
	return fmt.Sprintf("replaced %d occurrence(s) in %s", count, in.Path), nil
}

// FileListTool lists files under a directory within Root, skipping
// version-control metadata.
type FileListTool struct {
	Root string
}

func (t *FileListTool) Name() string        { return "fs_list" }
func (t *FileListTool) Description() string { return "List files beneath a directory within the project." }
func (t *FileListTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]*tool.Schema{
			"path": {Type: "string", Description: "Directory relative to the project root (default: project root)."},
		},
	}
}

type fileListInput struct {
	Path string `json:"path"`
}

func (t *FileListTool) Execute(_ context.Context, input json.RawMessage) (string, error) {
	var in fileListInput
	if len(input) > 0 {
		if err := json.Unmarshal(input, &in); err != nil {
			return "", fmt.Errorf("fs_list: invalid input: %w", err)
		}
	}
	root, err := rootedPath(t.Root, in.Path)
	if err != nil {
		return "", err
	}
	var lines []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(t.Root, path)
		if relErr != nil {
			return relErr
		}
		lines = append(lines, rel)
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("fs_list: %w", err)
		}
		return "", fmt.Errorf("fs_list: walk: %w", err)
	}
	return strings.Join(lines, "\n"), nil
}
