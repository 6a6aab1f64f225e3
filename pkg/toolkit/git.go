package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/agentforge/agentforge/pkg/tool"
)

// GitTool wraps go-git open/status/add/commit/push against Root,
// grounded on the teacher pack's repo plugin (git.PlainOpen, repo.Head,
// repo.Remote("origin")) and extended with the write-side operations
// the deliver stage needs: staging, committing, and pushing.
type GitTool struct {
	Root string
	// AuthToken is used as the password half of HTTP basic auth on
	// push, when non-empty (e.g. a GitHub PAT). Username is ignored by
	// most git hosts when a token is supplied this way.
	AuthToken string
}

func (t *GitTool) Name() string { return "git" }
func (t *GitTool) Description() string {
	return "Inspect or modify the project's git repository: status, add, commit, push."
}
func (t *GitTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]*tool.Schema{
			"action":  {Type: "string", Enum: []string{"status", "add", "commit", "push"}},
			"paths":   {Type: "array", Items: &tool.Schema{Type: "string"}, Description: "Paths to stage, for action=add."},
			"message": {Type: "string", Description: "Commit message, for action=commit."},
			"remote":  {Type: "string", Description: "Remote name for action=push (default: origin)."},
		},
		Required: []string{"action"},
	}
}

type gitInput struct {
	Action  string   `json:"action"`
	Paths   []string `json:"paths"`
	Message string   `json:"message"`
	Remote  string   `json:"remote"`
}

func (t *GitTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var in gitInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("git: invalid input: %w", err)
	}

	repo, err := git.PlainOpen(t.Root)
	if err != nil {
		return "", fmt.Errorf("git: open %s: %w", t.Root, err)
	}

	switch in.Action {
	case "status":
		return t.status(repo)
	case "add":
		return t.add(repo, in.Paths)
	case "commit":
		return t.commit(repo, in.Message)
	case "push":
		return t.push(ctx, repo, in.Remote)
	default:
		return "", fmt.Errorf("git: unknown action %q", in.Action)
	}
}

func (t *GitTool) status(repo *git.Repository) (string, error) {
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("git: head: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("git: worktree: %w", err)
	}
	st, err := wt.Status()
	if err != nil {
		return "", fmt.Errorf("git: status: %w", err)
	}

	remoteURL := ""
	if remote, err := repo.Remote("origin"); err == nil && len(remote.Config().URLs) > 0 {
		remoteURL = remote.Config().URLs[0]
	}

	out := struct {
		Branch string   `json:"branch"`
		Remote string   `json:"remote,omitempty"`
		Clean  bool     `json:"clean"`
		Dirty  []string `json:"dirty,omitempty"`
	}{
		Branch: head.Name().Short(),
		Remote: remoteURL,
		Clean:  st.IsClean(),
	}
	for path, s := range st {
		if s.Worktree != git.Unmodified || s.Staging != git.Unmodified {
			out.Dirty = append(out.Dirty, path)
		}
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("git: encode status: %w", err)
	}
	return string(encoded), nil
}

func (t *GitTool) add(repo *git.Repository, paths []string) (string, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("git: worktree: %w", err)
	}
	if len(paths) == 0 {
		if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
			return "", fmt.Errorf("git: add all: %w", err)
		}
		return "staged all changes", nil
	}
	for _, p := range paths {
		if _, err := wt.Add(p); err != nil {
			return "", fmt.Errorf("git: add %s: %w", p, err)
		}
	}
	return fmt.Sprintf("staged %d path(s)", len(paths)), nil
}

func (t *GitTool) commit(repo *git.Repository, message string) (string, error) {
	if message == "" {
		return "", fmt.Errorf("git: commit message is required")
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("git: worktree: %w", err)
	}
	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  "AgentForge",
			Email: "agentforge@localhost",
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", fmt.Errorf("git: commit: %w", err)
	}
	return hash.String(), nil
}

func (t *GitTool) push(ctx context.Context, repo *git.Repository, remoteName string) (string, error) {
	if remoteName == "" {
		remoteName = "origin"
	}
	opts := &git.PushOptions{RemoteName: remoteName}
	if t.AuthToken != "" {
		opts.Auth = &http.BasicAuth{Username: "agentforge", Password: t.AuthToken}
	}
	if err := repo.PushContext(ctx, opts); err != nil {
		if err == git.NoErrAlreadyUpToDate {
			return "already up to date", nil
		}
		return "", fmt.Errorf("git: push: %w", err)
	}
	return "pushed", nil
}

// CloneTool clones a remote repository into Root via go-git. It is
// registered with the other toolkit tools; no kernel stage calls it.
// Grounded on the teacher pack's repo plugin CloneOptions
// construction (Depth, ReferenceName, SingleBranch).
type CloneTool struct {
	Root string
}

func (t *CloneTool) Name() string        { return "git_clone" }
func (t *CloneTool) Description() string { return "Clone a git repository into the project root." }
func (t *CloneTool) Schema() tool.Schema {
	return tool.Schema{
		Type: "object",
		Properties: map[string]*tool.Schema{
			"url":    {Type: "string", Description: "Repository URL to clone."},
			"branch": {Type: "string", Description: "Branch to check out (default: remote HEAD)."},
			"depth":  {Type: "number", Description: "Shallow clone depth; 0 means full history."},
		},
		Required: []string{"url"},
	}
}

type cloneInput struct {
	URL    string `json:"url"`
	Branch string `json:"branch"`
	Depth  int    `json:"depth"`
}

func (t *CloneTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var in cloneInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", fmt.Errorf("git_clone: invalid input: %w", err)
	}
	opts := &git.CloneOptions{URL: in.URL}
	if in.Depth > 0 {
		opts.Depth = in.Depth
	}
	if in.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(in.Branch)
		opts.SingleBranch = true
	}
	if _, err := git.PlainCloneContext(ctx, t.Root, false, opts); err != nil {
		return "", fmt.Errorf("git_clone: %w", err)
	}
	return fmt.Sprintf("cloned %s into %s", in.URL, t.Root), nil
}
