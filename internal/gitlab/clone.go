package gitlab

import (
	"context"
	"os/exec"
)

// CloneRunner performs the local clone of a repository URL. It exists as an
// interface so tests can avoid shelling out to git.
type CloneRunner interface {
	// Clone clones url into the runner's working directory and returns the
	// combined diagnostic output. The URL may carry inline credentials.
	Clone(ctx context.Context, url string) (output string, err error)
}

// GitCloneRunner runs `git clone` as a subprocess. Cancelling the context
// kills the clone.
type GitCloneRunner struct {
	// Dir is the directory to clone into. Empty means the process working
	// directory.
	Dir string
}

func (g *GitCloneRunner) Clone(ctx context.Context, url string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "clone", url)
	cmd.Dir = g.Dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}
