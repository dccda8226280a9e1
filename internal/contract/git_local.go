package contract

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// LogHeaderPrefix marks the first line of every commit in the history log.
const LogHeaderPrefix = "--"

// LogFormat is the pretty format paired with LogHeaderPrefix.
const LogFormat = "--pretty=format:" + LogHeaderPrefix + "%H|%an|%ae|%ad"

// LocalGitClient implements the GitClient interface by executing the
// local 'git' binary installed on the machine.
type LocalGitClient struct{}

var _ GitClient = &LocalGitClient{} // Compile-time check

// NewLocalGitClient creates a new instance of the local Git client.
func NewLocalGitClient() *LocalGitClient {
	return &LocalGitClient{}
}

// Run executes a git command and returns its stdout.
func (c *LocalGitClient) Run(ctx context.Context, repoPath string, args ...string) ([]byte, error) {
	return runGit(ctx, repoPath, args...)
}

// GetHistoryLog implements the GitClient interface.
func (c *LocalGitClient) GetHistoryLog(ctx context.Context, repoPath string, opts LogOptions) ([]byte, error) {
	args := []string{
		"-c", "core.quotePath=false",
		"log",
		"--reverse",
		"--no-merges",
		"-M",
		"--numstat",
		"--summary",
		"--date=iso-strict",
		LogFormat,
	}
	if opts.MaxCommits > 0 {
		// -n picks the newest commits before --reverse flips them.
		args = append(args, "-n", strconv.Itoa(opts.MaxCommits))
	}
	if !opts.Since.IsZero() {
		args = append(args, "--since="+opts.Since.Format(DateTimeFormat))
	}
	return c.Run(ctx, repoPath, args...)
}

// GetRepoHash implements the GitClient interface.
func (c *LocalGitClient) GetRepoHash(ctx context.Context, repoPath string) (string, error) {
	out, err := c.Run(ctx, repoPath, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// GetRepoRoot implements the GitClient interface.
func (c *LocalGitClient) GetRepoRoot(ctx context.Context, contextPath string) (string, error) {
	out, err := c.Run(ctx, contextPath, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Clone implements the GitClient interface.
func (c *LocalGitClient) Clone(ctx context.Context, url, dest string) error {
	_, err := runGit(ctx, "", "clone", "--quiet", "--no-checkout", url, dest)
	return err
}

func runGit(ctx context.Context, dir string, args ...string) ([]byte, error) {
	fullArgs := args
	if dir != "" {
		fullArgs = append([]string{"-C", dir}, args...)
	}
	cmd := exec.CommandContext(ctx, "git", fullArgs...)
	// Never block on a credential prompt inside a worker.
	cmd.Env = append(cmd.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.Output()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		stderr := strings.TrimSpace(string(exitErr.Stderr))
		return nil, fmt.Errorf("git %s failed: %s", subcommand(args), stderr)
	} else if err != nil {
		return nil, fmt.Errorf("git command failed: %w. Ensure Git is installed and available on your PATH", err)
	}
	return out, nil
}

// subcommand skips leading -c options.
func subcommand(args []string) string {
	for len(args) > 2 && args[0] == "-c" {
		args = args[2:]
	}
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
