package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Identity is the fixed commit author and committer.
type Identity struct {
	Name  string `yaml:"name" json:"name"`
	Email string `yaml:"email" json:"email"`
}

// DefaultIdentity is the bot identity used when none is configured.
var DefaultIdentity = Identity{
	Name:  "pinsync-bot",
	Email: "pinsync-bot@users.noreply.github.com",
}

// String renders the identity as "name <email>".
func (i Identity) String() string {
	return fmt.Sprintf("%s <%s>", i.Name, i.Email)
}

// ErrNothingToCommit is returned by Commit when the working copy is clean.
var ErrNothingToCommit = errors.New("nothing to commit")

// Remote is a git remote hosting tracking branches.
type Remote struct {
	// URL is anything git accepts as a remote (https, ssh, file path).
	URL string

	// Dir is the parent of temporary working copies. Empty uses os.TempDir.
	Dir string

	// Author signs every commit. Zero value uses DefaultIdentity.
	Author Identity

	Logger *zap.Logger
}

// Checkout prepares a working copy of branch. When the remote has no such
// branch the working copy starts an empty orphan branch of that name.
func (r *Remote) Checkout(ctx context.Context, branch string) (*Worktree, error) {
	if r.URL == "" {
		return nil, fmt.Errorf("checkout %s: remote URL is empty", branch)
	}
	if branch == "" {
		return nil, fmt.Errorf("checkout: branch is empty")
	}

	log := r.logger().With(zap.String("branch", branch))

	dir, err := os.MkdirTemp(r.Dir, "pinsync-")
	if err != nil {
		return nil, fmt.Errorf("checkout %s: %w", branch, err)
	}
	wt := &Worktree{dir: dir, branch: branch, author: r.author(), logger: log}

	if err := wt.init(ctx, r.URL); err != nil {
		_ = wt.Close()
		return nil, fmt.Errorf("checkout %s: %w", branch, err)
	}
	log.Debug("tracking branch checked out",
		zap.String("dir", dir),
		zap.Bool("orphan", wt.orphan),
		zap.String("base", wt.base))
	return wt, nil
}

func (r *Remote) author() Identity {
	if r.Author.Name == "" || r.Author.Email == "" {
		return DefaultIdentity
	}
	return r.Author
}

func (r *Remote) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Worktree is a single-use working copy of one branch.
type Worktree struct {
	dir    string
	branch string
	author Identity
	logger *zap.Logger

	orphan bool
	base   string
}

func (w *Worktree) init(ctx context.Context, url string) error {
	if _, err := runGit(ctx, w.dir, "init", "-q"); err != nil {
		return err
	}
	if _, err := runGit(ctx, w.dir, "remote", "add", "origin", url); err != nil {
		return err
	}

	ref := "refs/heads/" + w.branch
	out, err := runGit(ctx, w.dir, "ls-remote", "--heads", "origin", ref)
	if err != nil {
		return err
	}
	if strings.TrimSpace(out) == "" {
		w.orphan = true
		_, err := runGit(ctx, w.dir, "checkout", "-q", "--orphan", w.branch)
		return err
	}

	if _, err := runGit(ctx, w.dir, "fetch", "-q", "--depth", "1", "origin", ref); err != nil {
		return err
	}
	if _, err := runGit(ctx, w.dir, "checkout", "-q", "-B", w.branch, "FETCH_HEAD"); err != nil {
		return err
	}
	head, err := runGit(ctx, w.dir, "rev-parse", "HEAD")
	if err != nil {
		return err
	}
	w.base = strings.TrimSpace(head)
	return nil
}

// Dir returns the working copy directory.
func (w *Worktree) Dir() string {
	return w.dir
}

// Branch returns the checked out branch.
func (w *Worktree) Branch() string {
	return w.branch
}

// Orphan reports whether the branch did not exist on the remote.
func (w *Worktree) Orphan() bool {
	return w.orphan
}

// ReadFile returns the content of a root-level file. The boolean is false
// when the file does not exist.
func (w *Worktree) ReadFile(name string) ([]byte, bool, error) {
	p, err := w.path(name)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// WriteFile replaces a root-level file.
func (w *Worktree) WriteFile(name string, data []byte) error {
	p, err := w.path(name)
	if err != nil {
		return err
	}
	return os.WriteFile(p, data, 0o644)
}

// Commit stages everything and commits it as the configured identity.
// Returns the new commit sha.
func (w *Worktree) Commit(ctx context.Context, message string) (string, error) {
	if _, err := runGit(ctx, w.dir, "add", "-A"); err != nil {
		return "", err
	}

	status, err := runGit(ctx, w.dir, "status", "--porcelain")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(status) == "" {
		return "", ErrNothingToCommit
	}

	if _, err := runGit(ctx, w.dir,
		"-c", "user.name="+w.author.Name,
		"-c", "user.email="+w.author.Email,
		"-c", "commit.gpgsign=false",
		"commit", "-q", "-m", message); err != nil {
		return "", err
	}

	head, err := runGit(ctx, w.dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	sha := strings.TrimSpace(head)
	w.logger.Debug("committed", zap.String("sha", sha), zap.String("author", w.author.String()))
	return sha, nil
}

// Push publishes HEAD to the branch. It is attempted once.
func (w *Worktree) Push(ctx context.Context) error {
	out, err := runGit(ctx, w.dir, "push", "origin", "HEAD:refs/heads/"+w.branch)
	if err != nil {
		if isRejection(out) {
			return &PushRejectedError{Branch: w.branch, Output: out}
		}
		return err
	}
	w.logger.Debug("pushed")
	return nil
}

// Close removes the working copy.
func (w *Worktree) Close() error {
	return os.RemoveAll(w.dir)
}

// path resolves a root-level file name inside the working copy.
func (w *Worktree) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." || strings.HasPrefix(name, ".git") {
		return "", fmt.Errorf("invalid tracking file name %q", name)
	}
	return filepath.Join(w.dir, name), nil
}
