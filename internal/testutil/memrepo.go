package testutil

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/roach88/pinsync/internal/gitrepo"
	"github.com/roach88/pinsync/internal/reconcile"
)

// MemoryCommit is one commit recorded by MemoryRepo.
type MemoryCommit struct {
	Branch  string
	ID      string
	Message string
	Files   map[string]string // Full branch content after the commit
}

// MemoryRepo is an in-memory reconcile.Repository.
//
// Pushes use optimistic concurrency: a push fails with
// *gitrepo.PushRejectedError if the branch advanced since checkout, or
// always when RejectPushes is set.
type MemoryRepo struct {
	mu       sync.Mutex
	branches map[string]map[string]string
	heads    map[string]string
	commits  []MemoryCommit
	counter  *Counter

	// RejectPushes makes every push fail as rejected.
	RejectPushes bool

	// CheckoutErr, when set, is returned by every Checkout.
	CheckoutErr error
}

// NewMemoryRepo creates an empty repository.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		branches: make(map[string]map[string]string),
		heads:    make(map[string]string),
		counter:  NewCounter(),
	}
}

// Seed sets the content of a branch without recording a commit.
func (r *MemoryRepo) Seed(branch string, files map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.branches[branch] = maps.Clone(files)
	r.heads[branch] = "seed-" + branch
}

// Files returns a copy of the branch content.
func (r *MemoryRepo) Files(branch string) map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.branches[branch])
}

// Commits returns the pushed commits in order.
func (r *MemoryRepo) Commits() []MemoryCommit {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]MemoryCommit, len(r.commits))
	copy(out, r.commits)
	return out
}

// Checkout implements reconcile.Repository.
func (r *MemoryRepo) Checkout(ctx context.Context, branch string) (reconcile.Worktree, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.CheckoutErr != nil {
		return nil, r.CheckoutErr
	}
	return &memWorktree{
		repo:   r,
		branch: branch,
		base:   r.heads[branch],
		files:  maps.Clone(r.branches[branch]),
	}, nil
}

type memWorktree struct {
	repo    *MemoryRepo
	branch  string
	base    string
	files   map[string]string
	dirty   bool
	pending *MemoryCommit
}

func (w *memWorktree) ReadFile(name string) ([]byte, bool, error) {
	content, ok := w.files[name]
	if !ok {
		return nil, false, nil
	}
	return []byte(content), true, nil
}

func (w *memWorktree) WriteFile(name string, data []byte) error {
	if w.files == nil {
		w.files = make(map[string]string)
	}
	if w.files[name] != string(data) {
		w.dirty = true
	}
	w.files[name] = string(data)
	return nil
}

func (w *memWorktree) Commit(ctx context.Context, message string) (string, error) {
	if !w.dirty {
		return "", gitrepo.ErrNothingToCommit
	}
	id := fmt.Sprintf("commit-%04d", w.repo.counter.Next())
	w.pending = &MemoryCommit{Branch: w.branch, ID: id, Message: message, Files: maps.Clone(w.files)}
	w.dirty = false
	return id, nil
}

func (w *memWorktree) Push(ctx context.Context) error {
	if w.pending == nil {
		return fmt.Errorf("push %s: no commit", w.branch)
	}

	r := w.repo
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.RejectPushes || r.heads[w.branch] != w.base {
		return &gitrepo.PushRejectedError{Branch: w.branch, Output: " ! [rejected] HEAD -> " + w.branch + " (fetch first)"}
	}
	r.branches[w.branch] = w.pending.Files
	r.heads[w.branch] = w.pending.ID
	r.commits = append(r.commits, *w.pending)
	return nil
}

func (w *memWorktree) Close() error {
	return nil
}

// FileNames returns the sorted file names of a branch.
func (r *MemoryRepo) FileNames(branch string) []string {
	files := r.Files(branch)
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
