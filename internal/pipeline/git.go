package pipeline

import (
	"context"

	"github.com/roach88/pinsync/internal/gitrepo"
	"github.com/roach88/pinsync/internal/reconcile"
)

// GitRepository serves tracking branches from a git remote.
type GitRepository struct {
	Remote *gitrepo.Remote
}

// Checkout implements reconcile.Repository.
func (g GitRepository) Checkout(ctx context.Context, branch string) (reconcile.Worktree, error) {
	wt, err := g.Remote.Checkout(ctx, branch)
	if err != nil {
		return nil, err
	}
	return wt, nil
}
