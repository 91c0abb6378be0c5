package cli

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/pinsync/internal/baseline"
	"github.com/roach88/pinsync/internal/buildinfo"
	"github.com/roach88/pinsync/internal/config"
	"github.com/roach88/pinsync/internal/gate"
	"github.com/roach88/pinsync/internal/gitrepo"
	"github.com/roach88/pinsync/internal/ir"
	"github.com/roach88/pinsync/internal/logging"
	"github.com/roach88/pinsync/internal/pipeline"
	"github.com/roach88/pinsync/internal/reconcile"
	"github.com/roach88/pinsync/internal/snapshot"
	"github.com/roach88/pinsync/internal/store"
)

// session is the per-invocation state shared by the commands: the loaded
// config, the logger, and the output formatter.
type session struct {
	cfg    *config.Config
	logger *zap.Logger
	out    *OutputFormatter
	getenv func(string) string
}

// newSession loads the config and builds the logger. Failures are command
// errors (exit 2).
func newSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	cfg, err := config.Load(opts.Config, getenv)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	logger, err := logging.New(logging.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Verbose: opts.Verbose,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create logger", err)
	}

	return &session{
		cfg:    cfg,
		logger: logger,
		getenv: getenv,
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
	}, nil
}

// close flushes the logger.
func (s *session) close() {
	_ = s.logger.Sync()
}

// runContext reads the CI event metadata.
func (s *session) runContext() ir.RunContext {
	return config.RunContextFromEnv(s.getenv)
}

// provider returns the configured build-info source. An explicit version
// list takes precedence over the CUE file.
func (s *session) provider() buildinfo.Provider {
	if len(s.cfg.BuildInfo.Versions) > 0 {
		return buildinfo.Static(s.cfg.BuildInfo.Versions)
	}
	return buildinfo.CUEFile{Path: s.cfg.BuildInfo.File}
}

func (s *session) writer() *snapshot.Writer {
	return snapshot.NewWriter(s.cfg.Snapshot.Dir)
}

func (s *session) policy() gate.Policy {
	return gate.Policy{
		Repository:   s.cfg.Repository,
		Branches:     s.cfg.Gate.Branches,
		DeniedActors: s.cfg.Gate.DeniedActors,
	}
}

// differ builds the baseline differ for rc. The CI override of the
// constraints branch wins over the configured branch.
func (s *session) differ(rc ir.RunContext, out io.Writer) (*baseline.Differ, error) {
	timeout, err := s.cfg.BaselineTimeout()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid baseline timeout", err)
	}
	branch := s.cfg.Baseline.Branch
	if b := strings.TrimSpace(rc.ConstraintsBranch); b != "" {
		branch = b
	}
	repo := rc.Repository
	if repo == "" {
		repo = s.cfg.Repository
	}
	return baseline.New(baseline.Options{
		URLTemplate: s.cfg.Baseline.URLTemplate,
		Repository:  repo,
		Branch:      branch,
		Timeout:     timeout,
		Out:         out,
		Logger:      s.logger,
	}), nil
}

// openStore opens the artifact database, creating its directory.
func (s *session) openStore() (*store.Store, error) {
	path := s.cfg.Store.Path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to create store directory", err)
		}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open artifact store", err)
	}
	return st, nil
}

// repository returns the tracking repository, or nil when no remote is
// configured.
func (s *session) repository() reconcile.Repository {
	if s.cfg.Tracking.Remote == "" {
		return nil
	}
	return pipeline.GitRepository{Remote: &gitrepo.Remote{
		URL:    s.cfg.Tracking.Remote,
		Dir:    s.cfg.Tracking.Dir,
		Author: s.cfg.Tracking.Author,
		Logger: s.logger,
	}}
}
