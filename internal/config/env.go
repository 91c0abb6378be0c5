package config

import "github.com/roach88/pinsync/internal/ir"

// CI environment variables read into the run context.
const (
	EnvEventName         = "GITHUB_EVENT_NAME"
	EnvRepository        = "GITHUB_REPOSITORY"
	EnvActor             = "GITHUB_ACTOR"
	EnvRefName           = "GITHUB_REF_NAME"
	EnvSHA               = "GITHUB_SHA"
	EnvRunID             = "GITHUB_RUN_ID"
	EnvServerURL         = "GITHUB_SERVER_URL"
	EnvConstraintsBranch = "PINSYNC_CONSTRAINTS_BRANCH"
)

// RunContextFromEnv builds the run context from CI variables.
// Missing variables stay empty; the gate denies incomplete contexts.
func RunContextFromEnv(getenv func(string) string) ir.RunContext {
	return ir.RunContext{
		EventName:         getenv(EnvEventName),
		Repository:        getenv(EnvRepository),
		Actor:             getenv(EnvActor),
		RefName:           getenv(EnvRefName),
		SHA:               getenv(EnvSHA),
		RunID:             getenv(EnvRunID),
		ServerURL:         getenv(EnvServerURL),
		ConstraintsBranch: getenv(EnvConstraintsBranch),
	}
}
