// Package gate decides whether the reconciler may write to the tracking
// branch for a run.
//
// The decision is a pure function of the run metadata. Snapshot capture and
// baseline comparison never consult it; only the reconciler does.
package gate

import (
	"fmt"
	"slices"

	"github.com/roach88/pinsync/internal/ir"
)

// Trigger event names that can authorize reconciliation.
const (
	EventPush     = "push"
	EventSchedule = "schedule"
)

// Policy is the fixed authorization policy of a deployment.
type Policy struct {
	// Repository is the canonical "owner/name"; forks never match.
	Repository string

	// Branches lists the canonical branches whose pushes may publish.
	Branches []string

	// DeniedActors never authorize a run, whatever the trigger.
	DeniedActors []string
}

// Decision is the outcome of a gate evaluation.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// Evaluate applies the policy to the run context.
//
// Allowed iff the repository is the canonical one AND the trigger is either
// a push to one of the canonical branches or a scheduled run.
func Evaluate(p Policy, rc ir.RunContext) Decision {
	repo := rc.Repository
	if p.Repository == "" || repo != p.Repository {
		return deny("repository %q is not %q", repo, p.Repository)
	}

	if actor := rc.Actor; actor != "" && slices.Contains(p.DeniedActors, actor) {
		return deny("actor %q is not permitted", actor)
	}

	switch event := rc.EventName; event {
	case EventSchedule:
		return Decision{Allowed: true, Reason: "scheduled run"}
	case EventPush:
		ref := rc.RefName
		if slices.Contains(p.Branches, ref) {
			return Decision{Allowed: true, Reason: fmt.Sprintf("push to %s", ref)}
		}
		return deny("push to %q is not a tracked branch", ref)
	default:
		return deny("event %q does not publish constraints", event)
	}
}

func deny(format string, args ...any) Decision {
	return Decision{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}
