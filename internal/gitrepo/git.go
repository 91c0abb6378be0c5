package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CommandError is a failed git invocation.
type CommandError struct {
	Args   []string
	Output string
	Err    error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("git %s: %v", strings.Join(e.Args, " "), e.Err)
	}
	return fmt.Sprintf("git %s: %v\nOutput: %s", strings.Join(e.Args, " "), e.Err, out)
}

// Unwrap returns the underlying exec error.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// PushRejectedError indicates the remote refused the push, typically because
// another run advanced the branch after our fetch.
type PushRejectedError struct {
	Branch string
	Output string
}

// Error implements the error interface.
func (e *PushRejectedError) Error() string {
	return fmt.Sprintf("push to %s rejected: %s", e.Branch, strings.TrimSpace(e.Output))
}

// Rejected marks the error as a push rejection for callers that cannot
// import this package.
func (e *PushRejectedError) Rejected() bool {
	return true
}

// IsPushRejected returns true if err is or wraps a *PushRejectedError.
func IsPushRejected(err error) bool {
	var pe *PushRejectedError
	return errors.As(err, &pe)
}

// rejectionMarkers are substrings git prints when a push is refused.
var rejectionMarkers = []string{
	"[rejected]",
	"non-fast-forward",
	"fetch first",
	"stale info",
}

func isRejection(output string) bool {
	for _, m := range rejectionMarkers {
		if strings.Contains(output, m) {
			return true
		}
	}
	return false
}

// runGit runs git in dir and returns its combined output.
func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	full := append([]string{"-C", dir}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), &CommandError{Args: args, Output: string(out), Err: err}
	}
	return string(out), nil
}
