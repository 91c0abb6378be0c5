package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/roach88/pinsync/internal/ir"
	"github.com/roach88/pinsync/internal/snapshot"
)

// Variables exported to every per-cell command.
const (
	EnvCell            = "PINSYNC_CELL"
	EnvPythonVersion   = "PINSYNC_PYTHON_VERSION"
	EnvCanary          = "PINSYNC_CANARY"
	EnvUseConstraints  = "PINSYNC_USE_CONSTRAINTS"
	EnvConstraintsFile = "PINSYNC_CONSTRAINTS_FILE"
)

// maxOutputTail bounds how much command output is kept in an error.
const maxOutputTail = 4096

// CellEnv returns the environment describing a cell to its commands.
func CellEnv(cell ir.MatrixCell) []string {
	return []string{
		EnvCell + "=" + cell.ID,
		EnvPythonVersion + "=" + cell.Version,
		EnvCanary + "=" + strconv.FormatBool(cell.Canary),
		EnvUseConstraints + "=" + strconv.FormatBool(cell.UseConstraints),
		EnvConstraintsFile + "=" + ir.SnapshotFileName(cell.ID),
	}
}

// ShellJob runs the opaque test job of a cell through sh -c.
// An empty Command passes every cell.
type ShellJob struct {
	Command string
	Dir     string
}

// Run implements matrix.Job.
func (j ShellJob) Run(ctx context.Context, cell ir.MatrixCell) error {
	if strings.TrimSpace(j.Command) == "" {
		return nil
	}
	out, err := j.command(ctx, cell, j.Command).CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("job %q: %w\nOutput: %s", j.Command, err, tail(out))
	}
	return nil
}

func (j ShellJob) command(ctx context.Context, cell ir.MatrixCell, script string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "sh", "-c", script)
	cmd.Dir = j.Dir
	cmd.Env = append(os.Environ(), CellEnv(cell)...)
	return cmd
}

// ShellFreezer captures a cell's installed set from a command printing
// pip-freeze output.
type ShellFreezer struct {
	Command string
	Dir     string
}

// Freeze runs the command and parses its standard output.
func (f ShellFreezer) Freeze(ctx context.Context, cell ir.MatrixCell) ([]snapshot.Requirement, error) {
	if strings.TrimSpace(f.Command) == "" {
		return nil, fmt.Errorf("freeze: no command configured")
	}
	cmd := ShellJob{Dir: f.Dir}.command(ctx, cell, f.Command)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("freeze %q: %w\nOutput: %s", f.Command, err, tail(stderr.Bytes()))
	}
	return snapshot.ParseFreeze(bytes.NewReader(out))
}

func tail(out []byte) string {
	s := strings.TrimSpace(string(out))
	if len(s) > maxOutputTail {
		s = "..." + s[len(s)-maxOutputTail:]
	}
	return s
}
