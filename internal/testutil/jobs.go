package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/roach88/pinsync/internal/ir"
)

// ScriptedJob is a matrix job whose result per cell is fixed in advance.
// Cells listed in Failures fail with the given message; all others pass.
type ScriptedJob struct {
	Failures map[string]string

	mu  sync.Mutex
	ran []string
}

// Run implements matrix.Job.
func (j *ScriptedJob) Run(ctx context.Context, cell ir.MatrixCell) error {
	j.mu.Lock()
	j.ran = append(j.ran, cell.ID)
	j.mu.Unlock()

	if msg, ok := j.Failures[cell.ID]; ok {
		return fmt.Errorf("%s", msg)
	}
	return ctx.Err()
}

// Ran returns the ids of the cells run so far, in completion order.
func (j *ScriptedJob) Ran() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]string, len(j.ran))
	copy(out, j.ran)
	return out
}
