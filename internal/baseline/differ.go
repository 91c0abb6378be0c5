package baseline

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"
	"go.uber.org/zap"

	"github.com/roach88/pinsync/internal/ir"
)

// DefaultURLTemplate locates a published snapshot by repository, source
// branch and cell.
const DefaultURLTemplate = "https://raw.githubusercontent.com/{repository}/constraints-{branch}/constraints-{cell}.txt"

// DefaultTimeout bounds a baseline fetch.
const DefaultTimeout = 10 * time.Second

// maxBaselineBytes caps how much of a response body is read.
const maxBaselineBytes = 1 << 20

// Options configures a Differ.
type Options struct {
	URLTemplate string        // Placeholders: {repository}, {branch}, {cell}
	Repository  string        // "owner/name"
	Branch      string        // Source branch of the baseline (default "develop")
	Timeout     time.Duration // Fetch timeout (default 10s)
	Client      *http.Client  // Optional; a fresh client is used if nil
	Out         io.Writer     // Where rendered comparisons go (default io.Discard)
	Logger      *zap.Logger
}

// Differ fetches baselines and renders side-by-side comparisons.
type Differ struct {
	urlTemplate string
	repository  string
	branch      string
	timeout     time.Duration
	client      *http.Client
	out         io.Writer
	logger      *zap.Logger
	dmp         *diffmatchpatch.DiffMatchPatch

	mu sync.Mutex // serializes writes to out
}

// New creates a Differ, filling unset options with defaults.
func New(opts Options) *Differ {
	d := &Differ{
		urlTemplate: opts.URLTemplate,
		repository:  opts.Repository,
		branch:      strings.TrimSpace(opts.Branch),
		timeout:     opts.Timeout,
		client:      opts.Client,
		out:         opts.Out,
		logger:      opts.Logger,
		dmp:         diffmatchpatch.New(),
	}
	if d.urlTemplate == "" {
		d.urlTemplate = DefaultURLTemplate
	}
	if d.branch == "" {
		d.branch = ir.DefaultConstraintsBranch
	}
	if d.timeout <= 0 {
		d.timeout = DefaultTimeout
	}
	if d.client == nil {
		d.client = &http.Client{}
	}
	if d.out == nil {
		d.out = io.Discard
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	// Line-level diffs only; accuracy over speed.
	d.dmp.DiffTimeout = 0
	return d
}

// Branch returns the source branch whose baseline is compared against.
func (d *Differ) Branch() string {
	return d.branch
}

// URL returns the baseline location for a cell.
func (d *Differ) URL(cellID string) string {
	return strings.NewReplacer(
		"{repository}", d.repository,
		"{branch}", d.branch,
		"{cell}", cellID,
	).Replace(d.urlTemplate)
}

// Fetch returns the published baseline for a cell.
// Any failure (network error, timeout, non-200 status) yields "".
func (d *Differ) Fetch(ctx context.Context, cellID string) string {
	url := d.URL(cellID)
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		d.logger.Debug("baseline request invalid", zap.String("url", url), zap.Error(err))
		return ""
	}

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Debug("baseline fetch failed", zap.String("url", url), zap.Error(err))
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		d.logger.Debug("baseline not available",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode))
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBaselineBytes))
	if err != nil {
		d.logger.Debug("baseline read failed", zap.String("url", url), zap.Error(err))
		return ""
	}
	return string(body)
}

// Compare builds the line-by-line comparison of old against new.
func (d *Differ) Compare(oldText, newText string) Comparison {
	a, b, lineArray := d.dmp.DiffLinesToChars(oldText, newText)
	diffs := d.dmp.DiffMain(a, b, false)
	diffs = d.dmp.DiffCharsToLines(diffs, lineArray)

	var rows []Row
	var removed, added []string
	flush := func() {
		n := max(len(removed), len(added))
		for i := 0; i < n; i++ {
			switch {
			case i < len(removed) && i < len(added):
				rows = append(rows, Row{Old: removed[i], Op: OpChanged, New: added[i]})
			case i < len(removed):
				rows = append(rows, Row{Old: removed[i], Op: OpRemoved})
			default:
				rows = append(rows, Row{Op: OpAdded, New: added[i]})
			}
		}
		removed, added = nil, nil
	}

	for _, diff := range diffs {
		lines := splitLines(diff.Text)
		switch diff.Type {
		case diffmatchpatch.DiffDelete:
			removed = append(removed, lines...)
		case diffmatchpatch.DiffInsert:
			added = append(added, lines...)
		case diffmatchpatch.DiffEqual:
			flush()
			for _, l := range lines {
				rows = append(rows, Row{Old: l, Op: OpEqual, New: l})
			}
		}
	}
	flush()

	return Comparison{Rows: rows}
}

// Run fetches the baseline for the snapshot's cell, compares it with the
// snapshot and writes the rendering to the output stream.
// It never fails; write errors are logged.
func (d *Differ) Run(ctx context.Context, s ir.Snapshot) Comparison {
	oldText := d.Fetch(ctx, s.CellID)
	cmp := d.Compare(oldText, string(s.Bytes()))
	cmp.CellID = s.CellID
	cmp.OldLabel = ir.TrackingBranch(d.branch)
	cmp.NewLabel = "this run"
	cmp.BaselineMissing = oldText == ""

	d.mu.Lock()
	_, err := io.WriteString(d.out, cmp.String())
	d.mu.Unlock()
	if err != nil {
		d.logger.Warn("failed to write baseline diff", zap.String("cell", s.CellID), zap.Error(err))
	}
	d.logger.Debug("baseline compared",
		zap.String("cell", s.CellID),
		zap.Bool("baseline_missing", cmp.BaselineMissing),
		zap.Int("changed_rows", cmp.ChangedRows()))
	return cmp
}

// splitLines splits diff text into lines without their terminators.
func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
