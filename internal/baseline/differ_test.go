package baseline

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roach88/pinsync/internal/ir"
)

func newTestServer(t *testing.T, files map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestURL_DefaultTemplate(t *testing.T) {
	d := New(Options{Repository: "acme/widgets"})
	assert.Equal(t,
		"https://raw.githubusercontent.com/acme/widgets/constraints-develop/constraints-3.11.txt",
		d.URL("3.11"))
	assert.Equal(t, "develop", d.Branch())
}

func TestURL_BranchOverride(t *testing.T) {
	d := New(Options{Repository: "acme/widgets", Branch: "release/1.30"})
	assert.Contains(t, d.URL("3.9"), "/constraints-release/1.30/constraints-3.9.txt")
}

func TestFetch_ReturnsPublishedBaseline(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"/constraints-develop/constraints-3.11.txt": "numpy==1.25.0\n",
	})
	d := New(Options{
		URLTemplate: srv.URL + "/constraints-{branch}/constraints-{cell}.txt",
		Logger:      zaptest.NewLogger(t),
	})

	assert.Equal(t, "numpy==1.25.0\n", d.Fetch(context.Background(), "3.11"))
}

func TestFetch_NotFoundIsEmptyBaseline(t *testing.T) {
	srv := newTestServer(t, map[string]string{})
	d := New(Options{URLTemplate: srv.URL + "/constraints-{cell}.txt"})

	assert.Empty(t, d.Fetch(context.Background(), "3.13"))
}

func TestFetch_TimeoutIsEmptyBaseline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	d := New(Options{URLTemplate: srv.URL + "/{cell}", Timeout: 50 * time.Millisecond})

	start := time.Now()
	got := d.Fetch(context.Background(), "3.11")
	assert.Empty(t, got)
	assert.Less(t, time.Since(start), 5*time.Second, "fetch must honour its timeout")
}

func TestFetch_UnreachableIsEmptyBaseline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	d := New(Options{URLTemplate: url + "/{cell}"})
	assert.Empty(t, d.Fetch(context.Background(), "3.11"))
}

func TestFetch_InvalidURLIsEmptyBaseline(t *testing.T) {
	d := New(Options{URLTemplate: "://bad url/{cell}"})
	assert.Empty(t, d.Fetch(context.Background(), "3.11"))
}

func TestCompare_SideBySide(t *testing.T) {
	d := New(Options{})
	oldText := "altair==5.1.0\nnumpy==1.25.0\npandas==2.1.4\n"
	newText := "altair==5.1.0\nnumpy==1.26.0\npandas==2.1.4\nrich==13.7.0\n"

	c := d.Compare(oldText, newText)

	require.Equal(t, []Row{
		{Old: "altair==5.1.0", Op: OpEqual, New: "altair==5.1.0"},
		{Old: "numpy==1.25.0", Op: OpChanged, New: "numpy==1.26.0"},
		{Old: "pandas==2.1.4", Op: OpEqual, New: "pandas==2.1.4"},
		{Op: OpAdded, New: "rich==13.7.0"},
	}, c.Rows)
	assert.Equal(t, 2, c.ChangedRows())

	want := strings.Join([]string{
		"altair==5.1.0   altair==5.1.0",
		"numpy==1.25.0 | numpy==1.26.0",
		"pandas==2.1.4   pandas==2.1.4",
		"              > rich==13.7.0",
	}, "\n") + "\n"
	assert.Equal(t, want, c.String())
}

func TestCompare_RemovedLines(t *testing.T) {
	d := New(Options{})
	c := d.Compare("numpy==1.25.0\nsix==1.16.0\n", "numpy==1.25.0\n")

	require.Len(t, c.Rows, 2)
	assert.Equal(t, Row{Old: "six==1.16.0", Op: OpRemoved}, c.Rows[1])
}

func TestCompare_Identical(t *testing.T) {
	d := New(Options{})
	c := d.Compare("numpy==1.26.0\n", "numpy==1.26.0\n")
	assert.Zero(t, c.ChangedRows())
}

func TestRun_WritesComparison(t *testing.T) {
	srv := newTestServer(t, map[string]string{
		"/constraints-develop/constraints-3.11.txt": "numpy==1.25.0\n",
	})
	var out bytes.Buffer
	d := New(Options{
		URLTemplate: srv.URL + "/constraints-{branch}/constraints-{cell}.txt",
		Out:         &out,
	})

	s := ir.Snapshot{CellID: "3.11", Pins: []ir.Pin{{Name: "numpy", Version: "1.26.0"}}}
	c := d.Run(context.Background(), s)

	assert.False(t, c.BaselineMissing)
	assert.Equal(t,
		"=== constraints-3.11.txt: constraints-develop vs this run ===\n"+
			"numpy==1.25.0 | numpy==1.26.0\n",
		out.String())
}

func TestRun_MissingBaselineRendersAllAdded(t *testing.T) {
	srv := newTestServer(t, map[string]string{})
	var out bytes.Buffer
	d := New(Options{URLTemplate: srv.URL + "/{cell}", Out: &out})

	s := ir.Snapshot{CellID: "3.14", Pins: []ir.Pin{{Name: "numpy", Version: "1.26.0"}}}
	c := d.Run(context.Background(), s)

	assert.True(t, c.BaselineMissing)
	assert.Equal(t,
		"=== constraints-3.14.txt: constraints-develop vs this run ===\n"+
			"(no published baseline)\n"+
			"           > numpy==1.26.0\n",
		out.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, assert.AnError }

func TestRun_WriteErrorIsSwallowed(t *testing.T) {
	srv := newTestServer(t, map[string]string{})
	d := New(Options{URLTemplate: srv.URL + "/{cell}", Out: failingWriter{}})

	assert.NotPanics(t, func() {
		d.Run(context.Background(), ir.Snapshot{CellID: "3.11"})
	})
}
