package cli

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// cliEnv is an isolated workspace: a config file, a snapshot directory, an
// artifact database and a fake CI environment.
type cliEnv struct {
	t      *testing.T
	dir    string
	config string
	env    map[string]string
	stdin  string
}

// baselineServer serves published snapshots by cell id.
func baselineServer(t *testing.T, files map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content, ok := files[strings.TrimPrefix(r.URL.Path, "/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(content))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newCLIEnv writes a config whose paths all live under a temp directory.
// extra is appended to the generated YAML; it may replace build_info.
func newCLIEnv(t *testing.T, baselineURL, extra string) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	buildInfo := "build_info:\n  versions: [\"3.9\", \"3.10\", \"3.11\"]\n"
	if strings.Contains(extra, "build_info:") {
		buildInfo = ""
	}
	cfg := fmt.Sprintf(`repository: acme/widgets
%ssnapshot:
  dir: %s
store:
  path: %s
baseline:
  url_template: %s/{cell}
  timeout: 2s
gate:
  branches: [main]
logging:
  level: error
%s`, buildInfo, filepath.Join(dir, "snapshots"), filepath.Join(dir, "db", "artifacts.db"), baselineURL, extra)

	path := filepath.Join(dir, "pinsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0644))

	return &cliEnv{
		t:      t,
		dir:    dir,
		config: path,
		env: map[string]string{
			"GITHUB_EVENT_NAME": "push",
			"GITHUB_REPOSITORY": "acme/widgets",
			"GITHUB_REF_NAME":   "main",
			"GITHUB_SHA":        "0123456789abcdef0123456789abcdef01234567",
			"GITHUB_RUN_ID":     "7001",
			"GITHUB_SERVER_URL": "https://github.com",
		},
	}
}

// run executes the root command with the env's config and environment.
func (e *cliEnv) run(args ...string) (string, string, error) {
	e.t.Helper()
	opts := &RootOptions{Getenv: func(k string) string { return e.env[k] }}
	cmd := newRootCommand(opts)

	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(e.stdin))
	cmd.SetArgs(append([]string{"--config", e.config}, args...))

	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func (e *cliEnv) snapshotPath(cell string) string {
	return filepath.Join(e.dir, "snapshots", "constraints-"+cell+".txt")
}

func requireTool(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not installed", name)
	}
}

// bareRemote creates an empty bare git repository and returns its file URL.
func bareRemote(t *testing.T) string {
	t.Helper()
	requireTool(t, "git")
	dir := t.TempDir()
	out, err := exec.Command("git", "init", "-q", "--bare", dir).CombinedOutput()
	require.NoError(t, err, string(out))
	return "file://" + dir
}

// showFile reads a file from a branch of a bare remote.
func showFile(t *testing.T, url, branch, name string) (string, bool) {
	t.Helper()
	dir := strings.TrimPrefix(url, "file://")
	out, err := exec.Command("git", "-C", dir, "show", branch+":"+name).Output()
	if err != nil {
		return "", false
	}
	return string(out), true
}
