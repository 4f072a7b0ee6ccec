package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labelsync/internal/config"
	"github.com/roach88/labelsync/internal/credential"
)

// testEnv is an isolated labelsync home: its own config file, index,
// exception log and in-memory keyring.
type testEnv struct {
	t            *testing.T
	dir          string
	configPath   string
	indexPath    string
	exceptionLog string
	ring         keyring.Keyring
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	env := &testEnv{
		t:            t,
		dir:          dir,
		configPath:   filepath.Join(dir, "config.yaml"),
		indexPath:    filepath.Join(dir, "index.db"),
		exceptionLog: filepath.Join(dir, config.ExceptionLogName),
		ring:         keyring.NewArrayKeyring(nil),
	}
	cfg := fmt.Sprintf("index:\n  path: %s\nexception_log: %s\nreport_interval: 1h\n", env.indexPath, env.exceptionLog)
	require.NoError(t, os.WriteFile(env.configPath, []byte(cfg), 0o600))
	return env
}

type cliResult struct {
	stdout string
	stderr string
	code   int
}

// run executes the CLI against env with stdin as standard input.
func (e *testEnv) runStdin(stdin string, args ...string) cliResult {
	e.t.Helper()
	cmd, opts := newRootCommand()
	opts.OpenCredentials = func(*config.Config) (*credential.Store, error) {
		return credential.New(e.ring), nil
	}
	cmd.SetIn(bytes.NewBufferString(stdin))

	var stdout, stderr bytes.Buffer
	full := append([]string{"--config", e.configPath}, args...)
	code := execute(cmd, opts, full, &stdout, &stderr)
	return cliResult{stdout: stdout.String(), stderr: stderr.String(), code: code}
}

func (e *testEnv) run(args ...string) cliResult {
	e.t.Helper()
	return e.runStdin("", args...)
}

// mustRun runs args and fails the test on a non-zero exit.
func (e *testEnv) mustRun(args ...string) cliResult {
	e.t.Helper()
	res := e.run(args...)
	require.Equal(e.t, ExitSuccess, res.code, "stdout:\n%s\nstderr:\n%s", res.stdout, res.stderr)
	return res
}

// maildir creates an empty maildir under env and returns its source URI.
func (e *testEnv) maildir(name string) (string, string) {
	e.t.Helper()
	root := filepath.Join(e.dir, name)
	for _, sub := range []string{"cur", "new", "tmp"} {
		require.NoError(e.t, os.MkdirAll(filepath.Join(root, sub), 0o755))
	}
	return root, "maildir://" + root
}

// deliver writes a message with the given Message-Id into a maildir
// subdirectory under file name.
func (e *testEnv) deliver(root, sub, name, msgID string) {
	e.t.Helper()
	body := fmt.Sprintf("Message-Id: <%s>\r\nFrom: a@example.com\r\nSubject: test\r\n\r\nhello\r\n", msgID)
	require.NoError(e.t, os.WriteFile(filepath.Join(root, sub, name), []byte(body), 0o644))
}

func (e *testEnv) writeFile(name, content string) string {
	e.t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(e.t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
