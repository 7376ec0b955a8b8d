package main_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	gopsprocess "github.com/shirou/gopsutil/v4/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/fix-acceptor/exitcodes"
	"github.com/ethereum-optimism/infra/fix-acceptor/internal/fakeengine"
)

type result struct {
	exitCode int
	stdout   string
	stderr   string
}

// buildFixAcceptor builds the fix-acceptor binary into a temporary directory
func buildFixAcceptor(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "fix-acceptor")
	cmd := exec.Command("go", "build", "-o", binaryPath, ".")
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "Failed to build fix-acceptor: %s", string(output))
	return binaryPath
}

func runFixAcceptor(t *testing.T, binaryPath string, args ...string) result {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binaryPath, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	res := result{stdout: stdout.String(), stderr: stderr.String()}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.exitCode = 0
	case errors.As(err, &exitErr):
		res.exitCode = exitErr.ExitCode()
	default:
		require.NoError(t, err)
	}
	return res
}

// setupFixtures creates <dir>/fix/<name>.fixt for every name, each exiting with the given code
func setupFixtures(t *testing.T, dir string, exitCodes map[string]int) {
	t.Helper()
	fixDir := filepath.Join(dir, "fix")
	require.NoError(t, os.MkdirAll(fixDir, 0o755))
	for name, code := range exitCodes {
		fakeengine.WriteScript(t, fixDir, name+".fixt", "exit "+strconv.Itoa(code))
	}
}

// TestExitCodeBehavior verifies the exit codes in run-once mode:
// - Exit code 0 when all tests pass
// - Exit code 1 when any test fails, or the command line is invalid
// - Exit code 2 when the engine executable is missing
func TestExitCodeBehavior(t *testing.T) {
	bin := buildFixAcceptor(t)

	t.Run("passing suite", func(t *testing.T) {
		dir := t.TempDir()
		engine := fakeengine.Install(t, t.TempDir(), "fix")
		setupFixtures(t, dir, map[string]int{"logon": 0, "heartbeat": 0})

		res := runFixAcceptor(t, bin,
			"--fixtures", dir,
			"--fix-bin", engine,
			"--port", strconv.Itoa(fakeengine.FreePort(t)),
			"--logdir", filepath.Join(dir, "logs"),
			"-v",
		)
		require.Equal(t, exitcodes.Success, res.exitCode, "stdout:\n%s\nstderr:\n%s", res.stdout, res.stderr)
		assert.Contains(t, res.stdout, "PASS fix/heartbeat")
		assert.Contains(t, res.stdout, "PASS fix/logon")
		assert.Contains(t, res.stdout, "fix: OK (2 tests)")
		assert.NotContains(t, res.stdout, "lvl=", "logs must not be written to stdout")

		runDirs, err := filepath.Glob(filepath.Join(dir, "logs", "testrun-*"))
		require.NoError(t, err)
		require.Len(t, runDirs, 1)
		assert.FileExists(t, filepath.Join(runDirs[0], "summary.log"))
		assert.FileExists(t, filepath.Join(runDirs[0], "passed", "fix_logon.log"))
	})

	t.Run("two of five tests fail", func(t *testing.T) {
		dir := t.TempDir()
		engine := fakeengine.Install(t, t.TempDir(), "fix")
		setupFixtures(t, dir, map[string]int{"t1": 0, "t2": 7, "t3": 0, "t4": 7, "t5": 0})

		res := runFixAcceptor(t, bin,
			"--fixtures", dir,
			"--fix-bin", engine,
			"--port", strconv.Itoa(fakeengine.FreePort(t)),
			"--logdir", "",
			"-v",
		)
		require.Equal(t, exitcodes.TestFailure, res.exitCode, "stdout:\n%s\nstderr:\n%s", res.stdout, res.stderr)
		for _, line := range []string{"PASS fix/t1", "FAIL fix/t2 (exit 7)", "PASS fix/t3", "FAIL fix/t4 (exit 7)", "PASS fix/t5"} {
			assert.Contains(t, res.stdout, line)
		}
		assert.Contains(t, res.stdout, "fix: Tests run: 5, Failures: 2")
	})

	t.Run("summary only by default", func(t *testing.T) {
		dir := t.TempDir()
		engine := fakeengine.Install(t, t.TempDir(), "fix")
		setupFixtures(t, dir, map[string]int{"logon": 0})

		res := runFixAcceptor(t, bin,
			"--fixtures", dir,
			"--fix-bin", engine,
			"--port", strconv.Itoa(fakeengine.FreePort(t)),
			"--logdir", "",
		)
		require.Equal(t, exitcodes.Success, res.exitCode, "stderr:\n%s", res.stderr)
		assert.NotContains(t, res.stdout, "PASS fix/logon")
		assert.Contains(t, res.stdout, "fix: OK (1 tests)")
	})

	t.Run("missing server executable", func(t *testing.T) {
		dir := t.TempDir()
		setupFixtures(t, dir, map[string]int{"logon": 0})

		res := runFixAcceptor(t, bin,
			"--fixtures", dir,
			"--fix-bin", filepath.Join(dir, "does-not-exist"),
			"--port", strconv.Itoa(fakeengine.FreePort(t)),
			"--logdir", "",
			"-v",
		)
		assert.Equal(t, exitcodes.RuntimeErr, res.exitCode)
		assert.NotContains(t, res.stdout, "PASS")
		assert.NotContains(t, res.stdout, "FAIL")
		assert.Empty(t, fakeengine.ServerPIDs(t, filepath.Join(dir, "fix", "logon.fixt")), "no trial may start")
	})

	t.Run("no fixtures or catalog", func(t *testing.T) {
		res := runFixAcceptor(t, bin, "--logdir", "")
		assert.Equal(t, exitcodes.TestFailure, res.exitCode)
		assert.Contains(t, res.stderr, "one of --fixtures or --catalog is required")
	})

	t.Run("unknown flag", func(t *testing.T) {
		res := runFixAcceptor(t, bin, "--no-such-flag")
		assert.Equal(t, exitcodes.TestFailure, res.exitCode)
	})
}

func TestCatalogSuitesAreIndependent(t *testing.T) {
	bin := buildFixAcceptor(t)

	dir := t.TempDir()
	fakeengine.Install(t, dir, "engine")
	fakeengine.WriteScript(t, dir, "reject.fixt", "exit 1")
	fakeengine.WriteScript(t, dir, "heartbeat.fast", "exit 0")
	fakeengine.WriteScript(t, dir, "heartbeat.xml", "<templates/>")

	catalog := filepath.Join(dir, "suites.yaml")
	require.NoError(t, os.WriteFile(catalog, []byte(`suites:
  - id: fix
    kind: fix
    server: ./engine
    client: ./engine
    tests:
      - name: reject
        script: reject.fixt
  - id: fast
    kind: fast
    server: ./engine
    client: ./engine
    tests:
      - name: heartbeat
        script: heartbeat.fast
        template: heartbeat.xml
`), 0o644))

	res := runFixAcceptor(t, bin,
		"--catalog", catalog,
		"--port", strconv.Itoa(fakeengine.FreePort(t)),
		"--logdir", "",
		"-vv",
		"--no-color",
	)
	require.Equal(t, exitcodes.TestFailure, res.exitCode, "stdout:\n%s\nstderr:\n%s", res.stdout, res.stderr)
	assert.Contains(t, res.stdout, "=== RUN   fix/reject")
	assert.Contains(t, res.stdout, "FAIL fix/reject (exit 1)")
	assert.Contains(t, res.stdout, "fix: Tests run: 1, Failures: 1")
	assert.Contains(t, res.stdout, "PASS fast/heartbeat")
	assert.Contains(t, res.stdout, "fast: OK (1 tests)")
	assert.Contains(t, res.stdout, "[server] Server is listening to port")
	assert.Contains(t, res.stdout, "Acceptance Testing Results")
	assert.NotContains(t, res.stdout, "\x1b[")
}

// TestInterruptKillsChildren interrupts the driver during a hanging trial: the
// remaining trials are aborted and no server outlives the driver.
func TestInterruptKillsChildren(t *testing.T) {
	bin := buildFixAcceptor(t)

	dir := t.TempDir()
	engine := fakeengine.Install(t, t.TempDir(), "fix")
	fixDir := filepath.Join(dir, "fix")
	require.NoError(t, os.MkdirAll(fixDir, 0o755))
	fakeengine.WriteScript(t, fixDir, "a.fixt", "exit 0")
	hanging := fakeengine.WriteScript(t, fixDir, "b.fixt", "client-hang")
	fakeengine.WriteScript(t, fixDir, "c.fixt", "client-hang")

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(bin,
		"--fixtures", dir,
		"--fix-bin", engine,
		"--port", strconv.Itoa(fakeengine.FreePort(t)),
		"--settle-delay", "200ms",
		"--trial-timeout", "1m",
		"--logdir", "",
		"-v",
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	require.NoError(t, cmd.Start())
	t.Cleanup(func() { _ = cmd.Process.Kill() })

	require.Eventually(t, func() bool {
		_, err := os.Stat(hanging + ".pid")
		return err == nil
	}, 30*time.Second, 20*time.Millisecond, "hanging trial never started")
	time.Sleep(500 * time.Millisecond)
	require.NoError(t, cmd.Process.Signal(os.Interrupt))

	waitErr := make(chan error, 1)
	go func() { waitErr <- cmd.Wait() }()
	var err error
	select {
	case err = <-waitErr:
	case <-time.After(30 * time.Second):
		t.Fatalf("fix-acceptor did not exit after interrupt\nstdout:\n%s\nstderr:\n%s", stdout.String(), stderr.String())
	}

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr, "stdout:\n%s\nstderr:\n%s", stdout.String(), stderr.String())
	assert.Equal(t, exitcodes.TestFailure, exitErr.ExitCode())
	assert.Contains(t, stdout.String(), "PASS fix/a")
	assert.Contains(t, stdout.String(), "ABORT fix/b (interrupted)")
	assert.Contains(t, stdout.String(), "ABORT fix/c (interrupted)")
	assert.Contains(t, stdout.String(), "fix: Tests run: 3, Failures: 2")

	pids := fakeengine.ServerPIDs(t, hanging)
	require.NotEmpty(t, pids)
	for _, pid := range pids {
		assert.Eventually(t, func() bool {
			exists, err := gopsprocess.PidExists(int32(pid))
			return err == nil && !exists
		}, 5*time.Second, 50*time.Millisecond, "server %d outlived the driver", pid)
	}
}
