package e2e

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmokeVersionAndTargets(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)

	stdout, stderr, err := runAigdb(t, binaryPath, home, "version")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.NotEmpty(t, strings.TrimSpace(stdout))

	stdout, stderr, err = runAigdb(t, binaryPath, home, "targets")
	require.NoError(t, err, "stderr: %s", stderr)
	assert.Contains(t, stdout, "no targets recorded yet")
}

func TestSmokeAnalyzeRejectsMissingCore(t *testing.T) {
	home := t.TempDir()
	binaryPath := buildBinary(t)

	_, stderr, err := runAigdb(t, binaryPath, home, "analyze",
		"--exe", filepath.Join(home, "missing-binary"),
		"--core", filepath.Join(home, "missing-core"),
	)
	require.Error(t, err)
	assert.Contains(t, stderr, "load target")
}

func buildBinary(t *testing.T) string {
	t.Helper()

	binaryPath := filepath.Join(t.TempDir(), "aigdb-e2e")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/aigdb")
	cmd.Dir = repoRoot(t)

	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "build aigdb binary: %s", string(output))
	return binaryPath
}

func runAigdb(t *testing.T, binaryPath, home string, args ...string) (string, string, error) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Env = append(os.Environ(), "HOME="+home)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func repoRoot(t *testing.T) string {
	t.Helper()

	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(wd, "..", ".."))
}
