package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// emptyConfig writes an empty config file so tests ignore files in the
// working or home directory.
func emptyConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: error\n"), 0o600))
	return path
}

func TestScheduleCmd(t *testing.T) {
	out, err := execute(t, "schedule", "--config", emptyConfig(t),
		"--particles", "16", "--base", "2", "--min-group", "2", "--max-group", "16", "--steps", "16")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 9) // header + steps 2, 4, ..., 16
	assert.Contains(t, lines[0], "GROUP SIZE")
	assert.Equal(t, []string{"16", "8", "16", "1", "2"}, strings.Fields(lines[8]))
	assert.Equal(t, []string{"6", "3", "2", "8", "0"}, strings.Fields(lines[3]))
}

func TestScheduleInvalid(t *testing.T) {
	_, err := execute(t, "schedule", "--config", emptyConfig(t), "--particles", "10")
	assert.Error(t, err)
}

func TestSimulateWithTrace(t *testing.T) {
	dir := t.TempDir()
	cfg := emptyConfig(t)

	out, err := execute(t, "simulate", "--config", cfg,
		"--storage", "local", "--storage-path", dir,
		"--method", "global", "--param", "num_particles=8", "--param", "base=4",
		"--steps", "12", "--seed", "3", "--run", "sim-test", "--trace")
	require.NoError(t, err)
	assert.Contains(t, out, "sim-test")
	assert.Regexp(t, `resamples\s+3`, out)

	out, err = execute(t, "trace", "list", "--config", cfg, "--storage", "local", "--storage-path", dir)
	require.NoError(t, err)
	assert.Equal(t, "sim-test\n", out)

	out, err = execute(t, "trace", "inspect", "--config", cfg, "--storage", "local", "--storage-path", dir, "--run", "sim-test")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 14) // header + steps 0..12

	out, err = execute(t, "trace", "inspect", "--config", cfg, "--storage", "local", "--storage-path", dir, "--run", "sim-test", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"group_size":8`)

	out, err = execute(t, "trace", "inspect", "--config", cfg, "--storage", "local", "--storage-path", dir, "--run", "sim-test", "--summary")
	require.NoError(t, err)
	assert.Regexp(t, `steps\s+13`, out)
}

func TestSimulateMeasurement(t *testing.T) {
	out, err := execute(t, "simulate", "--config", emptyConfig(t), "--storage", "memory",
		"--method", "diverse-beam-search", "--param", "num_particles=8", "--param", "g=4", "--param", "base=2",
		"--mode", "probabilistic", "--provider", "measurement", "--guidance", "0.1", "--steps", "8")
	require.NoError(t, err)
	assert.Regexp(t, `resamples\s+\d+`, out)
	assert.Contains(t, out, "diverse-beam-search")
}

func TestSimulateUnknownProvider(t *testing.T) {
	_, err := execute(t, "simulate", "--config", emptyConfig(t), "--storage", "memory", "--provider", "adaface", "--steps", "1")
	assert.Error(t, err)
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")

	out, err := execute(t, "config", "init", "--config", emptyConfig(t), "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "method: group-meeting")

	_, err = execute(t, "config", "init", "--config", emptyConfig(t), "-o", path)
	assert.Error(t, err)

	out, err = execute(t, "config", "show", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "driver: local")
}
