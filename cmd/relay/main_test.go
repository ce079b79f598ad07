package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kode4food/relay/pkg/api"
)

const echoDefinition = `name: build
steps:
  - cmd: echo hello
    desc: greet
  - cmd: echo world
    desc: follow up
`

const failingDefinition = `name: broken
steps:
  - cmd: exit 3
  - cmd: echo after
`

func TestRunDefinition(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	path := writeDefinition(t, "build.yaml", echoDefinition)

	var stdout, stderr bytes.Buffer
	code := run([]string{"run", path}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	var rep api.RunReport
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rep))
	assert.Equal(t, "build", rep.Pipeline)
	assert.Contains(t, rep.Snapshot, "build_")
	require.Len(t, rep.Steps, 2)

	res, ok := rep.Steps[0].Result()
	require.True(t, ok)
	assert.Equal(t, "hello\n", res.Output)
	res, ok = rep.Steps[1].Result()
	require.True(t, ok)
	assert.Equal(t, "world\n", res.Output)
}

func TestRunStepEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("STEP_WORKDIR", dir)
	t.Setenv("STEP_ENV", "RELAY_MODE=ci")
	path := writeDefinition(t, "env.yaml", `name: env
steps:
  - cmd: echo "$RELAY_MODE"; pwd
`)

	var stdout, stderr bytes.Buffer
	code := run([]string{"run", path}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	var rep api.RunReport
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rep))
	require.Len(t, rep.Steps, 1)
	res, ok := rep.Steps[0].Result()
	require.True(t, ok)
	assert.Contains(t, res.Output, "ci\n")
	assert.Contains(t, res.Output, filepath.Base(dir))
}

func TestRunFailingStep(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	path := writeDefinition(t, "broken.yml", failingDefinition)

	var stdout, stderr bytes.Buffer
	code := run([]string{"run", path}, &stdout, &stderr)
	assert.Equal(t, exitFailure, code)

	var rep api.RunReport
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rep))
	assert.True(t, rep.Failed())
	assert.Len(t, rep.Executed(), 2)
}

func TestRunAbortPolicy(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("FAILURE_POLICY", "abort")
	path := writeDefinition(t, "broken.yaml", failingDefinition)

	var stdout, stderr bytes.Buffer
	code := run([]string{"run", path}, &stdout, &stderr)
	assert.Equal(t, exitFailure, code)

	var rep api.RunReport
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rep))
	assert.Len(t, rep.Executed(), 1)
	assert.NotEmpty(t, rep.Error)
}

func TestRunArchivesReport(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("ARCHIVE_URL", "file://"+dir)
	path := writeDefinition(t, "build.yaml", echoDefinition)

	var stdout, stderr bytes.Buffer
	code := run([]string{"run", path}, &stdout, &stderr)
	require.Equal(t, exitOK, code, stderr.String())

	var rep api.RunReport
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rep))
	_, err := os.Stat(filepath.Join(dir, "runs", rep.Snapshot+".json"))
	assert.NoError(t, err)
}

func TestRunMissingDefinition(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")

	var stdout, stderr bytes.Buffer
	path := filepath.Join(t.TempDir(), "missing.yaml")
	code := run([]string{"run", path}, &stdout, &stderr)
	assert.Equal(t, exitFailure, code)
	assert.Empty(t, stdout.String())
}

func TestUsage(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "no_args", args: nil},
		{name: "unknown_command", args: []string{"launch"}},
		{name: "run_without_file", args: []string{"run"}},
		{name: "serve_with_extra", args: []string{"serve", "now"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("STORE_BACKEND", "memory")
			var stdout, stderr bytes.Buffer
			code := run(tt.args, &stdout, &stderr)
			assert.Equal(t, exitUsage, code)
			assert.Contains(t, stderr.String(), "usage:")
		})
	}
}

func TestInvalidConfig(t *testing.T) {
	t.Setenv("STORE_BACKEND", "cassandra")
	path := writeDefinition(t, "build.yaml", echoDefinition)

	var stdout, stderr bytes.Buffer
	code := run([]string{"run", path}, &stdout, &stderr)
	assert.Equal(t, exitFailure, code)
}

func TestUnreachableStore(t *testing.T) {
	t.Setenv("STORE_BACKEND", "falkor")
	t.Setenv("STORE_REDIS_ADDR", "127.0.0.1:1")
	t.Setenv("STORE_TIMEOUT", "200ms")
	path := writeDefinition(t, "build.yaml", echoDefinition)

	var stdout, stderr bytes.Buffer
	code := run([]string{"run", path}, &stdout, &stderr)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr.String(), ErrConnectStore.Error())
}

func writeDefinition(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}
