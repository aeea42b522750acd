package app_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/portflow/internal/app"
)

func writeGraph(t *testing.T, doc string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "graph.hcl")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestNewConfigRequiresGraphPath(t *testing.T) {
	_, err := app.NewConfig(app.Config{})
	require.Error(t, err)

	cfg, err := app.NewConfig(app.Config{GraphPath: "g.hcl"})
	require.NoError(t, err)
	assert.Equal(t, "g.hcl", cfg.GraphPath)
}

func TestNewAppRegistersCoreModules(t *testing.T) {
	var out bytes.Buffer
	cfg, err := app.NewConfig(app.Config{GraphPath: "g.hcl", LogLevel: "error"})
	require.NoError(t, err)

	a := app.NewApp(&out, cfg)
	types := a.Registry().Types()
	assert.Contains(t, types, "flow.for_each")
	assert.Contains(t, types, "flow.while")
	assert.Contains(t, types, "util.print")
	assert.Contains(t, types, "util.http_request")
}

func TestNewAppLoggerUsesConfiguredFormatAndLevel(t *testing.T) {
	var out bytes.Buffer
	cfg, err := app.NewConfig(app.Config{GraphPath: "g.hcl", LogLevel: "debug", LogFormat: "json"})
	require.NoError(t, err)

	app.NewApp(&out, cfg)

	assert.Contains(t, out.String(), `"level":"DEBUG"`)
	assert.Contains(t, out.String(), "Logger configured successfully.")
}

func TestRunExecutesDocumentAndPrintsResults(t *testing.T) {
	doc := `
node "util.print" "greeting" {
  input {
    value = "${{"message": "hello"}}"
    label = "${"greeting"}"
  }
}
`
	path := writeGraph(t, doc)
	var out bytes.Buffer
	cfg, err := app.NewConfig(app.Config{GraphPath: path, LogLevel: "error"})
	require.NoError(t, err)

	a := app.NewApp(&out, cfg)
	require.NoError(t, a.Run(context.Background()))

	assert.Contains(t, out.String(), "greeting")
	assert.Contains(t, out.String(), "hello")
}

func TestRunPropagatesLinearChain(t *testing.T) {
	doc := `
node "util.print" "first" {
  input {
    value = "${{"n": 2}}"
  }
}

node "util.print" "second" {
  depends_on = ["first"]
  input {
    value = "${output.value.n * 21}"
  }
}
`
	path := writeGraph(t, doc)
	var out bytes.Buffer
	cfg, err := app.NewConfig(app.Config{GraphPath: path, LogLevel: "error"})
	require.NoError(t, err)

	a := app.NewApp(&out, cfg)
	require.NoError(t, a.Run(context.Background()))

	assert.Contains(t, out.String(), "42")
}

func TestRunEmptyDocument(t *testing.T) {
	path := writeGraph(t, "")
	var out bytes.Buffer
	cfg, err := app.NewConfig(app.Config{GraphPath: path, LogLevel: "error"})
	require.NoError(t, err)

	a := app.NewApp(&out, cfg)
	require.NoError(t, a.Run(context.Background()))
	assert.Empty(t, out.String())
}

func TestRunBadDocumentFails(t *testing.T) {
	path := writeGraph(t, `node "no.such_op" "x" {}`)
	var out bytes.Buffer
	cfg, err := app.NewConfig(app.Config{GraphPath: path, LogLevel: "error"})
	require.NoError(t, err)

	a := app.NewApp(&out, cfg)
	require.Error(t, a.Run(context.Background()))
}
