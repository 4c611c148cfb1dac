package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	harnesserrors "github.com/jowharshamshiri/Janus/errors"
)

const validJSON = `{
  "socket_dir": "/tmp/janus_test",
  "ready_timeout_seconds": 10,
  "request_timeout_seconds": 2.5,
  "success_threshold": 95,
  "workers": 10,
  "implementations": {
    "go": {
      "language": "go",
      "directory": "/opt/impls/go",
      "build_command": ["go", "build", "-o", "server", "./cmd/server"],
      "listen_command": ["./server", "--listen", "--socket", "{socket}"],
      "send_command": ["./server", "--send-to", "{target}", "--command", "{command}", "--message", "{message}"],
      "socket_path": "/tmp/janus_go.sock"
    },
    "rust": {
      "language": "rust",
      "directory": "/opt/impls/rust",
      "listen_command": ["cargo", "run", "--", "--listen", "--socket", "{socket}"],
      "socket_path": "/tmp/janus_rust.sock"
    }
  }
}`

const validYAML = `
socket_dir: /tmp/janus_test
request_timeout_seconds: 2.5
implementations:
  go:
    language: go
    directory: /opt/impls/go
    listen_command: ["./server", "--listen", "--socket", "{socket}"]
    socket_path: /tmp/janus_go.sock
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadJSON(t *testing.T) {
	cfg, err := Load(writeConfig(t, "harness.json", validJSON))
	require.NoError(t, err)

	assert.Equal(t, "/tmp/janus_test", cfg.SocketDir)
	assert.Equal(t, 10*time.Second, cfg.ReadyTimeout())
	assert.Equal(t, 2500*time.Millisecond, cfg.RequestTimeout())
	assert.Equal(t, 95.0, cfg.SuccessThreshold)
	assert.Equal(t, 10, cfg.Workers)
	assert.Len(t, cfg.Implementations, 2)
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, "harness.yaml", validYAML))
	require.NoError(t, err)

	assert.Equal(t, 2500*time.Millisecond, cfg.RequestTimeout())
	require.Contains(t, cfg.Implementations, "go")
	assert.Equal(t, []string{"./server", "--listen", "--socket", "{socket}"},
		cfg.Implementations["go"].ListenCommand)
}

func TestLoadDefaults(t *testing.T) {
	minimal := `{"implementations": {"go": {
		"listen_command": ["./server", "--socket", "{socket}"],
		"socket_path": "/tmp/janus_go.sock"
	}}}`
	cfg, err := Load(writeConfig(t, "minimal.json", minimal))
	require.NoError(t, err)

	assert.Equal(t, DefaultReadyTimeout, cfg.ReadyTimeout())
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout())
	assert.Equal(t, DefaultStopGrace, cfg.StopGrace())
	assert.Equal(t, DefaultBuildTimeout, cfg.BuildTimeout())
	assert.Equal(t, DefaultSuccessThreshold, cfg.SuccessThreshold)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.NotEmpty(t, cfg.SocketDir)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, harnesserrors.ErrConfigNotFound)
}

func TestLoadMalformed(t *testing.T) {
	_, err := Load(writeConfig(t, "broken.json", "{not json"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "broken.yaml", "\t tabs are not yaml"))
	assert.Error(t, err)
}

func TestLoadSchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no implementations key", `{"socket_dir": "/tmp/x"}`},
		{"empty implementations", `{"implementations": {}}`},
		{"missing socket_path", `{"implementations": {"go": {"listen_command": ["./s", "{socket}"]}}}`},
		{"listen_command not array", `{"implementations": {"go": {"listen_command": "./s", "socket_path": "/tmp/go.sock"}}}`},
		{"unknown top-level key", `{"implementations": {"go": {"listen_command": ["./s", "{socket}"], "socket_path": "/tmp/go.sock"}}, "bogus": 1}`},
		{"negative timeout", `{"ready_timeout_seconds": -1, "implementations": {"go": {"listen_command": ["./s", "{socket}"], "socket_path": "/tmp/go.sock"}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "bad.json", tt.content))
			assert.Error(t, err)
		})
	}
}

func TestValidateRelativeSocketPath(t *testing.T) {
	content := `{"implementations": {"go": {
		"listen_command": ["./server", "--socket", "{socket}"],
		"socket_path": "relative/path.sock"
	}}}`
	_, err := Load(writeConfig(t, "rel.json", content))
	assert.ErrorIs(t, err, harnesserrors.ErrInvalidConfig)
}

func TestRegistryConversion(t *testing.T) {
	cfg, err := Load(writeConfig(t, "harness.json", validJSON))
	require.NoError(t, err)

	reg, err := cfg.Registry()
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "rust"}, reg.Names())

	d, err := reg.Get("go")
	require.NoError(t, err)
	assert.True(t, d.HasBuildStep())
	assert.True(t, d.HasSender())
	assert.Equal(t, "/tmp/janus_go.sock", d.SocketPath)

	r, err := reg.Get("rust")
	require.NoError(t, err)
	assert.False(t, r.HasBuildStep())
	assert.False(t, r.HasSender())
}
