package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jowharshamshiri/Janus/registry"
)

// WriteScript writes an executable shell script into a temp dir and
// returns its path. Used to stand in for implementation build, listen,
// and send commands.
func WriteScript(t *testing.T, name, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write script %s: %v", name, err)
	}
	return path
}

// ScriptDescriptor builds a descriptor whose listen command runs the
// given shell script body with {socket} expanded into it.
func ScriptDescriptor(t *testing.T, name, listenBody string) *registry.Descriptor {
	t.Helper()
	return &registry.Descriptor{
		Name:       name,
		Language:   "shell",
		Dir:        t.TempDir(),
		ListenArgs: []string{"/bin/sh", "-c", listenBody},
		SocketPath: SocketPath(t, name+".sock"),
	}
}
