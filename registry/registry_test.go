package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	harnesserrors "github.com/jowharshamshiri/Janus/errors"
)

func validDescriptor(name string) *Descriptor {
	return &Descriptor{
		Name:       name,
		Language:   name,
		Dir:        "/opt/impls/" + name,
		BuildArgs:  []string{"make", "build"},
		ListenArgs: []string{"./server", "--listen", "--socket", "{socket}"},
		SendArgs:   []string{"./server", "--send-to", "{target}", "--command", "{command}", "--message", "{message}"},
		SocketPath: "/tmp/janus_" + name + ".sock",
	}
}

func TestNewRegistry(t *testing.T) {
	reg, err := New([]*Descriptor{validDescriptor("rust"), validDescriptor("go")})
	require.NoError(t, err)

	assert.Equal(t, 2, reg.Len())
	// Name-sorted for deterministic pairing
	assert.Equal(t, []string{"go", "rust"}, reg.Names())

	d, err := reg.Get("go")
	require.NoError(t, err)
	assert.Equal(t, "go", d.Name)

	_, err = reg.Get("swift")
	assert.ErrorIs(t, err, harnesserrors.ErrUnknownImplementation)
}

func TestNewRegistryValidation(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, harnesserrors.ErrNoImplementations)

	dup := []*Descriptor{validDescriptor("go"), validDescriptor("go")}
	_, err = New(dup)
	assert.Error(t, err)

	noListen := validDescriptor("go")
	noListen.ListenArgs = nil
	_, err = New([]*Descriptor{noListen})
	assert.Error(t, err)

	noPlaceholder := validDescriptor("go")
	noPlaceholder.ListenArgs = []string{"./server", "--listen"}
	_, err = New([]*Descriptor{noPlaceholder})
	assert.Error(t, err)

	noSocket := validDescriptor("go")
	noSocket.SocketPath = ""
	_, err = New([]*Descriptor{noSocket})
	assert.Error(t, err)
}

func TestListenCommandExpansion(t *testing.T) {
	d := validDescriptor("go")
	got := d.ListenCommand("/tmp/run42/go.sock")
	assert.Equal(t, []string{"./server", "--listen", "--socket", "/tmp/run42/go.sock"}, got)

	// Template itself is untouched
	assert.Equal(t, "{socket}", d.ListenArgs[3])
}

func TestSendCommandExpansion(t *testing.T) {
	d := validDescriptor("go")
	got := d.SendCommand("/tmp/go.sock", "echo", "hello world")
	assert.Equal(t, []string{
		"./server", "--send-to", "/tmp/go.sock", "--command", "echo", "--message", "hello world",
	}, got)
}

func TestDescriptorCapabilities(t *testing.T) {
	d := validDescriptor("go")
	assert.True(t, d.HasBuildStep())
	assert.True(t, d.HasSender())

	d.BuildArgs = nil
	d.SendArgs = nil
	assert.False(t, d.HasBuildStep())
	assert.False(t, d.HasSender())
}
