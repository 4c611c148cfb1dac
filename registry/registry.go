// Package registry holds the static metadata for each tested protocol
// implementation. Descriptors are immutable once the registry is built;
// they are created at startup from configuration and live for the
// process lifetime.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jowharshamshiri/Janus/errors"
)

// Template placeholders substituted into argv templates.
const (
	PlaceholderSocket  = "{socket}"  // listener bind path
	PlaceholderTarget  = "{target}"  // send target path
	PlaceholderCommand = "{command}" // command name for a send invocation
	PlaceholderMessage = "{message}" // payload for a send invocation
)

// Descriptor is the immutable metadata for one implementation under test.
// The harness treats build/listen/send as opaque argv templates; it knows
// nothing about an implementation beyond this record.
type Descriptor struct {
	Name       string   // registry key, e.g. "go", "rust"
	Language   string   // language tag for reporting
	Dir        string   // working directory for all invocations
	BuildArgs  []string // build command template; empty means no build step
	ListenArgs []string // listen command template; must contain {socket}
	SendArgs   []string // send command template; empty means no external CLI sender
	SocketPath string   // server-side bind path for this implementation
}

// HasBuildStep reports whether the implementation needs building before use.
func (d *Descriptor) HasBuildStep() bool {
	return len(d.BuildArgs) > 0
}

// HasSender reports whether the implementation ships an external CLI sender.
func (d *Descriptor) HasSender() bool {
	return len(d.SendArgs) > 0
}

// ListenCommand expands the listen template for the given socket path.
func (d *Descriptor) ListenCommand(socketPath string) []string {
	return expand(d.ListenArgs, map[string]string{
		PlaceholderSocket: socketPath,
	})
}

// SendCommand expands the send template for one request.
func (d *Descriptor) SendCommand(targetSocket, command, message string) []string {
	return expand(d.SendArgs, map[string]string{
		PlaceholderTarget:  targetSocket,
		PlaceholderCommand: command,
		PlaceholderMessage: message,
	})
}

func expand(template []string, subs map[string]string) []string {
	out := make([]string, len(template))
	for i, arg := range template {
		for placeholder, value := range subs {
			arg = strings.ReplaceAll(arg, placeholder, value)
		}
		out[i] = arg
	}
	return out
}

// Registry is the set of implementations under test. Built once at
// startup; read-only afterwards, so it is safe for concurrent use.
type Registry struct {
	byName map[string]*Descriptor
	names  []string
}

// New builds a registry from descriptors. Names must be unique and listen
// templates must reference the socket placeholder.
func New(descriptors []*Descriptor) (*Registry, error) {
	if len(descriptors) == 0 {
		return nil, errors.ErrNoImplementations
	}

	r := &Registry{byName: make(map[string]*Descriptor, len(descriptors))}
	for _, d := range descriptors {
		if d.Name == "" {
			return nil, errors.WrapInvalid(
				fmt.Errorf("descriptor with empty name"), "Registry", "New", "validate descriptor")
		}
		if _, exists := r.byName[d.Name]; exists {
			return nil, errors.WrapInvalid(
				fmt.Errorf("duplicate implementation %q", d.Name), "Registry", "New", "validate descriptor")
		}
		if len(d.ListenArgs) == 0 {
			return nil, errors.WrapInvalid(
				fmt.Errorf("implementation %q has no listen command", d.Name), "Registry", "New", "validate descriptor")
		}
		if !strings.Contains(strings.Join(d.ListenArgs, " "), PlaceholderSocket) {
			return nil, errors.WrapInvalid(
				fmt.Errorf("implementation %q listen command lacks %s placeholder", d.Name, PlaceholderSocket),
				"Registry", "New", "validate descriptor")
		}
		if d.SocketPath == "" {
			return nil, errors.WrapInvalid(
				fmt.Errorf("implementation %q has no socket path", d.Name), "Registry", "New", "validate descriptor")
		}
		r.byName[d.Name] = d
		r.names = append(r.names, d.Name)
	}

	// Deterministic iteration order for matrix pairing and round-robin cycling
	sort.Strings(r.names)
	return r, nil
}

// Get returns the descriptor for a name.
func (r *Registry) Get(name string) (*Descriptor, error) {
	d, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownImplementation, name)
	}
	return d, nil
}

// Names returns implementation names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// All returns all descriptors in name-sorted order.
func (r *Registry) All() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.byName[name])
	}
	return out
}

// Len returns the number of registered implementations.
func (r *Registry) Len() int {
	return len(r.names)
}
