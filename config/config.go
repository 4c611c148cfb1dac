// Package config loads and validates harness configuration.
//
// The configuration file describes the implementations under test plus
// run-level tunables (socket directory, timeouts, the stress verdict
// threshold). JSON and YAML are both accepted; the parsed document is
// checked against an embedded JSON Schema before defaults are applied.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jowharshamshiri/Janus/errors"
	"github.com/jowharshamshiri/Janus/registry"
)

// Defaults applied when the file omits a tunable.
const (
	DefaultReadyTimeout     = 10 * time.Second
	DefaultSettleDelay      = 200 * time.Millisecond
	DefaultPollInterval     = 100 * time.Millisecond
	DefaultRequestTimeout   = 5 * time.Second
	DefaultStopGrace        = 5 * time.Second
	DefaultBuildTimeout     = 5 * time.Minute
	DefaultSuccessThreshold = 95.0
	DefaultProgressInterval = 30 * time.Second
	DefaultWorkers          = 20
)

// Implementation is one implementation entry in the config file.
type Implementation struct {
	Language      string   `json:"language" yaml:"language"`
	Directory     string   `json:"directory" yaml:"directory"`
	BuildCommand  []string `json:"build_command,omitempty" yaml:"build_command,omitempty"`
	ListenCommand []string `json:"listen_command" yaml:"listen_command"`
	SendCommand   []string `json:"send_command,omitempty" yaml:"send_command,omitempty"`
	SocketPath    string   `json:"socket_path" yaml:"socket_path"`
}

// Config is the complete harness configuration.
//
// Durations are expressed in seconds in the file; use the accessor
// methods to obtain time.Duration values with defaults applied.
type Config struct {
	SocketDir             string                    `json:"socket_dir,omitempty" yaml:"socket_dir,omitempty"`
	ReadyTimeoutSeconds   float64                   `json:"ready_timeout_seconds,omitempty" yaml:"ready_timeout_seconds,omitempty"`
	RequestTimeoutSeconds float64                   `json:"request_timeout_seconds,omitempty" yaml:"request_timeout_seconds,omitempty"`
	StopGraceSeconds      float64                   `json:"stop_grace_seconds,omitempty" yaml:"stop_grace_seconds,omitempty"`
	BuildTimeoutSeconds   float64                   `json:"build_timeout_seconds,omitempty" yaml:"build_timeout_seconds,omitempty"`
	SuccessThreshold      float64                   `json:"success_threshold,omitempty" yaml:"success_threshold,omitempty"`
	Workers               int                       `json:"workers,omitempty" yaml:"workers,omitempty"`
	Implementations       map[string]Implementation `json:"implementations" yaml:"implementations"`
}

// Load reads, validates, and defaults a configuration file. The format is
// chosen by extension: .yaml/.yml parse as YAML, anything else as JSON.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errors.ErrConfigNotFound, path)
		}
		return nil, errors.Wrap(err, "Config", "Load", "read file")
	}

	var document map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &document); err != nil {
			return nil, errors.WrapFatal(err, "Config", "Load", "parse yaml")
		}
	default:
		if err := json.Unmarshal(data, &document); err != nil {
			return nil, errors.WrapFatal(err, "Config", "Load", "parse json")
		}
	}

	if err := validateSchema(document); err != nil {
		return nil, err
	}

	// Round-trip through JSON to decode the generic document into the
	// typed struct regardless of the source format.
	normalized, err := json.Marshal(document)
	if err != nil {
		return nil, errors.WrapFatal(err, "Config", "Load", "normalize document")
	}
	var cfg Config
	if err := json.Unmarshal(normalized, &cfg); err != nil {
		return nil, errors.WrapFatal(err, "Config", "Load", "decode document")
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.SocketDir == "" {
		c.SocketDir = filepath.Join(os.TempDir(), "janus")
	}
	if c.SuccessThreshold == 0 {
		c.SuccessThreshold = DefaultSuccessThreshold
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
}

// Validate checks cross-field constraints the schema cannot express.
func (c *Config) Validate() error {
	if len(c.Implementations) == 0 {
		return errors.ErrNoImplementations
	}
	if c.SuccessThreshold < 0 || c.SuccessThreshold > 100 {
		return fmt.Errorf("%w: success_threshold %.1f outside [0,100]",
			errors.ErrInvalidConfig, c.SuccessThreshold)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers cannot be negative", errors.ErrInvalidConfig)
	}
	for name, impl := range c.Implementations {
		if len(impl.ListenCommand) == 0 {
			return fmt.Errorf("%w: implementation %q missing listen_command",
				errors.ErrInvalidConfig, name)
		}
		if impl.SocketPath == "" {
			return fmt.Errorf("%w: implementation %q missing socket_path",
				errors.ErrInvalidConfig, name)
		}
		if !filepath.IsAbs(impl.SocketPath) {
			return fmt.Errorf("%w: implementation %q socket_path must be absolute",
				errors.ErrInvalidConfig, name)
		}
	}
	return nil
}

func secondsOr(value float64, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return time.Duration(value * float64(time.Second))
}

// ReadyTimeout is the bound on listener readiness polling.
func (c *Config) ReadyTimeout() time.Duration {
	return secondsOr(c.ReadyTimeoutSeconds, DefaultReadyTimeout)
}

// RequestTimeout is the per-request reply deadline.
func (c *Config) RequestTimeout() time.Duration {
	return secondsOr(c.RequestTimeoutSeconds, DefaultRequestTimeout)
}

// StopGrace is how long Stop waits after SIGTERM before SIGKILL.
func (c *Config) StopGrace() time.Duration {
	return secondsOr(c.StopGraceSeconds, DefaultStopGrace)
}

// BuildTimeout bounds one build invocation.
func (c *Config) BuildTimeout() time.Duration {
	return secondsOr(c.BuildTimeoutSeconds, DefaultBuildTimeout)
}

// Registry converts the configured implementations into the immutable
// descriptor registry used by the rest of the harness.
func (c *Config) Registry() (*registry.Registry, error) {
	descriptors := make([]*registry.Descriptor, 0, len(c.Implementations))
	for name, impl := range c.Implementations {
		descriptors = append(descriptors, &registry.Descriptor{
			Name:       name,
			Language:   impl.Language,
			Dir:        impl.Directory,
			BuildArgs:  impl.BuildCommand,
			ListenArgs: impl.ListenCommand,
			SendArgs:   impl.SendCommand,
			SocketPath: impl.SocketPath,
		})
	}
	return registry.New(descriptors)
}
