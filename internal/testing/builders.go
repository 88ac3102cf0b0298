package testing

import (
	"github.com/imamik/vcdflow/internal/config"
)

// ConfigBuilder provides a fluent interface for constructing test configs.
// Each method returns a new builder (immutable) for chaining.
type ConfigBuilder struct {
	cfg config.Config
}

// NewConfigBuilder creates a new ConfigBuilder with sensible defaults.
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		cfg: config.Config{
			Backend:  config.BackendSim,
			Timeouts: FastTimeouts(),
			Log:      config.LogConfig{Level: "info", Format: "console"},
		},
	}
}

// WithBackend sets the control plane backend.
func (b *ConfigBuilder) WithBackend(backend string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Backend = backend
	return newBuilder
}

// WithHCloudToken sets the Hetzner Cloud token.
func (b *ConfigBuilder) WithHCloudToken(token string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.HCloud.Token = token
	return newBuilder
}

// WithTimeouts sets the timeouts.
func (b *ConfigBuilder) WithTimeouts(t *config.Timeouts) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Timeouts = t
	return newBuilder
}

// WithShapes sets the shape catalog.
func (b *ConfigBuilder) WithShapes(shapes ...config.Shape) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Shapes = append([]config.Shape(nil), shapes...)
	return newBuilder
}

// WithJournal sets the journal path.
func (b *ConfigBuilder) WithJournal(path string) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Journal.Path = path
	return newBuilder
}

// WithCleanupOnFailure sets whether failed launches are cleaned up.
func (b *ConfigBuilder) WithCleanupOnFailure(enabled bool) *ConfigBuilder {
	newBuilder := b.clone()
	newBuilder.cfg.Launch.CleanupOnFailure = &enabled
	return newBuilder
}

// Build returns the constructed config.
func (b *ConfigBuilder) Build() *config.Config {
	cfg := b.clone().cfg
	return &cfg
}

func (b *ConfigBuilder) clone() *ConfigBuilder {
	cfg := b.cfg
	if b.cfg.Timeouts != nil {
		t := *b.cfg.Timeouts
		cfg.Timeouts = &t
	}
	cfg.Shapes = append([]config.Shape(nil), b.cfg.Shapes...)
	return &ConfigBuilder{cfg: cfg}
}
