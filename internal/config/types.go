package config

// Backend names.
const (
	BackendHCloud = "hcloud"
	BackendSim    = "sim"
)

// Config is the root of the configuration file.
type Config struct {
	Backend  string        `yaml:"backend" validate:"required,oneof=hcloud sim"`
	HCloud   HCloudConfig  `yaml:"hcloud"`
	Timeouts *Timeouts     `yaml:"timeouts" validate:"required"`
	Shapes   []Shape       `yaml:"shapes" validate:"dive"`
	Launch   LaunchConfig  `yaml:"launch"`
	Journal  JournalConfig `yaml:"journal"`
	Events   EventsConfig  `yaml:"events"`
	Tracing  TracingConfig `yaml:"tracing"`
	Log      LogConfig     `yaml:"log"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// HCloudConfig configures the Hetzner Cloud backend.
type HCloudConfig struct {
	// Token is read from HCLOUD_TOKEN when empty.
	Token    string `yaml:"token"`
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`
	// Location is used when a launch request names none.
	Location string `yaml:"location"`
	// ServerType is the type new servers are created with before they are
	// resized to the requested shape.
	ServerType string `yaml:"server_type"`
	// CatalogLabel is the image label that marks catalog membership.
	CatalogLabel string `yaml:"catalog_label"`
	// Catalogs are the label values treated as catalogs; the first listed
	// are considered first.
	Catalogs    []string `yaml:"catalogs"`
	PollWorkers int      `yaml:"poll_workers" validate:"gte=0"`
}

// LaunchConfig tunes the launch workflow.
type LaunchConfig struct {
	// CleanupOnFailure deletes a half-provisioned group when launch fails.
	// Defaults to true.
	CleanupOnFailure *bool `yaml:"cleanup_on_failure"`
}

// Cleanup reports whether failed launches are cleaned up.
func (l LaunchConfig) Cleanup() bool {
	return l.CleanupOnFailure == nil || *l.CleanupOnFailure
}

// JournalConfig configures the run journal. An empty path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// EventsConfig configures event publishing. An empty URL disables it.
type EventsConfig struct {
	URL           string `yaml:"url" validate:"omitempty,url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Service string `yaml:"service"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=auto console json"`
}

// MetricsConfig configures the metrics endpoint. An empty address disables
// it.
type MetricsConfig struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}
