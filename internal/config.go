package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/yamui/internal/docstore"
	"github.com/starford/yamui/internal/engine"
	"github.com/starford/yamui/internal/trace"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Documents DocumentsConfig   `yaml:"documents"`
	Runtime   RuntimeConfig     `yaml:"runtime"`
	Trace     TraceConfig       `yaml:"trace"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Documents.Validate(); err != nil {
		return fmt.Errorf("documents: %w", err)
	}
	if err := c.Runtime.Validate(); err != nil {
		return fmt.Errorf("runtime: %w", err)
	}
	if err := c.Trace.Validate(); err != nil {
		return fmt.Errorf("trace: %w", err)
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// DocumentsConfig locates UI documents on disk.
type DocumentsConfig struct {
	Dir      string `yaml:"dir"`
	Default  string `yaml:"default"`
	Watch    bool   `yaml:"watch"`
	MaxBytes int64  `yaml:"max_bytes"`
}

// Validate validates the documents configuration.
func (c *DocumentsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
		validation.Field(&c.Default, validation.Required),
		validation.Field(&c.MaxBytes, validation.Required, validation.Min(int64(1))),
	)
}

// RuntimeConfig tunes the engine.
type RuntimeConfig struct {
	NavQueueMaxDepth  int           `yaml:"nav_queue_max_depth"`
	MaxComponentDepth int           `yaml:"max_component_depth"`
	DispatchTimeout   time.Duration `yaml:"dispatch_timeout"`
}

// Validate validates the runtime configuration.
func (c *RuntimeConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.NavQueueMaxDepth, validation.Min(0)),
		validation.Field(&c.MaxComponentDepth, validation.Required, validation.Min(1), validation.Max(64)),
		validation.Field(&c.DispatchTimeout, validation.Required, validation.Min(time.Millisecond)),
	)
}

// TraceConfig controls the telemetry journal.
type TraceConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Buffer  int    `yaml:"buffer"`
}

// Validate validates the trace configuration.
func (c *TraceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.Buffer, validation.Required, validation.Min(1)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Documents: DocumentsConfig{
			Dir:      "./ui",
			Default:  "main",
			Watch:    true,
			MaxBytes: docstore.DefaultMaxBytes,
		},
		Runtime: RuntimeConfig{
			MaxComponentDepth: engine.DefaultMaxComponentDepth,
			DispatchTimeout:   2 * time.Second,
		},
		Trace: TraceConfig{
			Path:   "./yamui-trace.db",
			Buffer: trace.DefaultBuffer,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
