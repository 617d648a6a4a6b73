package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/imgbed/internal/codec"
	"github.com/starford/imgbed/internal/galleryservice"
	"github.com/starford/imgbed/internal/index"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Gallery GalleryConfig     `yaml:"gallery"`
	Catalog CatalogConfig     `yaml:"catalog"`
	Auth    AuthConfig        `yaml:"auth"`
	SSE     SSEConfig         `yaml:"sse"`
	MCP     MCPConfig         `yaml:"mcp"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Gallery.Validate(); err != nil {
		return err
	}
	if err := c.Catalog.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.SSE.Validate()
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

// GalleryConfig describes the gallery root and how images are stored in it.
type GalleryConfig struct {
	Root string `yaml:"root"`
	// Format is the target encoding: "webp" (default) or "png".
	Format         string `yaml:"format"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	MaxPixels      int64  `yaml:"max_pixels"`
	AutoOrient     bool   `yaml:"auto_orient"`
	PreviewSize    int    `yaml:"preview_size"`
}

// Validate validates the gallery configuration.
func (c *GalleryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.Format, validation.In(codec.FormatWebP, codec.FormatPNG)),
		validation.Field(&c.MaxUploadBytes, validation.Min(int64(0))),
		validation.Field(&c.MaxPixels, validation.Min(int64(0))),
		validation.Field(&c.PreviewSize, validation.Min(0), validation.Max(galleryservice.MaxPreviewSize)),
	)
}

// CodecOptions returns the decoder settings for this gallery.
func (c *GalleryConfig) CodecOptions() codec.Options {
	return codec.Options{MaxPixels: c.MaxPixels, AutoOrient: c.AutoOrient}
}

// CatalogConfig holds the SQLite catalog location. The catalog is rebuilt
// from the gallery on start, so the in-memory default loses nothing.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the catalog configuration.
func (c *CatalogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
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

// SSEConfig tunes the event stream. A zero Heartbeat disables keep-alives.
type SSEConfig struct {
	CatalogThrottle time.Duration `yaml:"catalog_throttle"`
	Heartbeat       time.Duration `yaml:"heartbeat"`
	// WatchDebounce is how long a category must stay quiet before the
	// watcher reconciles it.
	WatchDebounce time.Duration `yaml:"watch_debounce"`
}

// Validate validates the SSE configuration.
func (c *SSEConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.CatalogThrottle, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.Heartbeat, validation.Min(time.Duration(0))),
		validation.Field(&c.WatchDebounce, validation.Required, validation.Min(time.Millisecond)),
	)
}

// MCPConfig bounds what the add_image tool may download.
type MCPConfig struct {
	MaxFetchBytes int64 `yaml:"max_fetch_bytes"`
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
		Gallery: GalleryConfig{
			Root:           "./gallery",
			Format:         codec.FormatWebP,
			MaxUploadBytes: 50 << 20,
			MaxPixels:      100_000_000,
			PreviewSize:    galleryservice.DefaultPreviewSize,
		},
		Catalog: CatalogConfig{
			Path: index.MemoryDSN,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		SSE: SSEConfig{
			CatalogThrottle: 2 * time.Second,
			Heartbeat:       30 * time.Second,
			WatchDebounce:   index.DefaultDebounce,
		},
		MCP: MCPConfig{
			MaxFetchBytes: 20 << 20,
		},
	}
}
