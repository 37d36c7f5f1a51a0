package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/marginalia/internal/highlight"
	"github.com/starford/marginalia/internal/history"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Workspace WorkspaceConfig   `yaml:"workspace"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Highlight HighlightConfig   `yaml:"highlight"`
	History   HistoryConfig     `yaml:"history"`
	Events    EventsConfig      `yaml:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Workspace.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Highlight.Validate(); err != nil {
		return err
	}
	if err := c.History.Validate(); err != nil {
		return err
	}
	return c.Events.Validate()
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

// WorkspaceConfig holds the path to the directory of annotated source files.
type WorkspaceConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the workspace configuration.
func (c *WorkspaceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// HighlightConfig selects the display style and the size of the token cache.
type HighlightConfig struct {
	Style     string `yaml:"style"`
	CacheSize int    `yaml:"cache_size"`
}

// Validate validates the highlight configuration.
func (c *HighlightConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Style, validation.Required),
		validation.Field(&c.CacheSize, validation.Min(0)),
	)
}

// HistoryConfig bounds the per-file undo stack.
type HistoryConfig struct {
	Depth int `yaml:"depth"`
}

// Validate validates the history configuration.
func (c *HistoryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Depth, validation.Required, validation.Min(1), validation.Max(10000)),
	)
}

// EventsConfig controls the live event stream.
type EventsConfig struct {
	// Throttle is the minimum interval between workspace.updated events.
	Throttle time.Duration `yaml:"throttle"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Throttle, validation.Min(time.Duration(0))),
	)
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
		Workspace: WorkspaceConfig{
			Path: "./workspace",
		},
		SQLite: SQLiteConfig{
			Path: "./marginalia.db",
		},
		Highlight: HighlightConfig{
			Style:     highlight.DefaultStyle,
			CacheSize: highlight.DefaultCacheSize,
		},
		History: HistoryConfig{
			Depth: history.DefaultDepth,
		},
		Events: EventsConfig{
			Throttle: 2 * time.Second,
		},
	}
}
