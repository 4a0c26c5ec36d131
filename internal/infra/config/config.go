// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig            `yaml:"server"`
	Admin    AdminConfig             `yaml:"admin"`
	Discord  DiscordConfig           `yaml:"discord"`
	Nodes    []NodeConfig            `yaml:"nodes" validate:"required,min=1,dive"`
	Playback PlaybackConfig          `yaml:"playback"`
	Settings SettingsConfig          `yaml:"settings"`
	Filters  map[string]FilterConfig `yaml:"filters"`
	Messages MessagesConfig          `yaml:"messages"`
	Spotify  SpotifyConfig           `yaml:"spotify"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr        string `yaml:"addr" default:":8080"`
	MetricsPath string `yaml:"metrics_path" default:"/metrics"`
}

// AdminConfig represents admin-related configuration.
type AdminConfig struct {
	Token        string   `yaml:"token" validate:"required"`
	DisplayNames []string `yaml:"display_names"`
}

// DiscordConfig represents the Discord bot connection.
type DiscordConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token" validate:"required_if=Enabled true"`
	UserID  string `yaml:"user_id"` // Bot user ID sent to nodes; read from the gateway when empty
}

// NodeConfig represents one Lavalink node.
type NodeConfig struct {
	Name     string `yaml:"name" validate:"required"`
	URI      string `yaml:"uri" validate:"required,url"` // e.g. ws://localhost:2333
	RestURI  string `yaml:"rest_uri" validate:"omitempty,url"`
	Password string `yaml:"password"`
}

// PlaybackConfig represents player configuration.
type PlaybackConfig struct {
	SkipVoteRatio      float64 `yaml:"skip_vote_ratio" default:"0.5" validate:"gt=0,lte=1"`
	DirectiveTimeoutMs int     `yaml:"directive_timeout_ms" default:"5000" validate:"gte=100,lte=60000"`
	EventBuffer        int     `yaml:"event_buffer" default:"64" validate:"gte=1"`
}

// DirectiveTimeout returns the directive timeout as a duration.
func (p PlaybackConfig) DirectiveTimeout() time.Duration {
	return time.Duration(p.DirectiveTimeoutMs) * time.Millisecond
}

// SettingsConfig represents the guild settings store.
type SettingsConfig struct {
	DBPath string `yaml:"db_path"` // Empty uses $XDG_DATA_HOME/guildbox/guildbox.db
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// MessagesConfig represents user-facing messages returned by the RPC layer.
type MessagesConfig struct {
	Success               string `yaml:"success" default:"Added to the queue."`
	DefaultError          string `yaml:"default_error" default:"The request could not be accepted."`
	TrackNotFound         string `yaml:"track_not_found" default:"No matches found."`
	DuplicateTrack        string `yaml:"duplicate_track" default:"That track is already queued."`
	DurationLimitExceeded string `yaml:"duration_limit_exceeded" default:"That track is too long or too short."`
	RequesterQuota        string `yaml:"requester_quota" default:"You already have the maximum number of tracks queued."`
	Blocked               string `yaml:"blocked" default:"You are not allowed to request tracks."`
	SourceRestriction     string `yaml:"source_restriction" default:"Tracks from that source are not allowed."`
}

// SpotifyConfig represents Spotify API configuration. Spotify links are only
// resolved when both credentials are set.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret" validate:"required_with=ClientID"`
	Market       string `yaml:"market" validate:"omitempty,len=2" default:"US"`
}

// Enabled reports whether Spotify credentials are configured.
func (s SpotifyConfig) Enabled() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes, then applies environment
// overrides, defaults and validation.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.overrideFromEnv()

	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("DISCORD_TOKEN"); v != "" {
		c.Discord.Token = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		c.Admin.Token = v
	}
	if v := os.Getenv("LAVALINK_PASSWORD"); v != "" {
		for i := range c.Nodes {
			c.Nodes[i].Password = v
		}
	}
	if v := os.Getenv("SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
}

// GetMessage returns the message for the given code.
func (c *Config) GetMessage(code string) string {
	switch code {
	case "success":
		return c.Messages.Success
	case "track_not_found":
		return c.Messages.TrackNotFound
	case "duplicate_track":
		return c.Messages.DuplicateTrack
	case "duration_limit_exceeded":
		return c.Messages.DurationLimitExceeded
	case "requester_quota":
		return c.Messages.RequesterQuota
	case "blocked":
		return c.Messages.Blocked
	case "source_restriction":
		return c.Messages.SourceRestriction
	default:
		return c.Messages.DefaultError
	}
}

// IsAdminDisplayName checks if the given display name is an admin.
func (c *Config) IsAdminDisplayName(displayName string) bool {
	for _, name := range c.Admin.DisplayNames {
		if name == displayName {
			return true
		}
	}
	return false
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	seen := make(map[string]bool, len(c.Nodes))
	for _, n := range c.Nodes {
		if seen[n.Name] {
			return errors.Newf("duplicate node name: %s", n.Name)
		}
		seen[n.Name] = true
	}

	return nil
}

// EnabledFilters returns the settings of every enabled filter keyed by name.
func (c *Config) EnabledFilters() map[string]map[string]any {
	enabled := make(map[string]map[string]any)
	for name, f := range c.Filters {
		if f.Enabled {
			enabled[name] = f.Settings
		}
	}
	return enabled
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}
