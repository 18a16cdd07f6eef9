package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the main Mate configuration
type Config struct {
	// Roles holds the specialist agent definitions
	Roles []RoleConfig `json:"roles" mapstructure:"roles"`

	// Models
	Models ModelsConfig `json:"models" mapstructure:"models"`

	// Dispatch controls the routing loop
	Dispatch DispatchConfig `json:"dispatch" mapstructure:"dispatch"`

	// Session store settings
	Session SessionConfig `json:"session" mapstructure:"session"`

	// Tools
	Tools ToolsConfig `json:"tools" mapstructure:"tools"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Gateway configuration
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// AI configuration
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// RosterPath points to an optional roster file with role overrides,
	// hot-reloaded at runtime
	RosterPath string `json:"roster_path" mapstructure:"roster_path"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// RoleConfig represents a specialist agent configuration
type RoleConfig struct {
	ID           string   `json:"id" mapstructure:"id"` // geocoder, trails, meteo, web, general
	Name         string   `json:"name" mapstructure:"name"`
	Model        string   `json:"model" mapstructure:"model"`
	Temperature  float64  `json:"temperature" mapstructure:"temperature"`
	MaxTokens    int      `json:"max_tokens" mapstructure:"max_tokens"`
	SystemPrompt string   `json:"system_prompt" mapstructure:"system_prompt"`
	Tools        []string `json:"tools" mapstructure:"tools"` // tool names this role may call
	Keywords     []string `json:"keywords" mapstructure:"keywords"`
}

// ModelsConfig holds model configuration
type ModelsConfig struct {
	Default  string            `json:"default" mapstructure:"default"`
	Aliases  map[string]string `json:"aliases" mapstructure:"aliases"`
	Fallback []string          `json:"fallback" mapstructure:"fallback"`
}

// DispatchConfig controls the reasoning loop
type DispatchConfig struct {
	MaxRounds      int    `json:"max_rounds" mapstructure:"max_rounds"`
	DefaultRole    string `json:"default_role" mapstructure:"default_role"`
	RetryMax       int    `json:"retry_max" mapstructure:"retry_max"`
	RetryBaseMs    int    `json:"retry_base_ms" mapstructure:"retry_base_ms"`
	ProviderTimeout int    `json:"provider_timeout" mapstructure:"provider_timeout"` // seconds
}

// SessionConfig holds session store configuration
type SessionConfig struct {
	Backend         string `json:"backend" mapstructure:"backend"` // jsonl, sqlite
	MaxTurns        int    `json:"max_turns" mapstructure:"max_turns"`
	TTLHours        int    `json:"ttl_hours" mapstructure:"ttl_hours"`
	CleanupSchedule string `json:"cleanup_schedule" mapstructure:"cleanup_schedule"` // cron spec
}

// ToolsConfig holds tool execution configuration
type ToolsConfig struct {
	DefaultTimeout int            `json:"default_timeout" mapstructure:"default_timeout"` // seconds
	Timeouts       map[string]int `json:"timeouts" mapstructure:"timeouts"`               // per-tool override
	MaxOutputBytes int            `json:"max_output_bytes" mapstructure:"max_output_bytes"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	AuditFile string `json:"audit_file" mapstructure:"audit_file"`
}

// GatewayConfig holds gateway server configuration
type GatewayConfig struct {
	Enabled      bool   `json:"enabled" mapstructure:"enabled"`
	Port         int    `json:"port" mapstructure:"port"`
	Host         string `json:"host" mapstructure:"host"`
	SharedSecret string `json:"shared_secret" mapstructure:"shared_secret"`
}

// AIConfig holds AI provider configuration
type AIConfig struct {
	Profiles []AIProfile `json:"profiles" mapstructure:"profiles"`
}

// AIProfile represents an AI provider profile
type AIProfile struct {
	ID       string `json:"id" mapstructure:"id"`
	Provider string `json:"provider" mapstructure:"provider"` // anthropic, openai
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	BaseURL  string `json:"base_url" mapstructure:"base_url"`
	Priority int    `json:"priority" mapstructure:"priority"`
}

// KnownRoles is the closed set of specialist roles.
var KnownRoles = []string{"geocoder", "trails", "meteo", "web", "general"}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Models: ModelsConfig{
			Default: "claude-sonnet-4",
			Aliases: map[string]string{
				"opus":   "claude-opus-4",
				"sonnet": "claude-sonnet-4",
				"gpt4":   "gpt-4-turbo",
			},
			Fallback: []string{"claude-sonnet-4", "gpt-4-turbo"},
		},
		Dispatch: DispatchConfig{
			MaxRounds:      10,
			DefaultRole:    "general",
			RetryMax:       3,
			RetryBaseMs:    1000,
			ProviderTimeout: 120,
		},
		Session: SessionConfig{
			Backend:         "jsonl",
			MaxTurns:        100,
			TTLHours:        1,
			CleanupSchedule: "@every 10m",
		},
		Tools: ToolsConfig{
			DefaultTimeout: 30,
			MaxOutputBytes: 64 * 1024,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Redaction: true,
		},
		Gateway: GatewayConfig{
			Enabled: false,
			Port:    8080,
			Host:    "0.0.0.0",
		},
		AI: AIConfig{
			Profiles: []AIProfile{},
		},
		Roles: []RoleConfig{
			{
				ID:          "geocoder",
				Name:        "Geocoding Specialist",
				Temperature: 0.1,
				MaxTokens:   4096,
				Tools:       []string{"geocode", "reverse_geocode"},
				Keywords:    []string{"where is", "coordinates", "latitude", "longitude", "address", "located"},
			},
			{
				ID:          "trails",
				Name:        "Trail Specialist",
				Temperature: 0.1,
				MaxTokens:   4096,
				Tools:       []string{"search_trails", "get_trail_details", "geocode"},
				Keywords:    []string{"trail", "hike", "hiking", "trek", "route", "path"},
			},
			{
				ID:          "meteo",
				Name:        "Weather Specialist",
				Temperature: 0.1,
				MaxTokens:   4096,
				Tools:       []string{"get_daily_forecast", "get_hourly_forecast", "get_sunrise_sunset_times", "geocode"},
				Keywords:    []string{"weather", "forecast", "rain", "temperature", "wind", "snow", "sunrise", "sunset"},
			},
			{
				ID:          "web",
				Name:        "Web Search Specialist",
				Temperature: 0.1,
				MaxTokens:   4096,
				Tools:       []string{"search_web"},
				Keywords:    []string{"search", "news", "find information", "look up"},
			},
			{
				ID:          "general",
				Name:        "General Assistant",
				Temperature: 0.1,
				MaxTokens:   4096,
				Tools:       []string{},
			},
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// ResolveModel resolves a model name through the alias table. An empty name
// resolves to the default model.
func (c *Config) ResolveModel(name string) string {
	if name == "" {
		name = c.Models.Default
	}
	if resolved, ok := c.Models.Aliases[name]; ok {
		return resolved
	}
	return name
}

// RoleByID looks up a role definition by its ID.
func (c *Config) RoleByID(id string) (RoleConfig, bool) {
	for _, r := range c.Roles {
		if r.ID == id {
			return r, true
		}
	}
	return RoleConfig{}, false
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if len(c.AI.Profiles) == 0 {
		return fmt.Errorf("no AI credentials configured: at least one AI profile is required")
	}

	for i, profile := range c.AI.Profiles {
		if profile.ID == "" {
			return fmt.Errorf("AI profile %d: ID is required", i)
		}
		if profile.Provider == "" {
			return fmt.Errorf("AI profile %s: provider is required", profile.ID)
		}
		if profile.APIKey == "" {
			return fmt.Errorf("AI profile %s: api_key is required", profile.ID)
		}
		if profile.Provider != "anthropic" && profile.Provider != "openai" {
			return fmt.Errorf("AI profile %s: invalid provider %s (must be: anthropic, openai)", profile.ID, profile.Provider)
		}
	}

	if len(c.Roles) == 0 {
		return fmt.Errorf("at least one role must be configured")
	}

	for i, role := range c.Roles {
		if role.ID == "" {
			return fmt.Errorf("role %d: ID is required", i)
		}
		if !isKnownRole(role.ID) {
			return fmt.Errorf("role %s: unknown role ID (must be one of: geocoder, trails, meteo, web, general)", role.ID)
		}
	}

	if _, ok := c.RoleByID(c.Dispatch.DefaultRole); !ok {
		return fmt.Errorf("dispatch default_role %q is not a configured role", c.Dispatch.DefaultRole)
	}

	if c.Dispatch.MaxRounds < 1 {
		return fmt.Errorf("dispatch max_rounds must be at least 1")
	}

	if c.Session.Backend != "jsonl" && c.Session.Backend != "sqlite" {
		return fmt.Errorf("invalid session backend %q (must be: jsonl, sqlite)", c.Session.Backend)
	}

	return nil
}

func isKnownRole(id string) bool {
	for _, r := range KnownRoles {
		if r == id {
			return true
		}
	}
	return false
}
