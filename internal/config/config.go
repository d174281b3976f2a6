// ABOUTME: Configuration loading and parsing for chaz
// ABOUTME: Supports YAML files with environment variable expansion and validation

package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultCommandPrefix is the command token recognized in room messages.
const DefaultCommandPrefix = "!chaz"

// Config represents the complete chaz configuration
type Config struct {
	Matrix   MatrixConfig    `yaml:"matrix"`
	Limits   LimitsConfig    `yaml:"limits"`
	Chat     ChatConfig      `yaml:"chat"`
	Backends []BackendConfig `yaml:"backends"`
	Roles    []RoleConfig    `yaml:"roles"`
	Database DatabaseConfig  `yaml:"database"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// MatrixConfig holds homeserver connection configuration
type MatrixConfig struct {
	Homeserver  string `yaml:"homeserver"`
	UserID      string `yaml:"user_id"`
	AccessToken string `yaml:"access_token"`
	RecoveryKey string `yaml:"recovery_key"`
	StateDir    string `yaml:"state_dir"`
}

// LimitsConfig holds admission policy configuration.
// AllowList is a regular expression matched against the full account ID
// of an inviting or sending user. An empty AllowList denies everyone.
type LimitsConfig struct {
	AllowList     string `yaml:"allow_list"`
	MessageLimit  uint64 `yaml:"message_limit"`
	RoomSizeLimit int    `yaml:"room_size_limit"`
}

// ChatConfig holds conversation behavior configuration
type ChatConfig struct {
	CommandPrefix       string `yaml:"command_prefix"`
	DefaultRole         string `yaml:"role"`
	ChatSummaryModel    string `yaml:"chat_summary_model"`
	DisableMediaContext bool   `yaml:"disable_media_context"`
}

// Backend type constants
const (
	BackendTypeOpenAI  = "openai"
	BackendTypeAdapter = "adapter"
)

// BackendConfig describes one configured LLM backend
type BackendConfig struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"` // "openai" or "adapter"
	APIBase string   `yaml:"api_base"`
	APIKey  string   `yaml:"api_key"`
	Command string   `yaml:"command"` // adapter executable
	Models  []string `yaml:"models"`
}

// RoleConfig describes a named system prompt with optional example exchanges
type RoleConfig struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Prompt      string          `yaml:"prompt"`
	Example     []ExampleConfig `yaml:"example"`
}

// ExampleConfig is a single example exchange within a role definition
type ExampleConfig struct {
	User    string `yaml:"user"` // "user" or "assistant", any case
	Message string `yaml:"message"`
}

// DatabaseConfig holds room state database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in the fields that have sensible defaults
func (c *Config) applyDefaults() {
	if c.Chat.CommandPrefix == "" {
		c.Chat.CommandPrefix = DefaultCommandPrefix
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Matrix.Homeserver == "" {
		return fmt.Errorf("matrix.homeserver is required")
	}
	if _, err := url.Parse(c.Matrix.Homeserver); err != nil {
		return fmt.Errorf("matrix.homeserver is not a valid URL: %w", err)
	}
	if c.Matrix.UserID == "" {
		return fmt.Errorf("matrix.user_id is required")
	}
	if c.Matrix.AccessToken == "" {
		return fmt.Errorf("matrix.access_token is required")
	}

	// The allow list must compile; it is matched against full account IDs
	if c.Limits.AllowList != "" {
		if _, err := regexp.Compile(c.Limits.AllowList); err != nil {
			return fmt.Errorf("limits.allow_list is not a valid regexp: %w", err)
		}
	}

	seen := make(map[string]bool, len(c.Backends))
	for i, b := range c.Backends {
		if b.Name == "" {
			return fmt.Errorf("backends[%d].name is required", i)
		}
		if seen[b.Name] {
			return fmt.Errorf("backends[%d]: duplicate backend name %q", i, b.Name)
		}
		seen[b.Name] = true

		switch b.Type {
		case BackendTypeOpenAI:
			if b.APIBase == "" {
				return fmt.Errorf("backends[%d] (%s): api_base is required for openai backends", i, b.Name)
			}
			if u, err := url.Parse(b.APIBase); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
				return fmt.Errorf("backends[%d] (%s): api_base must be an http or https URL", i, b.Name)
			}
		case BackendTypeAdapter:
			if b.Command == "" {
				return fmt.Errorf("backends[%d] (%s): command is required for adapter backends", i, b.Name)
			}
		default:
			return fmt.Errorf("backends[%d] (%s): unknown backend type %q", i, b.Name, b.Type)
		}
	}

	for i, r := range c.Roles {
		if r.Name == "" {
			return fmt.Errorf("roles[%d].name is required", i)
		}
		for j, ex := range r.Example {
			switch strings.ToLower(ex.User) {
			case "user", "assistant":
			default:
				return fmt.Errorf("roles[%d] (%s): example[%d].user must be \"user\" or \"assistant\"", i, r.Name, j)
			}
		}
	}

	return nil
}
