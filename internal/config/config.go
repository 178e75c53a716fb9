// Package config loads application configuration for baobei.
// Configuration comes from ~/.baobei/config.yaml and can be overridden by
// environment variables, including the legacy flat names (GEMINI_API_KEY,
// OPENAI_API_KEY, AI_SYSTEM_PROMPT, ...) earlier deployments relied on.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	AI      AIConfig      `mapstructure:"ai" yaml:"ai"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	History HistoryConfig `mapstructure:"history" yaml:"history"`
	Gateway GatewayConfig `mapstructure:"gateway" yaml:"gateway"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// AIConfig contains provider selection and conditioning settings.
type AIConfig struct {
	// Provider pins text and vision replies to one provider ("gemini" or
	// "openai"). Empty means the default priority order: gemini then openai.
	Provider string `mapstructure:"provider" yaml:"provider,omitempty"`

	// ImageProvider pins image generation independently.
	ImageProvider string `mapstructure:"image_provider" yaml:"image_provider,omitempty"`

	// SystemPrompt, when set, bypasses persona rendering entirely and is sent
	// verbatim as the system prompt for every user.
	SystemPrompt string `mapstructure:"system_prompt" yaml:"system_prompt,omitempty"`

	// GirlfriendName overrides the catalog default name for users who kept
	// the default during onboarding.
	GirlfriendName string `mapstructure:"girlfriend_name" yaml:"girlfriend_name,omitempty"`

	// PersonaFile optionally replaces the built-in persona catalog.
	PersonaFile string `mapstructure:"persona_file" yaml:"persona_file,omitempty"`

	Gemini ProviderSettings `mapstructure:"gemini" yaml:"gemini"`
	OpenAI ProviderSettings `mapstructure:"openai" yaml:"openai"`
}

// ProviderSettings contains credentials and model overrides for one provider.
type ProviderSettings struct {
	// APIKey for authentication. Absence makes the provider ineligible.
	APIKey string `mapstructure:"api_key" yaml:"api_key,omitempty"`
	// Endpoint overrides the API base URL.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	// Model for text replies.
	Model string `mapstructure:"model" yaml:"model,omitempty"`
	// VisionModel for image-understanding replies.
	VisionModel string `mapstructure:"vision_model" yaml:"vision_model,omitempty"`
	// ImageModel for image generation.
	ImageModel string `mapstructure:"image_model" yaml:"image_model,omitempty"`
}

// StoreConfig locates the per-user configuration store.
type StoreConfig struct {
	// Path to the JSON file holding one record per user identity.
	Path string `mapstructure:"path" yaml:"path"`
}

// HistoryConfig locates the conversation transcript database.
type HistoryConfig struct {
	// Enabled turns transcript recording on.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// DataDir is the directory for the SQLite database file.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir"`
}

// GatewayConfig configures the WebSocket chat gateway.
type GatewayConfig struct {
	// Addr is the listen address for `baobei run`.
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// LoggingConfig contains application logging settings.
type LoggingConfig struct {
	// Level is the log level ("debug", "info", "warn", "error").
	Level string `mapstructure:"level" yaml:"level"`
	// File is an optional path for persistent logs.
	File string `mapstructure:"file" yaml:"file,omitempty"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Path: "~/.baobei/users.json",
		},
		History: HistoryConfig{
			Enabled: true,
			DataDir: "~/.baobei",
		},
		Gateway: GatewayConfig{
			Addr: "127.0.0.1:8090",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the default path (~/.baobei/config.yaml).
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home directory: %w", err)
	}
	return LoadFromPath(filepath.Join(homeDir, ".baobei", "config.yaml"))
}

// LoadFromPath reads configuration from an explicit path, creating a default
// file if none exists.
func LoadFromPath(path string) (*Config, error) {
	path = ExpandPath(path)

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// BAOBEI_AI_GEMINI_API_KEY style overrides.
	v.SetEnvPrefix("BAOBEI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindLegacyEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	cfg.Store.Path = ExpandPath(cfg.Store.Path)
	cfg.History.DataDir = ExpandPath(cfg.History.DataDir)
	cfg.Logging.File = ExpandPath(cfg.Logging.File)
	cfg.AI.PersonaFile = ExpandPath(cfg.AI.PersonaFile)

	return &cfg, nil
}

// bindLegacyEnv wires the flat environment names earlier deployments used.
// Like all environment bindings they take precedence over file values.
func bindLegacyEnv(v *viper.Viper) {
	legacy := map[string]string{
		"ai.provider":             "AI_PROVIDER",
		"ai.image_provider":       "AI_IMAGE_PROVIDER",
		"ai.system_prompt":        "AI_SYSTEM_PROMPT",
		"ai.girlfriend_name":      "GIRLFRIEND_NAME",
		"ai.gemini.api_key":       "GEMINI_API_KEY",
		"ai.gemini.model":         "GEMINI_MODEL",
		"ai.gemini.vision_model":  "GEMINI_VISION_MODEL",
		"ai.gemini.image_model":   "GEMINI_IMAGE_MODEL",
		"ai.openai.api_key":       "OPENAI_API_KEY",
		"ai.openai.model":         "OPENAI_MODEL",
		"ai.openai.vision_model":  "OPENAI_VISION_MODEL",
		"ai.openai.image_model":   "OPENAI_DALLE_MODEL",
	}
	for key, env := range legacy {
		_ = v.BindEnv(key, env)
	}
}

// applyDefaults fills zero values with the defaults.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Store.Path == "" {
		cfg.Store.Path = def.Store.Path
	}
	if cfg.History.DataDir == "" {
		cfg.History.DataDir = def.History.DataDir
	}
	if cfg.Gateway.Addr == "" {
		cfg.Gateway.Addr = def.Gateway.Addr
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	cfg.AI.ImageProvider = strings.ToLower(strings.TrimSpace(cfg.AI.ImageProvider))
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if path == "" || !strings.HasPrefix(path, "~") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, strings.TrimPrefix(path, "~"))
}

// writeConfigFile serializes a config as YAML.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
