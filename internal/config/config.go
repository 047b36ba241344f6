package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// Config holds all portal configuration.
type Config struct {
	Server   ServerConfig   `toml:"server" mapstructure:"server"`
	Database DatabaseConfig `toml:"database" mapstructure:"database"`
	LLM      LLMConfig      `toml:"llm" mapstructure:"llm"`
	Auth     AuthConfig     `toml:"auth" mapstructure:"auth"`
	Log      LogConfig      `toml:"log" mapstructure:"log"`
}

type ServerConfig struct {
	Bind string `toml:"bind" mapstructure:"bind"`
	Port int    `toml:"port" mapstructure:"port"`
}

type DatabaseConfig struct {
	Path string `toml:"path" mapstructure:"path"` // empty = ~/.stipslite/stipslite.db
}

type LLMConfig struct {
	Provider   string        `toml:"provider" mapstructure:"provider"` // "gemini", "azure", "anthropic", "ollama", "" (disabled)
	Model      string        `toml:"model" mapstructure:"model"`
	APIKey     string        `toml:"api_key" mapstructure:"api_key"`
	Endpoint   string        `toml:"endpoint" mapstructure:"endpoint"`     // azure only
	Deployment string        `toml:"deployment" mapstructure:"deployment"` // azure only
	OllamaURL  string        `toml:"ollama_url" mapstructure:"ollama_url"`
	Timeout    time.Duration `toml:"timeout" mapstructure:"timeout"`
}

type AuthConfig struct {
	Provider   string        `toml:"provider" mapstructure:"provider"` // "local" enables sqlite-backed accounts
	SessionTTL time.Duration `toml:"session_ttl" mapstructure:"session_ttl"`
	CookieName string        `toml:"cookie_name" mapstructure:"cookie_name"`
	BcryptCost int           `toml:"bcrypt_cost" mapstructure:"bcrypt_cost"`
}

type LogConfig struct {
	Level  string `toml:"level" mapstructure:"level"`
	Format string `toml:"format" mapstructure:"format"` // "console" or "json"
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 8080,
		},
		LLM: LLMConfig{
			OllamaURL: "http://localhost:11434",
			Timeout:   60 * time.Second,
		},
		Auth: AuthConfig{
			Provider:   "local",
			SessionTTL: 24 * time.Hour,
			CookieName: "stipslite_session",
			BcryptCost: 12,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// DefaultPath returns ~/.config/stipslite/config.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("user config dir: %w", err)
	}
	return filepath.Join(dir, "stipslite", "config.toml"), nil
}

// Load reads configuration from defaults, an optional TOML file and the
// environment. STIPSLITE_CONFIG names an explicit file, which must exist.
// Env overrides use the STIPSLITE_ prefix with dots replaced by underscores
// (STIPSLITE_LLM_PROVIDER, STIPSLITE_SERVER_PORT, ...).
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetConfigType("toml")
	explicit := os.Getenv("STIPSLITE_CONFIG")
	if explicit != "" {
		v.SetConfigFile(explicit)
	} else if path, err := DefaultPath(); err == nil {
		v.AddConfigPath(filepath.Dir(path))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("STIPSLITE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	applyProviderKeys(&c.LLM)
	return c, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.bind", d.Server.Bind)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.model", d.LLM.Model)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.endpoint", d.LLM.Endpoint)
	v.SetDefault("llm.deployment", d.LLM.Deployment)
	v.SetDefault("llm.ollama_url", d.LLM.OllamaURL)
	v.SetDefault("llm.timeout", d.LLM.Timeout)
	v.SetDefault("auth.provider", d.Auth.Provider)
	v.SetDefault("auth.session_ttl", d.Auth.SessionTTL)
	v.SetDefault("auth.cookie_name", d.Auth.CookieName)
	v.SetDefault("auth.bcrypt_cost", d.Auth.BcryptCost)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// applyProviderKeys picks a provider from well-known API key env vars when
// none is configured explicitly.
func applyProviderKeys(c *LLMConfig) {
	if c.Provider != "" {
		if c.APIKey == "" {
			c.APIKey = os.Getenv(keyEnvFor(c.Provider))
		}
		return
	}
	for _, p := range []string{"gemini", "anthropic", "azure"} {
		if key := os.Getenv(keyEnvFor(p)); key != "" {
			c.Provider = p
			if c.APIKey == "" {
				c.APIKey = key
			}
			return
		}
	}
}

func keyEnvFor(provider string) string {
	switch provider {
	case "gemini":
		return "GEMINI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "azure":
		return "AZURE_OPENAI_API_KEY"
	default:
		return ""
	}
}

// Write encodes cfg as TOML. API keys are never written.
func Write(w io.Writer, cfg Config) error {
	cfg.LLM.APIKey = ""
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}
