// Package config defines the validated configuration surface consumed by the
// store, model runner, container supervisor, and repository-host adapter.
//
// Configuration is resolved in two layers: an optional YAML file, then
// environment variable overrides. Validate() enforces the documented ranges
// and cross-field requirements before any component is constructed.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider identifiers accepted by LLMProvider.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config is the full builder6 configuration.
type Config struct {
	// LLM provider selection and credentials.
	LLMProvider     string `yaml:"llm_provider"`
	GeminiAPIKey    string `yaml:"gemini_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`

	// Model runner retry policy for transient upstream failure.
	LLMMaxRetries         int           `yaml:"llm_max_retries"`
	LLMInitialRetryDelay  time.Duration `yaml:"llm_initial_retry_delay"`
	LLMMaxRetryDelay      time.Duration `yaml:"llm_max_retry_delay"`
	LLMRetryBackoffFactor float64       `yaml:"llm_retry_backoff_factor"`

	// Repository host credential.
	GithubToken string `yaml:"github_token"`

	// Container supervisor.
	DockerContainerPrefix string        `yaml:"docker_container_prefix"`
	DockerContainerLimit  int           `yaml:"docker_container_limit"`
	DockerIdleTimeout     time.Duration `yaml:"docker_idle_timeout"`
	DockerDefaultImage    string        `yaml:"docker_default_image"`
	DockerSocketPath      string        `yaml:"docker_socket_path"`

	// Persistence store connection string. postgresql:// selects the
	// Postgres store, sqlite:// (or a plain file path URL) the SQLite
	// store, and memory:// the in-memory store.
	DatabaseURL string `yaml:"database_url"`

	// DebugEnabled toggles verbose store and runner logging.
	DebugEnabled bool `yaml:"debug_enabled"`
}

// Default returns the documented default configuration. Credentials and the
// database URL must still be supplied by the caller or the environment.
func Default() *Config {
	return &Config{
		LLMProvider:           ProviderGemini,
		LLMMaxRetries:         10,
		LLMInitialRetryDelay:  1000 * time.Millisecond,
		LLMMaxRetryDelay:      10000 * time.Millisecond,
		LLMRetryBackoffFactor: 2,
		DockerContainerPrefix: "builder6-container-",
		DockerContainerLimit:  5,
		DockerIdleTimeout:     600000 * time.Millisecond,
		DockerDefaultImage:    "debian:stable-slim",
	}
}

// Load reads an optional YAML file and applies environment overrides on top
// of the defaults. Pass an empty path to skip the file layer.
func Load(path string) (*Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a configuration from defaults plus environment overrides.
func FromEnv() (*Config, error) {
	return Load("")
}

func (c *Config) applyEnv() {
	setString(&c.LLMProvider, "LLM_PROVIDER")
	setString(&c.GeminiAPIKey, "GEMINI_API_KEY")
	setString(&c.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&c.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setInt(&c.LLMMaxRetries, "LLM_MAX_RETRIES")
	setMillis(&c.LLMInitialRetryDelay, "LLM_INITIAL_RETRY_DELAY")
	setMillis(&c.LLMMaxRetryDelay, "LLM_MAX_RETRY_DELAY")
	setFloat(&c.LLMRetryBackoffFactor, "LLM_RETRY_BACKOFF_FACTOR")
	setString(&c.GithubToken, "GITHUB_TOKEN")
	setString(&c.DockerContainerPrefix, "DOCKER_CONTAINER_PREFIX")
	setInt(&c.DockerContainerLimit, "DOCKER_CONTAINER_LIMIT")
	setMillis(&c.DockerIdleTimeout, "DOCKER_IDLE_TIMEOUT")
	setString(&c.DockerDefaultImage, "DOCKER_DEFAULT_IMAGE")
	setString(&c.DockerSocketPath, "DOCKER_SOCKET_PATH")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setBool(&c.DebugEnabled, "DEBUG_ENABLED")
}

// Validate checks enumerations, ranges, and cross-field requirements.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderGemini, ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("llm_provider must be one of gemini|openai|anthropic, got %q", c.LLMProvider)
	}

	if c.APIKeyForProvider() == "" {
		return fmt.Errorf("api key for provider %q is required", c.LLMProvider)
	}

	if c.LLMMaxRetries < 0 || c.LLMMaxRetries > 20 {
		return fmt.Errorf("llm_max_retries must be in [0,20], got %d", c.LLMMaxRetries)
	}
	if c.LLMInitialRetryDelay < 100*time.Millisecond || c.LLMInitialRetryDelay > 10000*time.Millisecond {
		return fmt.Errorf("llm_initial_retry_delay must be in [100ms,10000ms], got %s", c.LLMInitialRetryDelay)
	}
	if c.LLMMaxRetryDelay < 1000*time.Millisecond || c.LLMMaxRetryDelay > 60000*time.Millisecond {
		return fmt.Errorf("llm_max_retry_delay must be in [1000ms,60000ms], got %s", c.LLMMaxRetryDelay)
	}
	if c.LLMRetryBackoffFactor < 1 || c.LLMRetryBackoffFactor > 5 {
		return fmt.Errorf("llm_retry_backoff_factor must be in [1,5], got %g", c.LLMRetryBackoffFactor)
	}

	if strings.TrimSpace(c.GithubToken) == "" {
		return fmt.Errorf("github_token is required")
	}

	if c.DockerContainerLimit <= 0 {
		return fmt.Errorf("docker_container_limit must be positive, got %d", c.DockerContainerLimit)
	}
	if c.DockerIdleTimeout <= 0 {
		return fmt.Errorf("docker_idle_timeout must be positive, got %s", c.DockerIdleTimeout)
	}

	if err := validateDatabaseURL(c.DatabaseURL); err != nil {
		return err
	}

	return nil
}

// APIKeyForProvider returns the credential matching LLMProvider.
func (c *Config) APIKeyForProvider() string {
	switch c.LLMProvider {
	case ProviderGemini:
		return c.GeminiAPIKey
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderAnthropic:
		return c.AnthropicAPIKey
	}
	return ""
}

func validateDatabaseURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("database_url is required")
	}
	if strings.HasPrefix(raw, "postgresql://") || strings.HasPrefix(raw, "postgres://") {
		return nil
	}
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Scheme == "" {
		return fmt.Errorf("database_url must begin with postgresql:// or be a valid URL, got %q", raw)
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = parsed
		}
	}
}

func setFloat(dst *float64, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			*dst = parsed
		}
	}
}

// setMillis parses an environment value as a millisecond count.
func setMillis(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = time.Duration(parsed) * time.Millisecond
		}
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*dst = parsed
		}
	}
}
