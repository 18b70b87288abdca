package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for t2sql-engine.
// Values come from a YAML file when one exists, with environment variables
// overriding. Secrets (passwords, keys) only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr    string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port        string `yaml:"port" env:"PORT" env-default:"8000"`
	Env         string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL     string `yaml:"base_url" env:"BASE_URL" env-default:""` // derived from Port if empty
	ProjectName string `yaml:"project_name" env:"PROJECT_NAME" env-default:"T2SQL"`
	APIPrefix   string `yaml:"api_prefix" env:"API_V1_STR" env-default:"/api/v1"`
	Version     string `yaml:"-"`

	// TLS is enabled when both paths are set.
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// CORSOriginsStr is a comma-separated list of allowed browser origins.
	CORSOriginsStr string   `yaml:"cors_origins" env:"BACKEND_CORS_ORIGINS" env-default:"http://localhost:3000"`
	CORSOrigins    []string `yaml:"-"`

	Auth       AuthConfig       `yaml:"auth"`
	Database   DatabaseConfig   `yaml:"database"`
	LLM        LLMConfig        `yaml:"llm"`
	Generation GenerationConfig `yaml:"generation"`
	Extraction ExtractionConfig `yaml:"extraction"`
	MCP        MCPConfig        `yaml:"mcp"`

	// ConnectionCredentialsKey seals warehouse credential payloads.
	// Must be a 32-byte key, base64 encoded. Generate with: openssl rand -base64 32
	ConnectionCredentialsKey string `yaml:"-" env:"CONNECTION_CREDENTIALS_KEY"`
}

// AuthConfig holds token and session settings.
type AuthConfig struct {
	// SecretKey signs HS256 access tokens and session cookies.
	SecretKey                string `yaml:"-" env:"SECRET_KEY"`
	Algorithm                string `yaml:"algorithm" env:"ALGORITHM" env-default:"HS256"`
	AccessTokenExpireMinutes int    `yaml:"access_token_expire_minutes" env:"ACCESS_TOKEN_EXPIRE_MINUTES" env-default:"11520"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs for
	// externally issued RS256 tokens. Empty disables external issuers.
	JWKSEndpointsStr string            `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:""`
	JWKSEndpoints    map[string]string `yaml:"-"`

	CookieName   string `yaml:"cookie_name" env:"SESSION_COOKIE_NAME" env-default:"t2sql_session"`
	CookieDomain string `yaml:"cookie_domain" env:"COOKIE_DOMAIN" env-default:""`
}

// AccessTokenTTL returns the configured token lifetime.
func (a *AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenExpireMinutes) * time.Minute
}

// DatabaseConfig holds the metadata store's PostgreSQL settings.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"t2sql"`
	Password       string `yaml:"-" env:"PGPASSWORD"`
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"t2sql"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MaxIdleConns   int32  `yaml:"max_idle_conns" env:"PGMAX_IDLE_CONNS" env-default:"5"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// URL returns a pgx connection URL with every user-provided part escaped.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		ResolveHostForDocker(c.Host),
		c.Port,
		url.QueryEscape(c.Database),
		c.SSLMode,
	)
}

// LLMConfig selects and tunes the language-model client.
type LLMConfig struct {
	Provider        string        `yaml:"provider" env:"LLM_PROVIDER" env-default:"openai"` // "openai" or "anthropic"
	Endpoint        string        `yaml:"endpoint" env:"LLM_ENDPOINT" env-default:""`       // empty uses the provider default
	Model           string        `yaml:"model" env:"LLM_MODEL" env-default:"gpt-4"`
	OpenAIAPIKey    string        `yaml:"-" env:"OPENAI_API_KEY"`
	AnthropicAPIKey string        `yaml:"-" env:"ANTHROPIC_API_KEY"`
	Timeout         time.Duration `yaml:"timeout" env:"LLM_TIMEOUT" env-default:"60s"`
	MaxTokens       int           `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"2048"`
	MaxRetries      int           `yaml:"max_retries" env:"LLM_MAX_RETRIES" env-default:"0"`
	RetryBackoff    time.Duration `yaml:"retry_backoff" env:"LLM_RETRY_BACKOFF" env-default:"500ms"`
	MaxPromptBytes  int           `yaml:"max_prompt_bytes" env:"LLM_MAX_PROMPT_BYTES" env-default:"200000"`
}

// APIKey returns the key for the configured provider.
func (c *LLMConfig) APIKey() string {
	if c.Provider == "anthropic" {
		return c.AnthropicAPIKey
	}
	return c.OpenAIAPIKey
}

// GenerationConfig bounds incoming questions.
type GenerationConfig struct {
	MaxQuestionLength int  `yaml:"max_question_length" env:"GENERATION_MAX_QUESTION_LENGTH" env-default:"2000"`
	InjectionCheck    bool `yaml:"injection_check" env:"GENERATION_INJECTION_CHECK" env-default:"true"`
}

// ExtractionConfig bounds catalog walks.
type ExtractionConfig struct {
	Timeout  time.Duration `yaml:"timeout" env:"EXTRACTION_TIMEOUT" env-default:"5m"`
	PageSize int           `yaml:"page_size" env:"EXTRACTION_PAGE_SIZE" env-default:"100"`
	// LockTTLMargin is added to Timeout so a crashed walk cannot hold the lock forever.
	LockTTLMargin time.Duration `yaml:"lock_ttl_margin" env:"EXTRACTION_LOCK_TTL_MARGIN" env-default:"30s"`
}

// LockTTL is the lifetime of a per-connection extraction lock.
func (c *ExtractionConfig) LockTTL() time.Duration {
	return c.Timeout + c.LockTTLMargin
}

// MCPConfig toggles the MCP endpoint.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED" env-default:"true"`
}

// Load reads configuration from path (if the file exists) with environment
// variable overrides, then derives computed fields and validates the result.
func Load(path, version string) (*Config, error) {
	cfg := &Config{Version: version}

	if path != "" && fileExists(path) {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	cfg.Auth.JWKSEndpoints = parseJWKSEndpoints(cfg.Auth.JWKSEndpointsStr)
	cfg.CORSOrigins = splitList(cfg.CORSOriginsStr)

	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LLM.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported llm provider %q", c.LLM.Provider)
	}
	if c.Auth.Algorithm != "HS256" {
		return fmt.Errorf("unsupported token algorithm %q", c.Auth.Algorithm)
	}
	if c.Auth.AccessTokenExpireMinutes <= 0 {
		return errors.New("access_token_expire_minutes must be positive")
	}
	if c.Extraction.Timeout <= 0 {
		return errors.New("extraction timeout must be positive")
	}
	if c.Extraction.PageSize <= 0 {
		return errors.New("extraction page_size must be positive")
	}
	if c.LLM.MaxRetries < 0 {
		return errors.New("llm max_retries must not be negative")
	}
	return nil
}

// RequireSecrets fails when a secret the server cannot run without is missing.
// Migrations and tests skip this check.
func (c *Config) RequireSecrets() error {
	var missing []string
	if c.Auth.SecretKey == "" {
		missing = append(missing, "SECRET_KEY")
	}
	if c.ConnectionCredentialsKey == "" {
		missing = append(missing, "CONNECTION_CREDENTIALS_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return errors.New("both tls_cert_path and tls_key_path must be provided together")
	}
	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}
	return nil
}

// IsLocal reports whether the development logger and relaxed cookies apply.
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == "test"
}

// parseJWKSEndpoints parses "issuer1=url1,issuer2=url2".
// Splits on the first '=' only so URLs with query strings survive.
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	for _, pair := range splitList(value) {
		issuer, jwksURL, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		issuer, jwksURL = strings.TrimSpace(issuer), strings.TrimSpace(jwksURL)
		if issuer != "" && jwksURL != "" {
			endpoints[issuer] = jwksURL
		}
	}
	return endpoints
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
