package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the Argus BFF service.
type Config struct {
	Server struct {
		Port           int      `mapstructure:"port"`
		TLS            bool     `mapstructure:"tls"`
		CertFile       string   `mapstructure:"cert_file"`
		KeyFile        string   `mapstructure:"key_file"`
		AllowedOrigins []string `mapstructure:"allowed_origins"`
		TrustProxy     bool     `mapstructure:"trust_proxy"`
	} `mapstructure:"server"`

	MongoDB struct {
		URI         string `mapstructure:"uri"`
		Database    string `mapstructure:"database"`
		MaxPoolSize uint64 `mapstructure:"max_pool_size"`
	} `mapstructure:"mongodb"`

	Auth struct {
		// JWTSecret is never read from the config file; it is resolved from the
		// deployment environment via ResolveSecrets.
		JWTSecret  string        `mapstructure:"-"`
		JWTExpiry  time.Duration `mapstructure:"jwt_expiry"`
		BcryptCost int           `mapstructure:"bcrypt_cost"`
		CookieName string        `mapstructure:"cookie_name"`
	} `mapstructure:"auth"`

	Upstream struct {
		// BaseURL of the external analytics API, e.g. https://analytics.internal:9000
		BaseURL string `mapstructure:"base_url"`
		// APIKey is resolved from the deployment environment, never from file.
		APIKey  string        `mapstructure:"-"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"upstream"`

	RateLimit struct {
		Login struct {
			Limit  int           `mapstructure:"limit"`
			Window time.Duration `mapstructure:"window"`
			Burst  int           `mapstructure:"burst"`
		} `mapstructure:"login"`
	} `mapstructure:"rate_limit"`

	Security struct {
		JSONBodyLimit  int64 `mapstructure:"json_body_limit"`
		LoginBodyLimit int64 `mapstructure:"login_body_limit"`
		MaxUploadSize  int64 `mapstructure:"max_upload_size"`
	} `mapstructure:"security"`

	Web struct {
		StaticDir string `mapstructure:"static_dir"`
		LoginPath string `mapstructure:"login_path"`
	} `mapstructure:"web"`

	Secrets struct {
		// Provider selects where secrets come from: "env" (default), "vault" or "aws".
		Provider string `mapstructure:"provider"`
		Vault    struct {
			Address string `mapstructure:"address"`
			Token   string `mapstructure:"-"`
			Path    string `mapstructure:"path"`
		} `mapstructure:"vault"`
		AWS struct {
			Region   string `mapstructure:"region"`
			SecretID string `mapstructure:"secret_id"`
		} `mapstructure:"aws"`
	} `mapstructure:"secrets"`
}

// setDefaults sets default configuration values. Secrets have no defaults on
// purpose: a deployment that does not provide them must not start.
func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.tls", false)
	viper.SetDefault("server.cert_file", "server.crt")
	viper.SetDefault("server.key_file", "server.key")
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	viper.SetDefault("server.trust_proxy", false)

	viper.SetDefault("mongodb.uri", "mongodb://localhost:27017")
	viper.SetDefault("mongodb.database", "argus")
	viper.SetDefault("mongodb.max_pool_size", 10)

	viper.SetDefault("auth.jwt_expiry", 24*time.Hour)
	viper.SetDefault("auth.bcrypt_cost", 10)
	viper.SetDefault("auth.cookie_name", "argus_session")

	viper.SetDefault("upstream.base_url", "")
	viper.SetDefault("upstream.timeout", 2*time.Minute)

	viper.SetDefault("rate_limit.login.limit", 5)
	viper.SetDefault("rate_limit.login.window", 1*time.Minute)
	viper.SetDefault("rate_limit.login.burst", 5)

	viper.SetDefault("security.json_body_limit", 1048576) // 1MB
	viper.SetDefault("security.login_body_limit", 10240)  // 10KB
	viper.SetDefault("security.max_upload_size", 52428800) // 50MB

	viper.SetDefault("web.static_dir", "./web/static")
	viper.SetDefault("web.login_path", "/login")

	viper.SetDefault("secrets.provider", "env")
	viper.SetDefault("secrets.vault.address", "")
	viper.SetDefault("secrets.vault.path", "secret/argus")
	viper.SetDefault("secrets.aws.region", "")
	viper.SetDefault("secrets.aws.secret_id", "argus")
}

// loadFromEnv sets up environment variable loading with the ARGUS_ prefix.
func loadFromEnv() {
	viper.SetEnvPrefix("ARGUS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("server.port", "ARGUS_SERVER_PORT")
	_ = viper.BindEnv("mongodb.uri", "ARGUS_MONGODB_URI")
	_ = viper.BindEnv("mongodb.database", "ARGUS_MONGODB_DATABASE")
	_ = viper.BindEnv("upstream.base_url", "ARGUS_UPSTREAM_BASE_URL")
	_ = viper.BindEnv("secrets.provider", "ARGUS_SECRETS_PROVIDER")
	_ = viper.BindEnv("secrets.vault.address", "ARGUS_VAULT_ADDR")
	_ = viper.BindEnv("secrets.vault.path", "ARGUS_VAULT_PATH")
	_ = viper.BindEnv("secrets.aws.region", "ARGUS_AWS_REGION")
	_ = viper.BindEnv("secrets.aws.secret_id", "ARGUS_AWS_SECRET_ID")
}

// LoadConfig loads configuration from file and environment variables, then
// resolves secrets from the configured secret provider. It fails when any
// required secret is missing: there are no built-in fallback credentials.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, will use defaults and env vars
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := ResolveSecrets(&config); err != nil {
		return nil, err
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// validateConfig enforces invariants that would otherwise surface as confusing
// runtime failures: weak JWT secrets, missing upstream credentials, bad URLs.
func validateConfig(config *Config) error {
	if len(config.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters (256 bits)")
	}
	weakSecrets := []string{
		"secret", "password", "changeme", "default", "admin",
		"jwt_secret", "supersecret", "mysecret", "test", "example",
	}
	lowerSecret := strings.ToLower(config.Auth.JWTSecret)
	for _, weak := range weakSecrets {
		if strings.Contains(lowerSecret, weak) {
			return fmt.Errorf("JWT secret appears to contain a weak/default value")
		}
	}

	if config.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}
	u, err := url.Parse(config.Upstream.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("upstream.base_url must be a valid http(s) URL: %q", config.Upstream.BaseURL)
	}
	if config.Upstream.APIKey == "" {
		return fmt.Errorf("upstream API key is required")
	}

	if config.Auth.JWTExpiry <= 0 {
		return fmt.Errorf("auth.jwt_expiry must be positive")
	}
	if config.Auth.BcryptCost < 10 || config.Auth.BcryptCost > 31 {
		return fmt.Errorf("auth.bcrypt_cost must be between 10 and 31")
	}
	if config.Upstream.Timeout <= 0 {
		return fmt.Errorf("upstream.timeout must be positive")
	}
	if config.MongoDB.URI == "" {
		return fmt.Errorf("mongodb.uri is required")
	}

	return nil
}
