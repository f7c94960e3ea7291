package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DiscordConfig  DiscordConfig  `json:"discord"`
	DatabaseConfig DatabaseConfig `json:"database"`
	RedisConfig    RedisConfig    `json:"redis"`
	VaultConfig    VaultConfig    `json:"vault"`
	AuthConfig     AuthConfig     `json:"auth"`
	ServerConfig   ServerConfig   `json:"server"`
	LoggingConfig  LoggingConfig  `json:"logging"`
}

// DiscordConfig holds the bot's Discord wiring: credentials, the channels
// it posts to and the role gating for operator commands.
type DiscordConfig struct {
	Token                 string   `json:"token"`
	ApplicationID         string   `json:"application_id"`
	GuildID               string   `json:"guild_id"`
	CurrentTradesChannel  string   `json:"current_trades_channel_id"`
	CommandName           string   `json:"command_name"`   // slash command name, default "signal"
	OwnerID               string   `json:"owner_id"`       // always allowed to act
	TraderRoleID          string   `json:"trader_role_id"` // default mention role (optional)
	CommandAllowedRoleIDs []string `json:"command_allowed_role_ids"`
	AdminUserIDs          []string `json:"admin_user_ids"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds Redis settings for the action-dedup cache
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// VaultConfig holds optional HashiCorp Vault settings used to source the
// Discord token and the admin password hash instead of env/config values.
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	SecretPath string `json:"secret_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// AuthConfig holds admin authentication for the read-only HTTP API
type AuthConfig struct {
	Enabled             bool          `json:"enabled"`
	JWTSecret           string        `json:"jwt_secret"`
	AccessTokenDuration time.Duration `json:"access_token_duration"`
	AdminUsername       string        `json:"admin_username"`
	AdminPasswordHash   string        `json:"admin_password_hash"` // bcrypt
}

// ServerConfig holds the HTTP API server settings
type ServerConfig struct {
	Enabled         bool   `json:"enabled"`
	Host            string `json:"host"`
	Port            int    `json:"port"`
	AllowedOrigins  string `json:"allowed_origins"`
	ShutdownTimeout int    `json:"shutdown_timeout"` // seconds
}

type LoggingConfig struct {
	Level       string `json:"level"`        // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"`       // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
	IncludeFile bool   `json:"include_file"` // Include file and line number
}

// Load reads config.json when present and applies environment overrides.
// Environment variables take precedence over file values.
func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		// If no config file, start with empty config
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// Validate checks the fields the bot cannot run without.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"discord token (DISCORD_TOKEN)", c.DiscordConfig.Token},
		{"application id (DISCORD_APPLICATION_ID)", c.DiscordConfig.ApplicationID},
		{"guild id (DISCORD_GUILD_ID)", c.DiscordConfig.GuildID},
		{"current trades channel (CURRENT_TRADES_CHANNEL_ID)", c.DiscordConfig.CurrentTradesChannel},
		{"owner id (DISCORD_OWNER_ID)", c.DiscordConfig.OwnerID},
	}
	var missing []string
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// The Discord token may also come from Vault; config/env values act as the
// fallback when Vault is disabled.
func applyEnvOverrides(cfg *Config) {
	// Discord config
	cfg.DiscordConfig.Token = getEnvOrDefault("DISCORD_TOKEN", cfg.DiscordConfig.Token)
	cfg.DiscordConfig.ApplicationID = getEnvOrDefault("DISCORD_APPLICATION_ID", cfg.DiscordConfig.ApplicationID)
	cfg.DiscordConfig.GuildID = getEnvOrDefault("DISCORD_GUILD_ID", cfg.DiscordConfig.GuildID)
	cfg.DiscordConfig.CurrentTradesChannel = getEnvOrDefault("CURRENT_TRADES_CHANNEL_ID", cfg.DiscordConfig.CurrentTradesChannel)
	cfg.DiscordConfig.CommandName = getEnvOrDefault("COMMAND_NAME", defaultString(cfg.DiscordConfig.CommandName, "signal"))
	cfg.DiscordConfig.OwnerID = getEnvOrDefault("DISCORD_OWNER_ID", cfg.DiscordConfig.OwnerID)
	cfg.DiscordConfig.TraderRoleID = getEnvOrDefault("TRADER_ROLE_ID", cfg.DiscordConfig.TraderRoleID)
	cfg.DiscordConfig.CommandAllowedRoleIDs = getEnvListOrDefault("COMMAND_ALLOWED_ROLE_IDS", cfg.DiscordConfig.CommandAllowedRoleIDs)
	cfg.DiscordConfig.AdminUserIDs = getEnvListOrDefault("ADMIN_USER_IDS", cfg.DiscordConfig.AdminUserIDs)

	// Database config
	cfg.DatabaseConfig.Host = getEnvOrDefault("DATABASE_HOST", defaultString(cfg.DatabaseConfig.Host, "localhost"))
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DATABASE_PORT", defaultInt(cfg.DatabaseConfig.Port, 5432))
	cfg.DatabaseConfig.User = getEnvOrDefault("DATABASE_USER", defaultString(cfg.DatabaseConfig.User, "postgres"))
	cfg.DatabaseConfig.Password = getEnvOrDefault("DATABASE_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DATABASE_NAME", defaultString(cfg.DatabaseConfig.Database, "signals"))
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DATABASE_SSL_MODE", defaultString(cfg.DatabaseConfig.SSLMode, "disable"))

	// Redis config
	cfg.RedisConfig.Enabled = getEnvOrDefault("REDIS_ENABLED", strconv.FormatBool(cfg.RedisConfig.Enabled)) == "true"
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", defaultString(cfg.RedisConfig.Address, "localhost:6379"))
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", defaultInt(cfg.RedisConfig.PoolSize, 10))

	// Vault config
	cfg.VaultConfig.Enabled = getEnvOrDefault("VAULT_ENABLED", strconv.FormatBool(cfg.VaultConfig.Enabled)) == "true"
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", cfg.VaultConfig.Address)
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)
	cfg.VaultConfig.SecretPath = getEnvOrDefault("VAULT_SECRET_PATH", defaultString(cfg.VaultConfig.SecretPath, "secret/data/trade-signal-bot"))
	cfg.VaultConfig.TLSEnabled = getEnvOrDefault("VAULT_TLS_ENABLED", "false") == "true"
	cfg.VaultConfig.CACert = getEnvOrDefault("VAULT_CA_CERT", cfg.VaultConfig.CACert)

	// Auth config - ALWAYS apply from environment
	cfg.AuthConfig.Enabled = getEnvOrDefault("AUTH_ENABLED", strconv.FormatBool(cfg.AuthConfig.Enabled)) == "true"
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.AccessTokenDuration = getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_DURATION", defaultDuration(cfg.AuthConfig.AccessTokenDuration, time.Hour))
	cfg.AuthConfig.AdminUsername = getEnvOrDefault("AUTH_ADMIN_USERNAME", defaultString(cfg.AuthConfig.AdminUsername, "admin"))
	cfg.AuthConfig.AdminPasswordHash = getEnvOrDefault("AUTH_ADMIN_PASSWORD_HASH", cfg.AuthConfig.AdminPasswordHash)

	// Server config
	cfg.ServerConfig.Enabled = getEnvOrDefault("WEB_ENABLED", strconv.FormatBool(cfg.ServerConfig.Enabled)) == "true"
	cfg.ServerConfig.Host = getEnvOrDefault("WEB_HOST", defaultString(cfg.ServerConfig.Host, "0.0.0.0"))
	cfg.ServerConfig.Port = getEnvIntOrDefault("WEB_PORT", defaultInt(cfg.ServerConfig.Port, 8080))
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", defaultString(cfg.ServerConfig.AllowedOrigins, "*"))
	cfg.ServerConfig.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", defaultInt(cfg.ServerConfig.ShutdownTimeout, 10))

	// Logging config
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", defaultString(cfg.LoggingConfig.Level, "INFO"))
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", defaultString(cfg.LoggingConfig.Output, "stdout"))
	cfg.LoggingConfig.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
	cfg.LoggingConfig.IncludeFile = getEnvOrDefault("LOG_INCLUDE_FILE", "false") == "true"
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvListOrDefault parses a comma-separated list, trimming blanks.
func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func defaultInt(value, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}

func defaultDuration(value, fallback time.Duration) time.Duration {
	if value == 0 {
		return fallback
	}
	return value
}
