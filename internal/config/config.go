package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Config holds all application configuration
type Config struct {
	ServerAddress string   `json:"serverAddress"`
	DatabasePath  string   `json:"databasePath"`
	DatabaseURL   string   `json:"databaseUrl"`
	Remote        Remote   `json:"remote"`
	Sync          Sync     `json:"sync"`
	Security      Security `json:"security"`
}

// UsePostgres returns true if PostgreSQL should be used
func (c *Config) UsePostgres() bool {
	return c.DatabaseURL != ""
}

// Remote configuration for the resource-management system
type Remote struct {
	BaseURL    string `json:"baseUrl"`
	AuthHeader string `json:"authHeader"`
}

// Sync configuration for the reconciliation engine
type Sync struct {
	RunTimeoutSeconds int `json:"runTimeoutSeconds"`
	WriteDelayMillis  int `json:"writeDelayMillis"`
}

// Security configuration
type Security struct {
	APIKey       string `json:"apiKey"`
	APIKeyHeader string `json:"apiKeyHeader"`
	// EncryptionKey is a hex-encoded 32-byte key protecting remote
	// tokens at rest.
	EncryptionKey string `json:"encryptionKey"`
}

// Default configuration
func defaultConfig() *Config {
	return &Config{
		ServerAddress: ":5000",
		DatabasePath:  "timesync.db",
		Remote: Remote{
			BaseURL:    "https://api.rm.smartsheet.com",
			AuthHeader: "auth",
		},
		Sync: Sync{
			RunTimeoutSeconds: 300,
			WriteDelayMillis:  100,
		},
		Security: Security{
			APIKey:       "CHANGE_THIS_TO_A_SECURE_API_KEY_AT_LEAST_32_CHARS",
			APIKeyHeader: "X-API-Key",
		},
	}
}

// Load loads configuration from file or environment
func Load() (*Config, error) {
	cfg := defaultConfig()

	// Try to load from config file
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	// Override from environment variables
	if addr := os.Getenv("SERVER_ADDRESS"); addr != "" {
		cfg.ServerAddress = addr
	}
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	if baseURL := os.Getenv("REMOTE_BASE_URL"); baseURL != "" {
		cfg.Remote.BaseURL = baseURL
	}
	if header := os.Getenv("REMOTE_AUTH_HEADER"); header != "" {
		cfg.Remote.AuthHeader = header
	}
	if apiKey := os.Getenv("API_KEY"); apiKey != "" {
		cfg.Security.APIKey = apiKey
	}
	if encKey := os.Getenv("ENCRYPTION_KEY"); encKey != "" {
		cfg.Security.EncryptionKey = encKey
	}

	if timeout := os.Getenv("SYNC_RUN_TIMEOUT_SECONDS"); timeout != "" {
		if secs, err := strconv.Atoi(timeout); err == nil && secs > 0 {
			cfg.Sync.RunTimeoutSeconds = secs
		}
	}
	if delay := os.Getenv("SYNC_WRITE_DELAY_MILLIS"); delay != "" {
		if millis, err := strconv.Atoi(delay); err == nil && millis >= 0 {
			cfg.Sync.WriteDelayMillis = millis
		}
	}

	if cfg.Security.EncryptionKey == "" {
		return nil, fmt.Errorf("encryption key is required (set ENCRYPTION_KEY or security.encryptionKey)")
	}

	return cfg, nil
}
