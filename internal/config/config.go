package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Config is the root configuration for ZapGate.
type Config struct {
	General  GeneralConfig  `json:"general"`
	Gateway  GatewayConfig  `json:"gateway"`
	Relay    RelayConfig    `json:"relay"`
	API      APIConfig      `json:"api"`
	Outbound OutboundConfig `json:"outbound"`
	Metrics  MetricsConfig  `json:"metrics"`
}

type GeneralConfig struct {
	LogLevel string `json:"logLevel"`
	LogFile  string `json:"logFile,omitempty"` // optional log file path
}

// GatewayConfig points at the whatsapp-web gateway sidecar that owns the
// actual protocol session. Auth material persists inside the gateway.
type GatewayConfig struct {
	BaseURL       string `json:"baseUrl"`
	APIKey        string `json:"apiKey,omitempty"`
	Session       string `json:"session"`                 // session identifier/name
	WebhookSecret string `json:"webhookSecret,omitempty"` // HMAC secret for incoming gateway events
}

// RelayConfig configures the webhook consumer for inbound messages.
// An empty WebhookURL disables relaying (startup warning, not fatal).
type RelayConfig struct {
	WebhookURL     string `json:"webhookUrl"`
	TimeoutSeconds int    `json:"timeoutSeconds"`
}

type APIConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

type OutboundConfig struct {
	DefaultTestPhone   string `json:"defaultTestPhone,omitempty"`
	SendTimeoutSeconds int    `json:"sendTimeoutSeconds"`
}

type MetricsConfig struct {
	Enabled  bool   `json:"enabled"`
	Endpoint string `json:"endpoint"`
}

// DefaultConfigDir returns the default config directory (~/.zapgate).
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".zapgate"
	}
	return filepath.Join(home, ".zapgate")
}

func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.json")
}

func Load(path string) (*Config, error) {
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	// Substitute environment variables: ${VAR} and ${VAR:-default}
	data = []byte(ExpandEnvVars(string(data)))

	cfg := Defaults()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config file %s: %w", path, err)
	}

	cfg.General.LogFile = ExpandPath(cfg.General.LogFile)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns in config strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-(.*?))?\}`)

// ExpandEnvVars replaces ${VAR} with the environment variable value.
// Supports default values: ${VAR:-default} uses "default" when VAR is unset or empty.
func ExpandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultVal := ""
		hasDefault := len(groups) >= 3 && groups[2] != ""
		if hasDefault {
			defaultVal = groups[2]
		}

		val, exists := os.LookupEnv(varName)
		if !exists || val == "" {
			if hasDefault {
				return defaultVal
			}
			return match // keep original if no env var and no default
		}
		return val
	})
}

func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// Validate checks that the config has valid values.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Gateway.BaseURL == "" {
		errs = append(errs, "gateway.baseUrl is required")
	}
	if cfg.Gateway.Session == "" {
		errs = append(errs, "gateway.session is required")
	}
	if cfg.API.Port < 0 || cfg.API.Port > 65535 {
		errs = append(errs, "api.port must be between 0 and 65535")
	}
	if cfg.Relay.TimeoutSeconds < 1 {
		errs = append(errs, "relay.timeoutSeconds must be >= 1")
	}
	if cfg.Outbound.SendTimeoutSeconds < 1 {
		errs = append(errs, "outbound.sendTimeoutSeconds must be >= 1")
	}
	switch cfg.General.LogLevel {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		errs = append(errs, "general.logLevel must be one of: debug, info, warn, error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ExpandPath resolves ~/ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
