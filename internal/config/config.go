// Package config loads the poller's YAML configuration file. Secrets are
// referenced by file path, never inlined, so the config itself is safe to
// check in or attach to a bug report.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	SchemaVersion          = 1
	DefaultPath            = "/etc/mobilelink/config.yaml"
	DefaultHTTPAddr        = "0.0.0.0:8080"
	DefaultIntervalSeconds = 300
	DefaultMQTTPort        = 1883
)

// Config is the root of the configuration file.
type Config struct {
	SchemaVersion int             `yaml:"schema_version"`
	HTTPAddr      string          `yaml:"http_addr"`
	BaseURL       string          `yaml:"base_url,omitempty"`
	Accounts      []AccountConfig `yaml:"accounts"`
	MQTT          *MQTTConfig     `yaml:"mqtt,omitempty"`
	Diagnostics   *BlobConfig     `yaml:"diagnostics,omitempty"`
}

// AccountConfig describes one Mobile Link account. Either password_file or
// cookie_file must be set; cookie_file selects the weaker cookie-paste mode.
type AccountConfig struct {
	Email           string  `yaml:"email"`
	PasswordFile    string  `yaml:"password_file,omitempty"`
	CookieFile      string  `yaml:"cookie_file,omitempty"`
	SelectedTanks   []int64 `yaml:"selected_tanks,omitempty"`
	IntervalSeconds int     `yaml:"interval_seconds,omitempty"`
}

type MQTTConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port,omitempty"`
	TLS             bool   `yaml:"tls,omitempty"`
	Username        string `yaml:"username,omitempty"`
	PasswordFile    string `yaml:"password_file,omitempty"`
	DiscoveryPrefix string `yaml:"discovery_prefix,omitempty"`
	StatePrefix     string `yaml:"state_prefix,omitempty"`
}

// BlobConfig enables snapshot archiving to S3-compatible storage.
type BlobConfig struct {
	BlobEndpoint      string `yaml:"blob_endpoint"`
	BlobBucket        string `yaml:"blob_bucket"`
	BlobPrefix        string `yaml:"blob_prefix,omitempty"`
	BlobRegion        string `yaml:"blob_region,omitempty"`
	BlobAccessKeyFile string `yaml:"blob_access_key_file"`
	BlobSecretKeyFile string `yaml:"blob_secret_key_file"`
}

// Load parses the YAML config file, applies defaults, and validates.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = DefaultHTTPAddr
	}
	for i := range cfg.Accounts {
		if cfg.Accounts[i].IntervalSeconds == 0 {
			cfg.Accounts[i].IntervalSeconds = DefaultIntervalSeconds
		}
	}
	if cfg.MQTT != nil && cfg.MQTT.Port == 0 {
		cfg.MQTT.Port = DefaultMQTTPort
	}
}

// Validate enforces required invariants beyond YAML typing.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if cfg.SchemaVersion != SchemaVersion {
		return fmt.Errorf("schema_version must be %d", SchemaVersion)
	}
	if len(cfg.Accounts) == 0 {
		return fmt.Errorf("at least one account is required")
	}

	seen := make(map[string]bool)
	for i, account := range cfg.Accounts {
		email := strings.TrimSpace(account.Email)
		if email == "" {
			return fmt.Errorf("accounts[%d].email is required", i)
		}
		if seen[strings.ToLower(email)] {
			return fmt.Errorf("duplicate account: %s", email)
		}
		seen[strings.ToLower(email)] = true

		if account.PasswordFile == "" && account.CookieFile == "" {
			return fmt.Errorf("accounts[%d]: password_file or cookie_file is required", i)
		}
		if account.PasswordFile != "" && account.CookieFile != "" {
			return fmt.Errorf("accounts[%d]: password_file and cookie_file are mutually exclusive", i)
		}
		if account.IntervalSeconds < 0 {
			return fmt.Errorf("accounts[%d].interval_seconds must be positive", i)
		}
	}

	if cfg.MQTT != nil && cfg.MQTT.Host == "" {
		return fmt.Errorf("mqtt.host is required")
	}

	if cfg.Diagnostics != nil {
		if cfg.Diagnostics.BlobEndpoint == "" {
			return fmt.Errorf("diagnostics.blob_endpoint is required")
		}
		if cfg.Diagnostics.BlobBucket == "" {
			return fmt.Errorf("diagnostics.blob_bucket is required")
		}
		if cfg.Diagnostics.BlobAccessKeyFile == "" {
			return fmt.Errorf("diagnostics.blob_access_key_file is required")
		}
		if cfg.Diagnostics.BlobSecretKeyFile == "" {
			return fmt.Errorf("diagnostics.blob_secret_key_file is required")
		}
	}

	return nil
}

// ReadSecretFile loads a trimmed secret referenced from the config.
func ReadSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return "", fmt.Errorf("secret file %s is empty", path)
	}
	return secret, nil
}
