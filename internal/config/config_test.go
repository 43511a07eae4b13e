package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
schema_version: 1
accounts:
  - email: user@example.com
    password_file: /etc/mobilelink/password
mqtt:
  host: broker.local
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != DefaultHTTPAddr {
		t.Fatalf("unexpected http addr: %q", cfg.HTTPAddr)
	}
	if cfg.Accounts[0].IntervalSeconds != DefaultIntervalSeconds {
		t.Fatalf("unexpected interval: %d", cfg.Accounts[0].IntervalSeconds)
	}
	if cfg.MQTT.Port != DefaultMQTTPort {
		t.Fatalf("unexpected mqtt port: %d", cfg.MQTT.Port)
	}
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
schema_version: 1
http_addr: "127.0.0.1:9090"
accounts:
  - email: user@example.com
    password_file: /secrets/pw
    selected_tanks: [7, 9]
    interval_seconds: 120
  - email: barn@example.com
    cookie_file: /secrets/cookie
diagnostics:
  blob_endpoint: https://s3.example.com
  blob_bucket: mobilelink
  blob_access_key_file: /secrets/access
  blob_secret_key_file: /secrets/secret
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Accounts) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(cfg.Accounts))
	}
	if len(cfg.Accounts[0].SelectedTanks) != 2 || cfg.Accounts[0].SelectedTanks[0] != 7 {
		t.Fatalf("unexpected selection: %v", cfg.Accounts[0].SelectedTanks)
	}
	if cfg.Accounts[1].CookieFile != "/secrets/cookie" {
		t.Fatalf("unexpected cookie file: %q", cfg.Accounts[1].CookieFile)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"wrong schema version",
			"schema_version: 2\naccounts:\n  - email: a@b.c\n    password_file: /p\n",
			"schema_version",
		},
		{
			"no accounts",
			"schema_version: 1\n",
			"account",
		},
		{
			"missing credentials",
			"schema_version: 1\naccounts:\n  - email: a@b.c\n",
			"password_file or cookie_file",
		},
		{
			"both credentials",
			"schema_version: 1\naccounts:\n  - email: a@b.c\n    password_file: /p\n    cookie_file: /c\n",
			"mutually exclusive",
		},
		{
			"duplicate accounts",
			"schema_version: 1\naccounts:\n  - email: a@b.c\n    password_file: /p\n  - email: A@B.C\n    password_file: /p\n",
			"duplicate",
		},
		{
			"mqtt without host",
			"schema_version: 1\naccounts:\n  - email: a@b.c\n    password_file: /p\nmqtt:\n  port: 1883\n",
			"mqtt.host",
		},
		{
			"diagnostics without bucket",
			"schema_version: 1\naccounts:\n  - email: a@b.c\n    password_file: /p\ndiagnostics:\n  blob_endpoint: https://s3\n  blob_access_key_file: /a\n  blob_secret_key_file: /s\n",
			"blob_bucket",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestReadSecretFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte("  hunter2\n"), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}

	secret, err := ReadSecretFile(path)
	if err != nil {
		t.Fatalf("ReadSecretFile: %v", err)
	}
	if secret != "hunter2" {
		t.Fatalf("unexpected secret: %q", secret)
	}

	empty := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(empty, []byte("\n"), 0o600); err != nil {
		t.Fatalf("write empty: %v", err)
	}
	if _, err := ReadSecretFile(empty); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}
