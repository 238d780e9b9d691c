package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestLoadConfigOptional_EmptyPath tests loading when file path is empty
func TestLoadConfigOptional_EmptyPath(t *testing.T) {
	t.Setenv("PORT", "9999")

	cfg, err := LoadConfigOptional("")
	if err != nil {
		t.Fatalf("LoadConfigOptional with empty path should not error: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected non-nil config")
	}
	if cfg.Port != 9999 {
		t.Errorf("Expected Port=9999 from env, got %d", cfg.Port)
	}
}

// TestLoadConfigOptional_FileNotExist tests loading when file does not exist
func TestLoadConfigOptional_FileNotExist(t *testing.T) {
	nonExistentPath := filepath.Join(t.TempDir(), "config-does-not-exist.yaml")

	cfg, err := LoadConfigOptional(nonExistentPath)
	if err != nil {
		t.Fatalf("LoadConfigOptional with non-existent file should not error: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected non-nil config")
	}
}

// TestLoadConfigOptional_InvalidYAML tests loading when file exists but has invalid YAML
func TestLoadConfigOptional_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")

	invalidYAML := `
port: 8080
redisAddr: "localhost:6379"
  invalid indentation here
  more bad yaml
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if _, err := LoadConfigOptional(configPath); err == nil {
		t.Fatal("Expected error when loading invalid YAML, got nil")
	}
}

// TestLoadConfig_ValidConfig tests loading a full config file
func TestLoadConfig_ValidConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "valid.yaml")

	validYAML := `
port: 8080
redisAddr: "localhost:6379"
reportsDir: "/var/lib/aquaq/reports"
reportLifetimeMinutes: 20
logLevel: "debug"
env: "test"
openRouter:
  apiKey: "file-key"
  model: "test/model"
rateLimit:
  upload:
    requestsPerMinute: 30
    burstSize: 5
`
	if err := os.WriteFile(configPath, []byte(validYAML), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig should not error: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Expected Port=8080, got %d", cfg.Port)
	}
	if cfg.ReportsDir != "/var/lib/aquaq/reports" {
		t.Errorf("Expected ReportsDir='/var/lib/aquaq/reports', got %q", cfg.ReportsDir)
	}
	if cfg.ReportLifetimeMinutes != 20 {
		t.Errorf("Expected ReportLifetimeMinutes=20, got %d", cfg.ReportLifetimeMinutes)
	}
	if cfg.OpenRouter.APIKey != "file-key" {
		t.Errorf("Expected OpenRouter.APIKey='file-key', got %q", cfg.OpenRouter.APIKey)
	}
	if cfg.OpenRouter.Model != "test/model" {
		t.Errorf("Expected OpenRouter.Model='test/model', got %q", cfg.OpenRouter.Model)
	}
	if cfg.RateLimit.Upload.RequestsPerMinute != 30 || cfg.RateLimit.Upload.BurstSize != 5 {
		t.Errorf("Unexpected upload rate limit: %+v", cfg.RateLimit.Upload)
	}
}

// TestLoadConfig_EnvOverrides tests that environment variables override file values
func TestLoadConfig_EnvOverrides(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	configYAML := `
port: 8080
redisAddr: "localhost:6379"
openRouter:
  apiKey: "file-key"
`
	if err := os.WriteFile(configPath, []byte(configYAML), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_ADDR", "env-redis:6380")
	t.Setenv("OPENROUTER_API_KEY", "env-key")
	t.Setenv("REPORTS_DIR", "/tmp/env-reports")

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig should not error: %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Expected Port=9090 from env, got %d", cfg.Port)
	}
	if cfg.RedisAddr != "env-redis:6380" {
		t.Errorf("Expected RedisAddr='env-redis:6380' from env, got %q", cfg.RedisAddr)
	}
	if cfg.OpenRouter.APIKey != "env-key" {
		t.Errorf("Expected OpenRouter.APIKey='env-key' from env, got %q", cfg.OpenRouter.APIKey)
	}
	if cfg.ReportsDir != "/tmp/env-reports" {
		t.Errorf("Expected ReportsDir='/tmp/env-reports' from env, got %q", cfg.ReportsDir)
	}
}

// TestLoadConfig_Defaults tests the retention and pipeline defaults
func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfigOptional("")
	if err != nil {
		t.Fatalf("LoadConfigOptional: %v", err)
	}

	if cfg.Port != 2104 {
		t.Errorf("Expected default Port=2104, got %d", cfg.Port)
	}
	if cfg.ReportLifetimeMinutes != 10 {
		t.Errorf("Expected default ReportLifetimeMinutes=10, got %d", cfg.ReportLifetimeMinutes)
	}
	if cfg.CleanupIntervalMinutes != 5 {
		t.Errorf("Expected default CleanupIntervalMinutes=5, got %d", cfg.CleanupIntervalMinutes)
	}
	if cfg.PostDownloadCleanupMinutes != 1 {
		t.Errorf("Expected default PostDownloadCleanupMinutes=1, got %d", cfg.PostDownloadCleanupMinutes)
	}
	if cfg.SessionMaxAgeMinutes != 60 {
		t.Errorf("Expected default SessionMaxAgeMinutes=60, got %d", cfg.SessionMaxAgeMinutes)
	}
	if cfg.OpenRouter.BaseURL == "" || cfg.OpenRouter.Model == "" {
		t.Errorf("Expected OpenRouter defaults, got %+v", cfg.OpenRouter)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"dev without api key ok", func(c *Config) { c.Env = "dev" }, false},
		{"prod without api key rejected", func(c *Config) { c.Env = "prod" }, true},
		{"prod with api key ok", func(c *Config) {
			c.Env = "prod"
			c.OpenRouter.APIKey = "k"
		}, false},
		{"bad base url rejected", func(c *Config) { c.OpenRouter.BaseURL = "not a url" }, true},
		{"grace beyond lifetime rejected", func(c *Config) {
			c.ReportLifetimeMinutes = 5
			c.PostDownloadCleanupMinutes = 10
		}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadConfigOptional("")
			if err != nil {
				t.Fatalf("LoadConfigOptional: %v", err)
			}
			tc.mutate(cfg)
			if err := cfg.Validate(); (err != nil) != tc.wantErr {
				t.Errorf("Validate() err = %v, wantErr = %v", err, tc.wantErr)
			}
		})
	}
}
