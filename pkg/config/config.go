package config

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type OpenRouterConfig struct {
	APIKey         string  `yaml:"apiKey"`
	BaseURL        string  `yaml:"baseUrl"`
	Model          string  `yaml:"model"`
	FallbackModel  string  `yaml:"fallbackModel"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"maxTokens"`
	TimeoutSeconds int     `yaml:"timeoutSeconds"`
	MaxAttempts    int     `yaml:"maxAttempts"`
	PromptPath     string  `yaml:"promptPath"`
}

type BackoffConfig struct {
	Policy      string `yaml:"policy"`
	BaseSeconds int    `yaml:"baseSeconds"`
	MaxSeconds  int    `yaml:"maxSeconds"`
}

type RateLimitBucketConfig struct {
	RequestsPerMinute int `yaml:"requestsPerMinute"`
	BurstSize         int `yaml:"burstSize"`
}

type RateLimitConfig struct {
	Upload RateLimitBucketConfig `yaml:"upload"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	OTLPInsecure bool    `yaml:"otlpInsecure"`
	SampleRatio  float64 `yaml:"sampleRatio"`
}

type Config struct {
	Port          int      `yaml:"port"`
	RedisAddr     string   `yaml:"redisAddr"`
	RedisPassword string   `yaml:"redisPassword"`
	Timezone      string   `yaml:"timezone"`
	LogLevel      string   `yaml:"logLevel"`
	LogFormat     string   `yaml:"logFormat"`
	Env           string   `yaml:"env"`
	CORSOrigins   []string `yaml:"corsOrigins"`

	UploadDir       string `yaml:"uploadDir"`
	ReportsDir      string `yaml:"reportsDir"`
	MaxUploadSizeMB int    `yaml:"maxUploadSizeMB"`
	PDFToTextPath   string `yaml:"pdftotextPath"`

	ReportLifetimeMinutes      int `yaml:"reportLifetimeMinutes"`
	CleanupIntervalMinutes     int `yaml:"cleanupIntervalMinutes"`
	PostDownloadCleanupMinutes int `yaml:"postDownloadCleanupMinutes"`
	SessionMaxAgeMinutes       int `yaml:"sessionMaxAgeMinutes"`

	OpenRouter OpenRouterConfig `yaml:"openRouter"`
	Backoff    BackoffConfig    `yaml:"backoff"`
	RateLimit  RateLimitConfig  `yaml:"rateLimit"`
	Tracing    TracingConfig    `yaml:"tracing"`
}

// LoadConfig reads the yaml config file, then applies .env and process
// environment overrides and fills defaults. An empty filePath skips the file
// and builds the config from environment and defaults alone.
func LoadConfig(filePath string) (*Config, error) {
	// Local .env files are a dev convenience; absence is not an error.
	_ = godotenv.Load()

	var c Config
	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.RedisPassword = v
	}
	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		c.UploadDir = v
	}
	if v := os.Getenv("REPORTS_DIR"); v != "" {
		c.ReportsDir = v
	}
	if v := os.Getenv("MAX_UPLOAD_SIZE_MB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxUploadSizeMB = n
		}
	}
	if v := os.Getenv("PDFTOTEXT_PATH"); v != "" {
		c.PDFToTextPath = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("REPORT_LIFETIME_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.ReportLifetimeMinutes = n
		}
	}
	if v := os.Getenv("CLEANUP_INTERVAL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.CleanupIntervalMinutes = n
		}
	}
	if v := os.Getenv("POST_DOWNLOAD_CLEANUP_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PostDownloadCleanupMinutes = n
		}
	}
	if v := os.Getenv("SESSION_MAX_AGE_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.SessionMaxAgeMinutes = n
		}
	}
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		c.OpenRouter.APIKey = v
	}
	if v := os.Getenv("OPENROUTER_BASE_URL"); v != "" {
		c.OpenRouter.BaseURL = v
	}
	if v := os.Getenv("OPENROUTER_MODEL"); v != "" {
		c.OpenRouter.Model = v
	}
	if v := os.Getenv("OPENROUTER_FALLBACK_MODEL"); v != "" {
		c.OpenRouter.FallbackModel = v
	}
	if v := os.Getenv("BACKOFF_POLICY"); v != "" {
		c.Backoff.Policy = v
	}
	if v := os.Getenv("BACKOFF_BASE_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Backoff.BaseSeconds = n
		}
	}
	if v := os.Getenv("BACKOFF_MAX_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Backoff.MaxSeconds = n
		}
	}
	if v := os.Getenv("TRACING_ENABLED"); v != "" {
		c.Tracing.Enabled = parseBool(v)
	}

	if c.Port == 0 {
		c.Port = 2104
	}
	if c.RedisAddr == "" {
		c.RedisAddr = "localhost:6379"
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/Warsaw"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "json"
	}
	if c.Env == "" {
		c.Env = "dev"
	}
	if c.UploadDir == "" {
		c.UploadDir = "/tmp/aquaq-uploads"
	}
	if c.ReportsDir == "" {
		c.ReportsDir = "/tmp/aquaq-reports"
	}
	if c.MaxUploadSizeMB <= 0 {
		c.MaxUploadSizeMB = 10
	}
	if c.ReportLifetimeMinutes <= 0 {
		c.ReportLifetimeMinutes = 10
	}
	if c.CleanupIntervalMinutes <= 0 {
		c.CleanupIntervalMinutes = 5
	}
	if c.PostDownloadCleanupMinutes <= 0 {
		c.PostDownloadCleanupMinutes = 1
	}
	if c.SessionMaxAgeMinutes <= 0 {
		c.SessionMaxAgeMinutes = 60
	}
	if c.OpenRouter.BaseURL == "" {
		c.OpenRouter.BaseURL = "https://openrouter.ai/api/v1"
	}
	if c.OpenRouter.Model == "" {
		c.OpenRouter.Model = "anthropic/claude-3.5-sonnet"
	}
	if c.OpenRouter.Temperature <= 0 {
		c.OpenRouter.Temperature = 0.3
	}
	if c.OpenRouter.MaxTokens <= 0 {
		c.OpenRouter.MaxTokens = 4000
	}
	if c.OpenRouter.TimeoutSeconds <= 0 {
		c.OpenRouter.TimeoutSeconds = 120
	}
	if c.OpenRouter.MaxAttempts <= 0 {
		c.OpenRouter.MaxAttempts = 3
	}
	if c.Backoff.Policy == "" {
		c.Backoff.Policy = "exp_full_jitter"
	}
	if c.Backoff.BaseSeconds <= 0 {
		c.Backoff.BaseSeconds = 2
	}
	if c.Backoff.MaxSeconds <= 0 {
		c.Backoff.MaxSeconds = 60
	}

	log.Printf("Analyzer Config: {Port:%d Redis:%s TZ:%s Reports:%s Lifetime:%dm Sweep:%dm}\n",
		c.Port, c.RedisAddr, c.Timezone, c.ReportsDir, c.ReportLifetimeMinutes, c.CleanupIntervalMinutes)
	return &c, nil
}

// LoadConfigOptional behaves like LoadConfig but tolerates a missing file:
// a blank path or a path that does not exist yields an env-and-defaults
// config instead of an error.
func LoadConfigOptional(filePath string) (*Config, error) {
	filePath = strings.TrimSpace(filePath)
	if filePath != "" {
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			filePath = ""
		}
	}
	return LoadConfig(filePath)
}

func (c *Config) Validate() error {
	var errs []string
	env := strings.ToLower(strings.TrimSpace(c.Env))
	dev := env == "dev"

	if strings.TrimSpace(c.OpenRouter.APIKey) == "" && !dev {
		errs = append(errs, "openRouter.apiKey is required in non-dev")
	}
	if c.OpenRouter.BaseURL != "" {
		u, err := url.Parse(c.OpenRouter.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, "openRouter.baseUrl must be a valid http(s) URL")
		}
	}
	if c.PostDownloadCleanupMinutes > c.ReportLifetimeMinutes {
		errs = append(errs, "postDownloadCleanupMinutes must not exceed reportLifetimeMinutes")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(v string) bool {
	v = strings.TrimSpace(strings.ToLower(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}
