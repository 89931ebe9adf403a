package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	AppName     = "turnover"
	EnvFileName = "config.env"

	// DefaultListenAddr is loopback only. The credential routes are not
	// authenticated, so exposing them is an explicit choice.
	DefaultListenAddr = "127.0.0.1:8080"
)

// Provider selects the vision backend.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
	ProviderMock   Provider = "mock"
)

// Retry policies accepted in TURNOVER_RETRY_POLICY.
const (
	RetryPolicyAll       = "all"
	RetryPolicyTransient = "transient"
)

// Config holds the runtime configuration read from the environment.
type Config struct {
	Provider Provider
	// Endpoint is the chat completions URL (openai) or API base URL (gemini).
	Endpoint       string
	Model          string
	MaxAttempts    int
	RetryDelay     time.Duration
	RequestTimeout time.Duration
	RetryPolicy    string
	// SeedCredential, if set, is saved to the credential store at startup.
	SeedCredential string
	DBPath         string
	SecretKey      string
	ListenAddr     string
	Concurrency    int
	LogLevel       zerolog.Level
	LogFile        string
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory. Errors are ignored since the file may not exist.
func LoadEnvFile() {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return
	}
	configPath := filepath.Join(configBase, AppName, EnvFileName)
	_ = godotenv.Load(configPath)
}

// Load reads the configuration from environment variables, applying
// defaults for anything unset.
func Load() (*Config, error) {
	cfg := &Config{
		Provider:    Provider(strings.ToLower(getenv("TURNOVER_PROVIDER", string(ProviderOpenAI)))),
		Endpoint:    os.Getenv("TURNOVER_ENDPOINT"),
		Model:       os.Getenv("TURNOVER_MODEL"),
		RetryPolicy: strings.ToLower(getenv("TURNOVER_RETRY_POLICY", RetryPolicyAll)),
		DBPath:      getenv("TURNOVER_DB_PATH", "turnover.db"),
		SecretKey:   os.Getenv("TURNOVER_SECRET_KEY"),
		ListenAddr:  getenv("TURNOVER_LISTEN_ADDR", DefaultListenAddr),
		LogFile:     os.Getenv("TURNOVER_LOG_FILE"),
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		cfg.SeedCredential = os.Getenv("OPENAI_API_KEY")
	case ProviderGemini:
		cfg.SeedCredential = os.Getenv("GEMINI_API_KEY")
	case ProviderMock:
	default:
		return nil, fmt.Errorf("TURNOVER_PROVIDER must be openai, gemini or mock, got %q", cfg.Provider)
	}

	if cfg.RetryPolicy != RetryPolicyAll && cfg.RetryPolicy != RetryPolicyTransient {
		return nil, fmt.Errorf("TURNOVER_RETRY_POLICY must be %s or %s, got %q", RetryPolicyAll, RetryPolicyTransient, cfg.RetryPolicy)
	}

	var err error
	if cfg.MaxAttempts, err = getenvInt("TURNOVER_MAX_ATTEMPTS", 2); err != nil {
		return nil, err
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("TURNOVER_MAX_ATTEMPTS must be at least 1, got %d", cfg.MaxAttempts)
	}
	if cfg.Concurrency, err = getenvInt("TURNOVER_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("TURNOVER_CONCURRENCY must be at least 1, got %d", cfg.Concurrency)
	}
	if cfg.RetryDelay, err = getenvDuration("TURNOVER_RETRY_DELAY", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = getenvDuration("TURNOVER_REQUEST_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	cfg.LogLevel = zerolog.InfoLevel
	if s := os.Getenv("TURNOVER_LOG_LEVEL"); s != "" {
		if cfg.LogLevel, err = zerolog.ParseLevel(strings.ToLower(s)); err != nil {
			return nil, fmt.Errorf("invalid TURNOVER_LOG_LEVEL: %w", err)
		}
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return v, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return d, nil
}
