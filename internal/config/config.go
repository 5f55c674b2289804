package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	// ServerURL points at a pdfchatd daemon; empty runs the stores in-process.
	ServerURL    string `validate:"omitempty,url"`
	DatabasePath string `validate:"required"`
	CacheDir     string
	RecentFile   string `validate:"required"`
	LogFile      string `validate:"required"`
	LogLevel     string `validate:"oneof=debug info warn error"`
	ListenAddr   string `validate:"required,hostname_port"`

	PollInterval       time.Duration `validate:"min=100ms"`
	ReplyTimeoutCycles int           `validate:"min=1,max=100000"`
	Push               bool

	OllamaHost    string `validate:"omitempty,url"`
	OllamaModel   string
	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string `validate:"omitempty,url"`
}

// Load reads the optional env files (".env" when none are named), then the process
// environment, and validates the result. Missing env files are not an error.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	pollInterval, err := getEnvAsDuration("PDFCHAT_POLL_INTERVAL", 2*time.Second)
	if err != nil {
		return Config{}, err
	}
	cycles, err := getEnvAsInt("PDFCHAT_REPLY_TIMEOUT_CYCLES", 30)
	if err != nil {
		return Config{}, err
	}
	push, err := getEnvAsBool("PDFCHAT_PUSH", false)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		ServerURL:          strings.TrimRight(getEnv("PDFCHAT_SERVER", ""), "/"),
		DatabasePath:       getEnv("PDFCHAT_DB", filepath.Join(configDir(), "pdfchat.db")),
		CacheDir:           getEnv("PDFCHAT_CACHE_DIR", ""),
		RecentFile:         getEnv("PDFCHAT_RECENT_FILE", filepath.Join(configDir(), "recent.json")),
		LogFile:            getEnv("PDFCHAT_LOG_FILE", filepath.Join(cacheDir(), "pdfchat.log")),
		LogLevel:           strings.ToLower(getEnv("PDFCHAT_LOG_LEVEL", "info")),
		ListenAddr:         getEnv("PDFCHAT_ADDR", "localhost:8080"),
		PollInterval:       pollInterval,
		ReplyTimeoutCycles: cycles,
		Push:               push,
		OllamaHost:         getEnv("OLLAMA_HOST", ""),
		OllamaModel:        getEnv("OLLAMA_MODEL", ""),
		OpenAIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:        getEnv("OPENAI_MODEL", ""),
		OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", ""),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints; call it again after applying flag overrides.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			first := fieldErrs[0]
			return fmt.Errorf("invalid config: %s fails %q (value %v)", first.Field(), first.Tag(), first.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Embedded reports whether the stores run in-process.
func (c Config) Embedded() bool {
	return c.ServerURL == ""
}

func configDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "pdfchat")
}

func cacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "pdfchat")
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, valueStr)
	}
	return value, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a duration", key, valueStr)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) (bool, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, fmt.Errorf("%s: %q is not a boolean", key, valueStr)
	}
	return value, nil
}
