package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ProviderGateway = "gateway"
	ProviderGemini  = "gemini"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	DefaultCompletionBaseURL = "https://ai.gateway.lovable.dev/v1"
	DefaultCompletionModel   = "google/gemini-2.5-flash"
	DefaultGeminiModel       = "gemini-2.5-flash"
)

// Config holds the configuration for the application.
type Config struct {
	// Completion service. The API key is checked when a request needs it,
	// not at startup.
	LLMProvider       string
	CompletionAPIKey  string
	CompletionBaseURL string
	CompletionModel   string
	CompletionTimeout time.Duration
	GeminiAPIKey      string
	GeminiModel       string

	DBDriver    string
	DatabaseURL string
	DataPath    string

	// ReportsBaseURL is the only location report files are fetched from.
	// Empty disables fetching.
	ReportsBaseURL string

	RedisURL      string
	AuthJWTSecret string

	Port      string
	LogLevel  string
	LogFormat string

	// Telegram Config
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramAllowedUserIDs []int64
	AdminTelegramID        int64
}

// NewFromEnv creates a new Config object from environment variables.
// Values from a .env file in the working directory are loaded first but never
// override variables already present in the process environment.
func NewFromEnv() (*Config, error) {
	_ = godotenv.Load()

	provider := getEnv("LLM_PROVIDER", ProviderGateway)
	if provider != ProviderGateway && provider != ProviderGemini {
		return nil, fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", ProviderGateway, ProviderGemini, provider)
	}

	apiKey := os.Getenv("COMPLETION_API_KEY")
	if apiKey == "" {
		// Name used by the hosted gateway deployment.
		apiKey = os.Getenv("LOVABLE_API_KEY")
	}

	geminiAPIKey := os.Getenv("GEMINI_API_KEY")
	if provider == ProviderGemini && geminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	timeout, err := getDuration("COMPLETION_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}

	driver := getEnv("DB_DRIVER", DriverSQLite)
	dataPath := getEnv("DATA_PATH", "data")
	var databaseURL string
	switch driver {
	case DriverSQLite:
		databaseURL = getEnv("DATABASE_URL", dataPath+"/healthmate.db")
	case DriverPostgres:
		databaseURL = os.Getenv("DATABASE_URL")
		if databaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable not set")
		}
	default:
		return nil, fmt.Errorf("DB_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, driver)
	}

	reportsBaseURL := os.Getenv("REPORTS_BASE_URL")
	if reportsBaseURL != "" {
		u, err := url.Parse(reportsBaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("REPORTS_BASE_URL must be an absolute http(s) URL, got %q", reportsBaseURL)
		}
	}

	// Telegram Config (optional, the bot is only mounted when a token is present)
	telegramBotToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	telegramWebhookURL := os.Getenv("TELEGRAM_WEBHOOK_URL")
	if telegramBotToken != "" && telegramWebhookURL == "" {
		return nil, fmt.Errorf("TELEGRAM_WEBHOOK_URL environment variable not set")
	}
	allowed, err := parseIDList(os.Getenv("TELEGRAM_ALLOWED_USER_IDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_ALLOWED_USER_IDS: %w", err)
	}
	var adminID int64
	if s := os.Getenv("TELEGRAM_ADMIN_ID"); s != "" {
		adminID, err = strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_ADMIN_ID: %w", err)
		}
	}

	return &Config{
		LLMProvider:            provider,
		CompletionAPIKey:       apiKey,
		CompletionBaseURL:      getEnv("COMPLETION_BASE_URL", DefaultCompletionBaseURL),
		CompletionModel:        getEnv("COMPLETION_MODEL", DefaultCompletionModel),
		CompletionTimeout:      timeout,
		GeminiAPIKey:           geminiAPIKey,
		GeminiModel:            getEnv("GEMINI_MODEL", DefaultGeminiModel),
		DBDriver:               driver,
		DatabaseURL:            databaseURL,
		DataPath:               dataPath,
		ReportsBaseURL:         reportsBaseURL,
		RedisURL:               os.Getenv("REDIS_URL"),
		AuthJWTSecret:          os.Getenv("AUTH_JWT_SECRET"),
		Port:                   getEnv("PORT", "8080"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		LogFormat:              getEnv("LOG_FORMAT", "json"),
		TelegramBotToken:       telegramBotToken,
		TelegramWebhookURL:     telegramWebhookURL,
		TelegramAllowedUserIDs: allowed,
		AdminTelegramID:        adminID,
	}, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseIDList(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
