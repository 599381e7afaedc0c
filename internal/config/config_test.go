package config

import (
	"testing"
	"time"
)

func TestNewFromEnv(t *testing.T) {
	// Helper function to set environment variables for a test
	setEnv := func(key, value string) {
		t.Helper()
		t.Setenv(key, value)
	}

	reset := func() {
		for _, k := range []string{
			"LLM_PROVIDER", "COMPLETION_API_KEY", "LOVABLE_API_KEY", "COMPLETION_BASE_URL",
			"COMPLETION_MODEL", "COMPLETION_TIMEOUT", "GEMINI_API_KEY", "DB_DRIVER",
			"DATABASE_URL", "DATA_PATH", "TELEGRAM_BOT_TOKEN", "TELEGRAM_WEBHOOK_URL",
			"TELEGRAM_ALLOWED_USER_IDS", "TELEGRAM_ADMIN_ID", "PORT", "REPORTS_BASE_URL",
		} {
			setEnv(k, "")
		}
	}

	t.Run("Defaults", func(t *testing.T) {
		reset()

		cfg, err := NewFromEnv()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.LLMProvider != ProviderGateway {
			t.Errorf("Expected provider '%s', got '%s'", ProviderGateway, cfg.LLMProvider)
		}
		if cfg.CompletionBaseURL != DefaultCompletionBaseURL {
			t.Errorf("Expected base URL '%s', got '%s'", DefaultCompletionBaseURL, cfg.CompletionBaseURL)
		}
		if cfg.CompletionModel != DefaultCompletionModel {
			t.Errorf("Expected model '%s', got '%s'", DefaultCompletionModel, cfg.CompletionModel)
		}
		if cfg.CompletionTimeout != 60*time.Second {
			t.Errorf("Expected 60s timeout, got %v", cfg.CompletionTimeout)
		}
		if cfg.DBDriver != DriverSQLite || cfg.DatabaseURL != "data/healthmate.db" {
			t.Errorf("Expected sqlite at data/healthmate.db, got %s at %s", cfg.DBDriver, cfg.DatabaseURL)
		}
		if cfg.Port != "8080" {
			t.Errorf("Expected port 8080, got %s", cfg.Port)
		}
	})

	t.Run("MissingAPIKeyIsNotFatalAtStartup", func(t *testing.T) {
		reset()

		cfg, err := NewFromEnv()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.CompletionAPIKey != "" {
			t.Errorf("Expected empty API key, got '%s'", cfg.CompletionAPIKey)
		}
	})

	t.Run("ReportsBaseURL", func(t *testing.T) {
		reset()
		setEnv("REPORTS_BASE_URL", "https://files.example.com/storage/v1/object/")

		cfg, err := NewFromEnv()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.ReportsBaseURL != "https://files.example.com/storage/v1/object/" {
			t.Errorf("Expected reports base URL to be kept, got '%s'", cfg.ReportsBaseURL)
		}

		setEnv("REPORTS_BASE_URL", "file:///etc")
		if _, err := NewFromEnv(); err == nil {
			t.Error("Expected an error for a non-http base URL")
		}
	})

	t.Run("LegacyKeyName", func(t *testing.T) {
		reset()
		setEnv("LOVABLE_API_KEY", "legacy_key")

		cfg, err := NewFromEnv()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if cfg.CompletionAPIKey != "legacy_key" {
			t.Errorf("Expected 'legacy_key', got '%s'", cfg.CompletionAPIKey)
		}
	})

	t.Run("GeminiRequiresKey", func(t *testing.T) {
		reset()
		setEnv("LLM_PROVIDER", "gemini")

		_, err := NewFromEnv()
		if err == nil {
			t.Fatal("Expected an error for missing GEMINI_API_KEY, got nil")
		}
		expectedError := "GEMINI_API_KEY environment variable not set"
		if err.Error() != expectedError {
			t.Errorf("Expected error '%s', got '%s'", expectedError, err.Error())
		}
	})

	t.Run("PostgresRequiresURL", func(t *testing.T) {
		reset()
		setEnv("DB_DRIVER", "postgres")

		_, err := NewFromEnv()
		if err == nil {
			t.Fatal("Expected an error for missing DATABASE_URL, got nil")
		}
		expectedError := "DATABASE_URL environment variable not set"
		if err.Error() != expectedError {
			t.Errorf("Expected error '%s', got '%s'", expectedError, err.Error())
		}
	})

	t.Run("UnknownDriver", func(t *testing.T) {
		reset()
		setEnv("DB_DRIVER", "mysql")

		if _, err := NewFromEnv(); err == nil {
			t.Fatal("Expected an error for unknown driver, got nil")
		}
	})

	t.Run("TelegramIDs", func(t *testing.T) {
		reset()
		setEnv("TELEGRAM_BOT_TOKEN", "token")
		setEnv("TELEGRAM_WEBHOOK_URL", "https://bot.test/telegram/webhook")
		setEnv("TELEGRAM_ALLOWED_USER_IDS", "10, 20,")
		setEnv("TELEGRAM_ADMIN_ID", "10")

		cfg, err := NewFromEnv()
		if err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if len(cfg.TelegramAllowedUserIDs) != 2 || cfg.TelegramAllowedUserIDs[1] != 20 {
			t.Errorf("Expected [10 20], got %v", cfg.TelegramAllowedUserIDs)
		}
		if cfg.AdminTelegramID != 10 {
			t.Errorf("Expected admin 10, got %d", cfg.AdminTelegramID)
		}
	})

	t.Run("TelegramTokenRequiresWebhook", func(t *testing.T) {
		reset()
		setEnv("TELEGRAM_BOT_TOKEN", "token")

		_, err := NewFromEnv()
		if err == nil {
			t.Fatal("Expected an error for missing TELEGRAM_WEBHOOK_URL, got nil")
		}
	})
}
