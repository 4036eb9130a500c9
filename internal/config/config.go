package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/the-observer/internal/archive"
	"github.com/Veraticus/the-observer/internal/common"
	"github.com/Veraticus/the-observer/internal/delivery"
	"github.com/Veraticus/the-observer/internal/extraction"
	"github.com/Veraticus/the-observer/internal/llm"
	"github.com/Veraticus/the-observer/internal/sheets"
)

// Defaults applied when a key is unset.
const (
	DefaultRateLimit          = 30
	DefaultBreakerMaxFailures = 5
	DefaultBreakerTimeout     = 30 * time.Second
	DefaultLLMTimeout         = 2 * time.Minute
)

// providerKeyEnv lists the well-known API key variable for each provider.
var providerKeyEnv = map[string]string{
	"groq":      "GROQ_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

// getString reads key from viper, then from the fallback env vars in order.
func getString(key string, envFallbacks ...string) string {
	if v := strings.TrimSpace(viper.GetString(key)); v != "" {
		return v
	}
	for _, env := range envFallbacks {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	return ""
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if !viper.IsSet(key) {
		return fallback
	}
	if d := viper.GetDuration(key); d > 0 {
		return d
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if !viper.IsSet(key) {
		return fallback
	}
	if n := viper.GetInt(key); n > 0 {
		return n
	}
	return fallback
}

// LoadLLMConfig returns the provider settings and the guard that wraps them.
func LoadLLMConfig() (llm.Config, llm.GuardConfig, error) {
	provider := strings.ToLower(getString("llm.provider"))
	if provider == "" {
		provider = "groq"
	}
	env, ok := providerKeyEnv[provider]
	if !ok {
		return llm.Config{}, llm.GuardConfig{}, fmt.Errorf("%w: unknown llm provider %q", common.ErrInvalidConfig, provider)
	}

	cfg := llm.Config{
		Provider:  provider,
		APIKey:    getString("llm.api_key", env),
		Model:     getString("llm.model"),
		BaseURL:   getString("llm.base_url"),
		MaxTokens: viper.GetInt("llm.max_tokens"),
		Timeout:   getDuration("llm.timeout", DefaultLLMTimeout),
	}
	if cfg.APIKey == "" {
		return llm.Config{}, llm.GuardConfig{}, fmt.Errorf("%w: set llm.api_key or %s", common.ErrMissingConfig, env)
	}

	guard := llm.GuardConfig{
		Name:        provider,
		RateLimit:   getInt("llm.rate_limit", DefaultRateLimit),
		MaxFailures: uint32(getInt("llm.breaker.max_failures", DefaultBreakerMaxFailures)), // #nosec G115 -- small positive config value
		OpenTimeout: getDuration("llm.breaker.timeout", DefaultBreakerTimeout),
	}
	return cfg, guard, nil
}

// LoadOCRConfig returns the OCR client settings.
func LoadOCRConfig() (extraction.OCRConfig, error) {
	cfg := extraction.OCRConfig{
		APIKey:   getString("ocr.api_key", "OCR_SPACE_API_KEY"),
		Endpoint: getString("ocr.endpoint"),
		Language: getString("ocr.language"),
		Engine:   viper.GetInt("ocr.engine"),
		Timeout:  getDuration("ocr.timeout", time.Minute),
	}
	if cfg.APIKey == "" {
		return cfg, fmt.Errorf("%w: set ocr.api_key or OCR_SPACE_API_KEY", common.ErrMissingConfig)
	}
	return cfg, nil
}

// LoadTranscriberConfig returns the transcription client settings.
func LoadTranscriberConfig() (extraction.TranscriberConfig, error) {
	cfg := extraction.TranscriberConfig{
		APIKey:       getString("transcription.api_key", "ASSEMBLYAI_API_KEY"),
		BaseURL:      getString("transcription.base_url"),
		Language:     getString("transcription.language"),
		PollInterval: getDuration("transcription.poll_interval", extraction.DefaultPollInterval),
		PollTimeout:  getDuration("transcription.timeout", 0),
	}
	if cfg.APIKey == "" {
		return cfg, fmt.Errorf("%w: set transcription.api_key or ASSEMBLYAI_API_KEY", common.ErrMissingConfig)
	}
	return cfg, nil
}

// LoadArchiveConfig reports whether archiving is enabled and, if so, its settings.
func LoadArchiveConfig() (archive.Config, bool, error) {
	if !viper.GetBool("archive.enabled") {
		return archive.Config{}, false, nil
	}
	cfg := archive.Config{
		URL:         getString("archive.supabase_url", "SUPABASE_URL"),
		Key:         getString("archive.supabase_key", "SUPABASE_KEY"),
		ImageBucket: getString("archive.image_bucket"),
		AudioBucket: getString("archive.audio_bucket"),
	}
	if cfg.URL == "" || cfg.Key == "" {
		return cfg, true, fmt.Errorf("%w: archive is enabled but supabase url or key is missing", common.ErrMissingConfig)
	}
	return cfg, true, nil
}

// LoadMailConfig returns the SMTP account used to email reports.
func LoadMailConfig() delivery.Config {
	return delivery.Config{
		Host:     getString("email.smtp_host", "SMTP_HOST"),
		Port:     getInt("email.smtp_port", delivery.DefaultPort),
		Username: getString("email.username", "SMTP_USERNAME"),
		Password: getString("email.password", "EMAIL_PASSWORD"),
		From:     getString("email.from", "EMAIL_FROM"),
	}
}

// ScoringConcurrency is how many goals may be scored at once.
func ScoringConcurrency() int {
	return getInt("pipeline.scoring_concurrency", 1)
}

// LoadSheetsConfig loads Google Sheets configuration from viper, then the
// GOOGLE_SHEETS_* environment variables, then defaults.
func LoadSheetsConfig() (*sheets.Config, error) {
	cfg := sheets.DefaultConfig()

	if v := getString("sheets.service_account_path", "GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH"); v != "" {
		cfg.ServiceAccountPath = ExpandPath(v)
	}
	cfg.ClientID = getString("sheets.client_id", "GOOGLE_SHEETS_CLIENT_ID")
	cfg.ClientSecret = getString("sheets.client_secret", "GOOGLE_SHEETS_CLIENT_SECRET")
	cfg.RefreshToken = getString("sheets.refresh_token", "GOOGLE_SHEETS_REFRESH_TOKEN")
	cfg.SpreadsheetID = getString("sheets.spreadsheet_id", "GOOGLE_SHEETS_SPREADSHEET_ID")
	if v := getString("sheets.spreadsheet_name", "GOOGLE_SHEETS_SPREADSHEET_NAME"); v != "" {
		cfg.SpreadsheetName = v
	}
	if v := getString("sheets.timezone"); v != "" {
		cfg.TimeZone = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
