package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	TelegramToken string // bot credential, required

	ReadeckBaseURL string // ex: "http://localhost:8000"
	ReadeckConfig  string // optional, -config path for the readeck CLI
	ReadeckData    string // optional, working dir for the readeck CLI

	DataFile string // token store location (chat user -> API token)

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	HTTPTimeout time.Duration // readeck client per-request timeout
	RetryCount  int           // extra attempts on transient upstream failures
	PageLimit   int           // pagination cap for list/search
	ChunkLimit  int           // Telegram message size limit

	ListenAddr      string        // ops HTTP server, empty = disabled
	ShutdownTimeout time.Duration // graceful shutdown budget

	// LLM summary feature; disabled unless LLMKey is set.
	LLMKey       string
	LLMModel     string
	LLMBaseURL   string // optional, for OpenAI-compatible endpoints
	LLMMaxLength int    // target summary length in characters
}

// Load reads configuration from the environment, after loading a .env
// file when one is present (same behavior for local dev as production).
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		TelegramToken: requireEnv("TELEGRAM_BOT_TOKEN"),

		ReadeckBaseURL: getenv("READECK_BASE_URL", "http://localhost:8000"),
		ReadeckConfig:  getenv("READECK_CONFIG", ""),
		ReadeckData:    getenv("READECK_DATA", ""),

		DataFile: getenv("BOT_DATA_FILE", "user_tokens.yaml"),

		LogLevel:  getenv("BOT_LOG_LEVEL", "info"),
		PrettyLog: mustBool("BOT_PRETTY_LOG", true),

		HTTPTimeout: mustDuration("BOT_HTTP_TIMEOUT", 15*time.Second),
		RetryCount:  getenvInt("BOT_RETRY_COUNT", 1),
		PageLimit:   getenvInt("BOT_PAGE_LIMIT", 100),
		ChunkLimit:  getenvInt("BOT_CHUNK_LIMIT", 4096),

		ListenAddr:      getenv("BOT_LISTEN_ADDR", ""),
		ShutdownTimeout: mustDuration("BOT_SHUTDOWN_TIMEOUT", 5*time.Second),

		LLMKey:       getenv("LLM_KEY", ""),
		LLMModel:     getenv("LLM_MODEL", "gpt-4o-mini"),
		LLMBaseURL:   getenv("LLM_BASE_URL", ""),
		LLMMaxLength: getenvInt("LLM_SUMMARY_MAX_LENGTH", 2500),
	}
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("FATAL: required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
