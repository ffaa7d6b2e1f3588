package config

import (
	"log"
	"os"
	"strconv"
)

type Config struct {
	AppPort string

	PostgresDSN string
	RedisAddr   string

	CronSpec    string
	SourcesFile string
	StocksFile  string

	// 一轮采集的整体超时（秒）与并发源数
	RunTimeoutSeconds int
	WorkerCount       int
	// 标题查重回看窗口（每源最近 N 篇）
	DedupLookback int

	AnthropicAPIKey string
	AnthropicModel  string

	SendgridAPIKey string
	NewsletterFrom string
	NewsletterTo   string

	BasicAuthUser string
	BasicAuthPass string
	WebRoot       string
}

func Load() *Config {
	cfg := &Config{
		AppPort:     getEnv("APP_PORT", "9000"),
		PostgresDSN: getEnv("POSTGRES_DSN", "host=localhost user=newsradar password=newsradar dbname=newsradar port=5432 sslmode=disable TimeZone=UTC"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6380"),

		CronSpec:    getEnv("CRON_SPEC", "0 */4 * * *"),
		SourcesFile: getEnv("SOURCES_FILE", "config/sources.yaml"),
		StocksFile:  getEnv("STOCKS_FILE", "config/stocks.yaml"),

		RunTimeoutSeconds: getEnvInt("RUN_TIMEOUT_SECONDS", 600),
		WorkerCount:       getEnvInt("WORKER_COUNT", 4),
		DedupLookback:     getEnvInt("DEDUP_LOOKBACK", 300),

		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),

		SendgridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		NewsletterFrom: getEnv("NEWSLETTER_FROM_EMAIL", "newsradar@example.com"),
		NewsletterTo:   getEnv("NEWSLETTER_TO_EMAIL", ""),

		BasicAuthUser: getEnv("APP_BASIC_USER", ""),
		BasicAuthPass: getEnv("APP_BASIC_PASS", ""),
		WebRoot:       getEnv("WEB_ROOT", ""),
	}

	log.Printf("config loaded: port=%s cron=%s sources=%s", cfg.AppPort, cfg.CronSpec, cfg.SourcesFile)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("warn: invalid %s=%q, using default %d", key, v, def)
		return def
	}
	return n
}
