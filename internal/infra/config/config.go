package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates application configuration loaded from the environment.
type Config struct {
	Env              string
	HTTPAddr         string
	MongoURI         string
	MongoDB          string
	KafkaBrokers     []string
	KafkaTopicPrefix string
	LLMEndpoint      string
	LLMModel         string
	LLMTimeout       time.Duration
	MarketCallBudget int
	RetryBackoff     []time.Duration
	AgentRoundDelay  time.Duration
}

// Load parses configuration from the current environment, reading a local
// .env file first when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:              getEnv("APP_ENV", "dev"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          getEnv("MONGO_DB", "bagsy"),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", ""),
		LLMEndpoint:      getEnv("LLM_COMPLETIONS_URL", "http://localhost:8000/v1/completions"),
		LLMModel:         getEnv("LLM_MODEL", "gpt-4o-mini"),
	}
	brokers := getEnv("KAFKA_BROKERS", "")
	if brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	budget, err := parseIntEnv("MARKET_CALL_BUDGET", 50)
	if err != nil {
		return Config{}, err
	}
	cfg.MarketCallBudget = budget

	llmTimeout, err := parseDurationEnv("LLM_TIMEOUT", 20*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.LLMTimeout = llmTimeout

	roundDelay, err := parseDurationEnv("AGENT_ROUND_DELAY", 2*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.AgentRoundDelay = roundDelay

	retryStr := getEnv("RETRY_BACKOFF", "500ms,2s")
	for _, raw := range strings.Split(retryStr, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid RETRY_BACKOFF value %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s: %w", key, err)
	}
	return v, nil
}
