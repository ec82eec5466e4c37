package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env             string
	HTTPAddr        string
	StoreMode       string
	MongoURI        string
	MongoDB         string
	KafkaBrokers    []string
	KafkaTopic      string
	ShutdownTimeout time.Duration
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:        getEnv("APP_ENV", "dev"),
		HTTPAddr:   getEnv("HTTP_ADDR", ":8080"),
		StoreMode:  strings.ToLower(getEnv("STORE_MODE", "mongo")),
		MongoURI:   os.Getenv("MONGO_URI"),
		MongoDB:    getEnv("MONGO_DB", "ecoexchange"),
		KafkaTopic: getEnv("KAFKA_CHAT_TOPIC", "chat.message.sent"),
	}
	brokers := getEnv("KAFKA_BROKERS", "")
	if brokers != "" {
		for _, raw := range strings.Split(brokers, ",") {
			if b := strings.TrimSpace(raw); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}
	shutdown, err := parseDurationEnv("SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg.ShutdownTimeout = shutdown

	switch cfg.StoreMode {
	case "mongo":
		if cfg.MongoURI == "" {
			return Config{}, fmt.Errorf("MONGO_URI is required when STORE_MODE=mongo")
		}
	case "memory":
	default:
		return Config{}, fmt.Errorf("invalid STORE_MODE %q (want mongo or memory)", cfg.StoreMode)
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}
