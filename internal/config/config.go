package config

import (
	"log/slog"
	"os"
	"strings"
)

type Config struct {
	Port            string
	LogLevel        string
	MQTTBrokerURL   string
	MQTTClientID    string
	MQTTUsername    string
	MQTTPassword    string
	JWTSecret       string
	FirebaseCreds   string
	RedisAddr       string
	RedisPassword   string
	Postgres        DBConfig
	NotifyQueueSize int
}

type DBConfig struct {
	User     string
	Password string
	DBName   string
	Host     string
	Port     string
	SSLMode  string
}

func Load() *Config {
	cfg := &Config{
		Port:          getEnv("WINDOW_HUB_PORT", "8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		MQTTBrokerURL: strings.TrimSpace(os.Getenv("MQTT_BROKER_URL")),
		MQTTClientID:  getEnv("MQTT_CLIENT_ID", "smartwindow-hub"),
		MQTTUsername:  strings.TrimSpace(os.Getenv("MQTT_USERNAME")),
		MQTTPassword:  os.Getenv("MQTT_PASSWORD"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		FirebaseCreds: strings.TrimSpace(os.Getenv("FIREBASE_CREDENTIALS_FILE")),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		Postgres: DBConfig{
			User:     strings.TrimSpace(os.Getenv("POSTGRES_USER")),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			DBName:   strings.TrimSpace(os.Getenv("POSTGRES_DB")),
			Host:     strings.TrimSpace(os.Getenv("POSTGRES_HOST")),
			Port:     strings.TrimSpace(os.Getenv("POSTGRES_PORT")),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		NotifyQueueSize: 128,
	}

	slog.Info("smartwindow-hub config loaded", "port", cfg.Port, "mqtt", cfg.MQTTBrokerURL, "mqtt_client_id", cfg.MQTTClientID)
	return cfg
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
