package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPPort          string
	MySQLDSN          string
	RedisAddr         string
	KafkaBrokers      string
	KafkaTopic        string
	SettlementWorkers int
	RecalcWorkers     int
	OrderQueueSize    int
	SweepInterval     time.Duration
	LowStockThreshold int
}

func Load() *Config {
	return &Config{
		HTTPPort:          getEnv("HTTP_PORT", ":8080"),
		MySQLDSN:          getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/inventory?parseTime=true"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:      getEnv("KAFKA_BROKERS", ""),
		KafkaTopic:        getEnv("KAFKA_TOPIC", "inventory.events"),
		SettlementWorkers: getEnvInt("SETTLEMENT_WORKERS", 10),
		RecalcWorkers:     getEnvInt("RECALC_WORKERS", 4),
		OrderQueueSize:    getEnvInt("ORDER_QUEUE_SIZE", 10000),
		SweepInterval:     getEnvDuration("SWEEP_INTERVAL", time.Hour),
		LowStockThreshold: getEnvInt("LOW_STOCK_THRESHOLD", 10),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
