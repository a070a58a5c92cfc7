package config

import (
	"encoding/json"
	"log"
	"os"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Auth     AuthConfig     `json:"auth"`
	Redis    RedisConfig    `json:"redis"`
	Kafka    KafkaConfig    `json:"kafka"`
	Gateway  GatewayConfig  `json:"gateway"`
	Limiter  LimiterConfig  `json:"limiter"`
}

type ServerConfig struct {
	Addr        string   `json:"addr"`
	CORSOrigins []string `json:"cors_origins"`
}

type DatabaseConfig struct {
	DSN string `json:"dsn"`
}

type AuthConfig struct {
	JWTSecret   string `json:"jwt_secret"`
	TokenExpiry int    `json:"token_expiry"` // in hours
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

type KafkaConfig struct {
	Enabled  bool     `json:"enabled"`
	Brokers  []string `json:"brokers"`
	Topic    string   `json:"topic"`
	Group    string   `json:"group"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	UseTLS   bool     `json:"use_tls"`
	CertFile string   `json:"cert_file"`
	KeyFile  string   `json:"key_file"`
	CAFile   string   `json:"ca_file"`
}

// GatewayConfig bounds the chat persistence pipeline. The backoff
// schedule length is the retry budget: one persistence attempt per
// entry, sleeping the entry's duration before that attempt's retry.
type GatewayConfig struct {
	ChatQueueSize      int   `json:"chat_queue_size"`
	ChatWorkers        int   `json:"chat_workers"`
	ChatRetryBackoffMS []int `json:"chat_retry_backoff_ms"`
}

type LimiterConfig struct {
	VisitorLimit         int `json:"visitor_limit"`
	VisitorWindowSeconds int `json:"visitor_window_seconds"`
}

func LoadConfig() (config Config, err error) {
	path := os.Getenv("QRING_CONFIG")
	if path == "" {
		path = "config/config.json"
	}
	file, err := os.Open(path)
	if err != nil {
		return config, err
	}
	defer func(file *os.File) {
		closeErr := file.Close()
		if closeErr != nil {
			log.Printf("Error closing config file: %v", closeErr)
		}
	}(file)
	decoder := json.NewDecoder(file)
	err = decoder.Decode(&config)
	if err != nil {
		return config, err
	}
	applyDefaults(&config)
	return config, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Gateway.ChatQueueSize <= 0 {
		cfg.Gateway.ChatQueueSize = 1000
	}
	if cfg.Gateway.ChatWorkers <= 0 {
		cfg.Gateway.ChatWorkers = 4
	}
	if len(cfg.Gateway.ChatRetryBackoffMS) == 0 {
		cfg.Gateway.ChatRetryBackoffMS = []int{250, 1000, 3000}
	}
	if cfg.Limiter.VisitorLimit <= 0 {
		cfg.Limiter.VisitorLimit = 30
	}
	if cfg.Limiter.VisitorWindowSeconds <= 0 {
		cfg.Limiter.VisitorWindowSeconds = 60
	}
	if cfg.Redis.PoolSize <= 0 {
		cfg.Redis.PoolSize = 10
	}
}
