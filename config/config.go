package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	CargoLink CargoLinkConfig `yaml:"cargolink"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type KafkaConfig struct {
	Host                          string `yaml:"host"`
	Port                          int    `yaml:"port"`
	CargoStatusChangedTopicName   string `yaml:"cargo_status_changed_topic_name"`
	RequestStatusChangedTopicName string `yaml:"request_status_changed_topic_name"`
}

type RedisConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	// BaseURL переопределяется в тестах и self-hosted окружениях;
	// пустое значение означает https://api.telegram.org.
	BaseURL string `yaml:"base_url"`
}

// IngestCredential — пара ключей интеграционного партнёра.
type IngestCredential struct {
	APIKey     string `yaml:"api_key"`
	PrivateKey string `yaml:"private_key"`
}

type CargoLinkConfig struct {
	HTTPAddr  string `yaml:"http_addr"`
	JWTSecret string `yaml:"jwt_secret"`

	KafkaConsumerGroup string `yaml:"kafka_consumer_group"`

	LocationChoicesTTLSeconds int `yaml:"location_choices_ttl_seconds"`

	IngestCredentials        []IngestCredential `yaml:"ingest_credentials"`
	IngestRateLimitPerMinute int                `yaml:"ingest_rate_limit_per_minute"`

	SweeperIntervalSeconds int `yaml:"sweeper_interval_seconds"`
	SweeperBatchSize       int `yaml:"sweeper_batch_size"`

	WorkerHTTPAddr string `yaml:"worker_http_addr"`
}

func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal YAML: %w", err)
	}

	return &config, nil
}
