package config

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v4"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Cache    CacheConfig    `yaml:"cache"`
	TrackGen TrackGenConfig `yaml:"trackgen"`
	Log      LogConfig      `yaml:"log"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int32  `yaml:"max_conns"`
}

type KafkaConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Пустой топик выключает уведомления.
	IssuedTopicName string `yaml:"issued_topic_name"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	DialTimeoutMillis  int `yaml:"dial_timeout_ms"`
	ReadTimeoutMillis  int `yaml:"read_timeout_ms"`
	WriteTimeoutMillis int `yaml:"write_timeout_ms"`
}

type CacheConfig struct {
	Driver string `yaml:"driver"` // "redis" | "postgres" | "memory"
	// Period of the expired-entry cleanup for the postgres and memory drivers.
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
}

type TrackGenConfig struct {
	HTTPAddr    string `yaml:"http_addr"`
	GRPCAddr    string `yaml:"grpc_addr"`
	SwaggerPath string `yaml:"swagger_path"`

	TTLSeconds              int  `yaml:"ttl_seconds"`
	KeyIncludesCustomerName bool `yaml:"key_includes_customer_name"`
	CollapseInflight        bool `yaml:"collapse_inflight"`

	// 0 выключает лимит.
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // json | text
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

	config.applyEnv(os.LookupEnv)
	return &config, nil
}

// applyEnv lets deployments override addresses without editing the file.
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("TRACKGEN_HTTP_ADDR"); ok && v != "" {
		c.TrackGen.HTTPAddr = v
	}
	if v, ok := lookup("TRACKGEN_GRPC_ADDR"); ok && v != "" {
		c.TrackGen.GRPCAddr = v
	}
	if v, ok := lookup("TRACKGEN_CACHE_DRIVER"); ok && v != "" {
		c.Cache.Driver = v
	}
	if v, ok := lookup("TRACKGEN_REDIS_PASSWORD"); ok {
		c.Redis.Password = v
	}
	if v, ok := lookup("TRACKGEN_DB_PASSWORD"); ok {
		c.Database.Password = v
	}
}
