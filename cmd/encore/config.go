package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration file (config.yaml), with environment
// variables taking precedence for deployment-specific values.
type Config struct {
	Server struct {
		Addr    string `yaml:"addr"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"server"`
	Catalog struct {
		Dir string `yaml:"dir"`
	} `yaml:"catalog"`
	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`
	Redis struct {
		Addr string `yaml:"addr"`
	} `yaml:"redis"`
}

func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.Server.Addr = getEnv("SERVER_ADDR", config.Server.Addr)
	config.Server.BaseURL = getEnv("BASE_URL", config.Server.BaseURL)
	config.Catalog.Dir = getEnv("CATALOG_DIR", config.Catalog.Dir)
	config.NATS.URL = getEnv("NATS_URL", config.NATS.URL)
	config.Redis.Addr = getEnv("REDIS_ADDR", config.Redis.Addr)

	return config, nil
}

func defaultConfig() *Config {
	c := &Config{}
	c.Server.Addr = ":8080"
	c.Server.BaseURL = "http://localhost:8080"
	c.Catalog.Dir = "catalog"
	c.NATS.URL = "nats://localhost:4222"
	c.Redis.Addr = "localhost:6379"
	return c
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
