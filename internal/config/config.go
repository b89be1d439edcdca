// Copyright 2026 The Authz-Core Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the authz-core service configuration from
// environment variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete configuration for the authz-core service.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	DB     DBConfig     `mapstructure:"db"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Cache  CacheConfig  `mapstructure:"cache"`
	Rate   RateConfig   `mapstructure:"rate"`
	Log    LogConfig    `mapstructure:"log"`
}

// ServerConfig contains HTTP listen address configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DBConfig contains Postgres connection configuration.
type DBConfig struct {
	URL string `mapstructure:"url"`
}

// RedisConfig contains Redis connection configuration for the
// decision cache and the rate limiter.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the host:port Redis address.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// CacheConfig contains per-class decision cache TTLs (spec.md §6).
type CacheConfig struct {
	TTLAuthorization time.Duration `mapstructure:"ttl_authorization"`
	TTLRoleHierarchy time.Duration `mapstructure:"ttl_role_hierarchy"`
	TTLPolicy        time.Duration `mapstructure:"ttl_policy"`
	TTLTenantConfig  time.Duration `mapstructure:"ttl_tenant_config"`
}

// RateConfig contains the token-bucket rate limiter configuration
// fronting the decision endpoint.
type RateConfig struct {
	MaxTokens       int `mapstructure:"max_tokens"`
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

// LogConfig contains structured logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from configPath (if non-empty and
// present) and overlays environment variables, following
// piwi3910-netweave's config.Load shape. Environment variables are
// read verbatim by name (DATABASE_URL, REDIS_HOST, ...) rather than
// through a prefixed replacer, matching the flat names spec.md §6
// fixes as the external contract.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/authz-core")
	}

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{Host: v.GetString("host"), Port: v.GetInt("port")},
		DB:     DBConfig{URL: v.GetString("database_url")},
		Redis: RedisConfig{
			Host:     v.GetString("redis_host"),
			Port:     v.GetInt("redis_port"),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
		},
		Cache: CacheConfig{
			TTLAuthorization: time.Duration(v.GetInt("cache_ttl_authorization")) * time.Second,
			TTLRoleHierarchy: time.Duration(v.GetInt("cache_ttl_role_hierarchy")) * time.Second,
			TTLPolicy:        time.Duration(v.GetInt("cache_ttl_policy")) * time.Second,
			TTLTenantConfig:  time.Duration(v.GetInt("cache_ttl_tenant_config")) * time.Second,
		},
		Rate: RateConfig{
			MaxTokens:       v.GetInt("rate_limit_max_tokens"),
			IntervalSeconds: v.GetInt("rate_limit_interval_seconds"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log_level")),
			Format: strings.ToLower(v.GetString("log_format")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindEnv wires each setting to its spec-mandated environment
// variable name. viper.AutomaticEnv alone would require a matching
// key transform; BindEnv keeps the mapping explicit and auditable.
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("host", "HOST")
	_ = v.BindEnv("port", "PORT")
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("redis_host", "REDIS_HOST")
	_ = v.BindEnv("redis_port", "REDIS_PORT")
	_ = v.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = v.BindEnv("redis_db", "REDIS_DB")
	_ = v.BindEnv("cache_ttl_authorization", "CACHE_TTL_AUTHORIZATION")
	_ = v.BindEnv("cache_ttl_role_hierarchy", "CACHE_TTL_ROLE_HIERARCHY")
	_ = v.BindEnv("cache_ttl_policy", "CACHE_TTL_POLICY")
	_ = v.BindEnv("cache_ttl_tenant_config", "CACHE_TTL_TENANT_CONFIG")
	_ = v.BindEnv("rate_limit_max_tokens", "RATE_LIMIT_MAX_TOKENS")
	_ = v.BindEnv("rate_limit_interval_seconds", "RATE_LIMIT_INTERVAL_SECONDS")
	_ = v.BindEnv("log_level", "LOG_LEVEL")
	_ = v.BindEnv("log_format", "LOG_FORMAT")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("redis_host", "localhost")
	v.SetDefault("redis_port", 6379)
	v.SetDefault("redis_db", 0)
	v.SetDefault("cache_ttl_authorization", 300)
	v.SetDefault("cache_ttl_role_hierarchy", 3600)
	v.SetDefault("cache_ttl_policy", 1800)
	v.SetDefault("cache_ttl_tenant_config", 7200)
	v.SetDefault("rate_limit_max_tokens", 100)
	v.SetDefault("rate_limit_interval_seconds", 60)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

// Validate rejects configuration values the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.DB.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Log.Format)
	}
	if c.Rate.MaxTokens < 1 {
		return fmt.Errorf("invalid rate_limit_max_tokens: %d", c.Rate.MaxTokens)
	}
	if c.Rate.IntervalSeconds < 1 {
		return fmt.Errorf("invalid rate_limit_interval_seconds: %d", c.Rate.IntervalSeconds)
	}
	return nil
}
