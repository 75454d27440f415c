package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// LoaderOption overrides the loader's file discovery.
type LoaderOption func(*loaderOptions)

type loaderOptions struct {
	configFile string
	envFile    string
}

// WithConfigFile sets an explicit config file path instead of searching.
func WithConfigFile(path string) LoaderOption {
	return func(o *loaderOptions) { o.configFile = path }
}

// WithEnvFile sets an explicit .env file path instead of searching.
func WithEnvFile(path string) LoaderOption {
	return func(o *loaderOptions) { o.envFile = path }
}

// configSearchPaths are checked in order for config.yml.
var configSearchPaths = []string{
	"./cmd/analyzer/config.yml",
	"./config/config.yml",
	"./config.yml",
}

// envSearchPaths are checked in order for a .env file.
var envSearchPaths = []string{
	"./cmd/analyzer/.env",
	"./.env",
}

// Load reads configuration from config.yml, .env, and the environment,
// applies defaults, and validates the result. Missing files are not an
// error; environment variables use the ANALYZER_ prefix with underscores
// for nesting (ANALYZER_REDIS_ADDR -> redis.addr).
func Load(opts ...LoaderOption) (*Config, error) {
	var lo loaderOptions
	for _, opt := range opts {
		opt(&lo)
	}

	if envFile := resolve(lo.envFile, envSearchPaths); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	bindEnvOverrides(v)

	if configFile := resolve(lo.configFile, configSearchPaths); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envPrefix marks environment variables that override config keys.
const envPrefix = "ANALYZER_"

// bindEnvOverrides maps ANALYZER_-prefixed environment variables onto
// config keys. Underscores are ambiguous between nesting and multi-word
// leaf names (ANALYZER_SEMANTIC_MAX_CONCURRENT -> semantic.max_concurrent),
// so every split of the name is bound.
func bindEnvOverrides(v *viper.Viper) {
	for _, env := range os.Environ() {
		pair := strings.SplitN(env, "=", 2)
		if len(pair) != 2 || !strings.HasPrefix(pair[0], envPrefix) {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(pair[0], envPrefix))
		parts := strings.Split(name, "_")
		v.Set(name, pair[1])
		for i := 1; i < len(parts); i++ {
			key := strings.Join(parts[:i], ".") + "." + strings.Join(parts[i:], "_")
			v.Set(key, pair[1])
		}
	}
}

// resolve returns the explicit path if given, otherwise the first search
// path that exists.
func resolve(explicit string, search []string) string {
	if explicit != "" {
		return explicit
	}
	for _, path := range search {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
