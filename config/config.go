// Package config loads the analyzer's configuration from a YAML file, an
// optional .env file, and environment variable overrides.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/skillsenselab/interview-analyzer/acoustic/extractor"
	"github.com/skillsenselab/interview-analyzer/cache"
	"github.com/skillsenselab/interview-analyzer/diarization/pyannote"
	"github.com/skillsenselab/interview-analyzer/ingest"
	"github.com/skillsenselab/interview-analyzer/logger"
	"github.com/skillsenselab/interview-analyzer/orchestrator"
	"github.com/skillsenselab/interview-analyzer/semantic"
	"github.com/skillsenselab/interview-analyzer/semantic/ollama"
	"github.com/skillsenselab/interview-analyzer/transcription/whisper"
)

// CacheBackend selects where semantic results are cached.
type CacheBackend string

const (
	// CacheMemory keeps results in process memory.
	CacheMemory CacheBackend = "memory"
	// CacheRedis shares results between analyzer processes via Redis.
	CacheRedis CacheBackend = "redis"
)

// Config is the analyzer's full configuration tree.
type Config struct {
	// Name identifies the service in logs.
	Name string `yaml:"name" mapstructure:"name"`
	// Environment is one of development, staging, production.
	Environment string `yaml:"environment" mapstructure:"environment" validate:"oneof=development staging production"`

	Logging logger.Config `yaml:"logging" mapstructure:"logging"`

	// CacheBackend selects the semantic result cache backend.
	CacheBackend CacheBackend      `yaml:"cache_backend" mapstructure:"cache_backend" validate:"oneof=memory redis"`
	Redis        cache.RedisConfig `yaml:"redis" mapstructure:"redis"`

	Semantic  semantic.ClientConfig `yaml:"semantic" mapstructure:"semantic"`
	Pipeline  orchestrator.Config   `yaml:"pipeline" mapstructure:"pipeline"`
	Ingest    ingest.Config         `yaml:"ingest" mapstructure:"ingest"`
	Providers ProvidersConfig       `yaml:"providers" mapstructure:"providers"`
}

// ProvidersConfig groups the sidecar endpoints for each collaborator.
// Each provider fills its own defaults when constructed.
type ProvidersConfig struct {
	Whisper   whisper.Config   `yaml:"whisper" mapstructure:"whisper"`
	Pyannote  pyannote.Config  `yaml:"pyannote" mapstructure:"pyannote"`
	Extractor extractor.Config `yaml:"extractor" mapstructure:"extractor"`
	Ollama    ollama.Config    `yaml:"ollama" mapstructure:"ollama"`
}

// ApplyDefaults fills every unset field with its default.
func (c *Config) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "interview-analyzer"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.CacheBackend == "" {
		c.CacheBackend = CacheMemory
	}
	c.Logging.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.Semantic.ApplyDefaults()
	c.Pipeline.ApplyDefaults()
	c.Ingest.ApplyDefaults()
	c.Pipeline.Ingest = c.Ingest
}

var validate = validator.New()

// Validate checks the configuration after defaults are applied.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
