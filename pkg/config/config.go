// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package config loads query mesh configuration from flags, environment
// variables, a config file, and defaults, in that priority order, following
// the same viper-based layering the rest of the fleet uses.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/querymesh/loomquery/pkg/domain"
)

// DefaultConfigFileName is the base name (without extension) viper searches
// for alongside MESH_DATA_DIR, the working directory, and /etc/loomquery/.
const DefaultConfigFileName = "loomquery"

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`

	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`

	RequireUserID bool   `mapstructure:"require_user_id"`
	DefaultUserID string `mapstructure:"default_user_id"`
}

// LLMConfig holds provider credentials and generation defaults. Absence of
// every provider is tolerated: the orchestrator degrades to the keyword
// intent classifier and sentinel SQL, so a process with no credentials still
// serves schema and metadata endpoints.
type LLMConfig struct {
	DefaultProvider string `mapstructure:"default_provider"`
	DefaultModel    string `mapstructure:"default_model"`

	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	AnthropicModel  string `mapstructure:"anthropic_model"`

	OpenAIAPIKey string `mapstructure:"openai_api_key"`
	OpenAIModel  string `mapstructure:"openai_model"`

	BedrockRegion          string `mapstructure:"bedrock_region"`
	BedrockAccessKeyID     string `mapstructure:"bedrock_access_key_id"`
	BedrockSecretAccessKey string `mapstructure:"bedrock_secret_access_key"`
	BedrockSessionToken    string `mapstructure:"bedrock_session_token"`
	BedrockProfile         string `mapstructure:"bedrock_profile"`
	BedrockModelID         string `mapstructure:"bedrock_model_id"`

	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	TimeoutSecs int     `mapstructure:"timeout_seconds"`
}

func (c LLMConfig) configured() []string {
	var have []string
	if c.AnthropicAPIKey != "" {
		have = append(have, "anthropic")
	}
	if c.OpenAIAPIKey != "" {
		have = append(have, "openai")
	}
	if c.BedrockRegion != "" && (c.BedrockProfile != "" || c.BedrockAccessKeyID != "") {
		have = append(have, "bedrock")
	}
	return have
}

// CacheConfig holds TTLs for the Schema Cache, Result Cache, and the
// in-memory prompt-template cache in front of the file registry.
type CacheConfig struct {
	SchemaTTLSeconds int64         `mapstructure:"schema_ttl_seconds"`
	ResultTTL        time.Duration `mapstructure:"result_ttl"`
	PromptTTL        time.Duration `mapstructure:"prompt_ttl"`

	// SchemaSweepInterval is how often the background job invalidates every
	// backend's cached schema snapshot, forcing the next request to
	// re-introspect rather than serve an arbitrarily stale one.
	SchemaSweepInterval time.Duration `mapstructure:"schema_sweep_interval"`
}

// Config is the fully assembled, validated configuration for one process.
type Config struct {
	DataDir string `mapstructure:"-"`

	Server ServerConfig `mapstructure:"server"`
	LLM    LLMConfig    `mapstructure:"llm"`
	Cache  CacheConfig  `mapstructure:"cache"`

	// Backends is populated either from a "backends" config-file section, a
	// DATABASE_CONFIG JSON array, or the single DATABASE_URL/DATABASE_TYPE
	// pair. See loadBackends.
	Backends []domain.Backend `mapstructure:"backends"`

	MetadataDialect string `mapstructure:"metadata_dialect"`
}

// LoadConfig loads configuration from multiple sources with the usual
// priority: flags (bound by the caller before calling LoadConfig),
// environment variables (MESH_ prefixed), config file, then defaults.
func LoadConfig(cfgFile string) (*Config, error) {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(GetMeshDataDir())
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/loomquery/")
		viper.SetConfigName(DefaultConfigFileName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file %s: %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.SetEnvPrefix("MESH")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.DataDir = GetMeshDataDir()

	if len(cfg.Backends) == 0 {
		backends, err := loadBackends()
		if err != nil {
			return nil, fmt.Errorf("failed to load database backends: %w", err)
		}
		cfg.Backends = backends
	}
	for i := range cfg.Backends {
		if cfg.Backends[i].SchemaTTLSeconds == 0 {
			cfg.Backends[i].SchemaTTLSeconds = cfg.Cache.SchemaTTLSeconds
		}
	}

	fillFromEnv(&cfg)
	fillFromKeyring(&cfg)

	return &cfg, nil
}

// fillFromEnv backfills provider credentials from the conventional unprefixed
// environment variables when neither flags, config file, nor MESH_-prefixed
// variables supplied them.
func fillFromEnv(cfg *Config) {
	if cfg.LLM.OpenAIAPIKey == "" {
		cfg.LLM.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.LLM.AnthropicAPIKey == "" {
		cfg.LLM.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if cfg.LLM.BedrockRegion == "" {
		cfg.LLM.BedrockRegion = os.Getenv("AWS_DEFAULT_REGION")
	}
}

func setDefaults() {
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.read_header_timeout", 5*time.Second)
	viper.SetDefault("server.shutdown_timeout", 30*time.Second)
	viper.SetDefault("server.cors_allowed_origins", []string{"*"})
	viper.SetDefault("server.require_user_id", false)
	viper.SetDefault("server.default_user_id", "default-user")

	viper.SetDefault("llm.default_provider", "openai")
	viper.SetDefault("llm.max_tokens", 4096)
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.timeout_seconds", 60)

	viper.SetDefault("cache.schema_ttl_seconds", int64(300))
	viper.SetDefault("cache.result_ttl", 60*time.Second)
	viper.SetDefault("cache.prompt_ttl", 5*time.Minute)
	viper.SetDefault("cache.schema_sweep_interval", 5*time.Minute)

	viper.SetDefault("metadata_dialect", "sqlite")
}

// loadBackends assembles the backend list from the environment: DATABASE_URL
// for the default backend, DATABASE_<n>_URL / _NAME / _TYPE / _ENABLED /
// _READONLY for n = 1, 2, ... for additional backends, and finally
// DATABASE_CONFIG (a JSON array of domain.Backend-shaped objects) which
// overrides entries with matching ids and appends the rest. A config-file
// "backends" section takes precedence over all of these; the caller skips
// this function entirely when one is present.
func loadBackends() ([]domain.Backend, error) {
	var backends []domain.Backend

	if url := os.Getenv("DATABASE_URL"); url != "" {
		b := backendFromEnv("DATABASE_", url)
		if b.ID == "" {
			b.ID = domain.DefaultBackendID
			b.DisplayName = domain.DefaultBackendID
		}
		backends = append(backends, b)
	}

	for n := 1; ; n++ {
		prefix := fmt.Sprintf("DATABASE_%d_", n)
		url := os.Getenv(prefix + "URL")
		if url == "" {
			break
		}
		b := backendFromEnv(prefix, url)
		if b.ID == "" {
			b.ID = fmt.Sprintf("db_%d", n)
			b.DisplayName = b.ID
		}
		backends = append(backends, b)
	}

	if raw := os.Getenv("DATABASE_CONFIG"); raw != "" {
		var overrides []domain.Backend
		if err := json.Unmarshal([]byte(raw), &overrides); err != nil {
			return nil, fmt.Errorf("DATABASE_CONFIG is not valid JSON: %w", err)
		}
		backends = mergeBackends(backends, overrides)
	}

	return backends, nil
}

// backendFromEnv reads one backend's settings from prefixed environment
// variables; prefix is "DATABASE_" for the unnumbered default backend.
func backendFromEnv(prefix, url string) domain.Backend {
	enabled := true
	if v := os.Getenv(prefix + "ENABLED"); v != "" {
		enabled, _ = strconv.ParseBool(v)
	}
	readOnly := false
	if v := os.Getenv(prefix + "READONLY"); v != "" {
		readOnly, _ = strconv.ParseBool(v)
	}
	dialect := domain.Dialect(os.Getenv(prefix + "TYPE"))
	if dialect == "" {
		dialect = domain.DialectUnknown
	}
	name := os.Getenv(prefix + "NAME")

	return domain.Backend{
		ID:                   name,
		DisplayName:          name,
		Dialect:              dialect,
		ConnectionDescriptor: url,
		Enabled:              enabled,
		ReadOnly:             readOnly,
	}
}

// mergeBackends applies overrides onto base: an override whose id matches an
// existing entry replaces it in place; the rest are appended in order.
func mergeBackends(base, overrides []domain.Backend) []domain.Backend {
	byID := make(map[string]int, len(base))
	for i, b := range base {
		byID[b.ID] = i
	}
	for _, o := range overrides {
		if i, ok := byID[o.ID]; ok {
			base[i] = o
			continue
		}
		byID[o.ID] = len(base)
		base = append(base, o)
	}
	return base
}

// Validate checks that the assembled configuration is sufficient to run the
// pipeline: at least one database backend with unique ids, and a recognized
// metadata dialect. Missing LLM credentials are not an error; the pipeline
// degrades to its deterministic fallbacks without them.
func (c *Config) Validate() error {
	if len(c.Backends) == 0 {
		return fmt.Errorf("no database backend configured: set DATABASE_URL or DATABASE_CONFIG")
	}
	seen := make(map[string]bool, len(c.Backends))
	for _, b := range c.Backends {
		if b.ID == "" {
			return fmt.Errorf("database backend missing an id")
		}
		if seen[b.ID] {
			return fmt.Errorf("duplicate database backend id %q", b.ID)
		}
		seen[b.ID] = true
	}
	switch domain.Dialect(c.MetadataDialect) {
	case domain.DialectPostgres, domain.DialectMySQL, domain.DialectSQLite, domain.DialectMSSQL, domain.DialectOracle:
	default:
		return fmt.Errorf("metadata_dialect %q is not a recognized dialect", c.MetadataDialect)
	}
	return nil
}

// ConfiguredProviders names every LLM provider whose credentials are present,
// in the priority order the composition root constructs them.
func (c *Config) ConfiguredProviders() []string {
	return c.LLM.configured()
}
