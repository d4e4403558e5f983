package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Storage       StorageConfig       `koanf:"storage"`
	Observability ObservabilityConfig `koanf:"observability"`
	Drift         DriftConfig         `koanf:"drift"`
	LLM           LLMConfig           `koanf:"llm"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type StorageConfig struct {
	// Dir is where the day-partitioned metric files live.
	Dir string `koanf:"dir"`
	// RetentionDays bounds how long partitions are kept.
	RetentionDays int `koanf:"retention_days"`
}

type ObservabilityConfig struct {
	// AIAnalysis enables model-graded evaluation of every request. It adds
	// one generator round-trip per analysis, so it is off by default.
	AIAnalysis bool `koanf:"ai_analysis"`
}

type DriftConfig struct {
	BaselineLimit    int `koanf:"baseline_limit"`
	RefreshEvery     int `koanf:"refresh_every"`
	RefreshThreshold int `koanf:"refresh_threshold"`
	RecentWindow     int `koanf:"recent_window"`
}

type LLMConfig struct {
	// BaseURL of an OpenAI-compatible chat completions endpoint. When empty
	// the deterministic rule-based generator is used instead.
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

func Load() (*Config, error) {
	k := koanf.New(".")

	// Try to load from config.yaml file first
	if err := k.Load(file.Provider("config.yaml"), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider("SUBGW_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "SUBGW_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("storage.dir") {
		k.Set("storage.dir", "observability_data")
	}
	if !k.Exists("storage.retention_days") {
		k.Set("storage.retention_days", 30)
	}
	if !k.Exists("llm.model") {
		k.Set("llm.model", "gpt-3.5-turbo")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Substitute environment variables in the API key
	cfg.LLM.APIKey = substituteEnvVars(cfg.LLM.APIKey)

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
