// Package config loads runtime configuration with layered precedence:
// hardcoded defaults, then an optional YAML file, then LANCET_* environment
// variables, then CLI flags.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lancet-ai/lancet/internal/pathutil"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Model        ModelConfig        `koanf:"model"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator"`
	Reasoning    ReasoningConfig    `koanf:"reasoning"`
	Sandbox      SandboxConfig      `koanf:"sandbox"`
	Store        StoreConfig        `koanf:"store"`
}

type ServerConfig struct {
	Port            int    `koanf:"port"`
	LogLevel        string `koanf:"log_level"`
	ReadTimeout     string `koanf:"read_timeout"`
	WriteTimeout    string `koanf:"write_timeout"`
	IdleTimeout     string `koanf:"idle_timeout"`
	ShutdownTimeout string `koanf:"shutdown_timeout"`
}

type ModelConfig struct {
	Name            string   `koanf:"name"`
	BaseURL         string   `koanf:"base_url"`
	APIKey          string   `koanf:"api_key"`
	Temperature     *float32 `koanf:"temperature"`
	MaxOutputTokens int      `koanf:"max_output_tokens"`
}

type OrchestratorConfig struct {
	MaxTurns int `koanf:"max_turns"`
}

type ReasoningConfig struct {
	OpenMarker  string `koanf:"open_marker"`
	CloseMarker string `koanf:"close_marker"`
}

type SandboxConfig struct {
	BaseURL string `koanf:"base_url"`
	Timeout string `koanf:"timeout"`
}

type StoreConfig struct {
	Path        string `koanf:"path"`
	LockTimeout string `koanf:"lock_timeout"`
}

const (
	DefaultServerPort            = 8080
	DefaultServerLogLevel        = "info"
	DefaultServerReadTimeout     = "30s"
	DefaultServerWriteTimeout    = "0s" // streaming responses, no write deadline
	DefaultServerIdleTimeout     = "60s"
	DefaultServerShutdownTimeout = "5s"
	DefaultModelName             = "deepseek-chat"
	DefaultModelBaseURL          = "https://api.deepseek.com/v1"
	DefaultModelMaxOutputTokens  = 4096
	DefaultOrchestratorMaxTurns  = 8
	DefaultReasoningOpenMarker   = "<think>"
	DefaultReasoningCloseMarker  = "</think>"
	DefaultSandboxTimeout        = "330s"
	DefaultStoreLockTimeout      = "10s"
)

func Load(cmd *cobra.Command) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":             DefaultServerPort,
		"server.log_level":        DefaultServerLogLevel,
		"server.read_timeout":     DefaultServerReadTimeout,
		"server.write_timeout":    DefaultServerWriteTimeout,
		"server.idle_timeout":     DefaultServerIdleTimeout,
		"server.shutdown_timeout": DefaultServerShutdownTimeout,
		"model.name":              DefaultModelName,
		"model.base_url":          DefaultModelBaseURL,
		"model.max_output_tokens": DefaultModelMaxOutputTokens,
		"orchestrator.max_turns":  DefaultOrchestratorMaxTurns,
		"reasoning.open_marker":   DefaultReasoningOpenMarker,
		"reasoning.close_marker":  DefaultReasoningCloseMarker,
		"sandbox.timeout":         DefaultSandboxTimeout,
		"store.path":              defaultStorePath(),
		"store.lock_timeout":      DefaultStoreLockTimeout,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	configPath := ""
	if cmd != nil {
		if flag := cmd.Flags().Lookup("config"); flag != nil {
			configPath = strings.TrimSpace(flag.Value.String())
		}
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, err
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			globalPath := filepath.Join(home, ".lancet", "config.yaml")
			if err := k.Load(file.Provider(globalPath), yaml.Parser()); err != nil {
				slog.Debug("Global config not found or invalid", "path", globalPath, "error", err)
			}
		}
	}

	k.Load(env.Provider("LANCET_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "LANCET_")), "_", ".", -1)
	}), nil)

	if cmd != nil {
		k.Load(posflag.Provider(cmd.Flags(), ".", k), nil)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	if cfg.Model.APIKey == "" {
		cfg.Model.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	storePath, err := pathutil.Expand(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if storePath != "" {
		cfg.Store.Path = storePath
	}

	return &cfg, nil
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".lancet"
	}
	return filepath.Join(home, ".lancet", "sessions")
}
