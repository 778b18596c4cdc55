// Package config loads the YAML settings file, the .env file and environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"agentic_dcf/pkg/core/assumption"
	"agentic_dcf/pkg/core/llm"
	"agentic_dcf/pkg/core/pipeline"
	"agentic_dcf/pkg/core/refine"
	"agentic_dcf/pkg/core/router"
	"agentic_dcf/pkg/core/sensitivity"
	"agentic_dcf/pkg/core/store"
)

// Environment variables read by Load.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvGeminiKey   = "GEMINI_API_KEY"
	EnvDeepSeekKey = "DEEPSEEK_API_KEY"
	EnvLogLevel    = "DCF_LOG_LEVEL"
	EnvAddr        = "DCF_ADDR"
)

// RefineConfig bounds the route transforms and names their data files.
type RefineConfig struct {
	Caps            refine.Caps `yaml:"caps"`
	PeerCapBps      float64     `yaml:"peer_cap_bps" validate:"gte=0"`
	StopOnStability bool        `yaml:"stop_on_stability"`

	ConsensusPath string `yaml:"consensus_path"`
	PeersPath     string `yaml:"peers_path"`
	NewsPath      string `yaml:"news_path"`
}

type StoreConfig struct {
	DatabaseURL string `yaml:"database_url"`
	SessionDir  string `yaml:"session_dir" validate:"required"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// Config is the full application configuration.
type Config struct {
	Router      router.Config           `yaml:"router"`
	Sensitivity sensitivity.Options     `yaml:"sensitivity"`
	Builder     assumption.BuildOptions `yaml:"builder"`
	Refine      RefineConfig            `yaml:"refine"`
	LLM         llm.Config              `yaml:"llm"`
	Store       StoreConfig             `yaml:"store"`
	Server      ServerConfig            `yaml:"server"`

	LogLevel string `yaml:"log_level" validate:"omitempty,oneof=trace debug info warn error fatal"`
	LogJSON  bool   `yaml:"log_json"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Router:      router.DefaultConfig(),
		Sensitivity: sensitivity.DefaultOptions(),
		Builder:     assumption.BuildOptions{Horizon: assumption.DefaultHorizon, Trend: assumption.TrendLinear},
		Refine: RefineConfig{
			Caps:       refine.DefaultCaps(),
			PeerCapBps: refine.DefaultPeerCapBps,
		},
		LLM:      llm.Config{ActiveProvider: llm.ProviderGemini},
		Store:    StoreConfig{SessionDir: store.DefaultSessionDir},
		Server:   ServerConfig{Addr: ":8080"},
		LogLevel: "info",
	}
}

// Load reads path over the defaults, then applies .env and environment overrides.
// An empty path or a missing file yields the defaults. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	// Missing .env is normal outside local development
	_ = godotenv.Load()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDatabaseURL); v != "" {
		c.Store.DatabaseURL = v
	}
	if v := os.Getenv(EnvGeminiKey); v != "" {
		c.LLM.GeminiAPIKey = v
	}
	if v := os.Getenv(EnvDeepSeekKey); v != "" {
		c.LLM.DeepSeekAPIKey = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
}

var validate = validator.New()

// Validate checks the struct tags of every section.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// PipelineOptions returns the refinement loop settings.
func (c Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Router:          c.Router,
		Sensitivity:     c.Sensitivity,
		Caps:            c.Refine.Caps,
		PeerCapBps:      c.Refine.PeerCapBps,
		StopOnStability: c.Refine.StopOnStability,
	}
}

// LoadSources reads the configured consensus, peer and news files. Unset paths are skipped.
func (c Config) LoadSources() (refine.Sources, error) {
	var src refine.Sources
	var err error
	if c.Refine.ConsensusPath != "" {
		if src.Consensus, err = refine.LoadConsensus(c.Refine.ConsensusPath); err != nil {
			return src, err
		}
	}
	if c.Refine.PeersPath != "" {
		if src.Peers, err = refine.LoadPeers(c.Refine.PeersPath); err != nil {
			return src, err
		}
	}
	if c.Refine.NewsPath != "" {
		if src.News, err = refine.LoadNews(c.Refine.NewsPath, c.Refine.Caps); err != nil {
			return src, err
		}
	}
	return src, nil
}
