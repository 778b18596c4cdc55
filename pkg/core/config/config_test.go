package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentic_dcf/pkg/core/router"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, router.DefaultConfig(), cfg.Router)
	assert.Equal(t, 5, cfg.Sensitivity.GrowthSteps)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Router, cfg.Router)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, "dcf.yaml", `
router:
  max_iterations: 4
  enable_news: false
sensitivity:
  growth_steps: 3
refine:
  peer_cap_bps: 50
  stop_on_stability: true
llm:
  active_provider: deepseek
server:
  addr: ":9090"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Router.MaxIterations)
	assert.False(t, cfg.Router.EnableNews)
	assert.True(t, cfg.Router.EnableConsensus, "unset keys keep their defaults")
	assert.Equal(t, 0.005, cfg.Router.ConvergenceThreshold)
	assert.Equal(t, 3, cfg.Sensitivity.GrowthSteps)
	assert.Equal(t, 5, cfg.Sensitivity.MarginSteps)
	assert.Equal(t, "deepseek", cfg.LLM.ActiveProvider)
	assert.Equal(t, ":9090", cfg.Server.Addr)

	opts := cfg.PipelineOptions()
	assert.Equal(t, 50.0, opts.PeerCapBps)
	assert.True(t, opts.StopOnStability)
	assert.Equal(t, 4, opts.Router.MaxIterations)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "postgres://localhost/dcf")
	t.Setenv(EnvGeminiKey, "g-key")
	t.Setenv(EnvDeepSeekKey, "d-key")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvAddr, ":7000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/dcf", cfg.Store.DatabaseURL)
	assert.Equal(t, "g-key", cfg.LLM.GeminiAPIKey)
	assert.Equal(t, "d-key", cfg.LLM.DeepSeekAPIKey)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":7000", cfg.Server.Addr)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero window", "router:\n  stability_window: 0\n"},
		{"threshold out of range", "router:\n  convergence_threshold: 1.5\n"},
		{"bad log level", "log_level: loud\n"},
		{"oversized sensitivity axis", "sensitivity:\n  growth_steps: 500\n"},
		{"negative sensitivity delta", "sensitivity:\n  margin_delta: -0.01\n"},
		{"malformed yaml", "router: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "bad.yaml", tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadSources(t *testing.T) {
	cfg := Default()
	src, err := cfg.LoadSources()
	require.NoError(t, err)
	assert.False(t, src.HaveConsensus())
	assert.False(t, src.HaveComparables())

	cfg.Refine.ConsensusPath = writeFile(t, "consensus.json", `{"growth": [0.12, 0.10]}`)
	cfg.Refine.PeersPath = writeFile(t, "peers.json", `[{"ticker": "AAA", "stable_margin": 0.2}]`)
	src, err = cfg.LoadSources()
	require.NoError(t, err)
	assert.True(t, src.HaveConsensus())
	assert.True(t, src.HaveComparables())

	cfg.Refine.NewsPath = filepath.Join(t.TempDir(), "missing.json")
	_, err = cfg.LoadSources()
	assert.Error(t, err)
}
