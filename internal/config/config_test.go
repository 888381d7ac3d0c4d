package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 10, cfg.Pipeline.MaxKeywords)
	assert.InDelta(t, 0.10, cfg.Pipeline.ScoreThreshold, 1e-9)
	assert.Equal(t, "English", cfg.Pipeline.Language)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 1000, cfg.Retry.InitialBackoffMs)
	assert.Equal(t, "https://api.tavily.com", cfg.Tavily.BaseURL)
	assert.Equal(t, "https://api.scrapegraphai.com/v1", cfg.ScrapeGraph.BaseURL)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.NotEmpty(t, cfg.Company.Context)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PROCURE_PIPELINE_MAX_KEYWORDS", "5")
	t.Setenv("PROCURE_TAVILY_KEY", "tvly-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Pipeline.MaxKeywords)
	assert.Equal(t, "tvly-test", cfg.Tavily.Key)
}

func TestConfig_Validate_RequiresKeys(t *testing.T) {
	cfg := &Config{}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key")

	cfg.Anthropic.Key = "sk-ant"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tavily.key")

	cfg.Tavily.Key = "tvly"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scrapegraph.key")

	cfg.ScrapeGraph.Key = "sgai"
	assert.NoError(t, cfg.Validate())
}

func TestLoadSites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sites.yaml")
	require.NoError(t, os.WriteFile(path, []byte("websites:\n  - https://www.amazon.com\n  - https://www.ebay.com\n"), 0o644))

	sites, err := LoadSites(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.amazon.com", "https://www.ebay.com"}, sites)
}

func TestLoadSites_EmptyPath(t *testing.T) {
	sites, err := LoadSites("")
	require.NoError(t, err)
	assert.Nil(t, sites)
}

func TestLoadSites_EmptyList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sites.yaml")
	require.NoError(t, os.WriteFile(path, []byte("websites: []\n"), 0o644))

	_, err := LoadSites(path)
	assert.Error(t, err)
}

func TestNormalizeLanguage(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"en", "English"},
		{"fr", "French"},
		{"pt-BR", "Brazilian Portuguese"},
		{"English", "English"},
		{"Klingon prose", "Klingon prose"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeLanguage(tt.in), "input %q", tt.in)
	}
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "nope"}))
}
