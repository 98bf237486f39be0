package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutSettingsFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.ini"), nil)
	require.NoError(t, err)

	settings := cfg.Settings()
	assert.Equal(t, 5, settings.Amount)
	assert.Equal(t, 0.0, settings.MinCoverage)
	assert.Equal(t, "bundle", settings.Method)
	assert.Equal(t, 1.0, settings.Scale)
	assert.Equal(t, 256, settings.MaxDimension)
	assert.Equal(t, ":8080", settings.ServerAddr)
	assert.Equal(t, 750*time.Millisecond, settings.WatchDebounce)
	assert.Equal(t, "strip", settings.SwatchVariant)
	assert.NoError(t, settings.Validate())
}

func TestLoadSettingsFileThenEnvironment(t *testing.T) {
	settingsPath := filepath.Join(t.TempDir(), "conf.ini")
	content := `[Palette]
Amount = 8
MinCoverage = 0.05
Method = KMeans

[Image]
Scale = 0.5

[Server]
Addr = 127.0.0.1:9000
`
	require.NoError(t, os.WriteFile(settingsPath, []byte(content), 0o644))
	t.Setenv("PALETTEMAKER_PALETTE_AMOUNT", "3")
	t.Setenv("PALETTEMAKER_WATCH_DEBOUNCE", "2s")

	cfg, err := Load(settingsPath, nil)
	require.NoError(t, err)

	settings := cfg.Settings()
	assert.Equal(t, 3, settings.Amount)
	assert.InDelta(t, 0.05, settings.MinCoverage, 1e-9)
	assert.Equal(t, "kmeans", settings.Method)
	assert.Equal(t, 0.5, settings.Scale)
	assert.Equal(t, "127.0.0.1:9000", settings.ServerAddr)
	assert.Equal(t, 2*time.Second, settings.WatchDebounce)
	assert.Equal(t, 256, settings.MaxDimension)
}

func TestSetOverridesLoadedValue(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	cfg.Set(KeyPaletteAmount, 12)
	assert.Equal(t, 12, cfg.Settings().Amount)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	settingsPath := filepath.Join(t.TempDir(), "conf.ini")
	require.NoError(t, os.WriteFile(settingsPath, []byte("[Palette\nAmount = 3\n"), 0o644))

	_, err := Load(settingsPath, nil)
	require.Error(t, err)
}

func TestSettingsValidate(t *testing.T) {
	valid := Settings{Amount: 5, Method: "bundle", Scale: 1, MaxDimension: 256}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{name: "zero amount", mutate: func(s *Settings) { s.Amount = 0 }},
		{name: "negative coverage", mutate: func(s *Settings) { s.MinCoverage = -0.1 }},
		{name: "coverage above one", mutate: func(s *Settings) { s.MinCoverage = 1.5 }},
		{name: "unknown method", mutate: func(s *Settings) { s.Method = "median-cut" }},
		{name: "zero scale", mutate: func(s *Settings) { s.Scale = 0 }},
		{name: "upscale", mutate: func(s *Settings) { s.Scale = 1.5 }},
		{name: "negative max dimension", mutate: func(s *Settings) { s.MaxDimension = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := valid
			tt.mutate(&settings)
			assert.Error(t, settings.Validate())
		})
	}
}

func TestResolvePathsIn(t *testing.T) {
	base := filepath.Join(t.TempDir(), "palettemaker")

	paths, err := ResolvePathsIn(base)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "palettes.db"), paths.DBPath)
	assert.Equal(t, filepath.Join(base, "conf.ini"), paths.SettingsPath)

	info, err := os.Stat(paths.SwatchDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestResolvePathsHonorsHomeOverride(t *testing.T) {
	base := t.TempDir()
	t.Setenv(HomeEnv, base)

	paths, err := ResolvePaths("palettemaker")
	require.NoError(t, err)
	assert.Equal(t, base, paths.BaseDir)
}
