package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// HomeEnv moves all state to a single directory, ignoring the user config dir.
const HomeEnv = "PALETTEMAKER_HOME"

type Paths struct {
	BaseDir      string
	DBPath       string
	SettingsPath string
	SwatchDir    string
}

func ResolvePaths(appSlug string) (Paths, error) {
	if home := strings.TrimSpace(os.Getenv(HomeEnv)); home != "" {
		return ResolvePathsIn(home)
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolve user config dir: %w", err)
	}

	return ResolvePathsIn(filepath.Join(configDir, appSlug))
}

func ResolvePathsIn(baseDir string) (Paths, error) {
	swatchDir := filepath.Join(baseDir, "swatches")

	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create app config dir: %w", err)
	}

	if err := os.MkdirAll(swatchDir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create swatch dir: %w", err)
	}

	return Paths{
		BaseDir:      baseDir,
		DBPath:       filepath.Join(baseDir, "palettes.db"),
		SettingsPath: filepath.Join(baseDir, "conf.ini"),
		SwatchDir:    swatchDir,
	}, nil
}
