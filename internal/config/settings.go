package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-ini/ini"
	"github.com/spf13/viper"

	"palettemaker/internal/palette"
)

const (
	KeyPaletteAmount      = "Palette.Amount"
	KeyPaletteMinCoverage = "Palette.MinCoverage"
	KeyPaletteMethod      = "Palette.Method"
	KeyImageScale         = "Image.Scale"
	KeyImageMaxDimension  = "Image.MaxDimension"
	KeyServerAddr         = "Server.Addr"
	KeyWatchDir           = "Watch.Dir"
	KeyWatchDebounce      = "Watch.Debounce"
	KeyDatabasePath       = "Database.Path"
	KeySwatchVariant      = "Swatch.Variant"
	KeyLogLevel           = "Log.Level"
)

const envPrefix = "PALETTEMAKER"

var allKeys = []string{
	KeyPaletteAmount, KeyPaletteMinCoverage, KeyPaletteMethod,
	KeyImageScale, KeyImageMaxDimension,
	KeyServerAddr,
	KeyWatchDir, KeyWatchDebounce,
	KeyDatabasePath,
	KeySwatchVariant,
	KeyLogLevel,
}

var defaults = map[string]any{
	KeyPaletteAmount:      5,
	KeyPaletteMinCoverage: 0.0,
	KeyPaletteMethod:      string(palette.MethodBundle),
	KeyImageScale:         1.0,
	KeyImageMaxDimension:  256,
	KeyServerAddr:         ":8080",
	KeyWatchDebounce:      "750ms",
	KeySwatchVariant:      "strip",
	KeyLogLevel:           "info",
}

type Settings struct {
	Amount        int
	MinCoverage   float64
	Method        string
	Scale         float64
	MaxDimension  int
	ServerAddr    string
	WatchDir      string
	WatchDebounce time.Duration
	DatabasePath  string
	SwatchVariant string
	LogLevel      string
}

func (s Settings) Validate() error {
	if err := (palette.Options{AmountToPick: s.Amount, MinCoverage: s.MinCoverage}).Validate(); err != nil {
		return err
	}
	if _, err := palette.ParseMethod(s.Method); err != nil {
		return err
	}
	if s.Scale <= 0 || s.Scale > 1 {
		return fmt.Errorf("image scale must be within (0, 1], got %v", s.Scale)
	}
	if s.MaxDimension < 0 {
		return fmt.Errorf("image max dimension must not be negative, got %d", s.MaxDimension)
	}
	return nil
}

type Config struct {
	vp *viper.Viper
}

// Load layers built-in defaults, the ini file at settingsPath (optional) and
// PALETTEMAKER_<SECTION>_<KEY> environment variables, later layers winning.
func Load(settingsPath string, logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	vp := viper.New()
	for key, value := range defaults {
		vp.SetDefault(key, value)
	}

	if strings.TrimSpace(settingsPath) != "" {
		iniCfg, err := ini.Load(settingsPath)
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("parse settings file %s: %w", settingsPath, err)
			}
			logger.Debug("settings file not found, using defaults", "path", settingsPath)
		}

		if iniCfg != nil {
			for _, section := range iniCfg.Sections() {
				for _, key := range section.Keys() {
					viperKey := fmt.Sprintf("%s.%s", section.Name(), key.Name())
					if section.Name() == ini.DefaultSection {
						viperKey = key.Name()
					}
					vp.Set(viperKey, key.Value())
				}
			}
			logger.Debug("loaded settings file", "path", settingsPath)
		}
	}

	envReplacer := strings.NewReplacer(".", "_")
	for _, key := range allKeys {
		envVarName := fmt.Sprintf("%s_%s", envPrefix, envReplacer.Replace(strings.ToUpper(key)))
		if value, found := os.LookupEnv(envVarName); found {
			vp.Set(key, value)
			logger.Debug("environment override", "env", envVarName, "key", key)
		}
	}

	return &Config{vp: vp}, nil
}

func (c *Config) Set(key string, value any) {
	c.vp.Set(key, value)
}

func (c *Config) GetString(key string) string {
	return c.vp.GetString(key)
}

func (c *Config) GetInt(key string) int {
	return c.vp.GetInt(key)
}

func (c *Config) GetFloat64(key string) float64 {
	return c.vp.GetFloat64(key)
}

func (c *Config) GetDuration(key string) time.Duration {
	return c.vp.GetDuration(key)
}

func (c *Config) Settings() Settings {
	return Settings{
		Amount:        c.GetInt(KeyPaletteAmount),
		MinCoverage:   c.GetFloat64(KeyPaletteMinCoverage),
		Method:        strings.ToLower(strings.TrimSpace(c.GetString(KeyPaletteMethod))),
		Scale:         c.GetFloat64(KeyImageScale),
		MaxDimension:  c.GetInt(KeyImageMaxDimension),
		ServerAddr:    c.GetString(KeyServerAddr),
		WatchDir:      c.GetString(KeyWatchDir),
		WatchDebounce: c.GetDuration(KeyWatchDebounce),
		DatabasePath:  c.GetString(KeyDatabasePath),
		SwatchVariant: c.GetString(KeySwatchVariant),
		LogLevel:      strings.ToLower(strings.TrimSpace(c.GetString(KeyLogLevel))),
	}
}
