package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"palettemaker/internal/config"
	"palettemaker/internal/db"
	"palettemaker/internal/history"
	"palettemaker/internal/service"
	"palettemaker/internal/stats"
)

// commonFlags are accepted by every command.
type commonFlags struct {
	home       string
	configPath string
}

func (f *commonFlags) register(flags *flag.FlagSet) {
	flags.StringVar(&f.home, "home", "", "state directory (default: user config dir, or $"+config.HomeEnv+")")
	flags.StringVar(&f.configPath, "config", "", "settings file (default: <home>/conf.ini)")
	flags.String("db", "", "palette history database (default: <home>/palettes.db)")
	flags.String("log-level", "", "debug, info, warn or error")
}

var commonFlagKeys = map[string]string{
	"db":        config.KeyDatabasePath,
	"log-level": config.KeyLogLevel,
}

type app struct {
	paths    config.Paths
	settings config.Settings
	logger   *slog.Logger

	db       *sql.DB
	palettes *service.PaletteService
	history  *service.HistoryService
	stats    *stats.Service
}

type bootstrapOptions struct {
	common      commonFlags
	flags       *flag.FlagSet
	flagKeys    map[string]string
	withHistory bool
	stderr      io.Writer
}

// bootstrap resolves paths and settings, then opens the history database
// when the command needs it. Flags set on the command line win over the
// settings file and the environment.
func bootstrap(ctx context.Context, options bootstrapOptions) (*app, error) {
	var paths config.Paths
	var err error
	if strings.TrimSpace(options.common.home) != "" {
		paths, err = config.ResolvePathsIn(options.common.home)
	} else {
		paths, err = config.ResolvePaths(appSlug)
	}
	if err != nil {
		return nil, err
	}

	settingsPath := paths.SettingsPath
	if strings.TrimSpace(options.common.configPath) != "" {
		settingsPath = options.common.configPath
	}

	cfg, err := config.Load(settingsPath, nil)
	if err != nil {
		return nil, err
	}
	applyFlagOverrides(options.flags, cfg, commonFlagKeys)
	applyFlagOverrides(options.flags, cfg, options.flagKeys)

	settings := cfg.Settings()
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	logger := newLogger(options.stderr, settings.LogLevel)
	logger.Debug("settings loaded", "path", settingsPath, "home", paths.BaseDir)

	a := &app{paths: paths, settings: settings, logger: logger}
	defaults := service.GenerateOptions{
		Amount:       settings.Amount,
		MinCoverage:  settings.MinCoverage,
		Method:       settings.Method,
		Scale:        settings.Scale,
		MaxDimension: settings.MaxDimension,
	}

	if !options.withHistory {
		a.palettes = service.NewPaletteService(nil, defaults, logger)
		return a, nil
	}

	dbPath := paths.DBPath
	if strings.TrimSpace(settings.DatabasePath) != "" {
		dbPath = settings.DatabasePath
	}

	database, applied, err := db.Bootstrap(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	for _, name := range applied {
		logger.Info("applied migration", "name", name)
	}

	repo := history.NewRepository(database)
	a.db = database
	a.palettes = service.NewPaletteService(repo, defaults, logger)
	a.history = service.NewHistoryService(repo, paths.SwatchDir)
	a.stats = stats.NewService(database)

	return a, nil
}

func (a *app) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

func applyFlagOverrides(flags *flag.FlagSet, cfg *config.Config, keys map[string]string) {
	if flags == nil {
		return
	}
	flags.Visit(func(f *flag.Flag) {
		if key, ok := keys[f.Name]; ok {
			cfg.Set(key, f.Value.String())
		}
	})
}

func newLogger(w io.Writer, level string) *slog.Logger {
	noColor := true
	if file, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(file.Fd()) && !isatty.IsCygwinTerminal(file.Fd())
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      parseLevel(level),
		TimeFormat: time.TimeOnly,
		NoColor:    noColor,
	}))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
