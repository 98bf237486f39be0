package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"palettemaker/internal/api"
	"palettemaker/internal/config"
	"palettemaker/internal/swatch"
	"palettemaker/internal/watcher"
)

const shutdownTimeout = 5 * time.Second

func runServe(ctx context.Context, args []string, stderr io.Writer) error {
	flags := flag.NewFlagSet("serve", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var common commonFlags
	common.register(flags)
	registerPaletteFlags(flags)
	flags.String("addr", ":8080", "listen address")
	flags.String("watch", "", "also watch this directory")

	if err := flags.Parse(args); err != nil {
		return err
	}

	keys := map[string]string{"addr": config.KeyServerAddr, "watch": config.KeyWatchDir}
	for name, key := range paletteFlagKeys {
		keys[name] = key
	}

	a, err := bootstrap(ctx, bootstrapOptions{
		common:      common,
		flags:       flags,
		flagKeys:    keys,
		withHistory: true,
		stderr:      stderr,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.NewHandler(a.palettes, a.history, a.stats, a.logger))
	server := &http.Server{
		Addr:              a.settings.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if strings.TrimSpace(a.settings.WatchDir) != "" {
		dirWatcher := newDirectoryWatcher(a)
		go func() {
			if err := dirWatcher.Run(ctx); err != nil {
				a.logger.Warn("directory watcher disabled", "dir", a.settings.WatchDir, "error", err)
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("listening", "addr", server.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", server.Addr, err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func runWatch(ctx context.Context, args []string, stderr io.Writer) error {
	flags := flag.NewFlagSet("watch", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var common commonFlags
	common.register(flags)
	registerPaletteFlags(flags)
	flags.String("dir", "", "directory to watch (default: Watch.Dir setting)")
	flags.Duration("debounce", watcher.DefaultDebounce, "quiet period before a changed file is read")
	scanFirst := flags.Bool("scan", false, "process files already in the directory before watching")

	if err := flags.Parse(args); err != nil {
		return err
	}

	keys := map[string]string{"dir": config.KeyWatchDir, "debounce": config.KeyWatchDebounce}
	for name, key := range paletteFlagKeys {
		keys[name] = key
	}

	a, err := bootstrap(ctx, bootstrapOptions{
		common:      common,
		flags:       flags,
		flagKeys:    keys,
		withHistory: true,
		stderr:      stderr,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	if strings.TrimSpace(a.settings.WatchDir) == "" {
		return errors.New("no directory to watch: pass -dir or set Watch.Dir")
	}

	dirWatcher := newDirectoryWatcher(a)
	if *scanFirst {
		if err := dirWatcher.Scan(ctx); err != nil {
			return err
		}
		status := dirWatcher.GetStatus()
		a.logger.Info("initial scan done", "processed", status.Processed, "failed", status.Failed)
	}

	return dirWatcher.Run(ctx)
}

func newDirectoryWatcher(a *app) *watcher.Service {
	handle := func(ctx context.Context, path string) error {
		result, err := a.palettes.Generate(ctx, path, a.palettes.DefaultOptions())
		if err != nil {
			return err
		}
		a.logger.Info("palette ready",
			"path", path,
			"id", result.ID,
			"colors", strings.Join(swatch.Hexes(result.RGB()), " "),
		)
		return nil
	}
	return watcher.NewService(a.settings.WatchDir, a.settings.WatchDebounce, handle, a.logger)
}
