package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const appSlug = "palettemaker"

const usageText = `palettemaker extracts representative color palettes from images.

Usage:
  palettemaker <command> [flags] [arguments]

Commands:
  extract   print the palette of one or more image or audio files
  serve     run the HTTP API
  watch     generate palettes for files dropped into a directory
  history   list, show or delete stored palettes

Run "palettemaker <command> -h" for the flags of a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1], os.Args[2:], os.Stdout, os.Stderr)
	stop()

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "palettemaker: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, args []string, stdout io.Writer, stderr io.Writer) error {
	switch command {
	case "extract":
		return runExtract(ctx, args, stdout, stderr)
	case "serve":
		return runServe(ctx, args, stderr)
	case "watch":
		return runWatch(ctx, args, stderr)
	case "history":
		return runHistory(ctx, args, stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usageText)
		return nil
	default:
		fmt.Fprint(stderr, usageText)
		return fmt.Errorf("unknown command %q", command)
	}
}
