package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"

	"palettemaker/internal/config"
	"palettemaker/internal/history"
	"palettemaker/internal/palette"
	"palettemaker/internal/service"
	"palettemaker/internal/stats"
	"palettemaker/internal/swatch"
)

var paletteFlagKeys = map[string]string{
	"n":             config.KeyPaletteAmount,
	"coverage":      config.KeyPaletteMinCoverage,
	"method":        config.KeyPaletteMethod,
	"scale":         config.KeyImageScale,
	"max-dimension": config.KeyImageMaxDimension,
	"variant":       config.KeySwatchVariant,
}

func registerPaletteFlags(flags *flag.FlagSet) {
	flags.Int("n", 5, "number of colors to pick")
	flags.Float64("coverage", 0, "minimum share of pixels a color must cover, 0 to 1")
	flags.String("method", "bundle", "bundle or kmeans")
	flags.Float64("scale", 1, "downscale factor in (0, 1] applied before extraction")
	flags.Int("max-dimension", 256, "fit the image inside this many pixels, 0 for no cap")
	flags.String("variant", "strip", "swatch sheet layout: strip, list or grid")
}

func runExtract(ctx context.Context, args []string, stdout io.Writer, stderr io.Writer) error {
	flags := flag.NewFlagSet("extract", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprintln(flags.Output(), "Usage: palettemaker extract [flags] <file>...")
		flags.PrintDefaults()
	}

	var common commonFlags
	common.register(flags)
	registerPaletteFlags(flags)
	asJSON := flags.Bool("json", false, "print results as JSON")
	noHistory := flags.Bool("no-history", false, "do not record results in the history database")
	out := flags.String("out", "", "also write a swatch sheet PNG to this path (single input only)")

	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return errors.New("extract needs at least one file")
	}
	if *out != "" && flags.NArg() > 1 {
		return errors.New("-out works with a single input")
	}

	a, err := bootstrap(ctx, bootstrapOptions{
		common:      common,
		flags:       flags,
		flagKeys:    paletteFlagKeys,
		withHistory: !*noHistory,
		stderr:      stderr,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	results := make([]service.Result, 0, flags.NArg())
	for _, path := range flags.Args() {
		result, err := a.palettes.Generate(ctx, path, a.palettes.DefaultOptions())
		if err != nil {
			return fmt.Errorf("extract %s: %w", path, err)
		}
		results = append(results, result)
	}

	if *out != "" {
		if err := writeSheet(*out, results[0], a.settings.SwatchVariant); err != nil {
			return err
		}
		a.logger.Info("swatch sheet written", "path", *out)
	}

	if *asJSON {
		encoder := json.NewEncoder(stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(results)
	}

	for _, result := range results {
		if err := printResult(stdout, result); err != nil {
			return err
		}
	}
	return nil
}

func writeSheet(path string, result service.Result, variant string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create swatch sheet: %w", err)
	}

	if err := swatch.WritePNG(file, result.RGB(), variant); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func printResult(w io.Writer, result service.Result) error {
	pixels := int64(result.Width) * int64(result.Height)
	if result.Stats != nil {
		pixels = int64(result.Stats.Pixels)
	}

	fmt.Fprintf(
		w,
		"%s  %dx%d  %s  %s px  %s\n",
		result.Source,
		result.Width,
		result.Height,
		result.Method,
		humanize.Comma(pixels),
		time.Duration(result.DurationMS)*time.Millisecond,
	)
	if len(result.Colors) == 0 {
		fmt.Fprintln(w, "  no colors left after filtering")
		return nil
	}
	return swatch.Terminal(w, result.RGB())
}

var historyFlagKeys = map[string]string{
	"n":        config.KeyPaletteAmount,
	"coverage": config.KeyPaletteMinCoverage,
	"method":   config.KeyPaletteMethod,
	"variant":  config.KeySwatchVariant,
}

func runHistory(ctx context.Context, args []string, stdout io.Writer, stderr io.Writer) error {
	flags := flag.NewFlagSet("history", flag.ContinueOnError)
	flags.SetOutput(stderr)

	var common commonFlags
	common.register(flags)
	limit := flags.Int("limit", 20, "rows per page")
	offset := flags.Int("offset", 0, "rows to skip")
	showID := flags.String("show", "", "print one palette")
	deleteID := flags.String("delete", "", "delete one palette")
	sheetID := flags.String("swatch", "", "render the swatch sheet of one palette and print its path")
	contentHash := flags.String("hash", "", "print the newest palette stored for this sha256 content hash")
	flags.String("variant", "strip", "swatch sheet layout: strip, list or grid")
	flags.Int("n", 5, "amount to match with -hash")
	flags.Float64("coverage", 0, "min coverage to match with -hash")
	flags.String("method", "bundle", "method to match with -hash")
	showStats := flags.Bool("stats", false, "print an overview of stored palettes")
	asJSON := flags.Bool("json", false, "print JSON")

	if err := flags.Parse(args); err != nil {
		return err
	}

	a, err := bootstrap(ctx, bootstrapOptions{
		common:      common,
		flags:       flags,
		flagKeys:    historyFlagKeys,
		withHistory: true,
		stderr:      stderr,
	})
	if err != nil {
		return err
	}
	defer a.Close()

	switch {
	case *showStats:
		overview, err := a.stats.GetOverview(ctx, *limit)
		if err != nil {
			return err
		}
		if *asJSON {
			return writeJSON(stdout, overview)
		}
		return printOverview(stdout, overview)
	case *deleteID != "":
		if err := a.history.Delete(ctx, *deleteID); err != nil {
			return fmt.Errorf("delete %s: %w", *deleteID, err)
		}
		fmt.Fprintf(stdout, "deleted %s\n", *deleteID)
		return nil
	case *sheetID != "":
		path, err := a.history.SwatchSheet(ctx, *sheetID, a.settings.SwatchVariant)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, path)
		return nil
	case *contentHash != "":
		record, err := a.history.Latest(ctx, *contentHash, a.palettes.DefaultOptions())
		if err != nil {
			return fmt.Errorf("lookup %s: %w", *contentHash, err)
		}
		if *asJSON {
			return writeJSON(stdout, record)
		}
		return printRecord(stdout, record)
	case *showID != "":
		record, err := a.history.Get(ctx, *showID)
		if err != nil {
			return fmt.Errorf("show %s: %w", *showID, err)
		}
		if *asJSON {
			return writeJSON(stdout, record)
		}
		return printRecord(stdout, record)
	}

	page, err := a.history.List(ctx, *limit, *offset)
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(stdout, page)
	}
	return printPage(stdout, page)
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func printRecord(w io.Writer, record history.Record) error {
	fmt.Fprintf(w, "%s  %s  %s (%s)  %dx%d  amount=%d minCoverage=%g  %s\n",
		record.ID,
		record.Source,
		record.Method,
		record.SourceKind,
		record.Width,
		record.Height,
		record.Amount,
		record.MinCoverage,
		relativeTime(record.CreatedAt),
	)
	return swatch.Terminal(w, record.Colors)
}

func printPage(w io.Writer, page service.Page) error {
	table := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(table, "ID\tCREATED\tMETHOD\tSOURCE\tCOLORS")
	for _, record := range page.Items {
		fmt.Fprintf(table, "%s\t%s\t%s\t%s\t%s\n",
			record.ID,
			relativeTime(record.CreatedAt),
			record.Method,
			record.Source,
			strings.Join(swatch.Hexes(record.Colors), " "),
		)
	}
	if err := table.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "%d of %s palettes\n", len(page.Items), humanize.Comma(int64(page.Total)))
	return nil
}

func printOverview(w io.Writer, overview stats.Overview) error {
	summary := overview.Summary
	fmt.Fprintf(w, "%s palettes from %s sources, %d empty, %.1f colors and %.0fms on average\n",
		humanize.Comma(int64(summary.TotalPalettes)),
		humanize.Comma(int64(summary.UniqueSources)),
		summary.EmptyPalettes,
		summary.AverageColors,
		summary.AverageMS,
	)
	if summary.LastCreatedAt != nil {
		fmt.Fprintf(w, "last extraction %s\n", relativeTime(*summary.LastCreatedAt))
	}

	for _, method := range overview.Methods {
		fmt.Fprintf(w, "  %-8s %d\n", method.Name, method.Count)
	}

	if len(overview.TopColors) == 0 {
		return nil
	}
	fmt.Fprintln(w, "most frequent colors:")
	return swatch.Terminal(w, lo.Map(overview.TopColors, func(stat stats.ColorStat, _ int) palette.RGB {
		return stat.Color
	}))
}

func relativeTime(value string) string {
	createdAt, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return value
	}
	return humanize.Time(createdAt)
}
