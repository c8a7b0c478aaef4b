package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"thread.fit/stitch/internal/backfill"
	"thread.fit/stitch/internal/cli"
)

func runImportCodes(args []string) int {
	fs := flag.NewFlagSet("import-codes", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	input := fs.String("input", "", "Path to the coded CSV file (required)")
	brandsFlag := fs.String("brands", "", "Comma-separated brands to load (default: all brands with lexicon rows)")
	timeout := fs.Duration("timeout", 10*time.Minute, "Import timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if strings.TrimSpace(*input) == "" {
		fmt.Fprintln(os.Stderr, "--input is required")
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := openRuntime(ctx, envLoader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		return 1
	}
	defer rt.close()

	_, cache, lex, err := rt.warmEngine(ctx, splitBrandsFlag(*brandsFlag))
	if err != nil {
		rt.logger.Error().Err(err).Msg("warmup failed")
		fmt.Fprintf(os.Stderr, "Warmup failed: %v\n", err)
		return 1
	}

	service := backfill.NewService(rt.pool, lex, cache, rt.logger)
	report, err := service.ImportCodes(ctx, *input)
	if err != nil {
		rt.logger.Error().Err(err).Str("path", *input).Msg("coded import failed")
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		return 1
	}

	fmt.Printf("processed %d rows: %d imported, %d skipped\n",
		report.Rows, report.Imported, report.Skipped)
	return 0
}
