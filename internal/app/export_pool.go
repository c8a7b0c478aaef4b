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
	"thread.fit/stitch/internal/lexicon"
)

func runExportPool(args []string) int {
	fs := flag.NewFlagSet("export-pool", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	output := fs.String("output", "", "Path for the CSV export (required)")
	brand := fs.String("brand", "", "Only export entries for this brand (default: all)")
	timeout := fs.Duration("timeout", 2*time.Minute, "Export timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if strings.TrimSpace(*output) == "" {
		fmt.Fprintln(os.Stderr, "--output is required")
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := openRuntime(ctx, envLoader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		return 1
	}
	defer rt.close()

	// Export only reads the pool; an empty lexicon and no cache will do.
	lex, err := lexicon.Load(ctx, rt.pool, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		return 1
	}

	service := backfill.NewService(rt.pool, lex, nil, rt.logger)
	count, err := service.ExportCSV(ctx, *output, *brand)
	if err != nil {
		rt.logger.Error().Err(err).Str("path", *output).Msg("pool export failed")
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		return 1
	}

	fmt.Printf("exported %d pool entries to %s\n", count, *output)
	return 0
}
