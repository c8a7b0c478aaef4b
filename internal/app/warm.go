package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"thread.fit/stitch/internal/cli"
)

func runWarm(args []string) int {
	fs := flag.NewFlagSet("warm", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	brandsFlag := fs.String("brands", "", "Comma-separated brands to load (default: all brands with lexicon rows)")
	timeout := fs.Duration("timeout", 2*time.Minute, "Warmup timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rt, err := openRuntime(ctx, envLoader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warmup failed: %v\n", err)
		return 1
	}
	defer rt.close()

	_, cache, _, err := rt.warmEngine(ctx, splitBrandsFlag(*brandsFlag))
	if err != nil {
		rt.logger.Error().Err(err).Msg("warmup failed")
		fmt.Fprintf(os.Stderr, "Warmup failed: %v\n", err)
		return 1
	}

	fmt.Printf("ok: %d urls cached\n", cache.Len())
	return 0
}
