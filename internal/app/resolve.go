package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"thread.fit/stitch/internal/cli"
	"thread.fit/stitch/internal/resolver"
	payloadschema "thread.fit/stitch/schema"
)

// runResolve processes a JSONL batch file: one scraped item payload per
// line, resolved concurrently, results written as JSONL to stdout or a
// file.
func runResolve(args []string) int {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	input := fs.String("input", "", "Path to a JSONL file of scraped items (required)")
	output := fs.String("output", "", "Path for JSONL results (default: stdout)")
	workers := fs.Int("workers", 0, "Resolver workers (default: RESOLVER_WORKERS)")
	brandsFlag := fs.String("brands", "", "Comma-separated brands to load (default: all brands with lexicon rows)")

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		cancel()
	}()

	rt, err := openRuntime(ctx, envLoader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Resolve failed: %v\n", err)
		return 1
	}
	defer rt.close()

	engine, _, _, err := rt.warmEngine(ctx, splitBrandsFlag(*brandsFlag))
	if err != nil {
		rt.logger.Error().Err(err).Msg("warmup failed")
		fmt.Fprintf(os.Stderr, "Warmup failed: %v\n", err)
		return 1
	}

	items, skipped, err := readItemsFile(rt, *input)
	if err != nil {
		rt.logger.Error().Err(err).Str("path", *input).Msg("read batch file failed")
		fmt.Fprintf(os.Stderr, "Failed to read input: %v\n", err)
		return 1
	}

	workerCount := *workers
	if workerCount <= 0 {
		workerCount = rt.cfg.ResolverWorkers
	}
	if workerCount <= 0 {
		workerCount = 1
	}

	results, summary := engine.ResolveBatch(ctx, items, workerCount)

	if err := writeResultsFile(*output, results); err != nil {
		rt.logger.Error().Err(err).Msg("write results failed")
		fmt.Fprintf(os.Stderr, "Failed to write results: %v\n", err)
		return 1
	}

	rt.logger.Info().
		Int("total", summary.Total).
		Int("matched", summary.Matched).
		Int("ambiguous", summary.Ambiguous).
		Int("unmatched", summary.Unmatched).
		Int("skipped_lines", skipped).
		Int("workers", workerCount).
		Msg("batch resolved")
	fmt.Printf("resolved %d items: %d matched, %d ambiguous, %d unmatched (%d lines skipped)\n",
		summary.Total, summary.Matched, summary.Ambiguous, summary.Unmatched, skipped)
	return 0
}

// readItemsFile parses the JSONL input. Invalid lines are logged and
// skipped; the batch continues.
func readItemsFile(rt *runtime, path string) ([]resolver.ScrapedItem, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	var items []resolver.ScrapedItem
	skipped := 0
	lineNo := 0

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		payload, err := payloadschema.ValidateScrapedItemPayload(json.RawMessage(line))
		if err != nil {
			skipped++
			rt.logger.Warn().Err(err).Int("line", lineNo).Msg("skipping invalid batch line")
			continue
		}
		items = append(items, resolver.ScrapedItem{
			Title:     payload.Title,
			ColorText: payload.ColorText,
			SiteName:  payload.SiteName,
			SourceURL: payload.SourceURL,
			Brand:     payload.Brand,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, err
	}
	return items, skipped, nil
}

func writeResultsFile(path string, results []resolver.MatchResult) error {
	out := os.Stdout
	if strings.TrimSpace(path) != "" {
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()
		out = file
	}

	writer := bufio.NewWriter(out)
	encoder := json.NewEncoder(writer)
	for _, result := range results {
		if err := encoder.Encode(result); err != nil {
			return err
		}
	}
	return writer.Flush()
}
