// Package app implements the stitch CLI commands.
package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "warm":
		return runWarm(args[1:])
	case "resolve":
		return runResolve(args[1:])
	case "import-from-txt":
		return runImportFromTxt(args[1:])
	case "export-pool":
		return runExportPool(args[1:])
	case "import-codes":
		return runImportCodes(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "stitch CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  stitch <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health           Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  warm             Warm the URL cache and brand lexicons, then report sizes")
	fmt.Fprintln(os.Stderr, "  resolve          Resolve a batch of scraped items from a JSONL file")
	fmt.Fprintln(os.Stderr, "  import-from-txt  Import a tab-separated supplier feed")
	fmt.Fprintln(os.Stderr, "  export-pool      Export pending candidate pool entries to CSV")
	fmt.Fprintln(os.Stderr, "  import-codes     Import human-coded pool entries from CSV")
	fmt.Fprintln(os.Stderr, "  serve            Start the Echo API server")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"stitch <command> -h\" for command-specific flags.")
}
