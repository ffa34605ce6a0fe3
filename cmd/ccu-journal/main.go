// Command ccu-journal is a tool for viewing and analyzing exported ping/pong
// journal files.
//
// Journal files are created via journal.Export or journal.FileWriter, for
// example when a connection health incident is being investigated.
//
// Usage:
//
//	ccu-journal <command> [flags] <file.pplog>
//
// Commands:
//
//	view     View journal file in human-readable format
//	filter   Filter journal file and write to new file
//	stats    Show statistics about the journal file
//	inspect  Explore the journal file interactively
//
// Examples:
//
//	# View all records
//	ccu-journal view bidcos.pplog
//
//	# View only unmatched pongs
//	ccu-journal view --type pong-unknown bidcos.pplog
//
//	# Filter by token and save to a new file
//	ccu-journal filter --token "BidCos-RF#abc" -o filtered.pplog bidcos.pplog
//
//	# Show statistics
//	ccu-journal stats bidcos.pplog
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ccu-link/ccu-go/cmd/ccu-journal/commands"
)

const usage = `ccu-journal - Ping/Pong Journal Analyzer

Usage:
  ccu-journal <command> [flags] <file.pplog>

Commands:
  view     View journal file in human-readable format
  filter   Filter journal file and write to new file
  stats    Show statistics about the journal file
  inspect  Explore the journal file interactively

Use "ccu-journal <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "inspect":
		runInspect(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `ccu-journal view - View journal file in human-readable format

Usage:
  ccu-journal view [flags] <file.pplog>

Flags:
`)
		fs.PrintDefaults()
	}

	recordType := fs.String("type", "", "Filter by record type (ping-sent, pong-received, pong-unknown, pong-expired)")
	token := fs.String("token", "", "Filter by exact token")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: journal file path required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	var filter commands.ViewFilter
	filter.Token = *token

	if *recordType != "" {
		rt, err := commands.ParseRecordTypeFlag(*recordType)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		filter.Type = &rt
	}

	if err := commands.RunView(path, filter, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runFilter(args []string) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `ccu-journal filter - Filter journal file and write to new file

Usage:
  ccu-journal filter [flags] <file.pplog>

Flags:
`)
		fs.PrintDefaults()
	}

	output := fs.String("o", "", "Output file (required)")
	recordType := fs.String("type", "", "Filter by record type (ping-sent, pong-received, pong-unknown, pong-expired)")
	token := fs.String("token", "", "Filter by exact token")
	timeStart := fs.String("time-start", "", "Filter by start time (RFC3339)")
	timeEnd := fs.String("time-end", "", "Filter by end time (RFC3339)")

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: journal file path required")
		fs.Usage()
		os.Exit(1)
	}

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	opts := commands.FilterOptions{
		Output:    *output,
		Type:      *recordType,
		Token:     *token,
		TimeStart: *timeStart,
		TimeEnd:   *timeEnd,
	}

	if err := commands.RunFilter(path, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `ccu-journal stats - Show statistics about the journal file

Usage:
  ccu-journal stats <file.pplog>

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: journal file path required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	if err := commands.RunStats(path, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runInspect(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `ccu-journal inspect - Explore the journal file interactively

Usage:
  ccu-journal inspect <file.pplog>

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: journal file path required")
		fs.Usage()
		os.Exit(1)
	}

	path := fs.Arg(0)

	if err := commands.RunInspect(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
