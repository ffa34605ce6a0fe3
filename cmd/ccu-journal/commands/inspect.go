package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/ccu-link/ccu-go/pkg/journal"
)

// inspector holds the state of an interactive inspect session.
type inspector struct {
	path    string
	records []journal.Record
	rl      *readline.Instance
}

// RunInspect loads the journal file and starts an interactive command loop.
func RunInspect(path string) error {
	records, err := loadRecords(path)
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "journal> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}

	ins := &inspector{
		path:    path,
		records: records,
		rl:      rl,
	}
	return ins.run()
}

// loadRecords reads the whole file into memory so the session can seek freely.
func loadRecords(path string) ([]journal.Record, error) {
	reader, err := journal.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}
	defer reader.Close()

	var records []journal.Record
	for {
		record, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		records = append(records, record)
	}
	return records, nil
}

func (ins *inspector) run() error {
	defer ins.rl.Close()

	out := ins.rl.Stdout()
	fmt.Fprintf(out, "Loaded %d records from %s\n", len(ins.records), ins.path)
	ins.printHelp()

	for {
		line, err := ins.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(out, "Exiting...")
			return nil
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			ins.printHelp()

		case "stats", "s":
			ins.cmdStats()

		case "view", "v":
			ins.cmdView(args)

		case "type", "t":
			ins.cmdType(args)

		case "token":
			ins.cmdToken(args)

		case "exit", "quit", "q":
			fmt.Fprintln(out, "Exiting...")
			return nil

		default:
			fmt.Fprintf(out, "Unknown command: %s (try \"help\")\n", cmd)
		}
	}
}

func (ins *inspector) printHelp() {
	fmt.Fprint(ins.rl.Stdout(), `Commands:
  stats              Show statistics (s)
  view [n]           View the last n records, all when omitted (v)
  type <record-type> View records of one type (t)
  token <token>      View records for one token
  help               Show this help (?)
  exit               Leave the session (q)
`)
}

func (ins *inspector) cmdStats() {
	out := ins.rl.Stdout()
	if err := RunStats(ins.path, out); err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
	}
}

func (ins *inspector) cmdView(args []string) {
	out := ins.rl.Stdout()

	records := ins.records
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			fmt.Fprintf(out, "Invalid count: %s\n", args[0])
			return
		}
		if n < len(records) {
			records = records[len(records)-n:]
		}
	}

	for _, r := range records {
		formatRecord(out, r)
	}
}

func (ins *inspector) cmdType(args []string) {
	out := ins.rl.Stdout()
	if len(args) < 1 {
		fmt.Fprintln(out, "Usage: type <ping-sent|pong-received|pong-unknown|pong-expired>")
		return
	}

	rt, err := ParseRecordTypeFlag(args[0])
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}

	count := 0
	for _, r := range ins.records {
		if r.Type == rt {
			formatRecord(out, r)
			count++
		}
	}
	fmt.Fprintf(out, "%d records\n", count)
}

func (ins *inspector) cmdToken(args []string) {
	out := ins.rl.Stdout()
	if len(args) < 1 {
		fmt.Fprintln(out, "Usage: token <token>")
		return
	}

	count := 0
	for _, r := range ins.records {
		if r.Token == args[0] {
			formatRecord(out, r)
			count++
		}
	}
	fmt.Fprintf(out, "%d records\n", count)
}
