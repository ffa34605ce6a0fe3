// Package commands implements the ccu-journal CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/ccu-link/ccu-go/pkg/journal"
)

// ViewFilter specifies criteria for filtering records in the view command.
type ViewFilter struct {
	Type  *journal.RecordType
	Token string
}

// ParseRecordTypeFlag parses a record type string from a command-line flag
// (case-insensitive).
func ParseRecordTypeFlag(s string) (journal.RecordType, error) {
	switch strings.ToLower(s) {
	case "ping-sent":
		return journal.RecordPingSent, nil
	case "pong-received":
		return journal.RecordPongReceived, nil
	case "pong-unknown":
		return journal.RecordPongUnknown, nil
	case "pong-expired":
		return journal.RecordPongExpired, nil
	default:
		return 0, fmt.Errorf("invalid record type: %s (must be ping-sent, pong-received, pong-unknown, or pong-expired)", s)
	}
}

// formatRecord writes a human-readable representation of the record to w.
func formatRecord(w io.Writer, r journal.Record) {
	ts := r.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	fmt.Fprintf(w, "%s %-13s %s", ts, r.Type.String(), r.Token)
	if r.RTT != nil {
		fmt.Fprintf(w, "  rtt=%s", r.RTT)
	}
	fmt.Fprintln(w)
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := journal.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open journal file: %w", err)
	}
	defer reader.Close()

	for {
		record, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read record: %w", err)
		}

		if filter.Type != nil && record.Type != *filter.Type {
			continue
		}
		if filter.Token != "" && record.Token != filter.Token {
			continue
		}

		formatRecord(output, record)
	}

	return nil
}
