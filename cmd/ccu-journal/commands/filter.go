package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/ccu-link/ccu-go/pkg/journal"
)

// FilterOptions specifies filtering criteria for the filter command.
type FilterOptions struct {
	Output    string
	Type      string
	Token     string
	TimeStart string
	TimeEnd   string
}

// RunFilter filters the journal file and writes matching records to a new file.
func RunFilter(path string, opts FilterOptions, w io.Writer) error {
	filter := journal.Filter{
		Token: opts.Token,
	}

	if opts.Type != "" {
		rt, err := ParseRecordTypeFlag(opts.Type)
		if err != nil {
			return err
		}
		filter.Type = &rt
	}

	if opts.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeStart)
		if err != nil {
			return fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}

	if opts.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, opts.TimeEnd)
		if err != nil {
			return fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}

	reader, err := journal.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open journal file: %w", err)
	}
	defer reader.Close()

	writer, err := journal.NewFileWriter(opts.Output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer writer.Close()

	count := 0
	for {
		record, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read record: %w", err)
		}

		writer.Write(record)
		count++
	}

	fmt.Fprintf(w, "Filtered %d records to %s\n", count, opts.Output)
	return nil
}
