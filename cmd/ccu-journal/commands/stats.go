package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/ccu-link/ccu-go/pkg/journal"
)

// Stats holds aggregate statistics about a journal file.
type Stats struct {
	TotalRecords  int
	RecordsByType map[journal.RecordType]int
	RTT           journal.RTTStats
	TimeRange     struct {
		Start time.Time
		End   time.Time
	}
}

// collectStats reads all records from the file and aggregates them.
func collectStats(path string) (*Stats, error) {
	reader, err := journal.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		RecordsByType: make(map[journal.RecordType]int),
	}

	var (
		rttCount int
		rttSum   time.Duration
	)

	for {
		record, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}

		stats.TotalRecords++
		stats.RecordsByType[record.Type]++

		if stats.TimeRange.Start.IsZero() || record.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = record.Timestamp
		}
		if record.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = record.Timestamp
		}

		if record.Type == journal.RecordPongReceived && record.RTT != nil {
			rtt := *record.RTT
			rttCount++
			rttSum += rtt
			if stats.RTT.Count == 0 || rtt < stats.RTT.Min {
				stats.RTT.Min = rtt
			}
			if rtt > stats.RTT.Max {
				stats.RTT.Max = rtt
			}
			stats.RTT.Count = rttCount
		}
	}

	if rttCount > 0 {
		stats.RTT.Mean = rttSum / time.Duration(rttCount)
	}

	return stats, nil
}

// RunStats analyzes the journal file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := collectStats(path)
	if err != nil {
		return err
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Ping/Pong Journal Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalRecords > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Records: %d\n", stats.TotalRecords)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Records by Type:")
	for _, rt := range []journal.RecordType{
		journal.RecordPingSent,
		journal.RecordPongReceived,
		journal.RecordPongUnknown,
		journal.RecordPongExpired,
	} {
		if count := stats.RecordsByType[rt]; count > 0 {
			fmt.Fprintf(w, "  %-15s %d\n", rt.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	sent := stats.RecordsByType[journal.RecordPingSent]
	if sent > 0 {
		matched := stats.RecordsByType[journal.RecordPongReceived]
		rate := float64(matched) / float64(sent)
		if rate > 1 {
			rate = 1
		}
		fmt.Fprintf(w, "Success Rate: %.1f%%\n", rate*100)
	}

	if stats.RTT.Count > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Round-Trip Times:")
		fmt.Fprintf(w, "  Min:  %s\n", stats.RTT.Min)
		fmt.Fprintf(w, "  Max:  %s\n", stats.RTT.Max)
		fmt.Fprintf(w, "  Mean: %s\n", stats.RTT.Mean)
	}
}
