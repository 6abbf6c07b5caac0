package cli

// This file contains the list command for displaying extracted suite
// reports.

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/xctools/xctools/history"
)

func (a *App) list(ctx *cli.Context) error {
	filterName := ctx.String("name")
	limit := ctx.Int("limit")

	entries, err := history.LoadEntries(a.logger, ctx.String("dir"))
	if err != nil {
		return fmt.Errorf("failed to load suite reports: %w", err)
	}

	// Apply name filter if specified
	var filtered []history.Entry
	for _, entry := range entries {
		if filterName == "" || strings.Contains(strings.ToLower(entry.Suite.Name), strings.ToLower(filterName)) {
			filtered = append(filtered, entry)
		}
	}

	if len(filtered) == 0 {
		if filterName != "" {
			fmt.Printf("No suite reports found matching name: %s\n", filterName)
		} else {
			fmt.Println("No suite reports found")
		}
		return nil
	}

	history.SortNewestFirst(filtered)

	display := filtered
	if limit > 0 && limit < len(display) {
		display = display[:limit]
	}

	fmt.Printf("\n=== Suites (%d total) ===\n\n", len(filtered))
	for i := range display {
		printListEntry(os.Stdout, &display[i])
	}

	fmt.Println("\nView a suite: xctools view <INDEX|NAME>")
	return nil
}

func printListEntry(w io.Writer, entry *history.Entry) {
	s := entry.Suite
	total, failed := s.TestCount()

	fmt.Fprintf(w, "%s  %s  [%s]  %s  tests=%d failed=%d\n",
		statusMark(s.Successful),
		s.StartTime.Local().Format("2006-01-02 15:04:05"),
		seconds(s.Duration),
		s.Name,
		total,
		failed,
	)
	if d := s.RunDestination; d != nil {
		fmt.Fprintf(w, "   Device: %s (%s %s)\n", d.TargetDeviceRecord.DisplayName, d.TargetDeviceRecord.PlatformName, d.TargetDeviceRecord.OSVersion)
	}
	fmt.Fprintf(w, "   %s\n\n", entry.Path)
}

func statusMark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second)).Round(time.Millisecond)
}
