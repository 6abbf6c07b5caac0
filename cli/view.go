package cli

// This file contains the view command for displaying an extracted suite
// report.

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/xctools/xctools/history"
	"github.com/xctools/xctools/model"
)

func removeFirstDashDash(in []string) []string {
	if len(in) > 0 && in[0] == "--" {
		return in[1:]
	}
	return in
}

func parseViewArgs(in []string) (idArg string, pprofArgs []string) {
	if len(in) == 0 {
		return "0", nil
	}

	// If first arg is "--", use default "0" and rest are pprof args
	if in[0] == "--" {
		return "0", in[1:]
	}

	// A negative index is "-" followed by only digits (e.g., "-1", "-2");
	// anything else starting with "-" is a pprof flag (e.g., "-top")
	if len(in[0]) > 1 && in[0][0] == '-' {
		if _, err := strconv.ParseInt(in[0], 10, 64); err != nil {
			return "0", in
		}
	}

	return in[0], removeFirstDashDash(in[1:])
}

func (a *App) view(ctx *cli.Context) error {
	arg, pprofArgs := parseViewArgs(ctx.Args().Slice())

	entries, err := history.LoadEntries(a.logger, ".")
	if err != nil {
		return fmt.Errorf("failed to load suite reports: %w", err)
	}
	history.SortNewestFirst(entries)

	entry, err := history.Select(entries, arg)
	if err != nil {
		return err
	}

	if len(pprofArgs) > 0 {
		return a.displayProfile(entry, pprofArgs)
	}
	printSuite(os.Stdout, entry)
	return nil
}

func (a *App) displayProfile(entry *history.Entry, pprofArgs []string) error {
	profilePath := entry.ProfilePath()
	if _, err := os.Stat(profilePath); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("no timing profile for %s (run extract with --profile)", entry.Suite.Name)
	}

	args := []string{"tool", "pprof"}
	args = append(args, pprofArgs...)
	args = append(args, profilePath)

	a.logger.Debug().Strs("args", args).Msg("Opening profile")

	cmd := exec.Command("go", args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func printSuite(w io.Writer, entry *history.Entry) {
	s := entry.Suite
	total, failed := s.TestCount()

	fmt.Fprintf(w, "=== Suite: %s ===\n", s.Name)
	fmt.Fprintf(w, "Time: %s\n", s.StartTime.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Duration: %s\n", seconds(s.Duration))
	fmt.Fprintf(w, "Result: %s %d/%d tests failed\n", statusMark(s.Successful), failed, total)
	if d := s.RunDestination; d != nil {
		dev := d.TargetDeviceRecord
		fmt.Fprintf(w, "Device: %s, %s %s (%s)\n", dev.DisplayName, dev.PlatformName, dev.OSVersion, dev.TargetArchitecture)
		fmt.Fprintf(w, "SDK: %s\n", d.TargetSDKRecord.Name)
	}
	fmt.Fprintf(w, "Report: %s\n\n", entry.Path)

	for _, test := range s.Tests {
		name := "<unnamed test>"
		if test.Name != nil {
			name = *test.Name
		}
		fmt.Fprintf(w, "%s %s", statusMark(test.Successful), name)
		if test.Duration != nil {
			fmt.Fprintf(w, " [%s]", seconds(*test.Duration))
		}
		fmt.Fprintln(w)
		for _, step := range test.Steps {
			printStep(w, step, 1)
		}
	}
}

func printStep(w io.Writer, step model.StepReport, depth int) {
	fmt.Fprintf(w, "%s%s %s", strings.Repeat("    ", depth), statusMark(step.Successful), step.Name)
	if step.Duration != nil {
		fmt.Fprintf(w, " [%s]", seconds(*step.Duration))
	}
	if n := len(step.Attachments); n > 0 {
		files := make([]string, 0, n)
		for _, att := range step.Attachments {
			if att.Filename != nil {
				files = append(files, *att.Filename)
			}
		}
		fmt.Fprintf(w, " (%d attachments", n)
		if len(files) > 0 {
			fmt.Fprintf(w, ": %s", strings.Join(files, ", "))
		}
		fmt.Fprint(w, ")")
	}
	fmt.Fprintln(w)
	for _, sub := range step.Substeps {
		printStep(w, sub, depth+1)
	}
}
