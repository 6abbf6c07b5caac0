package history

// This file contains shared history utilities for loading and selecting the
// suite reports written by previous extractions.

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/xctools/xctools/model"
)

// ProfileExt is the extension of the timing profile written next to a suite
// report.
const ProfileExt = ".pb.gz"

type Entry struct {
	Suite model.SuiteReport
	Path  string
}

// ProfilePath returns the path of the timing profile of the entry. The file
// only exists when the extraction was run with profiling enabled.
func (e *Entry) ProfilePath() string {
	return strings.TrimSuffix(e.Path, filepath.Ext(e.Path)) + ProfileExt
}

// LoadEntries loads all suite reports found below root. JSON files that are
// not suite reports are skipped.
func LoadEntries(logger zerolog.Logger, root string) ([]Entry, error) {
	var entries []Entry

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		suite, ok, err := parseSuiteJSON(path)
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("Failed to parse suite report")
			return nil
		}
		if !ok {
			logger.Debug().Str("path", path).Msg("Skipping non-suite JSON file")
			return nil
		}

		entries = append(entries, Entry{
			Suite: suite,
			Path:  path,
		})
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	return entries, nil
}

// parseSuiteJSON parses a suite report. ok is false when the document lacks
// the fields every suite report carries.
func parseSuiteJSON(path string) (suite model.SuiteReport, ok bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.SuiteReport{}, false, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return model.SuiteReport{}, false, err
	}
	for _, key := range []string{"name", "startTime", "tests"} {
		if _, exists := fields[key]; !exists {
			return model.SuiteReport{}, false, nil
		}
	}

	if err := json.Unmarshal(data, &suite); err != nil {
		return model.SuiteReport{}, false, err
	}
	return suite, true, nil
}

// SortNewestFirst orders entries by suite start time, newest first.
func SortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Suite.StartTime.After(entries[j].Suite.StartTime)
	})
}

// Select picks an entry from entries sorted newest first. arg is either an
// index counting back from the newest run (0, -1, -2, ...) or a case
// insensitive prefix of the suite name.
func Select(entries []Entry, arg string) (*Entry, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no suite reports found")
	}

	if parsed, err := strconv.ParseInt(arg, 10, 64); err == nil {
		if parsed > 0 {
			return nil, fmt.Errorf("invalid index: %s (use 0 for last, -1 for second-to-last, -2 for third-to-last, etc.)", arg)
		}
		if parsed < -int64(len(entries)-1) {
			return nil, fmt.Errorf("index %s out of range (only %d suite reports)", arg, len(entries))
		}
		return &entries[-parsed], nil
	}

	prefix := strings.ToLower(arg)
	for i := range entries {
		if strings.HasPrefix(strings.ToLower(entries[i].Suite.Name), prefix) {
			return &entries[i], nil
		}
	}
	return nil, fmt.Errorf("no suite report found matching name: %s", arg)
}
