package extract

// This file contains the export of build and test diagnostics.

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xctools/xctools/dirtree"
	"github.com/xctools/xctools/xcresult"
)

// extractLogs exports the diagnostics of action into logsDir/Build and
// logsDir/Test. When the action belongs to a test plan, entries belonging
// to other plans are pruned. Single-directory chains are then collapsed.
func (e *Extractor) extractLogs(ctx context.Context, action *xcresult.ActionRecord, logsDir string) error {
	logs := []struct {
		name string
		ref  *xcresult.Reference
	}{
		{name: "Build", ref: action.BuildResult.DiagnosticsRef},
		{name: "Test", ref: action.ActionResult.DiagnosticsRef},
	}

	for _, log := range logs {
		if log.ref == nil || log.ref.ID == "" {
			continue
		}
		dir := filepath.Join(logsDir, log.name)
		if err := e.bundle.ExportDirectory(ctx, log.ref.ID, dir); err != nil {
			return err
		}
		if action.TestPlanName != nil {
			if err := pruneEntries(dir, *action.TestPlanName); err != nil {
				return err
			}
		}
		if err := dirtree.Flatten(dir); err != nil {
			return err
		}
		e.logger.Debug().Str("log", log.name).Str("path", dir).Msg("Extracted diagnostics")
	}

	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		return nil
	}
	return dirtree.Flatten(logsDir)
}

// pruneEntries removes every entry of dir whose name does not start with
// prefix.
func pruneEntries(dir, prefix string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to remove %s: %w", entry.Name(), err)
		}
	}
	return nil
}
