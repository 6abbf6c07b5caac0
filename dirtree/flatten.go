package dirtree

// Package dirtree collapses directory chains left behind by diagnostics
// exports, where every level holds a single subdirectory.

import (
	"fmt"
	"os"
	"path/filepath"
)

// Flatten collapses path while its only entry is a directory: the contents of
// that directory are moved into path and the emptied directory is removed.
// A directory with zero entries, several entries, a single file or a single
// symlink is left untouched.
func Flatten(path string) error {
	for {
		child, ok, err := soleSubdirectory(path)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := collapse(path, child); err != nil {
			return err
		}
	}
}

func soleSubdirectory(path string) (string, bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", false, fmt.Errorf("failed to read directory %s: %w", path, err)
	}
	if len(entries) != 1 {
		return "", false, nil
	}
	// Symlinks are not followed, even when they point at a directory.
	if !entries[0].IsDir() {
		return "", false, nil
	}
	return filepath.Join(path, entries[0].Name()), true, nil
}

// collapse moves the contents of child, the only entry of parent, into
// parent and removes child.
func collapse(parent, child string) error {
	// Renaming first keeps an entry named like child from colliding with it.
	scratch, err := os.MkdirTemp(parent, ".flatten-*")
	if err != nil {
		return fmt.Errorf("failed to create scratch directory in %s: %w", parent, err)
	}
	if err := os.Remove(scratch); err != nil {
		return fmt.Errorf("failed to remove scratch directory %s: %w", scratch, err)
	}
	if err := os.Rename(child, scratch); err != nil {
		return fmt.Errorf("failed to rename %s: %w", child, err)
	}

	entries, err := os.ReadDir(scratch)
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", scratch, err)
	}
	for _, e := range entries {
		src := filepath.Join(scratch, e.Name())
		dst := filepath.Join(parent, e.Name())
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
		}
	}

	if err := os.Remove(scratch); err != nil {
		return fmt.Errorf("failed to remove %s: %w", scratch, err)
	}
	return nil
}
