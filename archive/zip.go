package archive

// This file contains the packaging of an extraction directory into a single
// zip archive.

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zip"
)

// ZipDirectory writes the tree rooted at dir into a zip archive at dest.
// Entries are prefixed with the base name of dir, so unpacking the archive
// recreates the directory itself.
func ZipDirectory(dir, dest string) (err error) {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", dest, cerr)
		}
	}()

	w := zip.NewWriter(out)
	root := filepath.Base(filepath.Clean(dir))

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(filepath.Join(root, rel))

		info, err := d.Info()
		if err != nil {
			return err
		}
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = name

		if d.IsDir() {
			header.Name += "/"
			_, err := w.CreateHeader(header)
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		header.Method = zip.Deflate
		entry, err := w.CreateHeader(header)
		if err != nil {
			return err
		}
		return copyFile(entry, path)
	})
	if walkErr != nil {
		w.Close()
		return fmt.Errorf("failed to archive %s: %w", dir, walkErr)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish archive %s: %w", dest, err)
	}
	return nil
}

func copyFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}
