package media

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
)

// PNGWriter writes images as PNG files.
type PNGWriter struct{}

// WriteImage encodes img at path, creating the parent directory if needed.
func (PNGWriter) WriteImage(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}
