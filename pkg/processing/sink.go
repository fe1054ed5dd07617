package processing

import (
	"context"
	"fmt"
	"image"
	"path/filepath"

	"github.com/menta2k/cardmask/internal/utils"
)

// DirSink writes rendered cards into a directory, one file per card name
type DirSink struct {
	dir       string
	format    string
	quality   int
	processor *Processor
}

// NewDirSink creates the output directory if needed
func NewDirSink(dir, format string, quality int) (*DirSink, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &DirSink{
		dir:       dir,
		format:    NormalizeFormat(format),
		quality:   quality,
		processor: NewProcessor(),
	}, nil
}

// Dir returns the output directory
func (s *DirSink) Dir() string { return s.dir }

// Path returns the file a card name is written to
func (s *DirSink) Path(name string) string {
	return filepath.Join(s.dir, utils.SanitizeFilename(name)+Extension(s.format))
}

// Write encodes img under the card name and returns the written path
func (s *DirSink) Write(ctx context.Context, name string, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if utils.SanitizeFilename(name) == "" {
		return "", fmt.Errorf("no usable file name for %q", name)
	}
	path := s.Path(name)
	if err := s.processor.SaveImage(img, path, s.format, s.quality); err != nil {
		return "", err
	}
	return path, nil
}
