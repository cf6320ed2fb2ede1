package sink

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	apperr "github.com/matzehuels/reflow/pkg/errors"
)

// ImageSequence writes page_0001.png, page_0002.png, ... into a directory.
type ImageSequence struct {
	dir     string
	enc     Encoder
	written int
}

// NewImageSequence creates dir and returns a sink writing into it.
// The directory must not exist yet.
func NewImageSequence(dir string, enc Encoder) (*ImageSequence, error) {
	if err := enc.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(dir); err == nil {
		return nil, apperr.New(apperr.ErrCodeAlreadyExists, "output directory %s already exists", dir)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &ImageSequence{dir: dir, enc: enc}, nil
}

// WritePage encodes page into the next numbered file.
func (s *ImageSequence) WritePage(ctx context.Context, page *image.Gray) error {
	name := fmt.Sprintf("page_%04d%s", s.written+1, s.enc.Format.Ext())
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if err := s.enc.Encode(f, page); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	s.written++
	return nil
}

// Written returns the number of pages written.
func (s *ImageSequence) Written() int { return s.written }

// Path returns the output directory.
func (s *ImageSequence) Path() string { return s.dir }

// Close does nothing; every page is complete once written.
func (s *ImageSequence) Close() error { return nil }

var _ Sink = (*ImageSequence)(nil)
