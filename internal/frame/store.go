// Package frame keeps one reference still per camera. Operators draw rules
// over it and exports use it as the background.
package frame

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

var ErrNoFrame = errors.New("no reference frame")

type Store struct {
	dir string
}

// NewStore creates a store that keeps frames in dir.
func NewStore(dir string) *Store {
	if err := os.MkdirAll(dir, 0755); err != nil {
		slog.Error("create frame dir", "error", err, "dir", dir)
	}
	return &Store{dir: dir}
}

func (s *Store) Dir() string { return s.dir }

// Filename is the stored name of a camera's frame.
func Filename(cameraID string) string { return cameraID + ".png" }

// Save decodes a PNG or JPEG image from r and stores it as PNG, replacing any
// previous frame for the camera.
func (s *Store) Save(cameraID string, r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create frame file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("encode png: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, Filename(cameraID))); err != nil {
		return nil, fmt.Errorf("store frame: %w", err)
	}
	return img, nil
}

// Load returns the camera's frame, or ErrNoFrame.
func (s *Store) Load(cameraID string) (image.Image, error) {
	f, err := os.Open(filepath.Join(s.dir, Filename(cameraID)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoFrame
		}
		return nil, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return img, nil
}

// Remove deletes the camera's frame if there is one.
func (s *Store) Remove(cameraID string) error {
	err := os.Remove(filepath.Join(s.dir, Filename(cameraID)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
