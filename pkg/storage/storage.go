// Package storage persists rendered images under the data directory and
// mints the public URLs clients fetch them from.
//
// Layout and URL shape are a stable boundary:
//
//	{dataDir}/{kind}/{jobId}/{kind}.{ext}
//	{publicBaseUrl}/files/{kind}/{jobId}/{kind}.{ext}
package storage

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"image-pipeline/pkg/errdefs"
)

// Kind distinguishes the two outputs of one job.
type Kind string

const (
	KindPreview Kind = "preview"
	KindFinal   Kind = "final"
)

const jpegQuality = 90

// Stored is the location of one persisted output.
type Stored struct {
	Path string
	URL  string
}

// Store writes job outputs to a local directory tree.
type Store struct {
	baseDir       string
	publicBaseURL string
	logger        *slog.Logger
}

// New creates a store rooted at dataDir. The directory is created if
// absent; publicBaseURL is used verbatim (minus any trailing slash) when
// minting URLs.
func New(dataDir, publicBaseURL string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{
		baseDir:       abs,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger.With("component", "storage"),
	}, nil
}

// BaseDir returns the absolute storage root.
func (s *Store) BaseDir() string {
	return s.baseDir
}

// Store encodes img in the requested format and writes it for the given
// kind and job, atomically: bytes land in a sibling .tmp file first and are
// renamed into place. All failures are STORE_FAILED and worth retrying.
func (s *Store) Store(kind Kind, jobID string, img image.Image, format string) (Stored, error) {
	ext := normalizeExt(format)

	dir := filepath.Join(s.baseDir, string(kind), jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Stored{}, storeErr(kind, dir, err)
	}

	name := fmt.Sprintf("%s.%s", kind, ext)
	finalPath := filepath.Join(dir, name)
	tmpPath := finalPath + ".tmp"

	if err := writeImage(tmpPath, img, ext); err != nil {
		_ = os.Remove(tmpPath)
		return Stored{}, storeErr(kind, finalPath, err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return Stored{}, storeErr(kind, finalPath, err)
	}

	url := fmt.Sprintf("%s/files/%s/%s/%s", s.publicBaseURL, kind, jobID, name)
	s.logger.Debug("stored output", "kind", kind, "jobId", jobID, "path", finalPath)

	return Stored{Path: finalPath, URL: url}, nil
}

func storeErr(kind Kind, path string, err error) error {
	return errdefs.Wrap(errdefs.StoreFailed, err, fmt.Sprintf("cannot store %s image", kind)).
		WithDetail("path", path)
}

func writeImage(path string, img image.Image, ext string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	switch ext {
	case "jpg":
		err = jpeg.Encode(f, flatten(img), &jpeg.Options{Quality: jpegQuality})
	default:
		err = png.Encode(f, img)
	}
	if cerr := f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// flatten composites img over an opaque white background. JPEG has no
// alpha channel, so transparency must be resolved before encoding.
func flatten(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	flat := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(flat, flat.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(flat, flat.Bounds(), img, bounds.Min, draw.Over)
	return flat
}

// normalizeExt maps a manifest output format to a file extension.
func normalizeExt(format string) string {
	switch strings.ToLower(strings.TrimPrefix(format, ".")) {
	case "jpg", "jpeg":
		return "jpg"
	case "":
		return "png"
	default:
		return "png"
	}
}
