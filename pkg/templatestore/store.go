package templatestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/singleflight"

	"image-pipeline/pkg/errdefs"
)

// Store resolves template keys to extracted template directories.
//
// Thread-safe for concurrent use. The single-flight group is process-wide
// state for the lifetime of the store; distinct keys never block each
// other.
type Store struct {
	cacheRoot string
	fetcher   *fetcher
	logger    *slog.Logger
	flights   singleflight.Group
}

// New creates a template store rooted at cacheRoot.
func New(cacheRoot string, opts Options, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "templatestore")

	return &Store{
		cacheRoot: cacheRoot,
		fetcher:   newFetcher(opts.WithDefaults(), logger),
		logger:    logger,
	}
}

// Resolve returns the extracted directory for the given template,
// downloading, verifying and extracting the package when the cache misses.
//
// Guarantees for a fixed key across N concurrent callers: the network is
// hit at most once, extraction happens at most once, all callers observe
// the same path, and no caller ever sees a half-populated directory.
func (s *Store) Resolve(ctx context.Context, templateCode, versionSemver, downloadURL, checksumSHA256 string) (Result, error) {
	key := Key{
		TemplateCode:   templateCode,
		VersionSemver:  versionSemver,
		ChecksumSHA256: checksumSHA256,
	}
	if err := key.Validate(); err != nil {
		return Result{}, errdefs.Wrap(errdefs.Internal, err, "invalid template key")
	}
	if downloadURL == "" {
		return Result{}, errdefs.New(errdefs.Internal, "downloadUrl must not be empty")
	}

	finalDir, err := filepath.Abs(filepath.Join(s.cacheRoot, key.TemplateCode, key.VersionSemver, key.ChecksumSHA256))
	if err != nil {
		return Result{}, errdefs.Wrap(errdefs.Internal, err, "cannot resolve cache path")
	}

	// Fast path: no lock, no network.
	if entryPresent(finalDir) {
		s.logger.Debug("template cache hit", "key", key.String(), "dir", finalDir)
		return Result{Dir: finalDir}, nil
	}

	v, err, _ := s.flights.Do(key.String(), func() (any, error) {
		// Double-check now that we hold the flight: another caller may
		// have published the entry while we waited.
		if entryPresent(finalDir) {
			return Result{Dir: finalDir}, nil
		}
		return s.populate(ctx, key, downloadURL, finalDir)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

// populate downloads, verifies, extracts and atomically publishes one
// cache entry. Runs under the key's flight.
func (s *Store) populate(ctx context.Context, key Key, downloadURL, finalDir string) (Result, error) {
	parent := filepath.Dir(finalDir)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return Result{}, errdefs.Wrap(errdefs.TemplateExtractError, err, "cannot create cache directory")
	}

	zipTmp := filepath.Join(parent, key.ChecksumSHA256+".zip.tmp")
	defer func() {
		// Cleanup failures must not mask the primary error.
		_ = os.Remove(zipTmp)
	}()

	if err := s.fetcher.download(ctx, downloadURL, zipTmp); err != nil {
		return Result{}, err
	}

	actual, err := sha256File(zipTmp)
	if err != nil {
		return Result{}, errdefs.Wrap(errdefs.TemplateExtractError, err, "cannot hash downloaded archive")
	}
	if actual != key.ChecksumSHA256 {
		s.logger.Warn("template checksum mismatch",
			"key", key.String(),
			"expected", key.ChecksumSHA256,
			"actual", actual)
		return Result{}, errdefs.New(errdefs.TemplateChecksumMismatch, "archive checksum does not match expected value").
			WithDetail("expected", key.ChecksumSHA256).
			WithDetail("actual", actual)
	}

	staging := finalDir + ".tmp"
	if err := extractZip(zipTmp, staging); err != nil {
		_ = os.RemoveAll(staging)
		return Result{}, errdefs.Wrap(errdefs.TemplateExtractError, err, "cannot extract template archive")
	}

	if !entryPresent(staging) {
		_ = os.RemoveAll(staging)
		return Result{}, errdefs.New(errdefs.TemplateInvalid, "extracted template has no manifest.json").
			WithDetail("templateCode", key.TemplateCode).
			WithDetail("versionSemver", key.VersionSemver)
	}

	// Publish. The rename must complete before the flight returns so every
	// waiter observes the populated directory.
	if err := os.Rename(staging, finalDir); err != nil {
		if entryPresent(finalDir) {
			// Lost race with an external populator: prefer the existing
			// directory, discard our staging copy.
			_ = os.RemoveAll(staging)
			return Result{Dir: finalDir}, nil
		}
		_ = os.RemoveAll(staging)
		return Result{}, errdefs.Wrap(errdefs.TemplateExtractError, err, "cannot publish template directory")
	}

	s.logger.Info("template downloaded",
		"key", key.String(),
		"dir", finalDir)

	return Result{Dir: finalDir, Downloaded: true}, nil
}

// entryPresent reports whether a template directory is published: its
// manifest.json exists as a regular file.
func entryPresent(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, manifestName))
	return err == nil && info.Mode().IsRegular()
}

// sha256File computes the lowercase hex SHA-256 of a file, reading in
// 4 KiB blocks.
func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, checksumChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
