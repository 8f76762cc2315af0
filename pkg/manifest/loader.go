package manifest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"image-pipeline/pkg/errdefs"
)

const manifestName = "manifest.json"

// Loader reads and resolves the manifest of one template directory.
type Loader struct {
	templateDir string
	logger      *slog.Logger
}

// NewLoader creates a loader for the given extracted template directory.
// The directory is made absolute so every path in the resulting
// RuntimeSpec is absolute too.
func NewLoader(templateDir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(templateDir)
	if err != nil {
		abs = templateDir
	}
	return &Loader{
		templateDir: abs,
		logger:      logger.With("component", "manifest"),
	}
}

// TemplateDir returns the absolute template directory this loader reads.
func (l *Loader) TemplateDir() string {
	return l.templateDir
}

// Load reads and parses manifest.json.
//
// A missing or unreadable file and malformed JSON map to
// MANIFEST_LOAD_ERROR; JSON that parses but has a wrong type for a known
// field maps to MANIFEST_INVALID naming the offending field.
func (l *Loader) Load() (*Document, error) {
	path := filepath.Join(l.templateDir, manifestName)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.ManifestLoadError, err, "cannot read manifest").
			WithDetail("path", path)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, errdefs.Newf(errdefs.ManifestInvalid, "field %s has wrong type: want %s, got %s",
				typeErr.Field, typeErr.Type, typeErr.Value).
				WithDetail("field", typeErr.Field)
		}
		loadErr := errdefs.Wrap(errdefs.ManifestLoadError, err, "manifest is not valid JSON").
			WithDetail("path", path)
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			loadErr = loadErr.WithDetail("offset", syntaxErr.Offset)
		}
		return nil, loadErr
	}

	return &doc, nil
}

// Resolve runs the full manifest pipeline: load, validate, normalize,
// check asset existence. On success the returned RuntimeSpec is ready for
// rendering.
func (l *Loader) Resolve() (*RuntimeSpec, error) {
	doc, err := l.Load()
	if err != nil {
		return nil, err
	}
	if err := Validate(doc); err != nil {
		return nil, err
	}
	spec := l.RuntimeSpec(doc)
	if err := ValidateAssets(spec); err != nil {
		return nil, err
	}
	l.logger.Debug("manifest resolved",
		"templateCode", spec.TemplateCode,
		"versionSemver", spec.VersionSemver,
		"photos", len(spec.Photos),
		"stickers", len(spec.Stickers))
	return spec, nil
}
