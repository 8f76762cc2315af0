package manifest

import (
	"os"
	"path/filepath"
	"strings"

	"image-pipeline/pkg/errdefs"
)

// RuntimeSpec normalizes a validated document: defaults are filled in and
// every asset reference becomes an absolute path under the template
// directory. Must only be called after Validate has accepted the document.
func (l *Loader) RuntimeSpec(doc *Document) *RuntimeSpec {
	basePath := DefaultBasePath
	if doc.Assets != nil && doc.Assets.BasePath != nil {
		basePath = *doc.Assets.BasePath
	}

	spec := &RuntimeSpec{
		ManifestVersion: *doc.ManifestVersion,
		TemplateCode:    *doc.TemplateCode,
		VersionSemver:   *doc.VersionSemver,
		Output: Output{
			Width:  *doc.Output.Width,
			Height: *doc.Output.Height,
			Format: DefaultFormat,
		},
		Background: Background{
			Path: filepath.Join(l.templateDir, basePath, *doc.Compose.Background),
		},
		Photos:   make([]Photo, 0, len(doc.Compose.Photos)),
		Stickers: make([]Sticker, 0, len(doc.Compose.Stickers)),
	}
	if doc.Output.Format != nil {
		spec.Output.Format = *doc.Output.Format
	}

	for _, p := range doc.Compose.Photos {
		photo := Photo{
			ID:     *p.ID,
			Source: *p.Source,
			X:      *p.X,
			Y:      *p.Y,
			W:      *p.W,
			H:      *p.H,
			Fit:    DefaultFit,
		}
		if p.Fit != nil {
			photo.Fit = *p.Fit
		}
		if p.Z != nil {
			photo.Z = *p.Z
		}
		spec.Photos = append(spec.Photos, photo)
	}

	for _, s := range doc.Compose.Stickers {
		sticker := Sticker{
			ID:      *s.ID,
			Path:    l.stickerPath(basePath, *s.Src),
			X:       *s.X,
			Y:       *s.Y,
			W:       *s.W,
			H:       *s.H,
			Opacity: 1.0,
		}
		if s.Rotate != nil {
			sticker.Rotate = *s.Rotate
		}
		if s.Opacity != nil {
			sticker.Opacity = *s.Opacity
		}
		if s.Z != nil {
			sticker.Z = *s.Z
		}
		spec.Stickers = append(spec.Stickers, sticker)
	}

	return spec
}

// stickerPath resolves a sticker src. A src already prefixed with the
// conventional "assets/" directory is taken relative to the template root;
// anything else is relative to the declared base path.
func (l *Loader) stickerPath(basePath, src string) string {
	if strings.HasPrefix(src, DefaultBasePath+"/") {
		return filepath.Join(l.templateDir, src)
	}
	return filepath.Join(l.templateDir, basePath, src)
}

// ValidateAssets confirms every file the spec references exists as a
// regular file. The first missing asset fails with ASSET_NOT_FOUND carrying
// the absolute path, and the sticker id when a sticker is at fault.
func ValidateAssets(spec *RuntimeSpec) error {
	if !fileExists(spec.Background.Path) {
		return errdefs.New(errdefs.AssetNotFound, "background asset not found").
			WithDetail("path", spec.Background.Path)
	}
	for _, sticker := range spec.Stickers {
		if !fileExists(sticker.Path) {
			return errdefs.New(errdefs.AssetNotFound, "sticker asset not found").
				WithDetail("path", sticker.Path).
				WithDetail("stickerId", sticker.ID)
		}
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
