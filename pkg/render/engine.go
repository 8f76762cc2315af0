// Package render composites a runtime spec and a raw photo into the final
// RGBA image. It is a pure function of its inputs: no downloads, no
// manifest parsing, no storage. Identical inputs produce identical output
// bytes.
package render

import (
	"image"
	"log/slog"
	"sort"

	"image-pipeline/pkg/errdefs"
	"image-pipeline/pkg/manifest"
)

// Artifacts carries optional precomputed inputs for a render. A nil Cutout
// means photos declared with source "cutout" fall back to the raw image.
type Artifacts struct {
	Cutout image.Image
}

// Engine renders runtime specs. Safe for concurrent use.
type Engine struct {
	logger *slog.Logger
}

// New creates a render engine.
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger.With("component", "render")}
}

// layer is one entry of the unified z-sorted render list.
type layer struct {
	z       int
	photo   *manifest.Photo
	sticker *manifest.Sticker
}

// Render composites the spec onto a fresh canvas and returns it.
//
// Order: background first, then all photos and stickers as one list sorted
// by z ascending; ties keep declaration order with photos ahead of
// stickers. All failures are RENDER_FAILED.
func (e *Engine) Render(spec *manifest.RuntimeSpec, raw image.Image, artifacts Artifacts) (*image.RGBA, error) {
	canvas := image.NewRGBA(image.Rect(0, 0, spec.Output.Width, spec.Output.Height))

	if err := e.renderBackground(canvas, spec.Background.Path); err != nil {
		return nil, errdefs.Wrap(errdefs.RenderFailed, err, "cannot render background").
			WithDetail("path", spec.Background.Path)
	}

	layers := make([]layer, 0, len(spec.Photos)+len(spec.Stickers))
	for i := range spec.Photos {
		layers = append(layers, layer{z: spec.Photos[i].Z, photo: &spec.Photos[i]})
	}
	for i := range spec.Stickers {
		layers = append(layers, layer{z: spec.Stickers[i].Z, sticker: &spec.Stickers[i]})
	}
	sort.SliceStable(layers, func(i, j int) bool { return layers[i].z < layers[j].z })

	for _, l := range layers {
		if l.photo != nil {
			e.renderPhoto(canvas, l.photo, raw, artifacts)
			continue
		}
		if err := e.renderSticker(canvas, l.sticker); err != nil {
			return nil, errdefs.Wrap(errdefs.RenderFailed, err, "cannot render sticker").
				WithDetail("stickerId", l.sticker.ID).
				WithDetail("path", l.sticker.Path)
		}
	}

	return canvas, nil
}

// renderBackground loads the background and scales it over the full canvas.
func (e *Engine) renderBackground(canvas *image.RGBA, path string) error {
	background, err := loadImage(path)
	if err != nil {
		return err
	}
	scaleInto(canvas, canvas.Bounds(), background, background.Bounds())
	return nil
}

// renderPhoto places the raw image (or the cutout artifact when declared
// and available) into the photo's target box using its fit mode.
func (e *Engine) renderPhoto(canvas *image.RGBA, photo *manifest.Photo, raw image.Image, artifacts Artifacts) {
	src := raw
	if photo.Source == manifest.SourceCutout && artifacts.Cutout != nil {
		src = artifacts.Cutout
	}

	switch photo.Fit {
	case manifest.FitContain:
		dst := containRect(src.Bounds(), photo.X, photo.Y, photo.W, photo.H)
		scaleInto(canvas, dst, src, src.Bounds())
	default:
		dst := image.Rect(photo.X, photo.Y, photo.X+photo.W, photo.Y+photo.H)
		scaleInto(canvas, dst, src, coverRect(src.Bounds(), photo.W, photo.H))
	}
}

// renderSticker loads, resizes, rotates and composites one sticker.
func (e *Engine) renderSticker(canvas *image.RGBA, sticker *manifest.Sticker) error {
	img, err := loadImage(sticker.Path)
	if err != nil {
		return err
	}

	tile := resizeTile(img, sticker.W, sticker.H)
	if sticker.Rotate != 0 {
		tile = rotateTile(tile, sticker.Rotate)
	}
	compositeTile(canvas, tile, sticker.X, sticker.Y, sticker.Opacity)
	return nil
}
