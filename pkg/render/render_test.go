package render

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-pipeline/pkg/errdefs"
	"image-pipeline/pkg/manifest"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// writePNG writes a solid-color PNG asset and returns its path.
func writePNG(t *testing.T, dir, name string, w, h int, c color.RGBA) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, solidImage(w, h, c)))
	require.NoError(t, f.Close())
	return path
}

var (
	red   = color.RGBA{R: 255, A: 255}
	green = color.RGBA{G: 255, A: 255}
	blue  = color.RGBA{B: 255, A: 255}
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// baseSpec returns a minimal spec: 100x100 canvas, white background, one
// full-canvas cover photo.
func baseSpec(t *testing.T) *manifest.RuntimeSpec {
	dir := t.TempDir()
	bg := writePNG(t, dir, "bg.png", 100, 100, white)
	return &manifest.RuntimeSpec{
		ManifestVersion: 1,
		TemplateCode:    "tpl_test",
		VersionSemver:   "1.0.0",
		Output:          manifest.Output{Width: 100, Height: 100, Format: "png"},
		Background:      manifest.Background{Path: bg},
		Photos: []manifest.Photo{
			{ID: "p", Source: manifest.SourceRaw, X: 0, Y: 0, W: 100, H: 100, Fit: manifest.FitCover},
		},
	}
}

func TestRenderCanvasSize(t *testing.T) {
	spec := baseSpec(t)
	spec.Output = manifest.Output{Width: 64, Height: 48, Format: "png"}
	spec.Photos[0].W, spec.Photos[0].H = 64, 48

	out, err := New(testLogger()).Render(spec, solidImage(10, 10, red), Artifacts{})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), out.Bounds())
}

func TestRenderDeterminism(t *testing.T) {
	spec := baseSpec(t)
	dir := t.TempDir()
	spec.Stickers = []manifest.Sticker{
		{ID: "s", Path: writePNG(t, dir, "s.png", 20, 20, green), X: 10, Y: 10, W: 30, H: 30, Rotate: 33, Opacity: 0.7},
	}
	raw := solidImage(80, 60, blue)

	engine := New(testLogger())
	first, err := engine.Render(spec, raw, Artifacts{})
	require.NoError(t, err)
	second, err := engine.Render(spec, raw, Artifacts{})
	require.NoError(t, err)

	assert.True(t, bytes.Equal(first.Pix, second.Pix), "identical inputs must produce identical bytes")
}

func TestRenderBackgroundScaledToCanvas(t *testing.T) {
	spec := baseSpec(t)
	dir := t.TempDir()
	// Tiny background, no layers covering the canvas center.
	spec.Background.Path = writePNG(t, dir, "tiny.png", 2, 2, green)
	spec.Photos[0] = manifest.Photo{ID: "p", Source: manifest.SourceRaw, X: 0, Y: 0, W: 10, H: 10, Fit: manifest.FitCover}

	out, err := New(testLogger()).Render(spec, solidImage(10, 10, red), Artifacts{})
	require.NoError(t, err)
	assert.Equal(t, green, out.RGBAAt(50, 50))
}

func TestRenderZOrder(t *testing.T) {
	dir := t.TempDir()
	greenPath := writePNG(t, dir, "green.png", 10, 10, green)
	bluePath := writePNG(t, dir, "blue.png", 10, 10, blue)

	render := func(zGreen, zBlue int) *image.RGBA {
		spec := baseSpec(t)
		spec.Photos[0].Z = -1
		spec.Stickers = []manifest.Sticker{
			{ID: "g", Path: greenPath, X: 20, Y: 20, W: 40, H: 40, Opacity: 1, Z: zGreen},
			{ID: "b", Path: bluePath, X: 20, Y: 20, W: 40, H: 40, Opacity: 1, Z: zBlue},
		}
		out, err := New(testLogger()).Render(spec, solidImage(100, 100, red), Artifacts{})
		require.NoError(t, err)
		return out
	}

	assert.Equal(t, blue, render(1, 2).RGBAAt(40, 40), "higher z renders on top")
	assert.Equal(t, green, render(2, 1).RGBAAt(40, 40), "z order inverts when swapped")
	// Equal z keeps declaration order: blue is declared second, wins.
	assert.Equal(t, blue, render(5, 5).RGBAAt(40, 40))
}

func TestRenderPhotoAboveEqualZSticker(t *testing.T) {
	dir := t.TempDir()
	spec := baseSpec(t)
	spec.Photos[0] = manifest.Photo{ID: "p", Source: manifest.SourceRaw, X: 20, Y: 20, W: 40, H: 40, Fit: manifest.FitCover, Z: 0}
	spec.Stickers = []manifest.Sticker{
		{ID: "s", Path: writePNG(t, dir, "s.png", 10, 10, green), X: 20, Y: 20, W: 40, H: 40, Opacity: 1, Z: 0},
	}

	out, err := New(testLogger()).Render(spec, solidImage(40, 40, blue), Artifacts{})
	require.NoError(t, err)
	// At equal z, photos precede stickers, so the sticker paints last.
	assert.Equal(t, green, out.RGBAAt(40, 40))
}

func TestCoverRect(t *testing.T) {
	// Wide source into a square box: crop left and right.
	assert.Equal(t, image.Rect(50, 0, 150, 100), coverRect(image.Rect(0, 0, 200, 100), 100, 100))
	// Tall source into a square box: crop top and bottom.
	assert.Equal(t, image.Rect(0, 50, 100, 150), coverRect(image.Rect(0, 0, 100, 200), 100, 100))
	// Matching aspect: whole source.
	assert.Equal(t, image.Rect(0, 0, 200, 100), coverRect(image.Rect(0, 0, 200, 100), 100, 50))
}

func TestContainRect(t *testing.T) {
	// Wide source letterboxed vertically inside the placement box.
	assert.Equal(t, image.Rect(10, 45, 110, 95), containRect(image.Rect(0, 0, 200, 100), 10, 20, 100, 100))
	// Tall source letterboxed horizontally.
	assert.Equal(t, image.Rect(35, 20, 85, 120), containRect(image.Rect(0, 0, 100, 200), 10, 20, 100, 100))
}

func TestRenderContainLetterboxStaysTransparent(t *testing.T) {
	dir := t.TempDir()
	spec := baseSpec(t)
	// 2x2 transparent background keeps the canvas fully transparent.
	spec.Background.Path = writePNG(t, dir, "bg.png", 2, 2, color.RGBA{})
	spec.Photos[0] = manifest.Photo{ID: "p", Source: manifest.SourceRaw, X: 0, Y: 0, W: 100, H: 100, Fit: manifest.FitContain}

	// A 200x100 raw contained in 100x100 occupies y in [25,75).
	out, err := New(testLogger()).Render(spec, solidImage(200, 100, red), Artifacts{})
	require.NoError(t, err)
	assert.Equal(t, red, out.RGBAAt(50, 50))
	assert.Equal(t, uint8(0), out.RGBAAt(50, 10).A, "letterbox band stays transparent")
	assert.Equal(t, uint8(0), out.RGBAAt(50, 90).A)
}

func TestRotateTile(t *testing.T) {
	t.Run("expands bounding box", func(t *testing.T) {
		out := rotateTile(solidImage(100, 50, red), 90)
		assert.Equal(t, image.Rect(0, 0, 50, 100), out.Bounds())

		out = rotateTile(solidImage(100, 100, red), 45)
		assert.Equal(t, image.Rect(0, 0, 142, 142), out.Bounds())
	})

	t.Run("positive is counter-clockwise", func(t *testing.T) {
		// Horizontal bar, left half red, right half blue.
		bar := solidImage(100, 20, red)
		draw.Draw(bar, image.Rect(50, 0, 100, 20), image.NewUniform(blue), image.Point{}, draw.Src)

		out := rotateTile(bar, 90)
		require.Equal(t, image.Rect(0, 0, 20, 100), out.Bounds())
		// Counter-clockwise sends the left end to the bottom.
		assert.Equal(t, red, out.RGBAAt(10, 90))
		assert.Equal(t, blue, out.RGBAAt(10, 10))
	})

	t.Run("corners exposed by expansion are transparent", func(t *testing.T) {
		out := rotateTile(solidImage(100, 100, red), 45)
		assert.Equal(t, uint8(0), out.RGBAAt(2, 2).A)
	})
}

func TestStickerOpacity(t *testing.T) {
	dir := t.TempDir()
	spec := baseSpec(t)
	spec.Photos[0].Z = -1
	black := color.RGBA{A: 255}
	spec.Stickers = []manifest.Sticker{
		{ID: "s", Path: writePNG(t, dir, "s.png", 10, 10, black), X: 0, Y: 0, W: 100, H: 100, Opacity: 0.5},
	}

	out, err := New(testLogger()).Render(spec, solidImage(100, 100, white), Artifacts{})
	require.NoError(t, err)

	got := out.RGBAAt(50, 50)
	// Half-opaque black over white lands mid-gray.
	assert.InDelta(t, 127, int(got.R), 1)
	assert.InDelta(t, 127, int(got.G), 1)
	assert.InDelta(t, 127, int(got.B), 1)
	assert.Equal(t, uint8(255), got.A)
}

func TestPhotoCutoutSource(t *testing.T) {
	spec := baseSpec(t)
	spec.Photos[0].Source = manifest.SourceCutout
	raw := solidImage(100, 100, red)
	cutout := solidImage(100, 100, green)

	engine := New(testLogger())

	out, err := engine.Render(spec, raw, Artifacts{})
	require.NoError(t, err)
	assert.Equal(t, red, out.RGBAAt(50, 50), "no cutout artifact falls back to raw")

	out, err = engine.Render(spec, raw, Artifacts{Cutout: cutout})
	require.NoError(t, err)
	assert.Equal(t, green, out.RGBAAt(50, 50), "cutout artifact used when supplied")
}

func TestRenderSensitiveToPlacement(t *testing.T) {
	raw := solidImage(80, 60, blue)
	engine := New(testLogger())

	spec := baseSpec(t)
	spec.Photos[0] = manifest.Photo{ID: "p", Source: manifest.SourceRaw, X: 10, Y: 10, W: 40, H: 40, Fit: manifest.FitCover}
	first, err := engine.Render(spec, raw, Artifacts{})
	require.NoError(t, err)

	spec.Photos[0].X++
	second, err := engine.Render(spec, raw, Artifacts{})
	require.NoError(t, err)

	assert.False(t, bytes.Equal(first.Pix, second.Pix), "moving a photo by one pixel changes the output")
}

func TestRenderMissingAssetsFail(t *testing.T) {
	t.Run("background", func(t *testing.T) {
		spec := baseSpec(t)
		spec.Background.Path = filepath.Join(t.TempDir(), "gone.png")

		_, err := New(testLogger()).Render(spec, solidImage(10, 10, red), Artifacts{})
		require.Error(t, err)
		assert.Equal(t, errdefs.RenderFailed, errdefs.GetCode(err))
		assert.False(t, errdefs.IsRetryable(err))
	})

	t.Run("sticker", func(t *testing.T) {
		spec := baseSpec(t)
		spec.Stickers = []manifest.Sticker{
			{ID: "s", Path: filepath.Join(t.TempDir(), "gone.png"), X: 0, Y: 0, W: 10, H: 10, Opacity: 1},
		}

		_, err := New(testLogger()).Render(spec, solidImage(10, 10, red), Artifacts{})
		require.Error(t, err)
		classified := errdefs.Convert(err)
		assert.Equal(t, errdefs.RenderFailed, classified.Code)
		assert.Equal(t, "s", classified.Detail["stickerId"])
	})
}
