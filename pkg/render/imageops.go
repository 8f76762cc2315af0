package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// loadImage decodes the raster at path. PNG and JPEG decoders are
// registered; anything else fails at decode.
func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// scaleInto bilinearly scales src's srcRect into the dst rectangle,
// alpha-compositing over existing content.
func scaleInto(dst draw.Image, dstRect image.Rectangle, src image.Image, srcRect image.Rectangle) {
	xdraw.BiLinear.Scale(dst, dstRect, src, srcRect, xdraw.Over, nil)
}

// coverRect returns the centered sub-rectangle of src whose aspect ratio
// matches w:h. Scaling that sub-rectangle into w x h fills the target
// completely, cropping the overflow.
func coverRect(src image.Rectangle, w, h int) image.Rectangle {
	sw, sh := float64(src.Dx()), float64(src.Dy())
	scale := math.Max(float64(w)/sw, float64(h)/sh)

	visW := float64(w) / scale
	visH := float64(h) / scale
	x0 := float64(src.Min.X) + (sw-visW)/2
	y0 := float64(src.Min.Y) + (sh-visH)/2

	return image.Rect(
		int(math.Round(x0)),
		int(math.Round(y0)),
		int(math.Round(x0+visW)),
		int(math.Round(y0+visH)),
	)
}

// containRect returns the destination rectangle, centered inside the
// placement box at (x,y) with size w x h, that holds the whole source
// without cropping. The uncovered border stays transparent.
func containRect(src image.Rectangle, x, y, w, h int) image.Rectangle {
	sw, sh := float64(src.Dx()), float64(src.Dy())
	scale := math.Min(float64(w)/sw, float64(h)/sh)

	dw := int(math.Round(sw * scale))
	dh := int(math.Round(sh * scale))
	dx := x + (w-dw)/2
	dy := y + (h-dh)/2
	return image.Rect(dx, dy, dx+dw, dy+dh)
}

// resizeTile bilinearly scales src into a fresh w x h RGBA tile.
func resizeTile(src image.Image, w, h int) *image.RGBA {
	tile := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.BiLinear.Scale(tile, tile.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return tile
}

// rotateTile rotates src counter-clockwise by degrees around its center,
// expanding the result to the rotated bounding box. The corners exposed by
// the expansion stay transparent.
func rotateTile(src *image.RGBA, degrees float64) *image.RGBA {
	radians := degrees * math.Pi / 180
	sin, cos := math.Sincos(radians)

	sw := float64(src.Bounds().Dx())
	sh := float64(src.Bounds().Dy())
	nw := int(math.Ceil(math.Abs(sw*cos) + math.Abs(sh*sin)))
	nh := int(math.Ceil(math.Abs(sw*sin) + math.Abs(sh*cos)))

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))

	// Rotate about the source center, then recenter in the expanded box.
	// Screen coordinates grow downward, so a visually counter-clockwise
	// rotation uses the transposed rotation matrix.
	cx, cy := sw/2, sh/2
	ncx, ncy := float64(nw)/2, float64(nh)/2
	s2d := f64.Aff3{
		cos, sin, ncx - cos*cx - sin*cy,
		-sin, cos, ncy + sin*cx - cos*cy,
	}
	xdraw.BiLinear.Transform(dst, s2d, src, src.Bounds(), xdraw.Over, nil)
	return dst
}

// compositeTile alpha-composites tile onto dst at (x,y), scaling the tile's
// alpha by opacity.
func compositeTile(dst *image.RGBA, tile image.Image, x, y int, opacity float64) {
	rect := tile.Bounds().Add(image.Pt(x, y)).Sub(tile.Bounds().Min)
	if opacity >= 1 {
		draw.Draw(dst, rect, tile, tile.Bounds().Min, draw.Over)
		return
	}
	mask := image.NewUniform(color.Alpha{A: uint8(math.Round(opacity * 255))})
	draw.DrawMask(dst, rect, tile, tile.Bounds().Min, mask, image.Point{}, draw.Over)
}
