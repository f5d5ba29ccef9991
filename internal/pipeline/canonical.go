package pipeline

import (
	"image"
	"image/color"
	"image/draw"
)

type ColorMode string

const (
	ColorRGB  ColorMode = "rgb"
	ColorRGBA ColorMode = "rgba"
	ColorGray ColorMode = "gray"
)

// CanonicalImage is the in-memory raster form shared by every decode and
// encode path. Frames are always tightly packed NRGBA buffers anchored at the
// origin.
type CanonicalImage struct {
	Frames []*image.NRGBA
	DPI    int
	Mode   ColorMode
}

func newCanonicalImage(src image.Image, dpi int) *CanonicalImage {
	return &CanonicalImage{
		Frames: []*image.NRGBA{toNRGBA(src)},
		DPI:    dpi,
		Mode:   colorModeOf(src),
	}
}

func (c *CanonicalImage) First() *image.NRGBA {
	if c == nil || len(c.Frames) == 0 {
		return nil
	}
	return c.Frames[0]
}

func toNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

func colorModeOf(src image.Image) ColorMode {
	switch src.ColorModel() {
	case color.GrayModel, color.Gray16Model:
		return ColorGray
	}
	if o, ok := src.(interface{ Opaque() bool }); ok && !o.Opaque() {
		return ColorRGBA
	}
	return ColorRGB
}

// flattenOnWhite composites src over an opaque white background.
func flattenOnWhite(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	return dst
}

func cloneFrame(src *image.NRGBA) *image.NRGBA {
	dst := image.NewNRGBA(src.Rect)
	copy(dst.Pix, src.Pix)
	return dst
}
