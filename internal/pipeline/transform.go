package pipeline

import (
	"image"

	"github.com/dunamismax/pageflow/internal/domain"
	"golang.org/x/image/draw"
)

// Transform resizes and then optionally converts to grayscale. The input is
// never modified. Applying it twice with the same arguments yields the same
// pixels as applying it once.
func Transform(img *CanonicalImage, grayscale bool, resize *domain.Size) *CanonicalImage {
	out := &CanonicalImage{
		Frames: make([]*image.NRGBA, 0, len(img.Frames)),
		DPI:    img.DPI,
		Mode:   img.Mode,
	}

	for _, frame := range img.Frames {
		f := frame
		if resize != nil && (f.Rect.Dx() != resize.Width || f.Rect.Dy() != resize.Height) {
			f = resizeFrame(f, resize.Width, resize.Height)
		}
		if grayscale {
			f = grayscaleFrame(f)
		}
		out.Frames = append(out.Frames, f)
	}
	if grayscale {
		out.Mode = ColorGray
	}
	return out
}

func resizeFrame(src *image.NRGBA, width, height int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, max(1, width), max(1, height)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// grayscaleFrame writes 8-bit Rec. 601 luma into every colour channel and
// keeps alpha. Luma of an already gray pixel is the pixel itself.
func grayscaleFrame(src *image.NRGBA) *image.NRGBA {
	dst := image.NewNRGBA(src.Rect)
	width := src.Rect.Dx()
	for y := 0; y < src.Rect.Dy(); y++ {
		s := src.Pix[y*src.Stride : y*src.Stride+width*4]
		d := dst.Pix[y*dst.Stride : y*dst.Stride+width*4]
		for i := 0; i < len(s); i += 4 {
			r, g, b := uint32(s[i]), uint32(s[i+1]), uint32(s[i+2])
			luma := uint8((19595*r + 38470*g + 7471*b + 1<<15) >> 16)
			d[i], d[i+1], d[i+2], d[i+3] = luma, luma, luma, s[i+3]
		}
	}
	return dst
}
