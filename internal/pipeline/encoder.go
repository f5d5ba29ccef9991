package pipeline

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/jung-kurt/gofpdf"
)

// assemblePDF places one frame per page in order. Each page measures the
// frame's pixel size at dpi, so a 144x72 frame at 72 dpi gives a 144x72 pt
// page. Opaque frames embed as JPEG at the given quality; frames with alpha
// embed as PNG.
func assemblePDF(frames []*image.NRGBA, dpi, quality int) ([]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("assemble pdf: no frames")
	}
	if dpi <= 0 {
		dpi = DefaultImageDPI
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           pageSize(frames[0], dpi),
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCompression(true)

	for i, frame := range frames {
		size := pageSize(frame, dpi)
		pdf.AddPageFormat("P", size)

		var buf bytes.Buffer
		opts := gofpdf.ImageOptions{ImageType: "JPG"}
		if frame.Opaque() {
			if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: clampQuality(quality)}); err != nil {
				return nil, fmt.Errorf("encode page %d: %w", i+1, err)
			}
		} else {
			opts.ImageType = "PNG"
			if err := png.Encode(&buf, frame); err != nil {
				return nil, fmt.Errorf("encode page %d: %w", i+1, err)
			}
		}

		name := fmt.Sprintf("page-%d", i+1)
		pdf.RegisterImageOptionsReader(name, opts, &buf)
		pdf.ImageOptions(name, 0, 0, size.Wd, size.Ht, false, opts, 0, "")
		if err := pdf.Error(); err != nil {
			return nil, fmt.Errorf("place page %d: %w", i+1, err)
		}
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return out.Bytes(), nil
}

func pageSize(frame *image.NRGBA, dpi int) gofpdf.SizeType {
	scale := 72 / float64(dpi)
	return gofpdf.SizeType{
		Wd: float64(frame.Rect.Dx()) * scale,
		Ht: float64(frame.Rect.Dy()) * scale,
	}
}
