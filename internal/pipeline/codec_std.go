package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"

	"github.com/dunamismax/pageflow/internal/domain"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// stdCodec is the pure Go codec. It reads png, jpeg, gif, bmp, tiff and webp
// and writes png, jpeg, tiff and bmp.
type stdCodec struct{}

func (stdCodec) Name() string {
	return "stdlib"
}

func (stdCodec) Decode(ctx context.Context, data []byte, format string) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	switch format {
	case "heic", "heif", "avif":
		return nil, domain.NewCapabilityError(CapabilityNextGenCodec)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (stdCodec) Encode(ctx context.Context, img image.Image, format domain.OutputFormat, opts EncodeOptions) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	switch format {
	case domain.FormatJPEG:
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: clampQuality(opts.Quality)}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case domain.FormatPNG:
		encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
		if err := encoder.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case domain.FormatTIFF:
		if err := tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true}); err != nil {
			return nil, fmt.Errorf("encode tiff: %w", err)
		}
	case domain.FormatBMP:
		if err := bmp.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode bmp: %w", err)
		}
	case domain.FormatWebP, domain.FormatAVIF, domain.FormatHEIF, domain.FormatHEIC:
		return nil, domain.NewCapabilityError(CapabilityNextGenEncoder)
	default:
		return nil, fmt.Errorf("%w: output format %s", domain.ErrUnsupportedFormat, format)
	}

	return buf.Bytes(), nil
}

// clampQuality maps 0..100 onto the 1..100 range encoders accept.
func clampQuality(q int) int {
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}
