//go:build govips && cgo

package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/dunamismax/pageflow/internal/domain"
)

// govipsCodec adds next-gen decode and encode on top of stdCodec. Formats the
// pure Go codec handles well stay on the fallback.
type govipsCodec struct {
	fallback stdCodec
}

func (govipsCodec) Name() string {
	return "govips"
}

func (c govipsCodec) Decode(ctx context.Context, data []byte, format string) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	switch format {
	case "png", "jpg", "jpeg", "bmp":
		return c.fallback.Decode(ctx, data, format)
	}

	img, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("load image: %w", err)
	}
	defer img.Close()

	if err := img.ToColorSpace(vips.InterpretationSRGB); err != nil {
		return nil, fmt.Errorf("convert to srgb: %w", err)
	}
	return exportVipsImage(img)
}

func (c govipsCodec) Encode(ctx context.Context, src image.Image, format domain.OutputFormat, opts EncodeOptions) ([]byte, error) {
	switch format {
	case domain.FormatPNG, domain.FormatBMP:
		return c.fallback.Encode(ctx, src, format, opts)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var staged bytes.Buffer
	if err := png.Encode(&staged, src); err != nil {
		return nil, fmt.Errorf("stage image: %w", err)
	}
	img, err := vips.NewImageFromBuffer(staged.Bytes())
	if err != nil {
		return nil, fmt.Errorf("load staged image: %w", err)
	}
	defer img.Close()

	quality := clampQuality(opts.Quality)
	switch format {
	case domain.FormatJPEG:
		params := vips.NewJpegExportParams()
		params.Quality = quality
		data, _, err := img.ExportJpeg(params)
		if err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return data, nil
	case domain.FormatWebP:
		params := vips.NewWebpExportParams()
		params.Quality = quality
		data, _, err := img.ExportWebp(params)
		if err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
		return data, nil
	case domain.FormatAVIF:
		params := vips.NewAvifExportParams()
		params.Quality = quality
		data, _, err := img.ExportAvif(params)
		if err != nil {
			return nil, fmt.Errorf("encode avif: %w", err)
		}
		return data, nil
	case domain.FormatHEIF, domain.FormatHEIC:
		params := vips.NewHeifExportParams()
		params.Quality = quality
		data, _, err := img.ExportHeif(params)
		if err != nil {
			return nil, fmt.Errorf("encode heif: %w", err)
		}
		return data, nil
	case domain.FormatTIFF:
		data, _, err := img.ExportTiff(vips.NewTiffExportParams())
		if err != nil {
			return nil, fmt.Errorf("encode tiff: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("%w: output format %s", domain.ErrUnsupportedFormat, format)
	}
}

// govipsRasterizer renders SVG through librsvg at the requested density.
type govipsRasterizer struct{}

func (govipsRasterizer) String() string {
	return "librsvg"
}

func (govipsRasterizer) Rasterize(ctx context.Context, data []byte, dpi int) (image.Image, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	params := vips.NewImportParams()
	params.Density.Set(dpi)
	img, err := vips.LoadImageFromBuffer(data, params)
	if err != nil {
		return nil, fmt.Errorf("rasterize svg: %w", err)
	}
	defer img.Close()

	return exportVipsImage(img)
}

func exportVipsImage(img *vips.ImageRef) (image.Image, error) {
	data, _, err := img.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, fmt.Errorf("export decoded image: %w", err)
	}
	out, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("read decoded image: %w", err)
	}
	return out, nil
}
