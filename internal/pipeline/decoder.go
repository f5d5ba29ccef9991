package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/dunamismax/pageflow/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Decoded holds exactly one of Image or Document.
type Decoded struct {
	Item     domain.ClassifiedItem
	Image    *CanonicalImage
	Document *DocumentHandle
}

type decoder struct {
	codec  ImageCodec
	vector VectorRasterizer
}

// Decode turns one classified item into its canonical form. dpi is the
// rasterization density for vector input.
func (d decoder) Decode(ctx context.Context, item domain.ClassifiedItem, dpi int) (Decoded, error) {
	out := Decoded{Item: item}

	switch item.Category {
	case domain.CategoryPDF:
		doc, err := OpenDocument(item.Filename, item.Data)
		if err != nil {
			return Decoded{}, err
		}
		out.Document = doc
	case domain.CategoryVector:
		img, err := d.vector.Rasterize(ctx, item.Data, dpi)
		if err != nil {
			return Decoded{}, decodeFailure(item, err)
		}
		out.Image = &CanonicalImage{
			Frames: []*image.NRGBA{flattenOnWhite(img)},
			DPI:    dpi,
			Mode:   ColorRGB,
		}
	case domain.CategoryRaster, domain.CategoryNextGen:
		img, err := d.codec.Decode(ctx, item.Data, item.Extension)
		if err != nil {
			return Decoded{}, decodeFailure(item, err)
		}
		out.Image = newCanonicalImage(img, dpi)
	case domain.CategoryOffice:
		return Decoded{}, fmt.Errorf("office document %s must be converted before decoding", item.Filename)
	default:
		return Decoded{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, item.Filename)
	}

	return out, nil
}

// decodeFailure keeps capability and cancellation errors intact. Content the
// generic fallback cannot read is an unsupported format; content behind a
// known extension that fails to parse is a decode error.
func decodeFailure(item domain.ClassifiedItem, err error) error {
	switch {
	case errors.Is(err, domain.ErrCapabilityUnavailable),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	case !knownExtension(item.Extension):
		return fmt.Errorf("%w: %s: %v", domain.ErrUnsupportedFormat, item.Filename, err)
	default:
		return &domain.DecodeError{Format: item.Extension, Err: fmt.Errorf("%s: %w", item.Filename, err)}
	}
}

// decodeAll decodes items concurrently and returns results in input order.
// Every item is attempted so that, when several fail, the error of the
// lowest-indexed item is reported regardless of scheduling.
func decodeAll(ctx context.Context, d decoder, items []domain.ClassifiedItem, dpi, limit int) ([]Decoded, error) {
	results := make([]Decoded, len(items))
	errs := make([]error, len(items))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, item := range items {
		g.Go(func() error {
			decoded, err := d.Decode(ctx, item, dpi)
			if err != nil {
				errs[i] = err
				return err
			}
			results[i] = decoded
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, itemErr := range errs {
			if itemErr != nil {
				return nil, itemErr
			}
		}
		return nil, err
	}
	return results, nil
}
