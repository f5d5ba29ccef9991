//go:build cgo && !nofitz

package external

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/dunamismax/pageflow/internal/domain"
	"github.com/dunamismax/pageflow/internal/pipeline"
	"github.com/gen2brain/go-fitz"
)

// FitzRenderer rasterizes PDF pages with MuPDF.
type FitzRenderer struct{}

func NewPageRenderer() pipeline.DocumentRenderer {
	return FitzRenderer{}
}

func (FitzRenderer) String() string {
	return "mupdf"
}

func (FitzRenderer) Open(ctx context.Context, data []byte) (pipeline.RenderableDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, &domain.DecodeError{Format: "pdf", Err: err}
	}
	return &fitzDocument{doc: doc}, nil
}

// fitzDocument serialises access; a MuPDF context is not safe for
// concurrent use.
type fitzDocument struct {
	mu  sync.Mutex
	doc *fitz.Document
}

func (d *fitzDocument) RenderPage(ctx context.Context, index, dpi int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if index < 0 || index >= d.doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range", index+1)
	}
	img, err := d.doc.ImageDPI(index, float64(dpi))
	if err != nil {
		return nil, &domain.DecodeError{Format: "pdf", Err: fmt.Errorf("page %d: %w", index+1, err)}
	}
	return img, nil
}

func (d *fitzDocument) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.doc.Close()
}
