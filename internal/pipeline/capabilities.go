package pipeline

import (
	"context"
	"fmt"
	"image"

	"github.com/dunamismax/pageflow/internal/domain"
)

const (
	CapabilityImageCodec       = "image-codec"
	CapabilityNextGenCodec     = "next-gen-image-codec"
	CapabilityNextGenEncoder   = "next-gen-image-encoder"
	CapabilityVectorRasterizer = "vector-rasterizer"
	CapabilityPageRenderer     = "document-page-renderer"
	CapabilityOfficeRenderer   = "office-renderer"
	CapabilityPDFCompressor    = "pdf-recompressor"
)

type EncodeOptions struct {
	// Quality is only honoured by lossy formats.
	Quality int
	DPI     int
}

// ImageCodec decodes raster and next-gen images and encodes canonical frames.
type ImageCodec interface {
	Name() string
	Decode(ctx context.Context, data []byte, format string) (image.Image, error)
	Encode(ctx context.Context, img image.Image, format domain.OutputFormat, opts EncodeOptions) ([]byte, error)
}

type VectorRasterizer interface {
	Rasterize(ctx context.Context, data []byte, dpi int) (image.Image, error)
}

type DocumentRenderer interface {
	Open(ctx context.Context, data []byte) (RenderableDocument, error)
}

// RenderableDocument is an opened multi-page document. Pages are zero-indexed.
type RenderableDocument interface {
	RenderPage(ctx context.Context, index, dpi int) (image.Image, error)
	Close() error
}

// OfficeConverter renders the office document at srcPath into a PDF inside
// outDir and returns the path of the produced file.
type OfficeConverter interface {
	ConvertToPDF(ctx context.Context, srcPath, outDir string) (string, error)
}

type CompressOptions struct {
	Tier      domain.Tier
	DPI       int
	Grayscale bool
}

type PDFCompressor interface {
	Compress(ctx context.Context, srcPath, dstPath string, opts CompressOptions) error
}

type CapabilityStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

// Unavailable stands in for a capability missing from the runtime. Every
// operation fails with a domain.CapabilityError.
type Unavailable struct {
	Capability string
	Reason     string
}

func (u Unavailable) err() error {
	return domain.NewCapabilityError(u.Capability)
}

func (u Unavailable) Name() string {
	return "unavailable"
}

func (u Unavailable) Decode(context.Context, []byte, string) (image.Image, error) {
	return nil, u.err()
}

func (u Unavailable) Encode(context.Context, image.Image, domain.OutputFormat, EncodeOptions) ([]byte, error) {
	return nil, u.err()
}

func (u Unavailable) Rasterize(context.Context, []byte, int) (image.Image, error) {
	return nil, u.err()
}

func (u Unavailable) Open(context.Context, []byte) (RenderableDocument, error) {
	return nil, u.err()
}

func (u Unavailable) ConvertToPDF(context.Context, string, string) (string, error) {
	return "", u.err()
}

func (u Unavailable) Compress(context.Context, string, string, CompressOptions) error {
	return u.err()
}

func statusOf(name string, capability any) CapabilityStatus {
	if u, ok := capability.(Unavailable); ok {
		return CapabilityStatus{Name: name, Available: false, Detail: u.Reason}
	}
	status := CapabilityStatus{Name: name, Available: true}
	switch c := capability.(type) {
	case ImageCodec:
		status.Detail = c.Name()
	case fmt.Stringer:
		status.Detail = c.String()
	}
	return status
}
