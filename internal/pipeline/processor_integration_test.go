package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/dunamismax/pageflow/internal/domain"
	"github.com/jung-kurt/gofpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// stripeRenderer renders page i as a (10+i)x20 image so page order is
// visible in the output dimensions.
type stripeRenderer struct{}

func (stripeRenderer) Open(_ context.Context, data []byte) (RenderableDocument, error) {
	return stripeDocument{}, nil
}

type stripeDocument struct{}

func (stripeDocument) RenderPage(_ context.Context, index, _ int) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, 10+index, 20))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	return img, nil
}

func (stripeDocument) Close() error { return nil }

type fakeOffice struct {
	mu    sync.Mutex
	pages int
	seen  []string
}

func (f *fakeOffice) ConvertToPDF(_ context.Context, srcPath, outDir string) (string, error) {
	f.mu.Lock()
	f.seen = append(f.seen, srcPath)
	f.mu.Unlock()

	out := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))+".pdf")
	if err := os.WriteFile(out, buildPDF(f.pages), 0o600); err != nil {
		return "", err
	}
	return out, nil
}

type copyCompressor struct {
	opts  CompressOptions
	input []byte
}

func (c *copyCompressor) Compress(_ context.Context, src, dst string, opts CompressOptions) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	c.opts = opts
	c.input = data
	return os.WriteFile(dst, data, 0o600)
}

func newTestProcessor(t *testing.T, opts Options) *Processor {
	t.Helper()
	if opts.Codec == nil {
		opts.Codec = stdCodec{}
	}
	if opts.TempDir == "" {
		opts.TempDir = t.TempDir()
	}
	return NewProcessor(opts)
}

func TestProcessorImageToImage(t *testing.T) {
	p := newTestProcessor(t, Options{})
	req := domain.ConversionRequest{OutputFormat: domain.FormatPNG, Grayscale: true, Resize: &domain.Size{Width: 30, Height: 15}}

	result, err := p.Convert(context.Background(), []domain.UploadItem{
		{Filename: "first.png", Data: buildPNG(t, 120, 60)},
		{Filename: "second.png", Data: buildPNG(t, 10, 10)},
	}, req)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	if result.Plan.Route != domain.RouteImageToImage {
		t.Fatalf("expected image_to_image, got %s", result.Plan.Route)
	}
	if result.Filename != "converted.png" || result.MIMEType != "image/png" || result.Archive {
		t.Fatalf("unexpected result metadata %+v", result)
	}

	img, err := png.Decode(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 30 || b.Dy() != 15 {
		t.Fatalf("expected 30x15 output, got %dx%d", b.Dx(), b.Dy())
	}
	r, g, b, _ := img.At(7, 7).RGBA()
	if r != g || g != b {
		t.Fatalf("expected gray pixel, got %d %d %d", r, g, b)
	}
}

func TestProcessorImagesToPDF(t *testing.T) {
	p := newTestProcessor(t, Options{})

	result, err := p.Convert(context.Background(), []domain.UploadItem{
		{Filename: "a.png", Data: buildPNG(t, 144, 72)},
		{Filename: "b.png", Data: buildPNG(t, 72, 144)},
	}, domain.NewConversionRequest())
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if result.Filename != "converted.pdf" || result.MIMEType != "application/pdf" {
		t.Fatalf("unexpected result metadata %+v", result)
	}

	dims, err := api.PageDims(bytes.NewReader(result.Data), pdfConfig())
	if err != nil {
		t.Fatalf("read page dims: %v", err)
	}
	if len(dims) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(dims))
	}
	if dims[0].Width != 144 || dims[0].Height != 72 {
		t.Fatalf("expected first page 144x72 pt, got %vx%v", dims[0].Width, dims[0].Height)
	}
	if dims[1].Width != 72 || dims[1].Height != 144 {
		t.Fatalf("expected second page 72x144 pt, got %vx%v", dims[1].Width, dims[1].Height)
	}
}

func TestProcessorPDFToImageArchive(t *testing.T) {
	p := newTestProcessor(t, Options{Renderer: stripeRenderer{}})

	result, err := p.Convert(context.Background(), []domain.UploadItem{
		{Filename: "three.pdf", Data: buildPDF(3)},
	}, domain.ConversionRequest{OutputFormat: domain.FormatPNG, Quality: 80})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !result.Archive || result.Filename != "converted_images.zip" || result.MIMEType != "application/zip" {
		t.Fatalf("unexpected result metadata %+v", result)
	}

	zr, err := zip.NewReader(bytes.NewReader(result.Data), int64(len(result.Data)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(zr.File))
	}
	for i, f := range zr.File {
		want := fmt.Sprintf("page_%d.png", i+1)
		if f.Name != want {
			t.Fatalf("entry %d: expected %s, got %s", i, want, f.Name)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry: %v", err)
		}
		img, err := png.Decode(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("decode entry: %v", err)
		}
		if got := img.Bounds().Dx(); got != 10+i {
			t.Fatalf("entry %d: expected width %d, got %d", i, 10+i, got)
		}
	}
}

func TestProcessorOfficeToImage(t *testing.T) {
	tmp := t.TempDir()
	office := &fakeOffice{pages: 1}
	p := newTestProcessor(t, Options{Renderer: stripeRenderer{}, Office: office, TempDir: tmp})

	result, err := p.Convert(context.Background(), []domain.UploadItem{
		{Filename: "letter.docx", Data: []byte("not really a docx")},
	}, domain.ConversionRequest{OutputFormat: domain.FormatPNG})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	if result.Plan.Route != domain.RouteOfficeToPDFThenRoute || result.Plan.Then != domain.RoutePDFToImage {
		t.Fatalf("unexpected plan %+v", result.Plan)
	}
	if result.Archive || result.Filename != "converted.png" {
		t.Fatalf("expected a single png, got %+v", result)
	}
	if len(office.seen) != 1 {
		t.Fatalf("expected one office conversion, got %d", len(office.seen))
	}
	if _, err := os.Stat(office.seen[0]); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected workspace file to be removed, stat err=%v", err)
	}
	entries, err := os.ReadDir(tmp)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty temp dir, found %d entries", len(entries))
	}
}

func TestProcessorSkipsOfficeWhenAnotherRouteMatches(t *testing.T) {
	t.Run("image output", func(t *testing.T) {
		office := &fakeOffice{pages: 1}
		p := newTestProcessor(t, Options{Office: office})

		result, err := p.Convert(context.Background(), []domain.UploadItem{
			{Filename: "letter.docx", Data: []byte("not really a docx")},
			{Filename: "photo.png", Data: buildPNG(t, 12, 6)},
		}, domain.ConversionRequest{OutputFormat: domain.FormatPNG})
		if err != nil {
			t.Fatalf("convert: %v", err)
		}
		if result.Plan.Route != domain.RouteImageToImage {
			t.Fatalf("expected image_to_image, got %s", result.Plan.Route)
		}
		if len(office.seen) != 0 {
			t.Fatalf("expected office converter to be skipped, got %d calls", len(office.seen))
		}
	})

	t.Run("pdf output without office support", func(t *testing.T) {
		compressor := &copyCompressor{}
		p := newTestProcessor(t, Options{Compressor: compressor})

		result, err := p.Convert(context.Background(), []domain.UploadItem{
			{Filename: "a.pdf", Data: buildPDF(2)},
			{Filename: "b.docx", Data: []byte("x")},
		}, domain.ConversionRequest{OutputFormat: domain.FormatPDF, Quality: 90})
		if err != nil {
			t.Fatalf("convert: %v", err)
		}
		if result.Plan.Route != domain.RoutePDFRecompress {
			t.Fatalf("expected pdf_recompress, got %s", result.Plan.Route)
		}
		pages, err := api.PageCount(bytes.NewReader(compressor.input), pdfConfig())
		if err != nil {
			t.Fatalf("count pages: %v", err)
		}
		if pages != 2 {
			t.Fatalf("expected 2 pages, got %d", pages)
		}
	})
}

func TestProcessorRecompressMergesInOrder(t *testing.T) {
	compressor := &copyCompressor{}
	p := newTestProcessor(t, Options{Compressor: compressor})

	result, err := p.Convert(context.Background(), []domain.UploadItem{
		{Filename: "a.pdf", Data: buildPDF(2)},
		{Filename: "b.pdf", Data: buildPDF(1)},
	}, domain.ConversionRequest{OutputFormat: domain.FormatPDF, Quality: 20, Grayscale: true})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	if result.Filename != "compressed.pdf" {
		t.Fatalf("expected compressed.pdf, got %s", result.Filename)
	}
	if compressor.opts.Tier != domain.TierScreen || compressor.opts.DPI != 72 || !compressor.opts.Grayscale {
		t.Fatalf("unexpected compress options %+v", compressor.opts)
	}
	pages, err := api.PageCount(bytes.NewReader(compressor.input), pdfConfig())
	if err != nil {
		t.Fatalf("count merged pages: %v", err)
	}
	if pages != 3 {
		t.Fatalf("expected 3 merged pages, got %d", pages)
	}
}

func TestProcessorErrors(t *testing.T) {
	p := newTestProcessor(t, Options{})
	ctx := context.Background()

	tests := []struct {
		name  string
		items []domain.UploadItem
		req   domain.ConversionRequest
		want  error
	}{
		{name: "no files", req: domain.NewConversionRequest(), want: domain.ErrNoFilesUploaded},
		{
			name:  "width only resize",
			items: []domain.UploadItem{{Filename: "a.png", Data: buildPNG(t, 4, 4)}},
			req:   domain.ConversionRequest{OutputFormat: domain.FormatPNG, Resize: &domain.Size{Width: 64}},
			want:  domain.ErrInvalidParameter,
		},
		{
			name:  "oversized resize",
			items: []domain.UploadItem{{Filename: "a.png", Data: buildPNG(t, 4, 4)}},
			req:   domain.ConversionRequest{OutputFormat: domain.FormatPNG, Resize: &domain.Size{Width: 1 << 30, Height: 1 << 30}},
			want:  domain.ErrInvalidParameter,
		},
		{
			name:  "mixed to pdf",
			items: []domain.UploadItem{{Filename: "a.png", Data: buildPNG(t, 4, 4)}, {Filename: "b.pdf", Data: buildPDF(1)}},
			req:   domain.NewConversionRequest(),
			want:  domain.ErrNoViableRoute,
		},
		{
			name:  "malformed png",
			items: []domain.UploadItem{{Filename: "broken.png", Data: []byte("garbage")}},
			req:   domain.ConversionRequest{OutputFormat: domain.FormatJPEG},
			want:  domain.ErrDecode,
		},
		{
			name:  "unknown content",
			items: []domain.UploadItem{{Filename: "notes.xyz", Data: []byte("hello world")}},
			req:   domain.ConversionRequest{OutputFormat: domain.FormatPNG},
			want:  domain.ErrUnsupportedFormat,
		},
		{
			name:  "missing compressor",
			items: []domain.UploadItem{{Filename: "a.pdf", Data: buildPDF(1)}},
			req:   domain.NewConversionRequest(),
			want:  domain.ErrCapabilityUnavailable,
		},
		{
			name:  "missing office renderer",
			items: []domain.UploadItem{{Filename: "a.docx", Data: []byte("x")}},
			req:   domain.NewConversionRequest(),
			want:  domain.ErrCapabilityUnavailable,
		},
		{
			name:  "missing next-gen encoder",
			items: []domain.UploadItem{{Filename: "a.png", Data: buildPNG(t, 4, 4)}},
			req:   domain.ConversionRequest{OutputFormat: domain.FormatAVIF},
			want:  domain.ErrCapabilityUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Convert(ctx, tt.items, tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestProcessorReportsLowestIndexDecodeError(t *testing.T) {
	p := newTestProcessor(t, Options{DecodeConcurrency: 4})

	_, err := p.Convert(context.Background(), []domain.UploadItem{
		{Filename: "ok.png", Data: buildPNG(t, 4, 4)},
		{Filename: "first-bad.png", Data: []byte("nope")},
		{Filename: "second-bad.jpg", Data: []byte("nope")},
	}, domain.NewConversionRequest())

	var decodeErr *domain.DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if !strings.Contains(err.Error(), "first-bad.png") {
		t.Fatalf("expected first failing item in error, got %v", err)
	}
}

func TestProcessorCapabilities(t *testing.T) {
	p := newTestProcessor(t, Options{Renderer: stripeRenderer{}})
	caps := map[string]CapabilityStatus{}
	for _, c := range p.Capabilities() {
		caps[c.Name] = c
	}
	if !caps[CapabilityImageCodec].Available || caps[CapabilityImageCodec].Detail != "stdlib" {
		t.Fatalf("unexpected codec status %+v", caps[CapabilityImageCodec])
	}
	if !caps[CapabilityPageRenderer].Available {
		t.Fatal("expected page renderer to be available")
	}
	if caps[CapabilityPDFCompressor].Available {
		t.Fatal("expected compressor to be unavailable")
	}
}

func buildPNG(t testing.TB, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}

func buildPDF(pages int) []byte {
	pdf := gofpdf.New("P", "pt", "A4", "")
	for i := 0; i < pages; i++ {
		pdf.AddPage()
		pdf.Rect(20, 20, 100, 50+float64(i)*10, "F")
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
