package pipeline

import (
	"context"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dunamismax/pageflow/internal/domain"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Options struct {
	Logger     *log.Logger
	Codec      ImageCodec
	Vector     VectorRasterizer
	Renderer   DocumentRenderer
	Office     OfficeConverter
	Compressor PDFCompressor
	// TempDir is the parent of per-request workspaces. Empty uses os.TempDir.
	TempDir           string
	DecodeConcurrency int
}

// Processor is the conversion dispatcher. It holds no per-request state and
// is safe for concurrent use.
type Processor struct {
	logger      *log.Logger
	tracer      trace.Tracer
	decoder     decoder
	renderer    DocumentRenderer
	office      OfficeConverter
	compressor  PDFCompressor
	tempDir     string
	concurrency int
	caps        []CapabilityStatus
}

func NewProcessor(opts Options) *Processor {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	codec, vector := opts.Codec, opts.Vector
	if codec == nil {
		defaultCodec, defaultVector := newCodec()
		codec = defaultCodec
		if vector == nil {
			vector = defaultVector
		}
	}
	if vector == nil {
		vector = Unavailable{Capability: CapabilityVectorRasterizer, Reason: "not configured"}
	}

	renderer := DocumentRenderer(Unavailable{Capability: CapabilityPageRenderer, Reason: "not configured"})
	if opts.Renderer != nil {
		renderer = opts.Renderer
	}
	office := OfficeConverter(Unavailable{Capability: CapabilityOfficeRenderer, Reason: "not configured"})
	if opts.Office != nil {
		office = opts.Office
	}
	compressor := PDFCompressor(Unavailable{Capability: CapabilityPDFCompressor, Reason: "not configured"})
	if opts.Compressor != nil {
		compressor = opts.Compressor
	}

	concurrency := opts.DecodeConcurrency
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	return &Processor{
		logger:      logger,
		tracer:      otel.Tracer("pageflow/pipeline"),
		decoder:     decoder{codec: codec, vector: vector},
		renderer:    renderer,
		office:      office,
		compressor:  compressor,
		tempDir:     opts.TempDir,
		concurrency: concurrency,
		caps: []CapabilityStatus{
			statusOf(CapabilityImageCodec, codec),
			statusOf(CapabilityVectorRasterizer, vector),
			statusOf(CapabilityPageRenderer, renderer),
			statusOf(CapabilityOfficeRenderer, office),
			statusOf(CapabilityPDFCompressor, compressor),
		},
	}
}

// Capabilities reports the collaborators resolved at construction.
func (p *Processor) Capabilities() []CapabilityStatus {
	return append([]CapabilityStatus(nil), p.caps...)
}

// Convert classifies the uploads, selects a route, executes it and packages
// the output. Every temporary file it creates is gone when it returns.
func (p *Processor) Convert(ctx context.Context, items []domain.UploadItem, req domain.ConversionRequest) (domain.ConversionResult, error) {
	if len(items) == 0 {
		return domain.ConversionResult{}, domain.ErrNoFilesUploaded
	}
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return domain.ConversionResult{}, err
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.convert", trace.WithAttributes(
		attribute.Int("pageflow.inputs", len(items)),
		attribute.String("pageflow.output_format", string(req.OutputFormat)),
	))
	defer span.End()

	result, err := p.convert(ctx, items, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return domain.ConversionResult{}, err
	}
	span.SetAttributes(
		attribute.String("pageflow.route", string(result.Plan.Effective())),
		attribute.Int("pageflow.units", result.Units),
	)
	return result, nil
}

func (p *Processor) convert(ctx context.Context, items []domain.UploadItem, req domain.ConversionRequest) (domain.ConversionResult, error) {
	classified := ClassifyAll(items)
	plan, err := Plan(classified, req)
	if err != nil {
		return domain.ConversionResult{}, err
	}
	p.logger.Printf("route selected route=%s then=%s inputs=%d output=%s dpi=%d tier=%s",
		plan.Route, plan.Then, len(classified), req.OutputFormat, plan.DPI, plan.Tier)

	ws := &workspace{base: p.tempDir}
	defer func() {
		if err := ws.Close(); err != nil {
			p.logger.Printf("workspace cleanup failed err=%v", err)
		}
	}()

	if plan.Route == domain.RouteOfficeToPDFThenRoute {
		err = p.stage(ctx, "pipeline.office", func(ctx context.Context) error {
			classified, err = p.convertOffice(ctx, ws, classified)
			return err
		})
		if err != nil {
			return domain.ConversionResult{}, err
		}
	} else if skipped := countCategory(classified, domain.CategoryOffice); skipped > 0 {
		p.logger.Printf("office inputs ignored route=%s count=%d", plan.Route, skipped)
		classified = lo.Filter(classified, func(item domain.ClassifiedItem, _ int) bool {
			return item.Category != domain.CategoryOffice
		})
	}

	var decoded []Decoded
	err = p.stage(ctx, "pipeline.decode", func(ctx context.Context) error {
		decoded, err = decodeAll(ctx, p.decoder, classified, plan.DPI, p.concurrency)
		return err
	})
	if err != nil {
		return domain.ConversionResult{}, err
	}

	var units [][]byte
	err = p.stage(ctx, "pipeline."+string(plan.Effective()), func(ctx context.Context) error {
		switch plan.Effective() {
		case domain.RouteImageToImage:
			units, err = p.imageToImage(ctx, decoded, req, plan)
		case domain.RouteImagesToPDF:
			units, err = p.imagesToPDF(decoded, req, plan)
		case domain.RoutePDFToImage:
			units, err = p.pdfToImage(ctx, decoded, req, plan)
		case domain.RoutePDFRecompress:
			units, err = p.recompress(ctx, ws, decoded, req, plan)
		default:
			err = fmt.Errorf("%w: unresolved route %s", domain.ErrNoViableRoute, plan.Route)
		}
		return err
	})
	if err != nil {
		return domain.ConversionResult{}, err
	}

	return compose(plan, req.OutputFormat, units)
}

// stage runs fn inside a child span of the conversion.
func (p *Processor) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := p.tracer.Start(ctx, name)
	defer span.End()
	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// imageToImage converts the first image input. Remaining images were decoded
// so that malformed uploads still surface.
func (p *Processor) imageToImage(ctx context.Context, decoded []Decoded, req domain.ConversionRequest, plan domain.RoutePlan) ([][]byte, error) {
	first, ok := lo.Find(decoded, func(d Decoded) bool { return d.Image != nil })
	if !ok {
		return nil, fmt.Errorf("%w: no image input", domain.ErrNoViableRoute)
	}

	img := Transform(first.Image, req.Grayscale, req.Resize)
	data, err := p.decoder.codec.Encode(ctx, img.First(), req.OutputFormat, EncodeOptions{Quality: req.Quality, DPI: plan.DPI})
	if err != nil {
		return nil, err
	}
	return [][]byte{data}, nil
}

func (p *Processor) imagesToPDF(decoded []Decoded, req domain.ConversionRequest, plan domain.RoutePlan) ([][]byte, error) {
	var frames []*image.NRGBA
	for _, d := range decoded {
		if d.Image == nil {
			continue
		}
		frames = append(frames, Transform(d.Image, req.Grayscale, req.Resize).Frames...)
	}

	data, err := assemblePDF(frames, plan.DPI, req.Quality)
	if err != nil {
		return nil, err
	}
	return [][]byte{data}, nil
}

// pdfToImage renders every page of the first document.
func (p *Processor) pdfToImage(ctx context.Context, decoded []Decoded, req domain.ConversionRequest, plan domain.RoutePlan) ([][]byte, error) {
	first, ok := lo.Find(decoded, func(d Decoded) bool { return d.Document != nil })
	if !ok {
		return nil, fmt.Errorf("%w: no document input", domain.ErrNoViableRoute)
	}

	doc, err := p.renderer.Open(ctx, first.Document.Data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	units := make([][]byte, 0, first.Document.Pages)
	for page := 0; page < first.Document.Pages; page++ {
		rendered, err := doc.RenderPage(ctx, page, plan.DPI)
		if err != nil {
			return nil, fmt.Errorf("render %s page %d: %w", first.Document.Name, page+1, err)
		}

		img := Transform(newCanonicalImage(rendered, plan.DPI), req.Grayscale, req.Resize)
		data, err := p.decoder.codec.Encode(ctx, img.First(), req.OutputFormat, EncodeOptions{Quality: req.Quality, DPI: plan.DPI})
		if err != nil {
			return nil, err
		}
		units = append(units, data)
	}
	return units, nil
}

// recompress merges the documents in upload order and runs them through the
// compression engine. Resize does not apply to this route.
func (p *Processor) recompress(ctx context.Context, ws *workspace, decoded []Decoded, req domain.ConversionRequest, plan domain.RoutePlan) ([][]byte, error) {
	docs := lo.FilterMap(decoded, func(d Decoded, _ int) (*DocumentHandle, bool) {
		return d.Document, d.Document != nil
	})
	merged, err := mergeDocuments(docs)
	if err != nil {
		return nil, err
	}

	dir, err := ws.Subdir("recompress")
	if err != nil {
		return nil, err
	}
	src, err := ws.WriteFile(dir, "input.pdf", merged)
	if err != nil {
		return nil, err
	}
	dst := filepath.Join(dir, "compressed.pdf")

	opts := CompressOptions{Tier: plan.Tier, DPI: plan.DPI, Grayscale: req.Grayscale}
	if err := p.compressor.Compress(ctx, src, dst, opts); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		return nil, &domain.ToolError{Tool: CapabilityPDFCompressor, Kind: domain.ErrCompressionEngine, Err: err}
	}
	return [][]byte{data}, nil
}

// convertOffice renders every office item to PDF in its own workspace
// directory and substitutes the result, keeping upload order.
func (p *Processor) convertOffice(ctx context.Context, ws *workspace, items []domain.ClassifiedItem) ([]domain.ClassifiedItem, error) {
	out := make([]domain.ClassifiedItem, 0, len(items))
	for i, item := range items {
		if item.Category != domain.CategoryOffice {
			out = append(out, item)
			continue
		}

		dir, err := ws.Subdir(fmt.Sprintf("office-%d", i))
		if err != nil {
			return nil, err
		}
		src, err := ws.WriteFile(dir, item.Filename, item.Data)
		if err != nil {
			return nil, err
		}

		pdfPath, err := p.office.ConvertToPDF(ctx, src, dir)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(pdfPath)
		if err != nil {
			return nil, &domain.ToolError{Tool: CapabilityOfficeRenderer, Kind: domain.ErrOfficeConversion, Err: err}
		}
		p.logger.Printf("office document converted file=%s bytes=%d", item.Filename, len(data))

		out = append(out, domain.ClassifiedItem{
			UploadItem: domain.UploadItem{
				Filename:  strings.TrimSuffix(item.Filename, filepath.Ext(item.Filename)) + ".pdf",
				MediaType: "application/pdf",
				Data:      data,
			},
			Category:  domain.CategoryPDF,
			Extension: "pdf",
		})
	}
	return out, nil
}
