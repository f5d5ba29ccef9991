package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dunamismax/pageflow/internal/config"
	"github.com/dunamismax/pageflow/internal/domain"
	"github.com/dunamismax/pageflow/internal/external"
	"github.com/dunamismax/pageflow/internal/pipeline"
	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"
)

var (
	ErrUsage       = errors.New("usage error")
	ErrReadInput   = errors.New("read input")
	ErrWriteOutput = errors.New("write output")
)

type cliFlags struct {
	format    string
	quality   int
	dpi       int
	grayscale bool
	resize    string
	output    string
	timeout   time.Duration
	verbose   bool
}

func main() {
	_ = godotenv.Load()
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags, files, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		fmt.Fprintln(stderr, err)
		return exitCodeFor(err)
	}

	logOut := io.Discard
	if flags.verbose {
		logOut = stderr
	}
	logger := log.New(logOut, "[convert] ", log.LstdFlags|log.Lmsgprefix)
	_, _ = maxprocs.Set(maxprocs.Logger(logger.Printf))

	req, err := buildRequest(flags)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitCodeFor(err)
	}

	cfg := config.Load()
	if err := pipeline.Startup(cfg.Conversion.VipsCacheMB); err != nil {
		fmt.Fprintln(stderr, err)
		return ExitTooling
	}
	defer pipeline.Shutdown()

	tools := external.Probe(cfg.Tools)
	processor := pipeline.NewProcessor(pipeline.Options{
		Logger:            logger,
		Renderer:          tools.Renderer,
		Office:            tools.Office,
		Compressor:        tools.Compressor,
		TempDir:           cfg.Conversion.TempDir,
		DecodeConcurrency: cfg.Conversion.DecodeConcurrency,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if flags.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flags.timeout)
		defer cancel()
	}

	path, err := convertFiles(ctx, processor, files, req, flags.output)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitCodeFor(err)
	}
	fmt.Fprintln(stdout, path)
	return ExitSuccess
}

func parseFlags(args []string, stderr io.Writer) (cliFlags, []string, error) {
	var f cliFlags
	fs := flag.NewFlagSet("pageflow-convert", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: pageflow-convert [flags] FILE...")
		fs.PrintDefaults()
	}

	fs.StringVarP(&f.format, "format", "f", "pdf", "output format (pdf, png, jpg, webp, tiff, bmp, avif, heic)")
	fs.IntVarP(&f.quality, "quality", "q", domain.DefaultQuality, "output quality 0-100")
	fs.IntVar(&f.dpi, "dpi", 0, "render or layout resolution (0 selects the route default)")
	fs.BoolVarP(&f.grayscale, "grayscale", "g", false, "convert to grayscale")
	fs.StringVar(&f.resize, "resize", "", "resize raster output to WIDTHxHEIGHT")
	fs.StringVarP(&f.output, "output", "o", "", "output file or directory (default: current directory)")
	fs.DurationVar(&f.timeout, "timeout", 5*time.Minute, "overall conversion timeout")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log pipeline progress to stderr")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return f, nil, err
		}
		return f, nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() == 0 {
		return f, nil, fmt.Errorf("%w: at least one input file is required", ErrUsage)
	}
	if fs.Changed("dpi") && f.dpi <= 0 {
		return f, nil, fmt.Errorf("%w: --dpi must be positive", ErrUsage)
	}
	return f, fs.Args(), nil
}

func buildRequest(f cliFlags) (domain.ConversionRequest, error) {
	req := domain.ConversionRequest{
		OutputFormat: domain.ParseOutputFormat(f.format),
		Quality:      f.quality,
		DPI:          f.dpi,
		Grayscale:    f.grayscale,
	}
	if f.resize != "" {
		size, err := parseSize(f.resize)
		if err != nil {
			return req, err
		}
		req.Resize = &size
	}
	return req, nil
}

func parseSize(raw string) (domain.Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(raw), "x")
	if !ok {
		return domain.Size{}, fmt.Errorf("%w: --resize must be WIDTHxHEIGHT", ErrUsage)
	}
	width, errW := strconv.Atoi(strings.TrimSpace(w))
	height, errH := strconv.Atoi(strings.TrimSpace(h))
	if errW != nil || errH != nil || width <= 0 || height <= 0 {
		return domain.Size{}, fmt.Errorf("%w: --resize must be WIDTHxHEIGHT with positive integers", ErrUsage)
	}
	return domain.Size{Width: width, Height: height}, nil
}

type converter interface {
	Convert(ctx context.Context, items []domain.UploadItem, req domain.ConversionRequest) (domain.ConversionResult, error)
}

// convertFiles reads the inputs in argument order, converts them and writes
// the artifact. The returned path is where the output landed.
func convertFiles(ctx context.Context, conv converter, files []string, req domain.ConversionRequest, output string) (string, error) {
	items := make([]domain.UploadItem, 0, len(files))
	for _, name := range files {
		data, err := os.ReadFile(name)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %w", ErrReadInput, name, err)
		}
		items = append(items, domain.UploadItem{Filename: filepath.Base(name), Data: data})
	}

	result, err := conv.Convert(ctx, items, req)
	if err != nil {
		return "", err
	}

	dest := outputPath(output, result.Filename)
	if err := os.WriteFile(dest, result.Data, 0o644); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrWriteOutput, dest, err)
	}
	return dest, nil
}

func outputPath(output, filename string) string {
	if output == "" {
		return filename
	}
	if info, err := os.Stat(output); err == nil && info.IsDir() {
		return filepath.Join(output, filename)
	}
	return output
}
