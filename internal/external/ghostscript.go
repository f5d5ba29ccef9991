package external

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dunamismax/pageflow/internal/domain"
	"github.com/dunamismax/pageflow/internal/pipeline"
)

const toolGhostscript = "ghostscript"

// Ghostscript recompresses PDFs through the pdfwrite device.
type Ghostscript struct {
	bin     string
	timeout time.Duration
}

func NewGhostscript(bin string, timeout time.Duration) *Ghostscript {
	return &Ghostscript{bin: bin, timeout: timeout}
}

func (g *Ghostscript) String() string {
	return g.bin
}

func (g *Ghostscript) Compress(ctx context.Context, srcPath, dstPath string, opts pipeline.CompressOptions) error {
	out, err := run(ctx, g.timeout, g.bin, ghostscriptArgs(srcPath, dstPath, opts)...)
	if err != nil {
		return toolFailure(toolGhostscript, domain.ErrCompressionEngine, domain.ErrCompressionEngine, err, out)
	}

	info, err := os.Stat(dstPath)
	if err != nil {
		return &domain.ToolError{Tool: toolGhostscript, Kind: domain.ErrCompressionEngine, Err: fmt.Errorf("no output produced: %w", err), Output: out}
	}
	if info.Size() == 0 {
		return &domain.ToolError{Tool: toolGhostscript, Kind: domain.ErrCompressionEngine, Err: fmt.Errorf("empty output produced"), Output: out}
	}
	return nil
}

func ghostscriptArgs(srcPath, dstPath string, opts pipeline.CompressOptions) []string {
	tier := opts.Tier
	if tier == "" {
		tier = domain.TierPrinter
	}

	args := []string{
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.5",
		"-dPDFSETTINGS=/" + string(tier),
		"-dNOPAUSE",
		"-dQUIET",
		"-dBATCH",
		"-dSAFER",
	}
	if opts.DPI > 0 {
		args = append(args,
			"-dDownsampleColorImages=true",
			"-dDownsampleGrayImages=true",
			"-dDownsampleMonoImages=true",
			fmt.Sprintf("-dColorImageResolution=%d", opts.DPI),
			fmt.Sprintf("-dGrayImageResolution=%d", opts.DPI),
			fmt.Sprintf("-dMonoImageResolution=%d", opts.DPI),
		)
	}
	if opts.Grayscale {
		args = append(args,
			"-sColorConversionStrategy=Gray",
			"-dProcessColorModel=/DeviceGray",
		)
	}
	return append(args, "-sOutputFile="+dstPath, srcPath)
}
