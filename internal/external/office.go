package external

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dunamismax/pageflow/internal/domain"
)

const toolOffice = "soffice"

// OfficeRenderer converts office documents with a headless LibreOffice.
type OfficeRenderer struct {
	bin     string
	timeout time.Duration
}

func NewOfficeRenderer(bin string, timeout time.Duration) *OfficeRenderer {
	return &OfficeRenderer{bin: bin, timeout: timeout}
}

func (r *OfficeRenderer) String() string {
	return r.bin
}

// ConvertToPDF writes <stem>.pdf next to the source inside outDir. Each call
// uses a private LibreOffice profile under outDir so concurrent conversions
// never share state.
func (r *OfficeRenderer) ConvertToPDF(ctx context.Context, srcPath, outDir string) (string, error) {
	profile, err := filepath.Abs(filepath.Join(outDir, ".profile"))
	if err != nil {
		return "", fmt.Errorf("resolve office profile: %w", err)
	}

	out, err := run(ctx, r.timeout, r.bin, officeArgs(srcPath, outDir, profile)...)
	if err != nil {
		return "", toolFailure(toolOffice, domain.ErrOfficeConversion, domain.ErrRenderTimeout, err, out)
	}

	pdfPath := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(srcPath), filepath.Ext(srcPath))+".pdf")
	info, err := os.Stat(pdfPath)
	if err != nil {
		return "", &domain.ToolError{Tool: toolOffice, Kind: domain.ErrOfficeConversion, Err: fmt.Errorf("no pdf produced: %w", err), Output: out}
	}
	if info.Size() == 0 {
		return "", &domain.ToolError{Tool: toolOffice, Kind: domain.ErrOfficeConversion, Err: fmt.Errorf("empty pdf produced"), Output: out}
	}
	return pdfPath, nil
}

func officeArgs(srcPath, outDir, profile string) []string {
	return []string{
		"-env:UserInstallation=" + fileURL(profile),
		"--headless",
		"--norestore",
		"--nolockcheck",
		"--nodefault",
		"--convert-to", "pdf",
		"--outdir", outDir,
		srcPath,
	}
}

func fileURL(path string) string {
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}
