//go:build !windows

package external

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/dunamismax/pageflow/internal/config"
	"github.com/dunamismax/pageflow/internal/domain"
	"github.com/dunamismax/pageflow/internal/pipeline"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func TestGhostscriptArgs(t *testing.T) {
	args := ghostscriptArgs("in.pdf", "out.pdf", pipeline.CompressOptions{Tier: domain.TierEbook, DPI: 100, Grayscale: true})

	for _, want := range []string{
		"-sDEVICE=pdfwrite",
		"-dPDFSETTINGS=/ebook",
		"-dSAFER",
		"-dColorImageResolution=100",
		"-sColorConversionStrategy=Gray",
		"-sOutputFile=out.pdf",
	} {
		if !slices.Contains(args, want) {
			t.Fatalf("expected %s in %v", want, args)
		}
	}
	if args[len(args)-1] != "in.pdf" {
		t.Fatalf("expected input last, got %v", args)
	}

	color := ghostscriptArgs("in.pdf", "out.pdf", pipeline.CompressOptions{Tier: domain.TierScreen, DPI: 72})
	if slices.Contains(color, "-sColorConversionStrategy=Gray") {
		t.Fatal("did not expect gray conversion without grayscale")
	}
}

func TestGhostscriptFailure(t *testing.T) {
	gs := NewGhostscript(writeScript(t, `echo "Unrecoverable error" >&2; exit 1`), 5*time.Second)
	dir := t.TempDir()

	err := gs.Compress(context.Background(), filepath.Join(dir, "in.pdf"), filepath.Join(dir, "out.pdf"), pipeline.CompressOptions{Tier: domain.TierPrinter})
	if !errors.Is(err, domain.ErrCompressionEngine) {
		t.Fatalf("expected ErrCompressionEngine, got %v", err)
	}
	if !strings.Contains(err.Error(), "Unrecoverable error") {
		t.Fatalf("expected tool output in error, got %v", err)
	}
}

func TestGhostscriptCopiesOutput(t *testing.T) {
	// The last argument is the input and the one before it is -sOutputFile=...
	script := `for a; do prev="$cur"; cur="$a"; done; out="${prev#-sOutputFile=}"; cp "$cur" "$out"`
	gs := NewGhostscript(writeScript(t, script), 5*time.Second)

	dir := t.TempDir()
	src := filepath.Join(dir, "in.pdf")
	dst := filepath.Join(dir, "out.pdf")
	if err := os.WriteFile(src, []byte("%PDF-1.4"), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}

	if err := gs.Compress(context.Background(), src, dst, pipeline.CompressOptions{Tier: domain.TierScreen, DPI: 72}); err != nil {
		t.Fatalf("compress: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "%PDF-1.4" {
		t.Fatalf("unexpected output %q err=%v", data, err)
	}
}

func TestOfficeTimeoutKillsProcessGroup(t *testing.T) {
	office := NewOfficeRenderer(writeScript(t, `sleep 30 & wait`), 200*time.Millisecond)
	dir := t.TempDir()

	start := time.Now()
	_, err := office.ConvertToPDF(context.Background(), filepath.Join(dir, "a.docx"), dir)
	if !errors.Is(err, domain.ErrRenderTimeout) {
		t.Fatalf("expected ErrRenderTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("expected prompt termination, took %s", elapsed)
	}
}

func TestOfficeConvertsIntoOutDir(t *testing.T) {
	script := `for a; do last="$a"; done; outdir=$(dirname "$last"); base=$(basename "$last"); printf '%%PDF-1.4' > "$outdir/${base%.*}.pdf"`
	office := NewOfficeRenderer(writeScript(t, script), 5*time.Second)

	dir := t.TempDir()
	src := filepath.Join(dir, "report.docx")
	if err := os.WriteFile(src, []byte("doc"), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}

	pdfPath, err := office.ConvertToPDF(context.Background(), src, dir)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if pdfPath != filepath.Join(dir, "report.pdf") {
		t.Fatalf("unexpected pdf path %s", pdfPath)
	}
}

func TestOfficeMissingOutput(t *testing.T) {
	office := NewOfficeRenderer(writeScript(t, `exit 0`), 5*time.Second)
	dir := t.TempDir()

	_, err := office.ConvertToPDF(context.Background(), filepath.Join(dir, "a.xlsx"), dir)
	if !errors.Is(err, domain.ErrOfficeConversion) {
		t.Fatalf("expected ErrOfficeConversion, got %v", err)
	}
}

func TestProbeMissingTools(t *testing.T) {
	tools := Probe(config.ToolsConfig{
		SofficeBin:     "pageflow-missing-soffice",
		GhostscriptBin: "pageflow-missing-gs",
		Timeout:        time.Second,
	})

	err := tools.Compressor.Compress(context.Background(), "a", "b", pipeline.CompressOptions{})
	if !errors.Is(err, domain.ErrCapabilityUnavailable) {
		t.Fatalf("expected ErrCapabilityUnavailable, got %v", err)
	}
	_, err = tools.Office.ConvertToPDF(context.Background(), "a", "b")
	if !errors.Is(err, domain.ErrCapabilityUnavailable) {
		t.Fatalf("expected ErrCapabilityUnavailable, got %v", err)
	}
}

func TestRunMissingBinary(t *testing.T) {
	_, err := run(context.Background(), time.Second, "pageflow-missing-binary")
	if !errors.Is(toolFailure("x", domain.ErrCompressionEngine, domain.ErrCompressionEngine, err, ""), domain.ErrCapabilityUnavailable) {
		t.Fatalf("expected capability error for missing binary, got %v", err)
	}
}
