package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/dunamismax/pageflow/internal/domain"
)

type stubConverter struct {
	items  []domain.UploadItem
	req    domain.ConversionRequest
	result domain.ConversionResult
	err    error
}

func (s *stubConverter) Convert(_ context.Context, items []domain.UploadItem, req domain.ConversionRequest) (domain.ConversionResult, error) {
	s.items = items
	s.req = req
	return s.result, s.err
}

func TestParseFlags(t *testing.T) {
	var stderr bytes.Buffer
	f, files, err := parseFlags([]string{"-f", "png", "-q", "50", "--dpi", "200", "-g", "--resize", "640x480", "a.pdf", "b.pdf"}, &stderr)
	if err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	if f.format != "png" || f.quality != 50 || f.dpi != 200 || !f.grayscale {
		t.Fatalf("unexpected flags %+v", f)
	}
	if len(files) != 2 || files[0] != "a.pdf" {
		t.Fatalf("unexpected files %v", files)
	}

	req, err := buildRequest(f)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if req.Resize == nil || req.Resize.Width != 640 || req.Resize.Height != 480 {
		t.Fatalf("unexpected resize %+v", req.Resize)
	}
}

func TestParseFlagsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no files", []string{"-f", "png"}},
		{"zero dpi", []string{"--dpi", "0", "a.png"}},
		{"unknown flag", []string{"--bogus", "a.png"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stderr bytes.Buffer
			_, _, err := parseFlags(tt.args, &stderr)
			if exitCodeFor(err) != ExitUsage {
				t.Fatalf("expected usage exit, got %d (%v)", exitCodeFor(err), err)
			}
		})
	}
}

func TestParseSize(t *testing.T) {
	for _, raw := range []string{"640", "0x10", "ax10", "10x-1"} {
		if _, err := parseSize(raw); !errors.Is(err, ErrUsage) {
			t.Fatalf("parseSize(%q) expected usage error, got %v", raw, err)
		}
	}
	size, err := parseSize("1920X1080")
	if err != nil || size.Width != 1920 || size.Height != 1080 {
		t.Fatalf("unexpected size %+v err=%v", size, err)
	}
}

func TestConvertFilesWritesIntoDirectory(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "scan.png")
	if err := os.WriteFile(in, []byte("png"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	outDir := filepath.Join(dir, "out")
	if err := os.Mkdir(outDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	conv := &stubConverter{result: domain.ConversionResult{Data: []byte("%PDF"), Filename: "converted.pdf"}}
	path, err := convertFiles(context.Background(), conv, []string{in}, domain.NewConversionRequest(), outDir)
	if err != nil {
		t.Fatalf("convert files: %v", err)
	}
	if path != filepath.Join(outDir, "converted.pdf") {
		t.Fatalf("unexpected output path %s", path)
	}
	if len(conv.items) != 1 || conv.items[0].Filename != "scan.png" {
		t.Fatalf("unexpected items %+v", conv.items)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != "%PDF" {
		t.Fatalf("unexpected output %q err=%v", got, err)
	}
}

func TestConvertFilesMissingInput(t *testing.T) {
	_, err := convertFiles(context.Background(), &stubConverter{}, []string{filepath.Join(t.TempDir(), "nope.png")}, domain.NewConversionRequest(), "")
	if exitCodeFor(err) != ExitIO {
		t.Fatalf("expected io exit, got %d (%v)", exitCodeFor(err), err)
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitSuccess},
		{domain.ErrNoViableRoute, ExitUsage},
		{&domain.DecodeError{Format: "png", Err: errors.New("bad")}, ExitUsage},
		{domain.NewCapabilityError("office-renderer"), ExitTooling},
		{&domain.ToolError{Tool: "gs", Kind: domain.ErrCompressionEngine, Err: errors.New("exit 1")}, ExitTooling},
		{fmt.Errorf("%w: out.pdf", ErrWriteOutput), ExitIO},
		{errors.New("boom"), ExitGeneral},
	}
	for _, tt := range tests {
		if got := exitCodeFor(tt.err); got != tt.want {
			t.Fatalf("exitCodeFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
