package external

import (
	"fmt"
	"os/exec"

	"github.com/dunamismax/pageflow/internal/config"
	"github.com/dunamismax/pageflow/internal/pipeline"
)

// Toolset holds the external collaborators resolved at startup. Missing tools
// are represented by pipeline.Unavailable.
type Toolset struct {
	Renderer   pipeline.DocumentRenderer
	Office     pipeline.OfficeConverter
	Compressor pipeline.PDFCompressor
}

// Probe resolves external binaries once. It never fails; absent tools turn
// into capability errors at request time.
func Probe(cfg config.ToolsConfig) Toolset {
	tools := Toolset{Renderer: NewPageRenderer()}

	if path, err := exec.LookPath(cfg.SofficeBin); err == nil {
		tools.Office = NewOfficeRenderer(path, cfg.Timeout)
	} else {
		tools.Office = pipeline.Unavailable{
			Capability: pipeline.CapabilityOfficeRenderer,
			Reason:     fmt.Sprintf("%s not found", cfg.SofficeBin),
		}
	}

	if path, err := exec.LookPath(cfg.GhostscriptBin); err == nil {
		tools.Compressor = NewGhostscript(path, cfg.Timeout)
	} else {
		tools.Compressor = pipeline.Unavailable{
			Capability: pipeline.CapabilityPDFCompressor,
			Reason:     fmt.Sprintf("%s not found", cfg.GhostscriptBin),
		}
	}

	return tools
}
