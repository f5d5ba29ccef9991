//go:build !cgo || nofitz

package external

import "github.com/dunamismax/pageflow/internal/pipeline"

func NewPageRenderer() pipeline.DocumentRenderer {
	return pipeline.Unavailable{
		Capability: pipeline.CapabilityPageRenderer,
		Reason:     "built without cgo or with the nofitz tag",
	}
}
