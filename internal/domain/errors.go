package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoFilesUploaded       = errors.New("no files uploaded")
	ErrUnsupportedFormat     = errors.New("unsupported format")
	ErrDecode                = errors.New("decode failed")
	ErrCapabilityUnavailable = errors.New("capability unavailable")
	ErrRenderTimeout         = errors.New("render timed out")
	ErrCompressionEngine     = errors.New("compression engine failed")
	ErrOfficeConversion      = errors.New("office conversion failed")
	ErrNoViableRoute         = errors.New("no viable conversion route")
	ErrInvalidParameter      = errors.New("invalid parameter")
)

// DecodeError reports malformed input content for a given format.
type DecodeError struct {
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}

// CapabilityError reports an external codec or tool missing from the runtime.
type CapabilityError struct {
	Capability string
}

func NewCapabilityError(capability string) error {
	return &CapabilityError{Capability: capability}
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capability unavailable: %s", e.Capability)
}

func (e *CapabilityError) Unwrap() error {
	return ErrCapabilityUnavailable
}

// ToolError reports a failed external process. Kind is one of
// ErrRenderTimeout, ErrCompressionEngine or ErrOfficeConversion.
type ToolError struct {
	Tool   string
	Kind   error
	Err    error
	Output string
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s: %s: %v", e.Kind, e.Tool, e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + truncate(out, 512)
	}
	return msg
}

func (e *ToolError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// IsUserError reports whether err stems from the caller's input rather than
// from the runtime environment.
func IsUserError(err error) bool {
	return errors.Is(err, ErrNoFilesUploaded) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrDecode) ||
		errors.Is(err, ErrNoViableRoute) ||
		errors.Is(err, ErrInvalidParameter)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
