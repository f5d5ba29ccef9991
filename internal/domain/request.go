package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	DefaultQuality = 80
	MaxDPI         = 2400
	// MaxDimension bounds each side of a resize target.
	MaxDimension = 16384
	// MaxResizePixels bounds the resize area; 64 Mpx is 256 MiB as NRGBA.
	MaxResizePixels = 64 << 20
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type ConversionRequest struct {
	OutputFormat OutputFormat
	Quality      int
	// DPI of zero selects the route default.
	DPI       int `validate:"gte=0,lte=2400"`
	Grayscale bool
	Resize    *Size
}

type Size struct {
	Width  int `validate:"required_with=Height,gte=0,lte=16384"`
	Height int `validate:"required_with=Width,gte=0,lte=16384"`
}

func NewConversionRequest() ConversionRequest {
	return ConversionRequest{
		OutputFormat: FormatPDF,
		Quality:      DefaultQuality,
	}
}

// Normalize clamps quality, resolves format aliases and drops an empty resize.
func (r ConversionRequest) Normalize() ConversionRequest {
	r.OutputFormat = ParseOutputFormat(string(r.OutputFormat))
	if r.Quality < 0 {
		r.Quality = 0
	}
	if r.Quality > 100 {
		r.Quality = 100
	}
	if r.Resize != nil && r.Resize.Width == 0 && r.Resize.Height == 0 {
		r.Resize = nil
	}
	return r
}

func (r ConversionRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return r.validateResizeArea()
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidParameter, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describeFieldError(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidParameter, strings.Join(msgs, "; "))
}

func (r ConversionRequest) validateResizeArea() error {
	if r.Resize == nil {
		return nil
	}
	if area := int64(r.Resize.Width) * int64(r.Resize.Height); area > MaxResizePixels {
		return fmt.Errorf("%w: resize area %dx%d exceeds %d pixels", ErrInvalidParameter, r.Resize.Width, r.Resize.Height, MaxResizePixels)
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	field := paramName(fe.StructField())
	switch fe.Tag() {
	case "required_with":
		return fmt.Sprintf("%s is required when %s is set", field, paramName(fe.Param()))
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be <= %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func paramName(structField string) string {
	switch structField {
	case "DPI":
		return "dpi"
	case "Width":
		return "resize_width"
	case "Height":
		return "resize_height"
	default:
		return strings.ToLower(structField)
	}
}
