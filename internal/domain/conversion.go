package domain

import (
	"strings"
)

type Category string

const (
	CategoryPDF     Category = "pdf"
	CategoryOffice  Category = "office-document"
	CategoryRaster  Category = "raster-image"
	CategoryVector  Category = "vector-image"
	CategoryNextGen Category = "next-gen-image"
)

// IsImage reports whether items of the category decode to pixel frames.
func (c Category) IsImage() bool {
	switch c {
	case CategoryRaster, CategoryVector, CategoryNextGen:
		return true
	default:
		return false
	}
}

type UploadItem struct {
	Filename  string
	MediaType string
	Data      []byte
}

type ClassifiedItem struct {
	UploadItem
	Category Category
	// Extension is the lower-cased text after the last dot, empty when absent.
	Extension string
}

type OutputFormat string

const (
	FormatPDF  OutputFormat = "pdf"
	FormatJPEG OutputFormat = "jpeg"
	FormatPNG  OutputFormat = "png"
	FormatWebP OutputFormat = "webp"
	FormatAVIF OutputFormat = "avif"
	FormatHEIF OutputFormat = "heif"
	FormatHEIC OutputFormat = "heic"
	FormatTIFF OutputFormat = "tiff"
	FormatBMP  OutputFormat = "bmp"
	FormatZIP  OutputFormat = "zip"
)

func ParseOutputFormat(in string) OutputFormat {
	format := strings.ToLower(strings.TrimSpace(in))
	switch format {
	case "":
		return FormatPDF
	case "jpg":
		return FormatJPEG
	case "tif":
		return FormatTIFF
	default:
		return OutputFormat(format)
	}
}

func (f OutputFormat) IsImage() bool {
	switch f {
	case FormatJPEG, FormatPNG, FormatWebP, FormatAVIF, FormatHEIF, FormatHEIC, FormatTIFF, FormatBMP:
		return true
	default:
		return false
	}
}

// IsLossy reports whether the encoder for the format honours a quality setting.
func (f OutputFormat) IsLossy() bool {
	switch f {
	case FormatJPEG, FormatWebP, FormatAVIF, FormatHEIF, FormatHEIC:
		return true
	default:
		return false
	}
}

func (f OutputFormat) Extension() string {
	return string(f)
}

func (f OutputFormat) MIMEType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	case FormatZIP:
		return "application/zip"
	case FormatJPEG, FormatPNG, FormatWebP, FormatAVIF, FormatHEIF, FormatHEIC, FormatTIFF, FormatBMP:
		return "image/" + string(f)
	default:
		return "application/octet-stream"
	}
}

type Route string

const (
	RouteImageToImage         Route = "image_to_image"
	RouteImagesToPDF          Route = "images_to_pdf"
	RoutePDFToImage           Route = "pdf_to_image"
	RoutePDFRecompress        Route = "pdf_recompress"
	RouteOfficeToPDFThenRoute Route = "office_to_pdf_then_route"
)

// Tier is a discrete compression preset of the PDF recompression engine.
type Tier string

const (
	TierScreen   Tier = "screen"
	TierEbook    Tier = "ebook"
	TierPrinter  Tier = "printer"
	TierPrepress Tier = "prepress"
)

type RoutePlan struct {
	Route Route
	// Then is the route selected after office documents were converted to
	// PDF. It is only set when Route is RouteOfficeToPDFThenRoute.
	Then Route
	Tier Tier
	DPI  int
}

// Effective returns the route that actually produces output.
func (p RoutePlan) Effective() Route {
	if p.Route == RouteOfficeToPDFThenRoute && p.Then != "" {
		return p.Then
	}
	return p.Route
}

type ConversionResult struct {
	Data     []byte
	MIMEType string
	Filename string
	Archive  bool
	Plan     RoutePlan
	Units    int
}
