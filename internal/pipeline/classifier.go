package pipeline

import (
	"mime"
	"strings"

	"github.com/dunamismax/pageflow/internal/domain"
	"github.com/gabriel-vasile/mimetype"
	"github.com/samber/lo"
)

var extensionCategories = map[string]domain.Category{
	"pdf":  domain.CategoryPDF,
	"doc":  domain.CategoryOffice,
	"docx": domain.CategoryOffice,
	"xls":  domain.CategoryOffice,
	"xlsx": domain.CategoryOffice,
	"png":  domain.CategoryRaster,
	"jpg":  domain.CategoryRaster,
	"jpeg": domain.CategoryRaster,
	"tif":  domain.CategoryRaster,
	"tiff": domain.CategoryRaster,
	"bmp":  domain.CategoryRaster,
	"svg":  domain.CategoryVector,
	"heic": domain.CategoryNextGen,
	"heif": domain.CategoryNextGen,
	"avif": domain.CategoryNextGen,
	"webp": domain.CategoryNextGen,
}

var mediaTypeCategories = map[string]domain.Category{
	"application/pdf":    domain.CategoryPDF,
	"application/msword": domain.CategoryOffice,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": domain.CategoryOffice,
	"application/vnd.ms-excel": domain.CategoryOffice,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": domain.CategoryOffice,
	"image/png":       domain.CategoryRaster,
	"image/jpeg":      domain.CategoryRaster,
	"image/tiff":      domain.CategoryRaster,
	"image/bmp":       domain.CategoryRaster,
	"image/x-ms-bmp":  domain.CategoryRaster,
	"image/svg+xml":   domain.CategoryVector,
	"image/heic":      domain.CategoryNextGen,
	"image/heif":      domain.CategoryNextGen,
	"image/avif":      domain.CategoryNextGen,
	"image/webp":      domain.CategoryNextGen,
}

// knownExtension reports whether ext has a dedicated decoder. Items outside
// this set are decoded by a generic attempt.
func knownExtension(ext string) bool {
	_, ok := extensionCategories[ext]
	return ok
}

// Classify maps an upload to a category. A known filename extension wins.
// Only a filename without an extension falls back to the declared media type
// and then content sniffing. Anything left over is treated as a raster image
// and gets a generic decode attempt.
func Classify(item domain.UploadItem) domain.ClassifiedItem {
	out := domain.ClassifiedItem{UploadItem: item, Extension: extensionOf(item.Filename)}

	if category, ok := extensionCategories[out.Extension]; ok {
		out.Category = category
		return out
	}
	if out.Extension == "" {
		if category, ok := categoryForMediaType(item.MediaType); ok {
			out.Category = category
			return out
		}
		if len(item.Data) > 0 {
			if category, ok := categoryForMediaType(mimetype.Detect(item.Data).String()); ok {
				out.Category = category
				return out
			}
		}
	}

	out.Category = domain.CategoryRaster
	return out
}

func ClassifyAll(items []domain.UploadItem) []domain.ClassifiedItem {
	return lo.Map(items, func(item domain.UploadItem, _ int) domain.ClassifiedItem {
		return Classify(item)
	})
}

func extensionOf(filename string) string {
	filename = strings.TrimSpace(filename)
	if i := strings.LastIndexAny(filename, `/\`); i >= 0 {
		filename = filename[i+1:]
	}
	i := strings.LastIndex(filename, ".")
	if i < 0 || i == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[i+1:])
}

func categoryForMediaType(value string) (domain.Category, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	mediaType, _, err := mime.ParseMediaType(value)
	if err != nil {
		return "", false
	}
	category, ok := mediaTypeCategories[strings.ToLower(mediaType)]
	return category, ok
}
