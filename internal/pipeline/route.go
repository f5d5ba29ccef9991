package pipeline

import (
	"fmt"

	"github.com/dunamismax/pageflow/internal/domain"
	"github.com/samber/lo"
)

const (
	DefaultImageDPI = 72
	DefaultPageDPI  = 150
)

// SelectRoute picks the conversion route for the given inputs. The result
// depends only on the multiset of categories and the output format, and the
// first matching rule wins. Office inputs only drive the route when nothing
// else was uploaded; otherwise the selected route ignores them.
func SelectRoute(items []domain.ClassifiedItem, output domain.OutputFormat) (domain.Route, error) {
	if len(items) == 0 {
		return "", fmt.Errorf("%w: no inputs", domain.ErrNoViableRoute)
	}
	if output != domain.FormatPDF && !output.IsImage() {
		return "", fmt.Errorf("%w: output format %q", domain.ErrNoViableRoute, output)
	}

	office := countCategory(items, domain.CategoryOffice)
	pdfs := countCategory(items, domain.CategoryPDF)
	images := lo.CountBy(items, func(item domain.ClassifiedItem) bool {
		return item.Category.IsImage()
	})

	switch {
	case output == domain.FormatPDF && pdfs > 0 && images == 0:
		return domain.RoutePDFRecompress, nil
	case output == domain.FormatPDF && images > 0 && pdfs == 0:
		return domain.RouteImagesToPDF, nil
	case output.IsImage() && images > 0:
		return domain.RouteImageToImage, nil
	case output.IsImage() && pdfs > 0:
		return domain.RoutePDFToImage, nil
	case office > 0:
		return domain.RouteOfficeToPDFThenRoute, nil
	}

	return "", fmt.Errorf("%w: %d pdf and %d image input(s) to %s", domain.ErrNoViableRoute, pdfs, images, output)
}

// Plan selects the route and resolves its tier and render DPI. Office inputs
// are planned as if already converted so an impossible follow-up route fails
// before any external renderer runs.
func Plan(items []domain.ClassifiedItem, req domain.ConversionRequest) (domain.RoutePlan, error) {
	route, err := SelectRoute(items, req.OutputFormat)
	if err != nil {
		return domain.RoutePlan{}, err
	}

	plan := domain.RoutePlan{Route: route}
	if route == domain.RouteOfficeToPDFThenRoute {
		then, err := SelectRoute(asConvertedOffice(items), req.OutputFormat)
		if err != nil {
			return domain.RoutePlan{}, err
		}
		plan.Then = then
	}

	switch plan.Effective() {
	case domain.RoutePDFRecompress:
		plan.Tier, plan.DPI = TierForQuality(req.Quality)
	case domain.RoutePDFToImage:
		plan.DPI = orDefault(req.DPI, DefaultPageDPI)
	default:
		plan.DPI = orDefault(req.DPI, DefaultImageDPI)
	}
	return plan, nil
}

// TierForQuality maps a 0..100 quality to a recompression tier and its image
// resolution.
func TierForQuality(quality int) (domain.Tier, int) {
	switch {
	case quality <= 30:
		return domain.TierScreen, 72
	case quality <= 60:
		return domain.TierEbook, 100
	case quality <= 85:
		return domain.TierPrinter, 150
	default:
		return domain.TierPrepress, 300
	}
}

func asConvertedOffice(items []domain.ClassifiedItem) []domain.ClassifiedItem {
	return lo.Map(items, func(item domain.ClassifiedItem, _ int) domain.ClassifiedItem {
		if item.Category == domain.CategoryOffice {
			item.Category = domain.CategoryPDF
			item.Extension = "pdf"
		}
		return item
	})
}

func countCategory(items []domain.ClassifiedItem, category domain.Category) int {
	return lo.CountBy(items, func(item domain.ClassifiedItem) bool {
		return item.Category == category
	})
}

func orDefault(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
