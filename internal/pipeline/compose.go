package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/dunamismax/pageflow/internal/domain"
	"github.com/klauspost/compress/zip"
)

const archiveName = "converted_images.zip"

// compose packages the output units. A single unit is returned as is; more
// than one unit is zipped with entries named page_<n>.<ext> in unit order.
func compose(plan domain.RoutePlan, format domain.OutputFormat, units [][]byte) (domain.ConversionResult, error) {
	switch len(units) {
	case 0:
		return domain.ConversionResult{}, errors.New("conversion produced no output")
	case 1:
		filename := "converted." + format.Extension()
		if plan.Effective() == domain.RoutePDFRecompress {
			filename = "compressed.pdf"
		}
		return domain.ConversionResult{
			Data:     units[0],
			MIMEType: format.MIMEType(),
			Filename: filename,
			Plan:     plan,
			Units:    1,
		}, nil
	}

	data, err := zipUnits(units, format.Extension())
	if err != nil {
		return domain.ConversionResult{}, err
	}
	return domain.ConversionResult{
		Data:     data,
		MIMEType: domain.FormatZIP.MIMEType(),
		Filename: archiveName,
		Archive:  true,
		Plan:     plan,
		Units:    len(units),
	}, nil
}

func zipUnits(units [][]byte, ext string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	modified := time.Now()

	for i, unit := range units {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     fmt.Sprintf("page_%d.%s", i+1, ext),
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return nil, fmt.Errorf("create archive entry %d: %w", i+1, err)
		}
		if _, err := w.Write(unit); err != nil {
			return nil, fmt.Errorf("write archive entry %d: %w", i+1, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}
