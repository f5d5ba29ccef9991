package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/dunamismax/pageflow/internal/domain"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	api.DisableConfigDir()
}

// DocumentHandle is a validated PDF kept as opaque bytes.
type DocumentHandle struct {
	Name  string
	Data  []byte
	Pages int
}

func pdfConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// OpenDocument validates data as a PDF and counts its pages.
func OpenDocument(name string, data []byte) (*DocumentHandle, error) {
	if len(data) == 0 {
		return nil, &domain.DecodeError{Format: "pdf", Err: fmt.Errorf("%s: empty document", name)}
	}

	pages, err := api.PageCount(bytes.NewReader(data), pdfConfig())
	if err != nil {
		return nil, &domain.DecodeError{Format: "pdf", Err: fmt.Errorf("%s: %w", name, err)}
	}
	if pages < 1 {
		return nil, &domain.DecodeError{Format: "pdf", Err: fmt.Errorf("%s: document has no pages", name)}
	}

	return &DocumentHandle{Name: name, Data: data, Pages: pages}, nil
}

// mergeDocuments concatenates the documents in order into a single PDF.
func mergeDocuments(docs []*DocumentHandle) ([]byte, error) {
	switch len(docs) {
	case 0:
		return nil, errors.New("no documents to merge")
	case 1:
		return docs[0].Data, nil
	}

	readers := make([]io.ReadSeeker, 0, len(docs))
	for _, doc := range docs {
		readers = append(readers, bytes.NewReader(doc.Data))
	}

	var out bytes.Buffer
	if err := api.MergeRaw(readers, &out, false, pdfConfig()); err != nil {
		return nil, &domain.DecodeError{Format: "pdf", Err: fmt.Errorf("merge documents: %w", err)}
	}
	return out.Bytes(), nil
}
