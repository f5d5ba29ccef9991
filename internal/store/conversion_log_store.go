package store

import (
	"context"
	"errors"

	"github.com/dunamismax/pageflow/internal/domain"
)

var ErrConversionLogNotFound = errors.New("conversion log not found")

// ConversionLogStore records one usage entry per conversion request.
type ConversionLogStore interface {
	Create(ctx context.Context, entry domain.ConversionLog) error
	Get(ctx context.Context, requestID string) (domain.ConversionLog, bool, error)
	Recent(ctx context.Context, limit int) ([]domain.ConversionLog, error)
}
