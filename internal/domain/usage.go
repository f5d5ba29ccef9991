package domain

import "time"

const (
	ConversionStatusSucceeded = "succeeded"
	ConversionStatusFailed    = "failed"
)

type ConversionLog struct {
	RequestID    string
	Route        Route
	OutputFormat OutputFormat
	InputCount   int
	InputBytes   int64
	OutputBytes  int64
	Units        int
	Status       string
	Error        string
	DurationMS   int64
	CreatedAt    time.Time
}
