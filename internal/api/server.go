package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/dunamismax/pageflow/internal/domain"
	"github.com/dunamismax/pageflow/internal/pipeline"
	"github.com/dunamismax/pageflow/internal/ratelimit"
	"github.com/dunamismax/pageflow/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

//go:embed static/index.html
var indexHTML []byte

const defaultMaxUploadBytes = 64 << 20

type Converter interface {
	Convert(ctx context.Context, items []domain.UploadItem, req domain.ConversionRequest) (domain.ConversionResult, error)
	Capabilities() []pipeline.CapabilityStatus
}

type RateLimiter interface {
	Allow(ctx context.Context, subject string, cost int64) (ratelimit.Decision, error)
}

type Options struct {
	Logger      *log.Logger
	Converter   Converter
	LogStore    store.ConversionLogStore
	RateLimiter RateLimiter
	// UserIDHeader identifies the rate limit subject; the client address is
	// used when the header is absent.
	UserIDHeader   string
	MaxUploadBytes int64
	// Defaults seeds every request before form fields are applied.
	Defaults domain.ConversionRequest
}

type Server struct {
	logger         *log.Logger
	converter      Converter
	logStore       store.ConversionLogStore
	rateLimiter    RateLimiter
	userIDHeader   string
	maxUploadBytes int64
	defaults       domain.ConversionRequest
	metrics        *metrics
	tracer         trace.Tracer
	mux            *http.ServeMux
}

func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	logStore := opts.LogStore
	if logStore == nil {
		logStore = store.NewMemoryConversionLogStore(0)
	}
	maxUpload := opts.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	defaults := opts.Defaults
	if defaults.OutputFormat == "" && defaults.Quality == 0 {
		defaults = domain.NewConversionRequest()
	}
	userIDHeader := strings.TrimSpace(opts.UserIDHeader)
	if userIDHeader == "" {
		userIDHeader = "X-User-ID"
	}

	s := &Server{
		logger:         logger,
		converter:      opts.Converter,
		logStore:       logStore,
		rateLimiter:    opts.RateLimiter,
		userIDHeader:   userIDHeader,
		maxUploadBytes: maxUpload,
		defaults:       defaults,
		metrics:        newMetrics(),
		tracer:         otel.Tracer("pageflow/api"),
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.metrics.withHTTPMetrics(s.withTracing(s.withRateLimit(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("POST /convert", s.handleConvert)
	s.mux.HandleFunc("GET /v1/conversions", s.handleListConversions)
	s.mux.HandleFunc("GET /v1/conversions/{id}", s.handleGetConversion)
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(indexHTML)
}

// handleHealthz reports the capabilities probed at startup. A missing
// optional tool degrades the service but does not make it unhealthy.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	caps := s.converter.Capabilities()
	status := "ok"
	for _, c := range caps {
		if !c.Available {
			status = "degraded"
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       status,
		"capabilities": caps,
	})
}

func (s *Server) handleListConversions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(parsed, 500)
	}

	entries, err := s.logStore.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Printf("list conversion logs failed err=%v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load conversion logs"})
		return
	}

	out := make([]conversionLogResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, newConversionLogResponse(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversions": out})
}

func (s *Server) handleGetConversion(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("id")
	entry, ok, err := s.logStore.Get(r.Context(), requestID)
	if err != nil {
		s.logger.Printf("fetch conversion log failed request_id=%s err=%v", requestID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load conversion log"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "conversion not found"})
		return
	}
	writeJSON(w, http.StatusOK, newConversionLogResponse(entry))
}

type conversionLogResponse struct {
	RequestID    string `json:"request_id"`
	Route        string `json:"route,omitempty"`
	OutputFormat string `json:"output_format"`
	InputCount   int    `json:"input_count"`
	InputBytes   int64  `json:"input_bytes"`
	OutputBytes  int64  `json:"output_bytes"`
	Units        int    `json:"units"`
	Status       string `json:"status"`
	Error        string `json:"error,omitempty"`
	DurationMS   int64  `json:"duration_ms"`
	CreatedAt    string `json:"created_at"`
}

func newConversionLogResponse(e domain.ConversionLog) conversionLogResponse {
	return conversionLogResponse{
		RequestID:    e.RequestID,
		Route:        string(e.Route),
		OutputFormat: string(e.OutputFormat),
		InputCount:   e.InputCount,
		InputBytes:   e.InputBytes,
		OutputBytes:  e.OutputBytes,
		Units:        e.Units,
		Status:       e.Status,
		Error:        e.Error,
		DurationMS:   e.DurationMS,
		CreatedAt:    e.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
