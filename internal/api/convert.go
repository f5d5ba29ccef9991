package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/pageflow/internal/domain"
	"github.com/dunamismax/pageflow/internal/id"
)

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	requestID := id.New()
	w.Header().Set("X-Request-ID", requestID)

	entry := domain.ConversionLog{RequestID: requestID, CreatedAt: start.UTC()}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	items, req, err := parseConvertForm(r, s.defaults)
	entry.InputCount = len(items)
	entry.OutputFormat = domain.ParseOutputFormat(string(req.OutputFormat))
	for _, item := range items {
		entry.InputBytes += int64(len(item.Data))
	}

	var result domain.ConversionResult
	if err == nil {
		result, err = s.converter.Convert(r.Context(), items, req)
	}
	entry.DurationMS = time.Since(start).Milliseconds()

	if err != nil {
		entry.Status = domain.ConversionStatusFailed
		entry.Error = err.Error()
		s.recordConversion(r.Context(), entry)

		status := statusForError(err)
		if status >= http.StatusInternalServerError {
			s.logger.Printf("conversion failed request_id=%s err=%v", requestID, err)
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	entry.Status = domain.ConversionStatusSucceeded
	entry.Route = result.Plan.Effective()
	entry.Units = result.Units
	entry.OutputBytes = int64(len(result.Data))
	s.recordConversion(r.Context(), entry)

	w.Header().Set("Content-Type", result.MIMEType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": result.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(result.Data); err != nil {
		s.logger.Printf("write conversion response failed request_id=%s err=%v", requestID, err)
	}
}

func (s *Server) recordConversion(ctx context.Context, entry domain.ConversionLog) {
	route := string(entry.Route)
	if route == "" {
		route = "none"
	}
	s.metrics.conversionsTotal.WithLabelValues(route, entry.Status).Inc()
	s.metrics.conversionDuration.WithLabelValues(route).Observe(float64(entry.DurationMS) / 1000)
	s.metrics.conversionBytes.WithLabelValues("in").Add(float64(entry.InputBytes))
	s.metrics.conversionBytes.WithLabelValues("out").Add(float64(entry.OutputBytes))

	if err := s.logStore.Create(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Printf("record conversion log failed request_id=%s err=%v", entry.RequestID, err)
	}
}

// statusForError maps caller mistakes to 400 and environment failures to 500.
func statusForError(err error) int {
	if domain.IsUserError(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// parseConvertForm streams the multipart body in order. Every part with a
// filename is an upload regardless of its field name; other parts are
// conversion parameters.
func parseConvertForm(r *http.Request, defaults domain.ConversionRequest) ([]domain.UploadItem, domain.ConversionRequest, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, defaults, fmt.Errorf("%w: expected a multipart/form-data body", domain.ErrInvalidParameter)
	}

	var items []domain.UploadItem
	fields := make(map[string]string)
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, defaults, bodyError(err)
		}

		data, err := io.ReadAll(part)
		_ = part.Close()
		if err != nil {
			return nil, defaults, bodyError(err)
		}

		if filename := part.FileName(); filename != "" {
			items = append(items, domain.UploadItem{
				Filename:  filename,
				MediaType: part.Header.Get("Content-Type"),
				Data:      data,
			})
			continue
		}
		if name := part.FormName(); name != "" {
			fields[name] = strings.TrimSpace(string(data))
		}
	}

	req, err := applyFormFields(defaults, fields)
	if err != nil {
		return items, req, err
	}
	if len(items) == 0 {
		return nil, req, domain.ErrNoFilesUploaded
	}
	return items, req, nil
}

func applyFormFields(req domain.ConversionRequest, fields map[string]string) (domain.ConversionRequest, error) {
	if v := fields["output_format"]; v != "" {
		req.OutputFormat = domain.ParseOutputFormat(v)
	}
	if v := fields["quality"]; v != "" {
		q, err := strconv.Atoi(v)
		if err != nil {
			return req, invalidParam("quality must be an integer")
		}
		req.Quality = q
	}
	if v := fields["dpi"]; v != "" {
		dpi, err := strconv.Atoi(v)
		if err != nil || dpi <= 0 {
			return req, invalidParam("dpi must be a positive integer")
		}
		req.DPI = dpi
	}
	if v := fields["grayscale"]; v != "" {
		gray, err := parseFormBool(v)
		if err != nil {
			return req, invalidParam("grayscale must be true or false")
		}
		req.Grayscale = gray
	}

	width, hasWidth, err := optionalInt(fields, "resize_width")
	if err != nil {
		return req, err
	}
	height, hasHeight, err := optionalInt(fields, "resize_height")
	if err != nil {
		return req, err
	}
	if hasWidth || hasHeight {
		req.Resize = &domain.Size{Width: width, Height: height}
	}
	return req, nil
}

func optionalInt(fields map[string]string, name string) (int, bool, error) {
	v := fields[name]
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, invalidParam(name + " must be an integer")
	}
	return n, true, nil
}

func parseFormBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "true", "1", "on", "yes":
		return true, nil
	case "false", "0", "off", "no":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", v)
	}
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return fmt.Errorf("%w: upload exceeds %d bytes", domain.ErrInvalidParameter, tooLarge.Limit)
	}
	return fmt.Errorf("%w: malformed multipart body: %v", domain.ErrInvalidParameter, err)
}

func invalidParam(msg string) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidParameter, msg)
}
