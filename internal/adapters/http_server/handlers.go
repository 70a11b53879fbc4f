// internal/adapters/http_server/handlers.go
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"review_pulse/internal/adapters/csvsource"
	"review_pulse/internal/app"
	"review_pulse/internal/domain"
)

// maxUploadBytes caps the request body on /v1/analyze.
const maxUploadBytes = 32 << 20

type Handlers struct {
	P        *app.Pipeline
	Defaults app.Options
}

type problem struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Rows   []domain.RowError `json:"rows,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.With(MaxBody(maxUploadBytes)).Post("/v1/analyze", h.analyze)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeRowProblem(w, status, title, detail, nil)
}

func writeRowProblem(w http.ResponseWriter, status int, title, detail string, rows []domain.RowError) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail, Rows: rows}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

type analyzeResponse struct {
	*domain.Result
	RowErrors []domain.RowError `json:"row_errors,omitempty"`
}

// analyze ingests a CSV body (raw or multipart field "file"), runs the
// pipeline and returns the enriched reviews plus a run summary. Per-request
// query params override the configured defaults:
//
//	threshold        dedup similarity threshold, 1..100
//	dedupe           enable/disable near-duplicate collapsing
//	filter_language  enable/disable the language filter
//	language         target language for the filter, e.g. "en"
func (h *Handlers) analyze(w http.ResponseWriter, r *http.Request) {
	opts := h.Defaults

	q := r.URL.Query()
	if v := q.Get("threshold"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			writeProblem(w, http.StatusBadRequest, "Invalid threshold", "threshold must be an integer between 1 and 100")
			return
		}
		opts.DedupThreshold = n
	}
	if v := q.Get("dedupe"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid dedupe", "dedupe must be a boolean")
			return
		}
		opts.Dedupe = b
	}
	if v := q.Get("filter_language"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid filter_language", "filter_language must be a boolean")
			return
		}
		opts.FilterLanguage = b
	}
	if v := q.Get("language"); v != "" {
		opts.TargetLanguage = strings.ToLower(strings.TrimSpace(v))
	}

	src, closeSrc, err := csvBody(r)
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeProblem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", "request body exceeds the upload limit")
		} else {
			writeProblem(w, http.StatusBadRequest, "Invalid upload", err.Error())
		}
		return
	}
	defer closeSrc()

	raws, rowErrs, err := csvsource.Load(src)
	if err != nil {
		var (
			ve  *domain.ValidationError
			mbe *http.MaxBytesError
		)
		switch {
		case errors.As(err, &mbe):
			writeProblem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", "request body exceeds the upload limit")
		case errors.As(err, &ve):
			writeRowProblem(w, http.StatusBadRequest, "Invalid CSV", ve.Message, ve.Rows)
		default:
			writeProblem(w, http.StatusBadRequest, "Invalid CSV", err.Error())
		}
		return
	}

	res, err := h.P.Run(r.Context(), raws, opts)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			// client gone or the Timeout middleware already answered
			log.Info().Err(err).Msg("analyze canceled")
		case errors.Is(err, domain.ErrBatchTooLarge):
			writeProblem(w, http.StatusRequestEntityTooLarge, "Batch Too Large", err.Error())
		default:
			log.Error().Err(err).Msg("analyze failed")
			writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "analysis failed")
		}
		return
	}

	// Fold ingestion rejects into the run summary so totals cover the
	// whole upload, not just the rows that reached the pipeline.
	res.Summary.TotalRows += len(rowErrs)
	res.Summary.RejectedRows = len(rowErrs)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(analyzeResponse{Result: res, RowErrors: rowErrs}); err != nil {
		log.Error().Err(err).Msg("failed to write analyze body")
	}
}

// csvBody returns the CSV stream: the "file" part of a multipart form, or
// the raw request body otherwise.
func csvBody(r *http.Request) (io.Reader, func(), error) {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err == nil && ct == "multipart/form-data" {
		f, _, err := r.FormFile("file")
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				return nil, nil, err
			}
			return nil, nil, errors.New(`multipart upload must carry a "file" field`)
		}
		return f, func() { _ = f.Close() }, nil
	}
	return r.Body, func() {}, nil
}
