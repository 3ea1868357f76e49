package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/chrissnell/actisum/internal/activity"
	"github.com/chrissnell/actisum/internal/storage"
	"github.com/chrissnell/actisum/pkg/responseformat"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 256 << 20

// SubmitRequest is one subject's series as posted to the API
type SubmitRequest struct {
	SubjectID    string           `json:"subject_id"`
	StartWeekday activity.Weekday `json:"start_weekday"`
	Start        *time.Time       `json:"start,omitempty"`
	Counts       []int            `json:"counts"`
}

func (r SubmitRequest) series() activity.RawSeries {
	s := activity.NewRawSeries(strings.TrimSpace(r.SubjectID), r.StartWeekday, r.Counts)
	if r.Start != nil {
		s.Start = *r.Start
	}
	return s
}

// BatchResponse answers POST /api/v1/batch
type BatchResponse struct {
	RunID   string            `json:"run_id,omitempty"`
	Results []activity.Result `json:"results"`
}

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	server    *Server
	formatter *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(s *Server) *Handlers {
	return &Handlers{
		server:    s,
		formatter: responseformat.NewFormatter(),
	}
}

// HealthResponse is the body of /healthz. Storage lists the outcome of the
// last write to each backend.
type HealthResponse struct {
	Status  string                    `json:"status"`
	Storage map[string]storage.Health `json:"storage,omitempty"`
}

// Health answers liveness probes
func (h *Handlers) Health(w http.ResponseWriter, req *http.Request) {
	body := HealthResponse{Status: "ok"}
	if h.server.store != nil && h.server.store.Enabled() {
		body.Storage = h.server.store.Health()
	}
	h.formatter.WriteResponse(w, req, http.StatusOK, body)
}

// GetConfig returns the effective processing configuration
func (h *Handlers) GetConfig(w http.ResponseWriter, req *http.Request) {
	h.formatter.WriteResponse(w, req, http.StatusOK, h.server.processor.Config())
}

// PostSummary processes one subject. A rejected subject answers 422 with the
// rejection in the body.
func (h *Handlers) PostSummary(w http.ResponseWriter, req *http.Request) {
	var body SubmitRequest
	if !h.decode(w, req, &body) {
		return
	}
	if strings.TrimSpace(body.SubjectID) == "" {
		h.formatter.WriteError(w, req, http.StatusBadRequest, "subject_id is required")
		return
	}

	result := h.server.processor.Process(body.series())
	h.persist(req, []activity.Result{result})

	status := http.StatusOK
	if result.Status == activity.StatusRejected {
		status = http.StatusUnprocessableEntity
	}
	h.formatter.WriteResponse(w, req, status, result)
}

// PostBatch processes many subjects concurrently. Rejections are reported in
// the results; the request itself only fails on malformed input.
func (h *Handlers) PostBatch(w http.ResponseWriter, req *http.Request) {
	var bodies []SubmitRequest
	if !h.decode(w, req, &bodies) {
		return
	}
	if len(bodies) == 0 {
		h.formatter.WriteError(w, req, http.StatusBadRequest, "batch is empty")
		return
	}

	series := make([]activity.RawSeries, len(bodies))
	for i, b := range bodies {
		if strings.TrimSpace(b.SubjectID) == "" {
			h.formatter.WriteError(w, req, http.StatusBadRequest, "every subject needs a subject_id")
			return
		}
		series[i] = b.series()
	}

	results, err := h.server.runner.Run(req.Context(), series)
	if err != nil {
		h.server.logger.Warnf("batch request abandoned: %v", err)
		h.formatter.WriteError(w, req, http.StatusServiceUnavailable, err.Error())
		return
	}

	h.formatter.WriteResponse(w, req, http.StatusOK, BatchResponse{
		RunID:   h.persist(req, results),
		Results: results,
	})
}

func (h *Handlers) decode(w http.ResponseWriter, req *http.Request, v any) bool {
	req.Body = http.MaxBytesReader(w, req.Body, maxBodyBytes)
	if err := h.formatter.DecodeRequest(req, v); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		h.formatter.WriteError(w, req, status, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// persist stores the results when storage is configured and returns the run id.
// Storage failures are logged; the caller still gets its results.
func (h *Handlers) persist(req *http.Request, results []activity.Result) string {
	store := h.server.store
	if store == nil || !store.Enabled() {
		return ""
	}

	run, err := storage.NewRun(h.server.processor.Config())
	if err != nil {
		h.server.logger.Errorf("could not create run: %v", err)
		return ""
	}
	if err := store.SaveRun(req.Context(), run, results); err != nil {
		h.server.logger.Errorf("could not store run %s: %v", run.ID, err)
		return ""
	}
	return run.ID.String()
}
