package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chanlens/internal/analyzer"
	"chanlens/internal/ingest"
	"chanlens/internal/provider"
	"chanlens/internal/snapshot"
	"chanlens/pkg/model"
)

const fetchTimeout = 30 * time.Second

// AnalysisResponse carries both analyses of one bar series
type AnalysisResponse struct {
	Snapshot  *snapshot.Meta         `json:"snapshot,omitempty"`
	Bars      int                    `json:"bars"`
	Structure model.StructuralResult `json:"structure"`
	Breakout  model.BreakoutResult   `json:"breakout"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps collaborator errors onto HTTP statuses
func statusFor(err error) int {
	switch {
	case ingest.IsIngestError(err):
		return http.StatusBadRequest
	case errors.Is(err, snapshot.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, snapshot.ErrStorageFull):
		return http.StatusInsufficientStorage
	case errors.Is(err, provider.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, provider.ErrRateLimited):
		return http.StatusTooManyRequests
	case provider.IsProviderError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error(r.Context(), err, "request failed", map[string]interface{}{"path": r.URL.Path, "status": status})
	}
	writeError(w, status, err.Error())
}

func (s *Server) classification(r *http.Request) (analyzer.Classification, error) {
	raw := r.URL.Query().Get("classification")
	if raw == "" {
		return s.mode, nil
	}
	return analyzer.ParseClassification(raw)
}

// queryFromRequest reads source/symbol/interval/limit with config defaults
func (s *Server) queryFromRequest(r *http.Request) (string, provider.Query, error) {
	v := r.URL.Query()

	source := v.Get("source")
	if source == "" {
		source = s.defaults.Source
	}
	q := provider.Query{
		Symbol:   v.Get("symbol"),
		Interval: v.Get("interval"),
		Limit:    s.defaults.Limit,
	}
	if q.Interval == "" {
		q.Interval = s.defaults.Interval
	}
	if raw := v.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return "", q, &provider.ProviderError{Provider: source, Err: errors.Join(provider.ErrInvalidRequest, err)}
		}
		q.Limit = n
	}

	q, err := q.Normalize()
	if err != nil {
		return "", q, &provider.ProviderError{Provider: source, Err: err}
	}
	return source, q, nil
}

func (s *Server) fetch(r *http.Request) (string, provider.Query, []model.Bar, error) {
	source, q, err := s.queryFromRequest(r)
	if err != nil {
		return "", q, nil, err
	}
	p, err := s.providers.Get(source)
	if err != nil {
		if provider.IsProviderError(err) {
			return "", q, nil, err
		}
		return "", q, nil, &provider.ProviderError{Provider: source, Err: errors.Join(provider.ErrInvalidRequest, err)}
	}

	ctx, cancel := context.WithTimeout(r.Context(), fetchTimeout)
	defer cancel()

	bars, err := p.GetBars(ctx, q)
	if err != nil {
		return "", q, nil, err
	}
	if err := ingest.Validate(bars); err != nil {
		return "", q, nil, err
	}
	return source, q, bars, nil
}

// handleStructure runs the structural analysis on a remote series
func (s *Server) handleStructure(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	_, _, bars, err := s.fetch(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analyzer.RunStructuralAnalysis(bars))
}

// handleBreakout runs the bos/choch analysis on a remote series
func (s *Server) handleBreakout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	mode, err := s.classification(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	_, _, bars, err := s.fetch(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analyzer.RunBreakoutAnalysisWith(bars, mode))
}

func analyze(bars []model.Bar, mode analyzer.Classification) AnalysisResponse {
	return AnalysisResponse{
		Bars:      len(bars),
		Structure: analyzer.RunStructuralAnalysis(bars),
		Breakout:  analyzer.RunBreakoutAnalysisWith(bars, mode),
	}
}

// handleUpload parses a csv or json body and analyzes it
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed, use POST")
		return
	}

	mode, err := s.classification(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	v := r.URL.Query()
	format := strings.ToLower(v.Get("format"))
	name := v.Get("name")
	if name == "" {
		name = "upload." + format
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "reading body: "+err.Error())
		return
	}

	var (
		bars   []model.Bar
		source snapshot.Source
	)
	switch format {
	case "csv":
		bars, err = ingest.ParseCSV(bytes.NewReader(body))
		source = snapshot.SourceCSV
	case "json":
		bars, err = ingest.ParseJSON(body)
		source = snapshot.SourceJSON
	default:
		writeError(w, http.StatusBadRequest, "format must be csv or json")
		return
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := analyze(bars, mode)
	if v.Get("save") == "1" {
		saved, err := s.store.Save(r.Context(), snapshot.NewFile(source, name, bars))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		meta := saved.Meta()
		resp.Snapshot = &meta
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSnapshots lists snapshots (GET) or fetches and saves one (POST)
func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		metas, err := s.store.List(r.Context())
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"snapshots": metas})

	case http.MethodPost:
		source, q, bars, err := s.fetch(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		saved, err := s.store.Save(r.Context(), snapshot.NewRemote(snapshot.Source(source), q.Symbol, q.Interval, q.Limit, bars))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, saved.Meta())

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleSnapshot serves /api/snapshots/{id} and /api/snapshots/{id}/analysis
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/snapshots/")
	withAnalysis := false
	if strings.HasSuffix(id, "/analysis") {
		id = strings.TrimSuffix(id, "/analysis")
		withAnalysis = true
	}
	if id == "" {
		writeError(w, http.StatusBadRequest, "snapshot id required")
		return
	}

	switch {
	case r.Method == http.MethodGet && withAnalysis:
		mode, err := s.classification(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		snap, err := s.store.Get(r.Context(), id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		resp := analyze(snap.Bars, mode)
		meta := snap.Meta()
		resp.Snapshot = &meta
		writeJSON(w, http.StatusOK, resp)

	case r.Method == http.MethodGet:
		snap, err := s.store.Get(r.Context(), id)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)

	case r.Method == http.MethodDelete && !withAnalysis:
		if err := s.store.Delete(r.Context(), id); err != nil {
			s.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleProviders lists the registered bar sources
func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"providers": s.providers.List(),
		"default":   s.defaults.Source,
	})
}
