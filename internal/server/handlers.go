package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hyperjump/tsumiki/internal/indexer"
	"github.com/hyperjump/tsumiki/internal/inspect"
	"go.uber.org/zap"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	report, err := s.inspector.Inspect(r.Context(), inspect.Options{Sources: true})
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handlePeek(w http.ResponseWriter, r *http.Request) {
	withVectors, ok := s.boolParam(w, r, "embeddings", true)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	report, err := s.inspector.Inspect(r.Context(), inspect.Options{IncludeEmbeddings: withVectors})
	if err != nil {
		s.logger.Error("peek failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

type ingestRequest struct {
	DataDir string `json:"data_dir,omitempty"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	dir, err := resolveDataDir(s.dataDir, req.DataDir)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("ingest request", zap.String("data_dir", dir))

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.pipeline.Run(r.Context(), dir)
	if err != nil {
		s.logger.Error("ingestion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := http.StatusOK
	if res.Outcome == indexer.OutcomeIngested {
		status = http.StatusCreated
	}
	s.respondJSON(w, status, res)
}

// resolveDataDir returns the directory to ingest. A requested directory must lie inside
// base; relative paths are taken relative to base.
func resolveDataDir(base, requested string) (string, error) {
	if requested == "" {
		return base, nil
	}
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", fmt.Errorf("failed to resolve data directory: %w", err)
	}
	dir := requested
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(absBase, dir)
	}
	dir = filepath.Clean(dir)
	rel, err := filepath.Rel(absBase, dir)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("data_dir must be inside %s", base)
	}
	return dir, nil
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		s.respondError(w, http.StatusBadRequest, "source is required")
		return
	}
	dryRun, ok := s.boolParam(w, r, "dry_run", false)
	if !ok {
		return
	}
	s.logger.Debug("delete source request", zap.String("source", source), zap.Bool("dry_run", dryRun))

	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.prune(r.Context(), source, dryRun)
	if err != nil {
		s.logger.Error("deletion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

// boolParam parses an optional boolean query parameter, answering 400 when it is malformed.
func (s *Server) boolParam(w http.ResponseWriter, r *http.Request, name string, def bool) (bool, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid "+name+" parameter")
		return false, false
	}
	return v, true
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
