package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"golang.org/x/sync/semaphore"

	"github.com/himanishpuri/ReelDNA/internal/session"
	"github.com/himanishpuri/ReelDNA/pkg/reeldna"
	"github.com/himanishpuri/ReelDNA/pkg/utils"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service reeldna.Service
	config  *ServerConfig
	log     reeldna.Logger
	runs    *semaphore.Weighted
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	UploadDir      string
	MaxUploadMB    int64
	MaxConcurrent  int64
	DetectTimeout  time.Duration
	AllowedOrigins []string
}

// NewServer creates a new server instance
func NewServer(service reeldna.Service, config *ServerConfig, log reeldna.Logger) *Server {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 1
	}
	if config.MaxUploadMB <= 0 {
		config.MaxUploadMB = 4096
	}
	if config.DetectTimeout <= 0 {
		config.DetectTimeout = 30 * time.Minute
	}
	return &Server{
		service: service,
		config:  config,
		log:     log,
		runs:    semaphore.NewWeighted(config.MaxConcurrent),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "ReelDNA API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":          "GET /health",
			"metrics":         "GET /api/health/metrics",
			"detect":          "POST /api/detect",
			"detections":      "GET /api/detections",
			"getDetection":    "GET /api/detections/{id}",
			"deleteDetection": "DELETE /api/detections/{id}",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleMetrics handles GET /api/health/metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	count, err := s.service.CountDetections()
	if err != nil {
		s.log.Errorf("Failed to count detections: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve metrics")
		return
	}

	resp := MetricsResponse{
		Status:         "healthy",
		DatabasePath:   s.config.DBPath,
		DetectionCount: count,
	}
	meta, err := s.service.Metadata(r.Context())
	switch {
	case err == nil:
		resp.SessionID = meta.ID
		resp.ReferenceVideo = meta.ReferenceVideo
		resp.SampleCount = len(meta.Samples)
	case errors.Is(err, session.ErrNoMetadata):
		resp.Status = "no_session"
	default:
		s.log.Warnf("Failed to load session metadata: %v", err)
		resp.Status = "degraded"
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleListDetections handles GET /api/detections
func (s *Server) handleListDetections(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r.URL.Query())
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	detections, err := s.service.ListDetections(q.Limit, q.PiratedOnly)
	if err != nil {
		s.log.Errorf("Failed to list detections: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve detections")
		return
	}

	dtos := make([]DetectionDTO, len(detections))
	for i, d := range detections {
		dtos[i] = toDetectionDTO(d)
	}
	s.respondJSON(w, http.StatusOK, ListDetectionsResponse{
		Detections: dtos,
		Count:      len(dtos),
	})
}

// handleGetDetection handles GET /api/detections/{id}
func (s *Server) handleGetDetection(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	d, err := s.service.GetDetection(id)
	if errors.Is(err, reeldna.ErrDetectionNotFound) {
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Detection %s not found", id))
		return
	}
	if err != nil {
		s.log.Errorf("Failed to get detection %s: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve detection")
		return
	}
	s.respondJSON(w, http.StatusOK, toDetectionDTO(*d))
}

// handleDeleteDetection handles DELETE /api/detections/{id}
func (s *Server) handleDeleteDetection(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	err := s.service.DeleteDetection(id)
	if errors.Is(err, reeldna.ErrDetectionNotFound) {
		s.log.Warnf("Detection not found for deletion: %s", id)
		s.respondError(w, http.StatusNotFound, fmt.Sprintf("Detection %s not found", id))
		return
	}
	if err != nil {
		s.log.Errorf("Failed to delete detection %s: %v", id, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to delete detection")
		return
	}

	s.log.Infof("Deleted detection %s", id)
	s.respondJSON(w, http.StatusOK, DeleteDetectionResponse{
		Message: "Detection deleted successfully",
		ID:      id,
	})
}

// handleDetect handles POST /api/detect (multipart upload in the "video" field)
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadMB<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.log.Errorf("Failed to parse form: %v", err)
		s.respondError(w, http.StatusBadRequest, "Failed to parse form data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("video")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "video file is required")
		return
	}
	defer file.Close()

	// The upload keeps its original base name: report source ids are parsed from it.
	path, size, err := s.saveUpload(file, header.Filename)
	if err != nil {
		s.log.Errorf("Failed to save upload: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to save uploaded file")
		return
	}
	s.log.Infof("Received suspect %s (%s)", filepath.Base(path), humanize.Bytes(uint64(size)))

	ctx, cancel := context.WithTimeout(r.Context(), s.config.DetectTimeout)
	defer cancel()

	if err := s.runs.Acquire(ctx, 1); err != nil {
		s.respondError(w, http.StatusServiceUnavailable, "Detection queue is full, try again later")
		return
	}
	defer s.runs.Release(1)

	res, err := s.service.Detect(ctx, path)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, reeldna.ErrDurationUnavailable), errors.Is(err, reeldna.ErrNoRecordedSamples):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, session.ErrNoMetadata):
			status = http.StatusConflict
		}
		s.log.Errorf("Detection failed for %s: %v", path, err)
		s.respondError(w, status, fmt.Sprintf("Detection failed: %v", err))
		return
	}

	s.respondJSON(w, http.StatusCreated, DetectResponse{
		Message:      "Detection complete",
		ID:           res.ID,
		SuspectVideo: path,
		Offset:       res.Sync.Offset,
		Extraction:   res.Extraction.String(),
		Verdict:      res.Verdict,
		Reported:     res.Report != nil,
		Archived:     len(res.Archived),
		Warnings:     res.Warnings,
	})
}

func (s *Server) saveUpload(src io.Reader, name string) (string, int64, error) {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "upload.mp4"
	}
	dir := filepath.Join(s.config.UploadDir, utils.GenerateUUID())
	if err := utils.MakeDir(dir); err != nil {
		return "", 0, err
	}
	path := filepath.Join(dir, name)
	out, err := os.Create(path)
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.RemoveAll(dir)
		return "", 0, err
	}
	return path, n, nil
}
