package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/semdex/internal/config"
	"github.com/hyperjump/semdex/internal/models"
	"github.com/hyperjump/semdex/internal/service"
)

// multipartMemory is how much of an upload is held in memory before the
// rest spills to temporary files.
const multipartMemory = 32 << 20

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.config.MaxUploadMB > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadMB<<20)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds %d MB", s.config.MaxUploadMB))
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var headers []*multipart.FileHeader
	headers = append(headers, r.MultipartForm.File["files"]...)
	headers = append(headers, r.MultipartForm.File["file"]...)
	if len(headers) == 0 {
		s.respondError(w, http.StatusBadRequest, `no files provided (use form field "files")`)
		return
	}

	files := make([]models.File, 0, len(headers))
	for _, fh := range headers {
		files = append(files, readUpload(fh))
	}
	s.logger.Debug("ingest request", zap.Int("files", len(files)))

	report, err := s.svc.Ingest(r.Context(), files)
	if err != nil {
		s.logger.Error("ingest aborted", zap.Error(err))
		if report == nil {
			s.respondError(w, service.StatusCode(err), err.Error())
			return
		}
		s.respondJSON(w, service.StatusCode(err), report)
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func readUpload(fh *multipart.FileHeader) models.File {
	file := models.File{Name: filepath.Base(fh.Filename)}
	f, err := fh.Open()
	if err != nil {
		file.ReadErr = err
		return file
	}
	defer f.Close()
	file.Content, file.ReadErr = io.ReadAll(f)
	return file
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if r.Method == http.MethodGet {
		req.Query = r.URL.Query().Get("q")
		if k := r.URL.Query().Get("k"); k != "" {
			n, err := strconv.Atoi(k)
			if err != nil {
				s.respondError(w, http.StatusBadRequest, "k must be an integer")
				return
			}
			req.K = n
		}
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}

	s.logger.Debug("query request", zap.String("query", req.Query), zap.Int("k", req.K))
	resp, err := s.svc.Search(r.Context(), req.Query, req.K)
	if err != nil {
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, service.StatusCode(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.svc.Document(r.Context(), id)
	if err != nil {
		s.respondError(w, service.StatusCode(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.svc.Status(r.Context())
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, service.StatusCode(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	dirs := s.watch.Directories()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": dirs})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync bool   `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	s.logger.Debug("watch add directory request", zap.String("path", abs), zap.Bool("sync_existing", req.Sync))
	if err := s.watch.AddDirectory(abs, req.Sync); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("watch remove directory request", zap.String("path", abs))
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" || s.watchConfig == nil {
		return
	}
	s.watchConfigMu.Lock()
	defer s.watchConfigMu.Unlock()
	s.watchConfig.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.watchConfig); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
