package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jorge-barreto/syllabot/internal/course"
	"github.com/jorge-barreto/syllabot/internal/gateway"
	"github.com/jorge-barreto/syllabot/internal/pipeline"
	"github.com/jorge-barreto/syllabot/internal/store"
)

const maxBodyBytes = 4 << 20

type outlineRequest struct {
	course.Config
	SocketID        string `json:"socketId"`
	SearchGrounding bool   `json:"searchGrounding"`
}

type chapterRequest struct {
	SocketID  string `json:"socketId"`
	CourseID  string `json:"courseId"`
	ChapterID string `json:"chapterId"`
}

type retryRequest struct {
	chapterRequest
	Section string `json:"section"`
}

type saveRequest struct {
	CourseID string          `json:"courseId"`
	Outline  *course.Outline `json:"outline,omitempty"`
}

type configResponse struct {
	Defaults     course.Defaults       `json:"defaults"`
	Styles       []course.WritingStyle `json:"styles"`
	Languages    []string              `json:"languages"`
	Providers    []string              `json:"providers"`
	Provider     string                `json:"provider"`
	Model        string                `json:"model"`
	HasTavilyKey bool                  `json:"hasTavilyKey"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// respondFailure maps an operation error onto an HTTP status.
func (s *Server) respondFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, pipeline.ErrChapterNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, pipeline.ErrUnknownSection):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, pipeline.ErrNoContent), errors.Is(err, pipeline.ErrNoOutline):
		respondError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// socket resolves the requesting client, answering the request itself
// when the ID is missing or unknown.
func (s *Server) socket(w http.ResponseWriter, id string) (*client, bool) {
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "socketId is required")
		return nil, false
	}
	c, ok := s.hub.get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "socket "+id+" is not connected")
		return nil, false
	}
	return c, true
}

// chapterExists checks the course and chapter before work is queued so
// the caller gets a synchronous 404.
func (s *Server) chapterExists(w http.ResponseWriter, courseID, chapterID string) bool {
	rec, err := s.svc.Course(courseID)
	if err != nil {
		s.respondFailure(w, err)
		return false
	}
	if rec.Outline == nil {
		s.respondFailure(w, pipeline.ErrNoOutline)
		return false
	}
	if rec.Outline.Chapter(chapterID) == nil {
		s.respondFailure(w, pipeline.ErrChapterNotFound)
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "clients": s.hub.Len()})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, configResponse{
		Defaults:     s.opts.Defaults,
		Styles:       course.Styles,
		Languages:    course.Languages,
		Providers:    gateway.Providers(),
		Provider:     s.opts.Provider,
		Model:        s.opts.Model,
		HasTavilyKey: s.opts.SearchEnabled,
	})
}

func (s *Server) handleOutline(w http.ResponseWriter, r *http.Request) {
	var req outlineRequest
	if !decode(w, r, &req) {
		return
	}
	c, ok := s.socket(w, req.SocketID)
	if !ok {
		return
	}
	cfg := req.Config
	cfg.EnableSearch = cfg.EnableSearch || req.SearchGrounding
	if err := cfg.WithDefaults(s.opts.Defaults).Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.start(c, "outline", func(ctx context.Context) error {
		_, err := s.svc.StartOutline(ctx, cfg, c)
		return err
	})
	respondJSON(w, http.StatusAccepted, map[string]bool{"success": true})
}

func (s *Server) handleChapter(w http.ResponseWriter, r *http.Request) {
	var req chapterRequest
	if !decode(w, r, &req) {
		return
	}
	c, ok := s.socket(w, req.SocketID)
	if !ok {
		return
	}
	if !s.chapterExists(w, req.CourseID, req.ChapterID) {
		return
	}
	s.start(c, "chapter", func(ctx context.Context) error {
		_, err := s.svc.GenerateChapter(ctx, req.CourseID, req.ChapterID, c)
		return err
	})
	respondJSON(w, http.StatusAccepted, map[string]bool{"success": true})
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	var req retryRequest
	if !decode(w, r, &req) {
		return
	}
	sec, err := course.ParseSection(req.Section)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, ok := s.socket(w, req.SocketID)
	if !ok {
		return
	}
	if !s.chapterExists(w, req.CourseID, req.ChapterID) {
		return
	}
	s.start(c, "retry "+string(sec), func(ctx context.Context) error {
		return s.svc.RetrySection(ctx, req.CourseID, req.ChapterID, sec, c)
	})
	respondJSON(w, http.StatusAccepted, map[string]bool{"success": true})
}

func (s *Server) handleUpdateOutline(w http.ResponseWriter, r *http.Request) {
	var outline course.Outline
	if !decode(w, r, &outline) {
		return
	}
	key, err := s.svc.UpdateOutline(r.Context(), chi.URLParam(r, "id"), &outline)
	if err != nil {
		if errors.Is(err, course.ErrInvalidOutline) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "courseId": key})
}

// handleSaveHistory optionally replaces the outline and then rewrites the
// markdown export.
func (s *Server) handleSaveHistory(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if !decode(w, r, &req) {
		return
	}
	if req.CourseID == "" {
		respondError(w, http.StatusBadRequest, "courseId is required")
		return
	}
	id := req.CourseID
	if req.Outline != nil {
		key, err := s.svc.UpdateOutline(r.Context(), id, req.Outline)
		if err != nil {
			if errors.Is(err, course.ErrInvalidOutline) {
				respondError(w, http.StatusBadRequest, err.Error())
				return
			}
			s.respondFailure(w, err)
			return
		}
		id = key
	}
	s.exportAndRespond(w, id)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Courses()
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	if list == nil {
		list = []store.Summary{}
	}
	respondJSON(w, http.StatusOK, list)
}

func (s *Server) handleCourse(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Course(chi.URLParam(r, "id"))
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, struct {
		*store.Record
		CourseID string `json:"courseId"`
	}{rec, rec.Key})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := s.svc.DeleteCourse(id)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, store.ErrNotFound.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	s.exportAndRespond(w, chi.URLParam(r, "id"))
}

func (s *Server) exportAndRespond(w http.ResponseWriter, id string) {
	name, err := s.svc.ExportMarkdown(id)
	if err != nil {
		s.respondFailure(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "markdownFile": name})
}
