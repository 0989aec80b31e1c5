// Package server exposes the course operations over HTTP and streams
// generation events to browser clients over WebSockets.
package server

import (
	"context"
	"errors"
	"net/http"
	"path"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jorge-barreto/syllabot/internal/config"
	"github.com/jorge-barreto/syllabot/internal/course"
	"github.com/jorge-barreto/syllabot/internal/event"
	"github.com/jorge-barreto/syllabot/internal/store"
)

// Service is the set of course operations the server exposes.
type Service interface {
	StartOutline(ctx context.Context, cfg course.Config, sink event.Sink) (string, error)
	GenerateChapter(ctx context.Context, courseID, chapterID string, sink event.Sink) (string, error)
	RetrySection(ctx context.Context, courseID, chapterID string, sec course.Section, sink event.Sink) error
	UpdateOutline(ctx context.Context, courseID string, outline *course.Outline) (string, error)
	Courses() ([]store.Summary, error)
	Course(id string) (*store.Record, error)
	DeleteCourse(id string) (bool, error)
	ExportMarkdown(id string) (string, error)
}

// Options configures a Server.
type Options struct {
	Config   config.Server
	Defaults course.Defaults

	// Provider and Model are the defaults offered to clients.
	Provider string
	Model    string

	// SearchEnabled reports whether a web search key is configured.
	SearchEnabled bool

	HistoryDir string
	CoursesDir string
}

type Server struct {
	svc    Service
	opts   Options
	hub    *Hub
	logger *zap.Logger

	base     context.Context
	stop     context.CancelFunc
	jobs     sync.WaitGroup
	upgrader websocket.Upgrader
}

func New(svc Service, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, stop := context.WithCancel(context.Background())
	s := &Server{
		svc:    svc,
		opts:   opts,
		hub:    NewHub(),
		logger: logger,
		base:   base,
		stop:   stop,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.originAllowed,
	}
	return s
}

// Hub returns the socket registry.
func (s *Server) Hub() *Hub { return s.hub }

// originAllowed matches the Origin header against the allowed origins,
// where * matches any run of characters other than '/'. An empty list
// allows every origin, as rs/cors does.
func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.opts.Config.AllowedOrigins) == 0 {
		return true
	}
	for _, pattern := range s.opts.Config.AllowedOrigins {
		if pattern == "*" || pattern == origin {
			return true
		}
		if ok, _ := path.Match(pattern, origin); ok {
			return true
		}
	}
	return false
}

// Handler builds the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleSocket)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Use(middleware.Compress(5))

		r.Get("/config", s.handleConfig)
		r.Post("/outline", s.handleOutline)
		r.Post("/chapter", s.handleChapter)
		r.Post("/retry", s.handleRetry)
		r.Post("/course/{id}/outline", s.handleUpdateOutline)
		r.Post("/save-history", s.handleSaveHistory)

		r.Get("/history", s.handleHistory)
		r.Get("/history/{id}", s.handleCourse)
		r.Delete("/history/{id}", s.handleDelete)
		r.Post("/history/{id}/regenerate", s.handleRegenerate)
	})

	if s.opts.HistoryDir != "" {
		r.Handle("/history-files/*", http.StripPrefix("/history-files/", http.FileServer(http.Dir(s.opts.HistoryDir))))
	}
	if s.opts.Config.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.opts.Config.StaticDir)))
	}

	c := cors.New(cors.Options{
		AllowedOrigins: s.opts.Config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(r)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	c := newClient(s.base, conn, s.logger)
	s.hub.add(c)
	s.logger.Info("client connected", zap.String("socket", c.id))

	go c.writeLoop()
	go c.readLoop(func() {
		s.hub.remove(c.id)
		s.logger.Info("client disconnected", zap.String("socket", c.id))
	})
	c.Emit(Connected, map[string]string{"socketId": c.id})
}

// start runs op in the background on behalf of c. Failures have already
// been reported to c as events by the time op returns.
func (s *Server) start(c *client, name string, op func(ctx context.Context) error) {
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		if err := op(c.ctx); err != nil {
			s.logger.Warn(name+" failed", zap.String("socket", c.id), zap.Error(err))
		}
	}()
}

// Run serves HTTP and watches the course directory until ctx ends, then
// shuts down, cancelling running generations.
func (s *Server) Run(ctx context.Context) error {
	addr := s.opts.Config.Addr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if s.opts.CoursesDir != "" {
		g.Go(func() error {
			return watchCourses(gctx, s.opts.CoursesDir, func() {
				s.hub.Broadcast(event.HistoryUpdated, struct{}{})
			}, s.logger)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		s.stop()
		s.hub.closeAll()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.jobs.Wait()
		s.logger.Info("server stopped")
		return err
	})
	return g.Wait()
}
