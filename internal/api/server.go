package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"feedimport/internal/domain"
	"feedimport/internal/ingest"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Runner interface {
	RunSync(ctx context.Context) (domain.SyncResult, error)
}

// Store reads back what the sync imported.
type Store interface {
	GetContentBySlug(ctx context.Context, slug string) (*domain.ContentRecord, error)
	GetSource(ctx context.Context, sourceID int64) (*domain.FeedSource, error)
	CountContents(ctx context.Context) (int, error)
}

type errorResponse struct {
	Error string `json:"error"`
}

type Server struct {
	runner     Runner
	store      Store
	token      string
	runTimeout time.Duration
	log        *slog.Logger
}

func New(runner Runner, store Store, token string, runTimeout time.Duration, log *slog.Logger) *Server {
	return &Server{
		runner:     runner,
		store:      store,
		token:      strings.TrimSpace(token),
		runTimeout: runTimeout,
		log:        log,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/cron/rss", s.handleSync)
		r.Get("/stats", s.handleStats)
		r.Get("/contents/{slug}", s.handleContent)
		r.Get("/sources/{sourceID}", s.handleSource)
	})

	return r
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	// The run outlives a dropped client connection.
	ctx := context.WithoutCancel(r.Context())
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	result, err := s.runner.RunSync(ctx)
	if errors.Is(err, ingest.ErrSyncRunning) {
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		s.log.ErrorContext(r.Context(), "Failed to run sync",
			"error", err,
			"remoteAddr", r.RemoteAddr)

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, errorResponse{Error: err.Error()})
		return
	}

	render.JSON(w, r, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.CountContents(r.Context())
	if err != nil {
		s.internalError(w, r, "Failed to count contents", err)
		return
	}

	render.JSON(w, r, statsResponse{Contents: count})
}

func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	record, err := s.store.GetContentBySlug(r.Context(), slug)
	if err != nil {
		s.internalError(w, r, "Failed to get content", err)
		return
	}
	if record == nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errorResponse{Error: "content not found"})
		return
	}

	render.JSON(w, r, newContentResponse(record))
}

func (s *Server) handleSource(w http.ResponseWriter, r *http.Request) {
	sourceID, err := strconv.ParseInt(chi.URLParam(r, "sourceID"), 10, 64)
	if err != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{Error: "invalid source id"})
		return
	}

	source, err := s.store.GetSource(r.Context(), sourceID)
	if err != nil {
		s.internalError(w, r, "Failed to get source", err)
		return
	}
	if source == nil {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errorResponse{Error: "source not found"})
		return
	}

	render.JSON(w, r, newSourceResponse(source))
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.log.ErrorContext(r.Context(), msg,
		"error", err,
		"path", r.URL.Path)

	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, errorResponse{Error: err.Error()})
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}

		got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, errorResponse{Error: "unauthorized"})
			return
		}

		next.ServeHTTP(w, r)
	})
}
