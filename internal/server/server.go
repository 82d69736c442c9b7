// Package server exposes the blog's JSON API: public reads, admin writes
// and the knowledge-sync control endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Mark577-code/tech-blog/internal/auth"
	"github.com/Mark577-code/tech-blog/internal/content"
	"github.com/Mark577-code/tech-blog/internal/database"
	"github.com/Mark577-code/tech-blog/internal/metrics"
	"github.com/Mark577-code/tech-blog/internal/syncer"
)

// Deps are the services the server routes to.
type Deps struct {
	DB      *database.DB
	Content *content.Service
	Auth    *auth.Authenticator
	// Syncer is nil when the knowledge base is disabled.
	Syncer *syncer.Syncer
	// AutoSync pushes article writes to the knowledge base in the background.
	AutoSync bool
}

// Server is the HTTP API server.
type Server struct {
	Deps
	mux *http.ServeMux

	bg       sync.WaitGroup
	bgCtx    context.Context
	bgCancel context.CancelFunc
}

// New creates a Server.
func New(d Deps) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{Deps: d, mux: http.NewServeMux(), bgCtx: ctx, bgCancel: cancel}
	s.routes()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return logRequests(s.withSession(s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	s.mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	s.mux.HandleFunc("GET /api/auth/me", s.handleMe)

	s.mux.HandleFunc("GET /api/articles", s.handleListArticles)
	s.mux.HandleFunc("POST /api/articles", s.admin(s.handleCreateArticle))
	s.mux.HandleFunc("GET /api/articles/{id}", s.handleGetArticle)
	s.mux.HandleFunc("PUT /api/articles/{id}", s.admin(s.handleUpdateArticle))
	s.mux.HandleFunc("DELETE /api/articles/{id}", s.admin(s.handleDeleteArticle))
	s.mux.HandleFunc("GET /api/articles/slug/{slug}", s.handleGetArticleBySlug)
	s.mux.HandleFunc("GET /api/tags", s.handleListTags)

	s.mux.HandleFunc("GET /api/categories", s.handleListCategories)
	s.mux.HandleFunc("POST /api/categories", s.admin(s.handleCreateCategory))
	s.mux.HandleFunc("GET /api/categories/{id}", s.handleGetCategory)
	s.mux.HandleFunc("PUT /api/categories/{id}", s.admin(s.handleUpdateCategory))
	s.mux.HandleFunc("DELETE /api/categories/{id}", s.admin(s.handleDeleteCategory))

	s.mux.HandleFunc("GET /api/projects", s.handleListProjects)
	s.mux.HandleFunc("POST /api/projects", s.admin(s.handleCreateProject))
	s.mux.HandleFunc("GET /api/projects/{id}", s.handleGetProject)
	s.mux.HandleFunc("PUT /api/projects/{id}", s.admin(s.handleUpdateProject))
	s.mux.HandleFunc("DELETE /api/projects/{id}", s.admin(s.handleDeleteProject))

	s.mux.HandleFunc("GET /api/gallery", s.handleListGallery)
	s.mux.HandleFunc("POST /api/gallery", s.admin(s.handleCreateGalleryImage))
	s.mux.HandleFunc("GET /api/gallery/{id}", s.handleGetGalleryImage)
	s.mux.HandleFunc("PUT /api/gallery/{id}", s.admin(s.handleUpdateGalleryImage))
	s.mux.HandleFunc("DELETE /api/gallery/{id}", s.admin(s.handleDeleteGalleryImage))

	s.mux.HandleFunc("GET /api/stats", s.admin(s.handleStats))
	s.mux.HandleFunc("GET /api/knowledge-sync", s.admin(s.handleSyncStatus))
	s.mux.HandleFunc("POST /api/knowledge-sync", s.admin(s.handleSyncAction))

	s.mux.Handle("GET /metrics", metrics.Handler())
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

// withSession attaches the cookie's user, if valid, to the request context.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u := s.Auth.UserFromRequest(r); u != nil {
			r = r.WithContext(auth.WithUser(r.Context(), u))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) admin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !isAdmin(r) {
			fail(w, http.StatusUnauthorized, "admin privileges required")
			return
		}
		next(w, r)
	}
}

func isAdmin(r *http.Request) bool {
	return auth.FromContext(r.Context()).IsAdmin()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).Round(time.Microsecond),
		}).Debug("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ok(w, map[string]string{"status": "ok"}, "")
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.DB.GetStats()
	if err != nil {
		s.storeError(w, err)
		return
	}
	ok(w, stats, "")
}

// Close cancels background syncs and waits for them to return.
func (s *Server) Close() {
	s.bgCancel()
	s.bg.Wait()
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, srv *Server, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Infof("Server listening on http://%s", addr)
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		srv.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	err := httpServer.Shutdown(shutdownCtx)
	srv.Close()
	return err
}
