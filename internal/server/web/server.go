// Package web serves the read-and-edit viewer for the notebook, the inbound
// platform events endpoint and the metrics endpoint.
package web

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thepicklr/notebook/internal/logging"
	"github.com/thepicklr/notebook/internal/server/models"
)

//go:embed templates/*.html
var templateFS embed.FS

// NotebookService is the entry pipeline surface the viewer needs.
type NotebookService interface {
	FetchAllEntries(ctx context.Context) ([]*models.Entry, error)
	FetchEntry(ctx context.Context, id int64) (*models.Entry, error)
	UpdateEntry(ctx context.Context, id int64, whatDid, whatLearned, projectName string) error
	DeleteEntry(ctx context.Context, id int64) error
	ListProjects(ctx context.Context) ([]string, error)
	ListTags(ctx context.Context) ([]string, error)
}

// UserStore looks up viewer accounts for login.
type UserStore interface {
	GetByName(ctx context.Context, name string) (*models.User, error)
}

// ImageResolver turns archived storage keys into fetchable URLs.
type ImageResolver interface {
	Enabled() bool
	PresignGet(ctx context.Context, key string) (string, error)
}

const (
	authCookieName = "notebook_token"
	sessionName    = "notebook-session"
	tokenValidity  = 24 * time.Hour
)

type Server struct {
	addr      string
	router    *mux.Router
	templates *template.Template
	notebook  NotebookService
	users     UserStore
	images    ImageResolver
	store     *sessions.CookieStore
	secretKey []byte
	logger    logging.Logger
}

// NewServer builds the router. events is the platform endpoint handler,
// mounted under the same server so one listener carries everything.
func NewServer(
	addr string,
	notebook NotebookService,
	users UserStore,
	images ImageResolver,
	events http.Handler,
	secretKey, sessionKey []byte,
	logger logging.Logger,
) (*Server, error) {
	templates, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		addr:      addr,
		templates: templates,
		notebook:  notebook,
		users:     users,
		images:    images,
		store:     sessions.NewCookieStore(sessionKey),
		secretKey: secretKey,
		logger:    logger,
	}

	r := mux.NewRouter()
	r.Use(metricsMiddleware(routeName))
	r.Use(s.userMiddleware)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/entries/{id:[0-9]+}", s.handleEntry).Methods(http.MethodGet)
	r.HandleFunc("/entries/{id:[0-9]+}", s.requireAuth(s.handleEntryUpdate)).Methods(http.MethodPost)
	r.HandleFunc("/entries/{id:[0-9]+}/delete", s.requireAuth(s.handleEntryDelete)).Methods(http.MethodPost)
	r.HandleFunc("/login", s.handleLoginForm).Methods(http.MethodGet)
	r.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	if events != nil {
		r.Handle("/slack/events", events).Methods(http.MethodPost)
	}
	s.router = r

	return s, nil
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if t, err := route.GetPathTemplate(); err == nil {
			return t
		}
	}
	return "unmatched"
}

func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "web server listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info(shutdownCtx, "shutting down web server")
	return srv.Shutdown(shutdownCtx)
}
