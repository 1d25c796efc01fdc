package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"time"

	"github.com/noisersup/filesmanager/auth"
	"github.com/noisersup/filesmanager/files"
	"github.com/noisersup/filesmanager/logger"
	"github.com/noisersup/filesmanager/models"
)

type route struct {
	regex   *regexp.Regexp
	methods []string
	handle  func(w http.ResponseWriter, r *http.Request, args []string) // args are regex matches (ids captured from the path)
}

// Server is a structure responsible for handling all http requests.
type Server struct {
	maxUpload int64
	l         *logger.Logger
	db        models.Database
	cache     models.Cache
	auth      *auth.Auth
	files     *files.Service
	routes    []route
}

func New(l *logger.Logger, db models.Database, cache models.Cache, a *auth.Auth, fs *files.Service, maxUpload int64) *Server {
	s := &Server{maxUpload: maxUpload, l: l, db: db, cache: cache, auth: a, files: fs}

	s.routes = []route{
		{regexp.MustCompile(`^/status$`), []string{"GET"}, s.getStatus},
		{regexp.MustCompile(`^/stats$`), []string{"GET"}, s.getStats},
		{regexp.MustCompile(`^/users$`), []string{"POST"}, s.postNew},
		{regexp.MustCompile(`^/users/me$`), []string{"GET"}, s.getMe},
		{regexp.MustCompile(`^/connect$`), []string{"GET"}, s.getConnect},
		{regexp.MustCompile(`^/disconnect$`), []string{"GET"}, s.getDisconnect},
		{regexp.MustCompile(`^/files$`), []string{"POST"}, s.postUpload},
		{regexp.MustCompile(`^/files$`), []string{"GET"}, s.getIndex},
		{regexp.MustCompile(`^/files/([^/]+)$`), []string{"GET"}, s.getShow},
		{regexp.MustCompile(`^/files/([^/]+)/publish$`), []string{"PUT"}, s.putPublish},
		{regexp.MustCompile(`^/files/([^/]+)/unpublish$`), []string{"PUT"}, s.putUnpublish},
		{regexp.MustCompile(`^/files/([^/]+)/data$`), []string{"GET"}, s.getFile},
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.l.LogV("%s %s", r.Method, r.URL.Path)
	for _, route := range s.routes {
		match := route.regex.FindStringSubmatch(r.URL.Path)
		if match == nil {
			continue
		}
		for _, allowed := range route.methods {
			if r.Method == allowed {
				route.handle(w, r, match[1:])
				return
			}
		}
	}
	s.l.LogV("Cannot handle request %s %s", r.Method, r.URL.Path)
	errResponse(w, http.StatusNotFound, "Not found")
}

// ListenAndServe blocks until ctx is cancelled, then drains connections
func (s *Server) ListenAndServe(ctx context.Context, port string, shutdownTimeout time.Duration) error {
	srv := &http.Server{Addr: ":" + port, Handler: s, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() {
		s.l.Log("Waiting for connection on port: :%s...", port)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.l.Log("Shutting down http server...")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// fail maps service errors onto status codes. Unexpected errors are logged
// and answered without details.
func (s *Server) fail(w http.ResponseWriter, scope string, err error) {
	if msg, ok := models.IsValidation(err); ok {
		errResponse(w, http.StatusBadRequest, msg)
		return
	}
	switch {
	case errors.Is(err, models.ErrUnauthorized):
		errResponse(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, models.ErrNotFound):
		errResponse(w, http.StatusNotFound, "Not found")
	default:
		s.l.SErr(scope, "Internal error: %s", err.Error())
		serverError(w)
	}
}

func writeResponse(w http.ResponseWriter, response interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		logger.Err("JSON encoding error: %s", err)
	}
}

func serverError(w http.ResponseWriter) {
	errResponse(w, http.StatusInternalServerError, "Internal Server Error")
}

func errResponse(w http.ResponseWriter, status int, msg string) {
	w.Header().Del("Content-Disposition")
	writeResponse(w, ErrResponse{Error: msg}, status)
}
