// Package api exposes the download manager over HTTP.
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kerbaras/comicdl/pkg/services"
)

// NewRouter registers every route of the download API.
func NewRouter(manager *services.Manager, logger zerolog.Logger) *mux.Router {
	h := &handler{
		manager: manager,
		logger:  logger.With().Str("component", "api").Logger(),
	}

	r := mux.NewRouter()
	r.Use(h.logRequests)

	r.HandleFunc("/downloads", h.listDownloads).Methods(http.MethodGet)
	r.HandleFunc("/queue", h.listQueue).Methods(http.MethodGet)

	c := r.PathPrefix("/comics/{comic}").Subrouter()
	c.HandleFunc("/downloads", h.downloadChapters).Methods(http.MethodPost)
	c.HandleFunc("/info", h.downloadInfo).Methods(http.MethodGet)
	c.HandleFunc("/cover", h.cover).Methods(http.MethodGet)
	c.HandleFunc("/chapters/{chapter}", h.chapterStatus).Methods(http.MethodGet)
	c.HandleFunc("/chapters/{chapter}", h.deleteChapter).Methods(http.MethodDelete)
	c.HandleFunc("/chapters/{chapter}/cancel", h.cancelChapter).Methods(http.MethodPost)
	c.HandleFunc("/chapters/{chapter}/pages", h.pages).Methods(http.MethodGet)
	c.HandleFunc("/chapters/{chapter}/pages/{page:[0-9]+}", h.page).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.Handler())
	return r
}

// NewHTTPServer wraps handler in a server listening on address:port.
func NewHTTPServer(address string, port int, handler http.Handler) *http.Server {
	if port == 0 {
		port = 8088
	}
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", address, port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("Request handled")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
