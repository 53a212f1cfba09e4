package httpapp

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cesargomez89/mediacache/internal/app"
	"github.com/cesargomez89/mediacache/internal/catalog"
	"github.com/cesargomez89/mediacache/internal/constants"
	"github.com/cesargomez89/mediacache/internal/http/dto"
	"github.com/cesargomez89/mediacache/internal/logger"
	"github.com/cesargomez89/mediacache/internal/mediadb"
	"github.com/cesargomez89/mediacache/internal/metrics"
	"github.com/cesargomez89/mediacache/internal/sqlbuild"
)

type Handler struct {
	Cache      *mediadb.MediaDB
	JobService *app.JobService
	Providers  *catalog.Manager
	Metrics    *metrics.Metrics
	Logger     *logger.Logger
}

func NewHandler(cache *mediadb.MediaDB, js *app.JobService, pm *catalog.Manager, m *metrics.Metrics, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Default()
	}
	return &Handler{
		Cache:      cache,
		JobService: js,
		Providers:  pm,
		Metrics:    m,
		Logger:     log.WithComponent("http"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.Health)
	if h.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.Metrics.Registry(), promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/tracks/{uri}", h.GetTrack)
		r.Get("/artists/{uri}", h.GetArtist)
		r.Get("/users/{uri}", h.GetUserAccount)
		r.Get("/collections/{uri}", h.GetCollection)
		r.Get("/collections/{uri}/items", h.GetCollectionItems)
		r.Get("/library/{kind}", h.GetLibrary)
		r.Get("/history", h.GetHistory)
		r.Get("/stats", h.GetStats)

		r.Get("/state/{key}", h.GetState)
		r.Put("/state/{key}", h.PutState)

		r.Post("/sync/{provider}", h.StartSync)
		r.Post("/prune", h.StartPrune)

		r.Get("/jobs", h.ListJobs)
		r.Get("/jobs/{id}", h.GetJob)
		r.Post("/jobs/{id}/cancel", h.CancelJob)
		r.Post("/jobs/{id}/retry", h.RetryJob)
		r.Delete("/jobs/finished", h.ClearFinishedJobs)
	})
}

// uriParam returns the unescaped path parameter. URIs may carry escaped
// slashes, which chi matches on the raw path.
func uriParam(r *http.Request, name string) (string, error) {
	return url.PathUnescape(chi.URLParam(r, name))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", constants.MimeTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Logger.Error("Failed to encode response", "error", err)
	}
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (h *Handler) writeValidation(w http.ResponseWriter, errs []dto.ValidationError) {
	h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: dto.ToResponse(errs), Fields: dto.ToMap(errs)})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, mediadb.ErrNotFound),
		errors.Is(err, catalog.ErrUnknownProvider),
		errors.Is(err, app.ErrJobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, sqlbuild.ErrInvalidArgument):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.Logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	h.writeJSON(w, status, errorResponse{Error: err.Error()})
}
