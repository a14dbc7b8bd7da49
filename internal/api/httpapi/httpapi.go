package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/BearBump/trackgen/internal/models"
	"github.com/BearBump/trackgen/internal/services/trackingnumbers"
	"github.com/BearBump/trackgen/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Generator interface {
	Generate(ctx context.Context, req models.TrackingRequest) (*models.IssuedTracking, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Recorder interface {
	ObserveRequest(transport, route, status string, d time.Duration)
	Handler() http.Handler
}

type Options struct {
	Generator Generator
	// Ready is pinged by /readyz; nil means always ready.
	Ready Pinger

	RateLimiter        RateLimiter
	RateLimitPerMinute int64

	Metrics     Recorder
	SwaggerPath string
	Logger      *slog.Logger
}

// Старые клиенты шлют *_country_id.
var fieldAliases = map[string]string{
	models.FieldOriginCountry:      "origin_country_id",
	models.FieldDestinationCountry: "destination_country_id",
}

type TrackingNumberResponse struct {
	TrackingNumber string `json:"tracking_number"`
	CreatedAt      string `json:"created_at"`
}

type ValidationErrorResponse struct {
	Errors map[string][]string `json:"errors"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func NewRouter(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	h := &handler{opts: opts, log: opts.Logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if opts.Metrics != nil {
		r.Use(h.metricsMiddleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", h.readyz)

	r.Group(func(r chi.Router) {
		if opts.RateLimiter != nil && opts.RateLimitPerMinute > 0 {
			r.Use(h.rateLimitMiddleware)
		}
		r.Get("/v1/tracking-number", h.generate)
		r.Get("/next-tracking-number", h.generate)
	})

	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
	}

	if opts.SwaggerPath != "" {
		r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			http.ServeFile(w, r, opts.SwaggerPath)
		})
		swaggerURL := "/swagger.json"
		if fi, err := os.Stat(opts.SwaggerPath); err == nil {
			swaggerURL = "/swagger.json?v=" + fi.ModTime().UTC().Format("20060102150405")
		}
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
	}

	return r
}

type handler struct {
	opts Options
	log  *slog.Logger
}

func (h *handler) generate(w http.ResponseWriter, r *http.Request) {
	req, err := validation.Validate(rawFromQuery(r))
	if err != nil {
		var verr *validation.Errors
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, ValidationErrorResponse{Errors: verr.Fields})
			return
		}
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	out, err := h.opts.Generator.Generate(r.Context(), req)
	if err != nil {
		status, msg := classify(err)
		h.log.Error("generate tracking number", "status", status, "err", err,
			"request_id", middleware.GetReqID(r.Context()))
		writeJSON(w, status, ErrorResponse{Error: msg})
		return
	}

	writeJSON(w, http.StatusOK, TrackingNumberResponse{
		TrackingNumber: out.TrackingNumber,
		CreatedAt:      out.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
}

func (h *handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.opts.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.opts.Ready.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "cache unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func rawFromQuery(r *http.Request) models.RawTrackingRequest {
	q := r.URL.Query()
	raw := make(models.RawTrackingRequest, len(models.RequestFields))
	for _, f := range models.RequestFields {
		if q.Has(f) {
			raw[f] = q.Get(f)
			continue
		}
		if alias, ok := fieldAliases[f]; ok && q.Has(alias) {
			raw[f] = q.Get(alias)
		}
	}
	return raw
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, trackingnumbers.ErrCacheUnavailable):
		return http.StatusServiceUnavailable, "cache unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
