// Package handler exposes registration submission, the report listing and
// the name search over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mssola/useragent"
	"go.opentelemetry.io/otel"

	"eventreg/internal/platform/metrics"
	"eventreg/internal/platform/middleware"
	"eventreg/internal/registration/models"
	"eventreg/internal/registration/validation"
	dErrors "eventreg/pkg/domain-errors"
	"eventreg/pkg/platform/httputil"
	"eventreg/pkg/platform/middleware/metadata"
	"eventreg/pkg/platform/middleware/requesttime"
	"eventreg/pkg/requestcontext"
)

const maxBodyBytes = 64 << 10

// Service defines the registration operations the handler needs.
type Service interface {
	Register(ctx context.Context, raw any, meta models.SubmissionMeta) (*models.Registration, error)
	List(ctx context.Context, limit int) ([]*models.Registration, error)
	FindByName(ctx context.Context, q models.NameQuery) ([]*models.Registration, error)
}

// Handler serves the /registrations routes.
type Handler struct {
	service        Service
	logger         *slog.Logger
	metrics        *metrics.Metrics
	corsOrigin     string
	requestTimeout time.Duration
	submitMW       []func(http.Handler) http.Handler
	readMW         []func(http.Handler) http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithCORSOrigin sets the origin allowed to call the API from a browser.
func WithCORSOrigin(origin string) Option {
	return func(h *Handler) {
		h.corsOrigin = origin
	}
}

func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.requestTimeout = d
	}
}

// WithSubmitMiddleware adds middleware to POST /registrations only.
func WithSubmitMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.submitMW = append(h.submitMW, mw...)
	}
}

// WithReadMiddleware adds middleware to the list and search routes.
func WithReadMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.readMW = append(h.readMW, mw...)
	}
}

// New creates a registration Handler.
func New(service Service, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Handler {
	h := &Handler{
		service:        service,
		logger:         logger,
		metrics:        m,
		corsOrigin:     "*",
		requestTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the registration routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequestID)
		r.Use(middleware.Recovery(h.logger))
		r.Use(requesttime.Middleware)
		r.Use(metadata.ClientMetadata)
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(h.requestTimeout))
		r.Use(middleware.CORS(h.corsOrigin))
		r.Use(middleware.LatencyMiddleware(h.metrics))
		r.Use(middleware.Tracing(otel.Tracer("eventreg/http")))

		r.Options("/registrations", h.handlePreflight)
		r.Options("/registrations/search", h.handlePreflight)
		r.With(h.submitMW...).Post("/registrations", h.handleSubmit)
		r.With(h.readMW...).Get("/registrations", h.handleList)
		r.With(h.readMW...).Get("/registrations/search", h.handleSearch)
	})
}

func (h *Handler) handlePreflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// handleSubmit validates and stores one registration.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	raw, err := decodeBody(w, r)
	if err != nil {
		h.logger.InfoContext(ctx, "registration body rejected",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, validation.MsgInvalidFormat))
		return
	}

	meta := models.SubmissionMeta{
		CreatedAt: requestcontext.Now(ctx),
		SourceIP:  requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
	}
	rec, err := h.service.Register(ctx, raw, meta)
	if err != nil {
		h.logFailure(ctx, "registration rejected", err)
		httputil.WriteError(w, err)
		return
	}

	attrs := []any{
		"registration_id", rec.ID,
		"sequence", rec.Sequence,
		"request_id", requestID,
	}
	if meta.UserAgent != "" {
		ua := useragent.New(meta.UserAgent)
		browser, version := ua.Browser()
		attrs = append(attrs, "browser", browser, "browser_version", version, "os", ua.OS(), "mobile", ua.Mobile())
	}
	h.logger.InfoContext(ctx, "registration accepted", attrs...)

	httputil.WriteJSON(w, http.StatusCreated, &SubmitResponse{OK: true, ID: rec.ID, Sequence: rec.Sequence})
}

// handleList returns the report ordered by sequence.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := parseLimit(r, models.DefaultListLimit)

	items, err := h.service.List(ctx, limit)
	if err != nil {
		h.logFailure(ctx, "registration list failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newListResponse(items))
}

// handleSearch finds registrations by name prefix and optional birth date.
func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	query := models.NameQuery{
		Prefix:    q.Get("name"),
		BirthDate: q.Get("birthDate"),
		Limit:     parseLimit(r, models.DefaultSearchLimit),
	}

	items, err := h.service.FindByName(ctx, query)
	if err != nil {
		h.logFailure(ctx, "registration search failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, newListResponse(items))
}

// logFailure logs client errors at info and everything else at error.
func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	level := slog.LevelError
	if dErrors.Is(err, dErrors.CodeBadRequest) {
		level = slog.LevelInfo
	}
	h.logger.Log(ctx, level, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}

var errTrailingData = errors.New("unexpected data after JSON body")

// decodeBody reads exactly one JSON value.
func decodeBody(w http.ResponseWriter, r *http.Request) (any, error) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, errTrailingData
	}
	return raw, nil
}

// parseLimit reads ?limit=; missing or non-numeric values give def.
func parseLimit(r *http.Request, def int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
