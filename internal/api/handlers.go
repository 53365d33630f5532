// Cinematch - Content-Based Movie Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cinematch

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/cinematch/internal/logging"
	"github.com/tomtom215/cinematch/internal/recommend"
	"github.com/tomtom215/cinematch/internal/validation"
)

// HeaderConsumerID names the view a recommendation request belongs to.
const HeaderConsumerID = "X-Consumer-ID"

// maxBodyBytes bounds interaction request bodies.
const maxBodyBytes = 64 << 10

// Recommender runs one request to completion.
type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) recommend.Response
}

// StatsProvider exposes engine counters for the health endpoint.
type StatsProvider interface {
	Stats() recommend.Stats
}

// InteractionStore persists likes and dislikes.
type InteractionStore interface {
	RecordInteraction(ctx context.Context, in recommend.Interaction) error
	DeleteInteraction(ctx context.Context, profileID string, movieID int) error
	Ping(ctx context.Context) error
}

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	// RequestTimeout bounds dispatcher-routed requests. Direct engine
	// requests use the engine's own timeout.
	RequestTimeout time.Duration
}

// Handler holds the HTTP handlers.
type Handler struct {
	engine       Recommender
	dispatcher   *recommend.Dispatcher
	interactions InteractionStore
	config       HandlerConfig
	logger       zerolog.Logger
}

// NewHandler creates a handler. dispatcher may be nil, in which case the
// consumer header is ignored.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHandler(engine Recommender, dispatcher *recommend.Dispatcher, interactions InteractionStore, cfg HandlerConfig, logger zerolog.Logger) (*Handler, error) {
	if engine == nil {
		return nil, errors.New("recommender is required")
	}
	if interactions == nil {
		return nil, errors.New("interaction store is required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	return &Handler{
		engine:       engine,
		dispatcher:   dispatcher,
		interactions: interactions,
		config:       cfg,
		logger:       logger.With().Str("component", "http_api").Logger(),
	}, nil
}

// Recommendations handles GET /api/v1/recommendations/{profileID}.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be an integer", nil)
			return
		}
		limit = n
	}

	req := recommend.Request{
		ProfileID: chi.URLParam(r, "profileID"),
		Limit:     limit,
		RequestID: logging.RequestIDFromContext(r.Context()),
	}

	var resp recommend.Response
	if consumer := r.Header.Get(HeaderConsumerID); consumer != "" && h.dispatcher != nil {
		resp = h.dispatch(r.Context(), consumer, req)
	} else {
		resp = h.engine.Recommend(r.Context(), req)
	}

	writeJSON(w, recommendStatus(&resp), resp)
}

//nolint:gocritic // hugeParam: req passed by value for immutability
func (h *Handler) dispatch(ctx context.Context, consumer string, req recommend.Request) recommend.Response {
	ctx, cancel := context.WithTimeout(ctx, h.config.RequestTimeout)
	defer cancel()

	start := time.Now()
	select {
	case resp := <-h.dispatcher.Submit(ctx, consumer, req):
		return resp
	case <-ctx.Done():
		return recommend.TimeoutResponse(req, start)
	}
}

// recommendStatus maps a terminal response to an HTTP status code.
func recommendStatus(resp *recommend.Response) int {
	switch {
	case resp.OK():
		return http.StatusOK
	case errors.Is(resp.Err, recommend.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(resp.Err, recommend.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(resp.Err, recommend.ErrCatalogFetchFailed):
		return http.StatusServiceUnavailable
	case errors.Is(resp.Err, recommend.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// InteractionRequest is the body of POST /api/v1/interactions.
type InteractionRequest struct {
	ProfileID string `json:"profile_id" validate:"required,profileid,max=256"`
	MovieID   int    `json:"movie_id" validate:"required,min=1"`
	Type      string `json:"type" validate:"required,oneof=like dislike"`
}

// RecordInteraction handles POST /api/v1/interactions. A later interaction
// for the same profile and movie replaces the earlier one.
func (h *Handler) RecordInteraction(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var body InteractionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_BODY", "Request body must be a JSON interaction", nil)
		return
	}
	if verr := validation.ValidateStruct(&body); verr != nil {
		respondValidationError(w, verr)
		return
	}

	t, err := recommend.ParseInteractionType(body.Type)
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	in := recommend.Interaction{ProfileID: body.ProfileID, MovieID: body.MovieID, Type: t}
	if err := h.interactions.RecordInteraction(r.Context(), in); err != nil {
		respondError(w, http.StatusInternalServerError, "CATALOG_ERROR", "Failed to record interaction", err)
		return
	}

	logging.Ctx(r.Context()).Debug().
		Str("profile_id", sanitizeLogValue(in.ProfileID)).
		Int("movie_id", in.MovieID).
		Str("type", in.Type.String()).
		Msg("interaction recorded")

	respondJSON(w, http.StatusOK, in)
}

// DeleteInteraction handles DELETE /api/v1/interactions/{profileID}/{movieID}.
func (h *Handler) DeleteInteraction(w http.ResponseWriter, r *http.Request) {
	profileID := chi.URLParam(r, "profileID")
	movieID, err := strconv.Atoi(chi.URLParam(r, "movieID"))
	if err != nil || movieID < 1 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "movieID must be a positive integer", nil)
		return
	}

	if err := h.interactions.DeleteInteraction(r.Context(), profileID, movieID); err != nil {
		respondError(w, http.StatusInternalServerError, "CATALOG_ERROR", "Failed to delete interaction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status   string           `json:"status"`
	Catalog  bool             `json:"catalog"`
	Engine   *recommend.Stats `json:"engine,omitempty"`
	Duration string           `json:"duration"`
}

// Health handles GET /health. It reports 503 when the catalog is
// unreachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := HealthStatus{Status: "healthy", Catalog: true}
	if err := h.interactions.Ping(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("catalog health check failed")
		status.Status = "degraded"
		status.Catalog = false
	}
	if sp, ok := h.engine.(StatsProvider); ok {
		stats := sp.Stats()
		status.Engine = &stats
	}
	status.Duration = time.Since(start).String()

	code := http.StatusOK
	if !status.Catalog {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// HealthLive handles GET /health/live.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}
