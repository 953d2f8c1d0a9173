// Package api exposes the catalog and identification workflow as JSON over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mmynk/plantid/internal/auth"
	"github.com/mmynk/plantid/internal/catalog"
	"github.com/mmynk/plantid/internal/health"
	"github.com/mmynk/plantid/internal/inference"
	"github.com/mmynk/plantid/internal/middleware"
	"github.com/mmynk/plantid/internal/models"
	"github.com/mmynk/plantid/internal/remote"
	"github.com/mmynk/plantid/internal/service"
	"github.com/mmynk/plantid/internal/storage"
)

// OutboxDepth reports the number of pending remote writes.
type OutboxDepth interface {
	OutboxDepth(ctx context.Context) (int, error)
}

// Handler serves the HTTP API.
type Handler struct {
	catalog *catalog.Catalog
	ids     *service.IdentificationService
	outbox  OutboxDepth
	health  *health.Tracker
}

// New creates the API handler. outbox may be nil.
func New(cat *catalog.Catalog, ids *service.IdentificationService, outbox OutboxDepth, tracker *health.Tracker) *Handler {
	return &Handler{catalog: cat, ids: ids, outbox: outbox, health: tracker}
}

// Routes registers every endpoint on a new mux. Identification and user
// endpoints require a session token.
func (h *Handler) Routes(jwtManager *auth.JWTManager) *http.ServeMux {
	mux := http.NewServeMux()
	authed := middleware.RequireAuth(jwtManager)

	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("GET /v1/status", h.status)
	mux.HandleFunc("GET /v1/stats", h.stats)

	mux.HandleFunc("GET /v1/plants", h.searchPlants)
	mux.HandleFunc("GET /v1/plants/{id}", h.getPlant)
	mux.HandleFunc("GET /v1/plants/category/{type}", h.plantsByCategory)
	mux.HandleFunc("GET /v1/plants/region/{region}", h.plantsByRegion)
	mux.HandleFunc("GET /v1/plants/endemic", h.endemicPlants)
	mux.HandleFunc("GET /v1/plants/native", h.nativePlants)
	mux.HandleFunc("GET /v1/meta/{kind}", h.meta)

	mux.HandleFunc("POST /v1/sync", h.sync)
	mux.HandleFunc("POST /v1/cache/invalidate", h.invalidate)

	mux.Handle("GET /v1/users/{id}", authed(http.HandlerFunc(h.getUser)))
	mux.Handle("POST /v1/identifications", authed(http.HandlerFunc(h.identify)))
	mux.Handle("POST /v1/identifications/{id}/confirm", authed(http.HandlerFunc(h.confirm)))
	mux.Handle("GET /v1/identifications", authed(http.HandlerFunc(h.history)))
	mux.Handle("GET /v1/identifications/stats", authed(http.HandlerFunc(h.identificationStats)))
	mux.Handle("GET /v1/collection", authed(http.HandlerFunc(h.collection)))

	return mux
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Available   bool                `json:"available"`
	Stage       string              `json:"stage"`
	Model       inference.ModelInfo `json:"model"`
	OutboxDepth int                 `json:"outboxDepth"`
	Health      health.Snapshot     `json:"health"`
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Available: h.ids.IsAvailable(),
		Stage:     h.ids.Stage().String(),
		Model:     h.ids.ModelInfo(),
		Health:    h.health.Snapshot(),
	}
	if h.outbox != nil {
		depth, err := h.outbox.OutboxDepth(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		resp.OutboxDepth = depth
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.catalog.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) searchPlants(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := intParam(q.Get("page"))
	if err != nil {
		writeBadRequest(w, "invalid page")
		return
	}
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		writeBadRequest(w, "invalid limit")
		return
	}

	filters := models.Filters{
		Region:             q.Get("region"),
		PlantType:          models.PlantType(q.Get("plantType")),
		Family:             q.Get("family"),
		Origin:             models.Origin(q.Get("distribution")),
		ConservationStatus: q.Get("conservationStatus"),
		SearchTerm:         q.Get("q"),
	}
	result, err := h.catalog.Search(r.Context(), filters, page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) getPlant(w http.ResponseWriter, r *http.Request) {
	plant, err := h.catalog.GetPlant(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if plant == nil {
		writeNotFound(w, "plant not found")
		return
	}
	writeJSON(w, http.StatusOK, plant)
}

func (h *Handler) plantsByCategory(w http.ResponseWriter, r *http.Request) {
	h.browse(w, r, func(ctx context.Context, limit int) (*models.SearchResult, error) {
		return h.catalog.ByCategory(ctx, models.PlantType(r.PathValue("type")), limit)
	})
}

func (h *Handler) plantsByRegion(w http.ResponseWriter, r *http.Request) {
	h.browse(w, r, func(ctx context.Context, limit int) (*models.SearchResult, error) {
		return h.catalog.ByRegion(ctx, r.PathValue("region"), limit)
	})
}

func (h *Handler) endemicPlants(w http.ResponseWriter, r *http.Request) {
	h.browse(w, r, h.catalog.Endemic)
}

func (h *Handler) nativePlants(w http.ResponseWriter, r *http.Request) {
	h.browse(w, r, h.catalog.Native)
}

func (h *Handler) browse(w http.ResponseWriter, r *http.Request, fn func(context.Context, int) (*models.SearchResult, error)) {
	limit, err := intParam(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, "invalid limit")
		return
	}
	result, err := fn(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) meta(w http.ResponseWriter, r *http.Request) {
	var (
		values any
		err    error
	)
	switch r.PathValue("kind") {
	case "families":
		values, err = h.catalog.Families(r.Context())
	case "regions":
		values, err = h.catalog.Regions(r.Context())
	case "plant-types":
		values = h.catalog.PlantTypes()
	default:
		writeNotFound(w, "unknown metadata kind")
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, values)
}

func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	report, err := h.catalog.SyncAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) invalidate(w http.ResponseWriter, r *http.Request) {
	h.catalog.InvalidateAll()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id != middleware.GetUserID(r.Context()) {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "cannot read another user's profile"})
		return
	}
	user, err := h.catalog.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if user == nil {
		writeNotFound(w, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// IdentifyRequest is the body of POST /v1/identifications.
type IdentifyRequest struct {
	Capture models.Capture `json:"capture"`
	Filters models.Filters `json:"filters"`
}

func (h *Handler) identify(w http.ResponseWriter, r *http.Request) {
	var req IdentifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	identification, err := h.ids.IdentifyPlant(r.Context(), req.Capture, req.Filters, middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, identification)
}

// ConfirmRequest is the body of POST /v1/identifications/{id}/confirm.
type ConfirmRequest struct {
	PlantID string `json:"plantId"`
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlantID == "" {
		writeBadRequest(w, "plantId is required")
		return
	}

	result, err := h.ids.ConfirmIdentification(r.Context(), r.PathValue("id"), req.PlantID, middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	if result == nil {
		writeNotFound(w, "identification not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	identifications, err := h.ids.History(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	if identifications == nil {
		identifications = []*models.Identification{}
	}
	writeJSON(w, http.StatusOK, identifications)
}

func (h *Handler) identificationStats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.ids.Stats(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) collection(w http.ResponseWriter, r *http.Request) {
	collection, err := h.ids.Collection(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	if collection == nil {
		collection = []*models.PlantCollection{}
	}
	writeJSON(w, http.StatusOK, collection)
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps workflow and store errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, service.ErrNoMatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrInvalidCapture),
		errors.Is(err, inference.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, inference.ErrModelNotReady),
		errors.Is(err, storage.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, remote.ErrRemoteUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("Request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func writeNotFound(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

// intParam parses an optional integer query parameter. Empty is zero.
func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
