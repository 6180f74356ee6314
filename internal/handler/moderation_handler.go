package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"trust-service/internal/models"
	"trust-service/internal/service"
	"trust-service/internal/util"
)

// ModerationHandler exposes content moderation and the review queue.
type ModerationHandler struct {
	moderationService *service.ModerationService
}

func NewModerationHandler(moderationService *service.ModerationService) *ModerationHandler {
	return &ModerationHandler{moderationService: moderationService}
}

func (h *ModerationHandler) RegisterRoutes(router chi.Router) {
	router.Route("/moderation", func(r chi.Router) {
		r.Post("/content", h.ModerateContent)
		r.Get("/queue", h.GetQueue)
		r.Post("/queue/{itemID}/review", h.ReviewItem)
		r.Get("/search", h.SearchQueue)
		r.Get("/stats", h.GetStats)
	})
}

func (h *ModerationHandler) ModerateContent(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var item models.ContentItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	result, err := h.moderationService.ModerateContent(r.Context(), &item)
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to moderate content")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(result, "Content moderated"))
	util.Debug("content moderated via HTTP",
		util.String("content_id", item.ID),
		util.String("action", string(result.Action)),
		util.Duration("duration", time.Since(startTime)))
}

func (h *ModerationHandler) GetQueue(w http.ResponseWriter, r *http.Request) {
	filters := models.QueueFilters{
		Status:      models.QueueStatus(r.URL.Query().Get("status")),
		ContentType: models.ContentType(r.URL.Query().Get("content_type")),
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		filters.Limit = limit
	}
	if offset, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil {
		filters.Offset = offset
	}

	items, err := h.moderationService.GetModerationQueue(filters)
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to list moderation queue")
		return
	}

	resp := successResponse(items, "Moderation queue retrieved")
	resp.Meta = &Meta{Total: len(items), Limit: filters.Limit, Offset: filters.Offset}
	respondWithJSON(w, http.StatusOK, resp)
}

type reviewRequest struct {
	Decision   models.ReviewDecision `json:"decision"`
	ReviewedBy string                `json:"reviewed_by"`
	Notes      string                `json:"notes,omitempty"`
}

func (h *ModerationHandler) ReviewItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	if err := h.moderationService.ReviewModerationItem(itemID, req.Decision, req.ReviewedBy, req.Notes); err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to review item")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(nil, "Item reviewed"))
}

func (h *ModerationHandler) SearchQueue(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit := 0
	if parsed, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		limit = parsed
	}

	items, err := h.moderationService.SearchModerationQueue(r.Context(), query, limit)
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to search moderation queue")
		return
	}

	resp := successResponse(items, "Moderation queue searched")
	resp.Meta = &Meta{Total: len(items)}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *ModerationHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	timeframe := r.URL.Query().Get("timeframe")
	if timeframe == "" {
		timeframe = "day"
	}

	stats, err := h.moderationService.GetModerationStats(r.Context(), timeframe)
	if err != nil {
		respondWithError(w, getStatusCode(err), err, "Failed to compute moderation stats")
		return
	}

	respondWithJSON(w, http.StatusOK, successResponse(stats, "Moderation stats computed"))
}
