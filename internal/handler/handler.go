package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"card-advisor-api/internal/features"
	"card-advisor-api/internal/middleware"
	"card-advisor-api/internal/models"
	"card-advisor-api/internal/pipeline"
	"card-advisor-api/internal/service"
	"card-advisor-api/internal/validation"
)

// Handler provides HTTP handlers for the API.
type Handler struct {
	service     *service.Service
	pipeline    *pipeline.Pipeline
	features    *features.Manager
	maxBodySize int64
}

// NewHandlerOptions holds options for creating a handler.
type NewHandlerOptions struct {
	MaxBodySize int64
}

// DefaultHandlerOptions returns default handler options.
func DefaultHandlerOptions() NewHandlerOptions {
	return NewHandlerOptions{
		MaxBodySize: 1 << 20, // 1MB default
	}
}

// NewHandler creates a new handler instance.
func NewHandler(svc *service.Service, p *pipeline.Pipeline, flags *features.Manager) *Handler {
	return NewHandlerWithOptions(svc, p, flags, DefaultHandlerOptions())
}

// NewHandlerWithOptions creates a new handler instance with custom options.
func NewHandlerWithOptions(svc *service.Service, p *pipeline.Pipeline, flags *features.Manager, opts NewHandlerOptions) *Handler {
	return &Handler{
		service:     svc,
		pipeline:    p,
		features:    flags,
		maxBodySize: opts.MaxBodySize,
	}
}

// Chat handles POST /chat. The pipeline always produces an envelope, so
// the response is 200 except when the user's LLM quota is exhausted.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	req.Message = validation.SanitizeString(req.Message)
	if req.Message == "" {
		h.respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	useCache := h.features.IsEnabled(features.FeatureCacheEnabled)
	if req.UseCache != nil {
		useCache = useCache && *req.UseCache
	}

	env := h.pipeline.Answer(r.Context(), middleware.UserID(r.Context()), req.Message, req.ConversationID, useCache)

	status := http.StatusOK
	if env.Source == models.SourceError {
		if reason, _ := env.Metadata["reason"].(string); reason == "quota" {
			status = http.StatusTooManyRequests
		}
	}
	h.respondJSON(w, status, env)
}

// GetCards handles GET /cards
func (h *Handler) GetCards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.service.GetCatalogCards(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if cards == nil {
		cards = []models.CatalogCard{}
	}
	h.respondJSON(w, http.StatusOK, cards)
}

// GetCardDetail handles GET /cards/{card_id}
func (h *Handler) GetCardDetail(w http.ResponseWriter, r *http.Request) {
	cardID := validation.SanitizeString(chi.URLParam(r, "card_id"))

	detail, err := h.service.GetCardDetail(r.Context(), cardID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, detail)
}

// UpsertCard handles POST /admin/cards
func (h *Handler) UpsertCard(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req models.UpsertCatalogCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	req.Card.ID = validation.SanitizeString(req.Card.ID)
	req.Card.Bank = validation.SanitizeString(req.Card.Bank)
	req.Card.Name = validation.SanitizeString(req.Card.Name)

	if err := h.service.UpsertCatalogCard(r.Context(), req); err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, req.Card)
}

// UpsertMerchant handles POST /admin/merchants
func (h *Handler) UpsertMerchant(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req models.Merchant
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	req.MerchantKey = validation.SanitizeString(req.MerchantKey)
	req.DisplayName = validation.SanitizeString(req.DisplayName)

	if err := h.service.UpsertMerchant(r.Context(), req); err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, req)
}

// AddUserCard handles POST /users/me/cards
func (h *Handler) AddUserCard(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req models.AddUserCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	req.CatalogCardID = validation.SanitizeString(req.CatalogCardID)

	uc, err := h.service.AddUserCard(r.Context(), middleware.UserID(r.Context()), req)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, uc)
}

// GetUserCards handles GET /users/me/cards
func (h *Handler) GetUserCards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.service.GetUserCards(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if cards == nil {
		cards = []models.UserCard{}
	}
	h.respondJSON(w, http.StatusOK, cards)
}

// DeleteUserCard handles DELETE /users/me/cards/{id}
func (h *Handler) DeleteUserCard(w http.ResponseWriter, r *http.Request) {
	id := validation.SanitizeString(chi.URLParam(r, "id"))

	if err := h.service.DeleteUserCard(r.Context(), middleware.UserID(r.Context()), id); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateReview handles POST /cards/{card_id}/reviews
func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	if !h.features.IsEnabled(features.FeatureCommunityEnabled) {
		h.respondError(w, http.StatusForbidden, "community features are disabled")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var review models.Review
	if err := json.NewDecoder(r.Body).Decode(&review); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	review.CardID = validation.SanitizeString(chi.URLParam(r, "card_id"))
	review.Title = validation.SanitizeString(review.Title)
	review.Body = validation.SanitizeString(review.Body)

	created, err := h.service.CreateReview(r.Context(), middleware.UserID(r.Context()), review)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, created)
}

// GetReviews handles GET /cards/{card_id}/reviews
func (h *Handler) GetReviews(w http.ResponseWriter, r *http.Request) {
	cardID := validation.SanitizeString(chi.URLParam(r, "card_id"))

	reviews, err := h.service.GetReviews(r.Context(), cardID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if reviews == nil {
		reviews = []models.Review{}
	}
	h.respondJSON(w, http.StatusOK, reviews)
}

// CreateThread handles POST /threads
func (h *Handler) CreateThread(w http.ResponseWriter, r *http.Request) {
	if !h.features.IsEnabled(features.FeatureCommunityEnabled) {
		h.respondError(w, http.StatusForbidden, "community features are disabled")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var thread models.Thread
	if err := json.NewDecoder(r.Body).Decode(&thread); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	thread.Title = validation.SanitizeString(thread.Title)
	thread.Body = validation.SanitizeString(thread.Body)

	created, err := h.service.CreateThread(r.Context(), middleware.UserID(r.Context()), thread)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, created)
}

// GetThreads handles GET /threads
func (h *Handler) GetThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := h.service.GetThreads(r.Context())
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if threads == nil {
		threads = []models.Thread{}
	}
	h.respondJSON(w, http.StatusOK, threads)
}

// CreateThreadReply handles POST /threads/{thread_id}/replies
func (h *Handler) CreateThreadReply(w http.ResponseWriter, r *http.Request) {
	if !h.features.IsEnabled(features.FeatureCommunityEnabled) {
		h.respondError(w, http.StatusForbidden, "community features are disabled")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var body struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}

	threadID := validation.SanitizeString(chi.URLParam(r, "thread_id"))

	reply, err := h.service.CreateThreadReply(r.Context(), middleware.UserID(r.Context()), threadID, validation.SanitizeString(body.Body))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, reply)
}

// GetThreadReplies handles GET /threads/{thread_id}/replies
func (h *Handler) GetThreadReplies(w http.ResponseWriter, r *http.Request) {
	threadID := validation.SanitizeString(chi.URLParam(r, "thread_id"))

	replies, err := h.service.GetThreadReplies(r.Context(), threadID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if replies == nil {
		replies = []models.ThreadReply{}
	}
	h.respondJSON(w, http.StatusOK, replies)
}

// Health handles GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respondServiceError maps service errors to HTTP status codes.
func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	var verr *validation.ValidationError
	switch {
	case errors.As(err, &verr):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		h.respondError(w, http.StatusNotFound, "not found")
	default:
		h.respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, models.ErrorResponse{Error: message})
}
