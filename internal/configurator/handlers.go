package configurator

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-licence/internal/common"
)

// Handler exposes configuration and quote endpoints.
type Handler struct {
	service *Service
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service *Service
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service}
}

type quoteRequest struct {
	Keys []string `json:"keys"`
}

// Preview handles POST /api/v1/configurations/preview.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req Request
	if !decode(w, r, &req) {
		return
	}
	out, err := h.service.Preview(r.Context(), req)
	if err != nil {
		common.WriteError(w, ToAppError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": out})
}

// Create handles POST /api/v1/configurations.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req Request
	if !decode(w, r, &req) {
		return
	}
	out, err := h.service.Save(r.Context(), req)
	if err != nil {
		common.WriteError(w, ToAppError(err))
		return
	}
	w.Header().Set("Location", "/api/v1/configurations/"+out.Key)
	common.JSON(w, http.StatusCreated, map[string]any{"data": out})
}

// Get handles GET /api/v1/configurations/{key}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Get(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		common.WriteError(w, ToAppError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": res})
}

// CreateQuote handles POST /api/v1/quotes.
func (h *Handler) CreateQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !decode(w, r, &req) {
		return
	}
	quote, err := h.service.SaveQuote(r.Context(), req.Keys)
	if err != nil {
		common.WriteError(w, ToAppError(err))
		return
	}
	w.Header().Set("Location", "/api/v1/quotes/"+quote.ID)
	common.JSON(w, http.StatusCreated, map[string]any{"data": quote})
}

// GetQuote handles GET /api/v1/quotes/{id}.
func (h *Handler) GetQuote(w http.ResponseWriter, r *http.Request) {
	g, err := h.service.GetQuote(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		common.WriteError(w, ToAppError(err))
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": g})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.WriteError(w, &common.AppError{Code: "INVALID_JSON", Message: "request body is not valid JSON", HTTPStatus: http.StatusBadRequest, Err: err})
		return false
	}
	return true
}
