package catalog

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/backend-licence/internal/common"
	"github.com/noah-isme/backend-licence/internal/pricelist"
)

const publicCache = "public, max-age=60"

// Handler exposes public price list endpoints.
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

// PriceListView is the public price list payload.
type PriceListView struct {
	Family              string                `json:"family"`
	Option              string                `json:"option,omitempty"`
	MinUnits            int                   `json:"minUnits"`
	MaxUnits            int                   `json:"maxUnits"`
	MinUnitsStep        int                   `json:"minUnitsStep"`
	MinYears            string                `json:"minYears"`
	MaxYears            string                `json:"maxYears"`
	AvailableExtensions []pricelist.Extension `json:"availableExtensions"`
	Products            []pricelist.Entry     `json:"products"`
	Extensions          []pricelist.Entry     `json:"extensions"`
}

// PriceList handles GET /api/v1/products/{family}/price-list.
func (h *Handler) PriceList(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	family := chi.URLParam(r, "family")
	list, err := h.service.PriceList(r.Context(), family, r.URL.Query().Get("option"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !list.Available() {
		common.JSONError(w, http.StatusNotFound, "PRODUCT_UNAVAILABLE", "product is not available", map[string]any{"family": list.Family})
		return
	}
	w.Header().Set("Cache-Control", publicCache)
	common.JSON(w, http.StatusOK, map[string]any{"data": PriceListView{
		Family:              list.Family,
		Option:              list.Option,
		MinUnits:            list.MinUnits,
		MaxUnits:            list.MaxUnits,
		MinUnitsStep:        list.MinUnitsStep,
		MinYears:            list.MinYears.String(),
		MaxYears:            list.MaxYears.String(),
		AvailableExtensions: list.AvailableExtensions,
		Products:            list.Products,
		Extensions:          list.Extensions,
	}})
}

// Appliances handles GET /api/v1/products/{family}/appliances.
func (h *Handler) Appliances(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog service not configured", nil)
		return
	}
	list, err := h.service.ApplianceList(r.Context(), chi.URLParam(r, "family"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	if len(list.Appliances) == 0 {
		common.JSONError(w, http.StatusNotFound, "PRODUCT_UNAVAILABLE", "no appliances available", map[string]any{"family": list.Family})
		return
	}
	w.Header().Set("Cache-Control", publicCache)
	common.JSON(w, http.StatusOK, map[string]any{"data": list})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrFamilyRequired) {
		common.JSONError(w, http.StatusBadRequest, "INVALID_FAMILY", "product family is required", nil)
		return
	}
	common.WriteError(w, err)
}
