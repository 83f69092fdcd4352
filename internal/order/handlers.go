package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-storefront/internal/common"
	"github.com/noah-isme/backend-storefront/internal/obs"
)

// Store captures the persistence methods required by the order handlers.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (Order, error)
	ListByCartToken(ctx context.Context, token string) ([]Order, error)
	Count(ctx context.Context, params ListParams) (int64, error)
	List(ctx context.Context, params ListParams) ([]Order, error)
	ListItems(ctx context.Context, orderID uuid.UUID) ([]Item, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error
}

// Detail is the full order payload including lines.
type Detail struct {
	Order
	Items []Item `json:"items"`
}

// Handler exposes storefront order endpoints.
type Handler struct {
	Store Store
}

// List handles GET /api/v1/orders for the caller's cart token.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	token := strings.TrimSpace(r.Header.Get("X-Cart-Token"))
	if token == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "cart token is required", nil)
		return
	}
	orders, err := h.Store.ListByCartToken(r.Context(), token)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list orders", nil)
		return
	}
	if orders == nil {
		orders = []Order{}
	}
	common.Data(w, http.StatusOK, orders)
}

// Get handles GET /api/v1/orders/{orderID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	detail, ok := h.loadDetail(w, r)
	if !ok {
		return
	}
	common.Data(w, http.StatusOK, detail)
}

// Cancel handles POST /api/v1/orders/{orderID}/cancel. Customers may only
// back out before the order ships.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	current, err := h.Store.GetByID(r.Context(), id)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	if err := transition(r.Context(), h.Store, current, StatusCancelled); err != nil {
		writeOrderError(w, err)
		return
	}
	updated, err := h.Store.GetByID(r.Context(), id)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	common.Data(w, http.StatusOK, updated)
}

// AdminHandler exposes order management endpoints.
type AdminHandler struct {
	Store Store
}

type patchStatusRequest struct {
	Status string `json:"status"`
}

// List handles GET /api/v1/admin/orders with status filter and pagination.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	page, perPage := common.ParsePagination(r, 20, 100)
	params := ListParams{Page: page, Limit: perPage}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status := Status(raw)
		if !status.Known() {
			common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown status filter", nil)
			return
		}
		params.Status = status
	}
	total, err := h.Store.Count(r.Context(), params)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to count orders", nil)
		return
	}
	orders, err := h.Store.List(r.Context(), params)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list orders", nil)
		return
	}
	if orders == nil {
		orders = []Order{}
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       orders,
		"pagination": common.Pagination{Page: page, PerPage: perPage, TotalItems: int(total)},
	})
}

// PatchStatus handles PATCH /api/v1/admin/orders/{orderID}/status.
func (h *AdminHandler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	var req patchStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	target := Status(strings.TrimSpace(req.Status))
	if !target.Known() {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown status", nil)
		return
	}
	current, err := h.Store.GetByID(r.Context(), id)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	if err := transition(r.Context(), h.Store, current, target); err != nil {
		writeOrderError(w, err)
		return
	}
	updated, err := h.Store.GetByID(r.Context(), id)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	common.Data(w, http.StatusOK, updated)
}

func (h *Handler) loadDetail(w http.ResponseWriter, r *http.Request) (Detail, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return Detail{}, false
	}
	o, err := h.Store.GetByID(r.Context(), id)
	if err != nil {
		writeOrderError(w, err)
		return Detail{}, false
	}
	items, err := h.Store.ListItems(r.Context(), o.ID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order items", nil)
		return Detail{}, false
	}
	if items == nil {
		items = []Item{}
	}
	return Detail{Order: o, Items: items}, true
}

// transition applies the state machine, then persists with the compare-and-set
// update so a concurrent change surfaces as ErrInvalidTransition.
func transition(ctx context.Context, store Store, current Order, to Status) error {
	if !CanTransition(current.Status, to) {
		return ErrInvalidTransition
	}
	if err := store.UpdateStatus(ctx, current.ID, current.Status, to); err != nil {
		return err
	}
	if obs.OrderStatusTransitions != nil {
		obs.OrderStatusTransitions.WithLabelValues(string(current.Status), string(to)).Inc()
	}
	return nil
}

func writeOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
	case errors.Is(err, ErrInvalidTransition):
		common.JSONError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order operation failed", nil)
	}
}
