package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Subash-08/loke-store-sub001/internal/domain"
	"github.com/Subash-08/loke-store-sub001/internal/middleware"
	"github.com/Subash-08/loke-store-sub001/internal/router"
	"github.com/Subash-08/loke-store-sub001/internal/service"
)

// ListHandler serves one list resource (cart or wishlist) over JSON.
type ListHandler struct {
	service service.ListService
	logger  *slog.Logger
}

// NewListHandler creates a handler for one list resource.
func NewListHandler(svc service.ListService, logger *slog.Logger) *ListHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListHandler{service: svc, logger: logger}
}

// Wire shapes shared with the client gateway.
type itemPayload struct {
	ItemKind   domain.ItemKind  `json:"itemKind"`
	ProductRef string           `json:"productRef"`
	VariantRef string           `json:"variantRef,omitempty"`
	Quantity   int64            `json:"quantity,omitempty"`
	UnitPrice  int64            `json:"unitPrice,omitempty"`
	Snapshot   *domain.Snapshot `json:"snapshot,omitempty"`
}

type itemsResponse struct {
	Items []domain.Record `json:"items"`
}

type mergeRequest struct {
	BatchID string        `json:"batchId"`
	Items   []itemPayload `json:"items"`
}

type mergeResultPayload struct {
	ItemKind   domain.ItemKind `json:"itemKind"`
	ProductRef string          `json:"productRef"`
	VariantRef string          `json:"variantRef,omitempty"`
	Status     string          `json:"status"`
	Reason     string          `json:"reason,omitempty"`
}

type mergeResponse struct {
	Results []mergeResultPayload `json:"results"`
	Items   []domain.Record      `json:"items"`
}

func (p itemPayload) record() domain.Record {
	return domain.Record{
		ItemKind:   p.ItemKind,
		ProductRef: p.ProductRef,
		VariantRef: p.VariantRef,
		Quantity:   p.Quantity,
		UnitPrice:  p.UnitPrice,
		Snapshot:   p.Snapshot,
		AddedAt:    time.Now(),
	}
}

func (p itemPayload) key() domain.ItemKey {
	return domain.NewItemKey(p.ItemKind, p.ProductRef, p.VariantRef)
}

// GetItems handles GET {root}
func (h *ListHandler) GetItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Items(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, itemsResponse{Items: emptyIfNil(items)})
}

// AddItem handles POST {root}/items
func (h *ListHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var payload itemPayload
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, r, err)
		return
	}

	items, err := h.service.AddItem(r.Context(), middleware.GetUserID(r.Context()), payload.record())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, itemsResponse{Items: emptyIfNil(items)})
}

// UpdateItem handles PUT {root}/items
func (h *ListHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var payload itemPayload
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, r, err)
		return
	}

	items, err := h.service.UpdateQuantity(r.Context(), middleware.GetUserID(r.Context()), payload.key(), payload.Quantity)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, itemsResponse{Items: emptyIfNil(items)})
}

// RemoveItem handles DELETE {root}/items
func (h *ListHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	var payload itemPayload
	if err := decodeJSON(r, &payload); err != nil {
		respondError(w, r, err)
		return
	}

	items, err := h.service.RemoveItem(r.Context(), middleware.GetUserID(r.Context()), payload.key())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, itemsResponse{Items: emptyIfNil(items)})
}

// Clear handles DELETE {root}
func (h *ListHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, itemsResponse{Items: []domain.Record{}})
}

// Merge handles POST {root}/merge
func (h *ListHandler) Merge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	records := make([]domain.Record, 0, len(req.Items))
	for _, item := range req.Items {
		records = append(records, item.record())
	}

	userID := middleware.GetUserID(r.Context())
	outcome, err := h.service.Merge(r.Context(), userID, req.BatchID, records)
	if err != nil {
		respondError(w, r, err)
		return
	}

	requestLogger(r, h.logger).Info("merge batch processed",
		"batch_id", req.BatchID, "records", len(records))

	resp := mergeResponse{Items: emptyIfNil(outcome.Items), Results: make([]mergeResultPayload, 0, len(outcome.Results))}
	for _, res := range outcome.Results {
		resp.Results = append(resp.Results, mergeResultPayload{
			ItemKind:   res.Key.Kind,
			ProductRef: res.Key.ProductRef,
			VariantRef: res.Key.VariantRef,
			Status:     res.Status,
			Reason:     res.Reason,
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

// RegisterRoutes mounts the handler's routes under the given root, e.g.
// "/api/cart". Route-level middleware applies on top of the router's
// global chain.
func (h *ListHandler) RegisterRoutes(r *router.Router, root string, mergeLimit router.Middleware) {
	r.Get(root, h.GetItems)
	r.Delete(root, h.Clear)
	r.Post(root+"/items", h.AddItem)
	r.Put(root+"/items", h.UpdateItem)
	r.Delete(root+"/items", h.RemoveItem)
	if mergeLimit != nil {
		r.Post(root+"/merge", h.Merge, mergeLimit)
	} else {
		r.Post(root+"/merge", h.Merge)
	}
}

func emptyIfNil(items []domain.Record) []domain.Record {
	if items == nil {
		return []domain.Record{}
	}
	return items
}
