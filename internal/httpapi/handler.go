package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nikolayk812/grocery-cart/internal/cart"
	"github.com/nikolayk812/grocery-cart/internal/checkout"
	"github.com/nikolayk812/grocery-cart/internal/domain"
	"go.uber.org/zap"
)

type Handler struct {
	session  *cart.Session
	checkout *checkout.Builder
	timeout  time.Duration
	logger   *zap.Logger
}

func NewHandler(session *cart.Session, builder *checkout.Builder, timeout time.Duration, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Handler{
		session:  session,
		checkout: builder,
		timeout:  timeout,
		logger:   logger,
	}
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"}, h.logger)
}

func (h *Handler) GetCart(w http.ResponseWriter, _ *http.Request) {
	h.respondCart(w, http.StatusOK)
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	var item domain.CartItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if isBlank(item.ProductID) {
		h.respondError(w, http.StatusBadRequest, "invalid_product_id", "productId is required")
		return
	}

	if err := h.session.Store.Add(ctx, item); err != nil {
		h.internalError(w, "store.Add", err)
		return
	}

	h.respondCart(w, http.StatusOK)
}

func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	key, ok := h.lineKey(w, r)
	if !ok {
		return
	}

	var req quantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.session.Store.SetQuantity(ctx, key, req.value()); err != nil {
		h.internalError(w, "store.SetQuantity", err)
		return
	}

	h.respondCart(w, http.StatusOK)
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	key, ok := h.lineKey(w, r)
	if !ok {
		return
	}

	if err := h.session.Store.Remove(ctx, key); err != nil {
		h.internalError(w, "store.Remove", err)
		return
	}

	h.respondCart(w, http.StatusOK)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	if err := h.session.Store.Clear(ctx); err != nil {
		h.internalError(w, "store.Clear", err)
		return
	}

	h.respondCart(w, http.StatusOK)
}

func (h *Handler) ToggleSelection(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	key, ok := h.lineKey(w, r)
	if !ok {
		return
	}

	if err := h.session.Selection.Toggle(ctx, key); err != nil {
		h.internalError(w, "selection.Toggle", err)
		return
	}

	h.respondCart(w, http.StatusOK)
}

func (h *Handler) SetSelection(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	var req selectAllRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.session.Selection.SetAll(ctx, req.All); err != nil {
		h.internalError(w, "selection.SetAll", err)
		return
	}

	h.respondCart(w, http.StatusOK)
}

func (h *Handler) GetTotals(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	quote := h.checkout.Quote(ctx)
	respondJSON(w, http.StatusOK, mapQuoteToTotals(quote), h.logger)
}

func (h *Handler) GetReorder(w http.ResponseWriter, _ *http.Request) {
	h.respondReorder(w, http.StatusOK)
}

func (h *Handler) StageReorder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	var items []domain.CartItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.session.Tray.Stage(ctx, items); err != nil {
		h.internalError(w, "tray.Stage", err)
		return
	}

	h.respondReorder(w, http.StatusOK)
}

func (h *Handler) SetReorderQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	key, ok := h.lineKey(w, r)
	if !ok {
		return
	}

	var req quantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.session.Tray.SetQuantity(ctx, key, req.value()); err != nil {
		h.internalError(w, "tray.SetQuantity", err)
		return
	}

	h.respondReorder(w, http.StatusOK)
}

func (h *Handler) RemoveReorderItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	key, ok := h.lineKey(w, r)
	if !ok {
		return
	}

	if err := h.session.Tray.Remove(ctx, key); err != nil {
		h.internalError(w, "tray.Remove", err)
		return
	}

	h.respondReorder(w, http.StatusOK)
}

func (h *Handler) MergeReorder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	merged, err := h.session.Tray.MergeIntoCart(ctx)
	if err != nil {
		h.internalError(w, "tray.MergeIntoCart", err)
		return
	}

	respondJSON(w, http.StatusOK, mergeResponse{Merged: keyStrings(merged)}, h.logger)
}

func (h *Handler) DiscardReorder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	if err := h.session.Tray.Discard(ctx); err != nil {
		h.internalError(w, "tray.Discard", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	snapshot, ok, err := h.checkout.Build(ctx)
	if err != nil {
		h.internalError(w, "checkout.Build", err)
		return
	}
	if !ok {
		h.respondError(w, http.StatusConflict, "empty_selection", "no cart lines are selected")
		return
	}

	respondJSON(w, http.StatusCreated, snapshot, h.logger)
}

func (h *Handler) PeekCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	snapshot, ok, err := h.checkout.Peek(ctx)
	if err != nil {
		h.internalError(w, "checkout.Peek", err)
		return
	}
	if !ok {
		h.respondError(w, http.StatusNotFound, "not_found", "no pending checkout")
		return
	}

	respondJSON(w, http.StatusOK, snapshot, h.logger)
}

func (h *Handler) ConsumeCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r)
	defer cancel()

	snapshot, ok, err := h.checkout.Consume(ctx)
	if err != nil {
		h.internalError(w, "checkout.Consume", err)
		return
	}
	if !ok {
		h.respondError(w, http.StatusNotFound, "not_found", "no pending checkout")
		return
	}

	respondJSON(w, http.StatusOK, snapshot, h.logger)
}

func (h *Handler) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.timeout)
}

func (h *Handler) lineKey(w http.ResponseWriter, r *http.Request) (domain.LineKey, bool) {
	raw, err := url.PathUnescape(chi.URLParam(r, "key"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid_key", "key is not a valid path segment")
		return domain.LineKey{}, false
	}

	key := domain.ParseLineKey(raw)
	if key.IsZero() {
		h.respondError(w, http.StatusBadRequest, "invalid_key", "key is empty")
		return domain.LineKey{}, false
	}

	return key, true
}

func (h *Handler) respondCart(w http.ResponseWriter, status int) {
	items := h.session.Store.List()

	resp := cartResponse{Items: make([]lineDTO, 0, len(items))}
	for _, item := range items {
		selected := h.session.Selection.IsSelected(item.Key())
		if selected {
			resp.SelectedCount++
		}
		resp.Items = append(resp.Items, mapItemToLine(item, selected))
	}
	resp.CanCheckout = resp.SelectedCount > 0

	respondJSON(w, status, resp, h.logger)
}

func (h *Handler) respondReorder(w http.ResponseWriter, status int) {
	respondJSON(w, status, reorderResponse{Items: h.session.Tray.List()}, h.logger)
}

func (h *Handler) internalError(w http.ResponseWriter, op string, err error) {
	h.logger.Error("request failed", zap.String("op", op), zap.Error(err))
	h.respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func (h *Handler) respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code}, h.logger)
}

func respondJSON(w http.ResponseWriter, status int, data any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("failed to encode response", zap.Error(err))
	}
}
