package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/okraiev/flavorshop/internal/core/domain"
	"github.com/okraiev/flavorshop/internal/core/service"
)

// HTTPHandler is the JSON surface the chat/UI layer consumes. It only maps
// requests to ShopService calls and typed errors to status codes.
type HTTPHandler struct {
	shop   *service.ShopService
	logger *zap.Logger
}

func NewHTTPHandler(shop *service.ShopService, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{shop: shop, logger: logger}
}

func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.HealthCheck)
	mux.HandleFunc("GET /api/menu", h.Menu)
	mux.HandleFunc("GET /api/items/{size}/{flavor}", h.Item)
	mux.HandleFunc("GET /api/cart", h.Cart)
	mux.HandleFunc("POST /api/cart/add", h.AddToCart)
	mux.HandleFunc("POST /api/cart/change", h.ChangeQuantity)
	mux.HandleFunc("POST /api/cart/clear", h.ClearCart)
	mux.HandleFunc("POST /api/checkout", h.Checkout)
	mux.HandleFunc("GET /api/admin/stock", h.ListStock)
	mux.HandleFunc("POST /api/admin/stock/set", h.SetStock)
	mux.HandleFunc("POST /api/admin/stock/add", h.AddStock)
	mux.HandleFunc("GET /api/admin/photo", h.Photo)
	mux.HandleFunc("POST /api/admin/photo", h.SetPhoto)
}

type itemResponse struct {
	ItemID      string `json:"item_id"`
	Name        string `json:"name"`
	Tag         string `json:"tag,omitempty"`
	Description string `json:"description,omitempty"`
	Quantity    int    `json:"quantity"`
}

type cartLineResponse struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type cartResponse struct {
	Lines []cartLineResponse `json:"lines"`
	Total int                `json:"total"`
}

type cartMutationRequest struct {
	UserID string `json:"user_id"`
	ItemID string `json:"item_id"`
	Delta  int    `json:"delta,omitempty"`
}

type checkoutRequest struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Username    string `json:"username,omitempty"`
}

type checkoutResponse struct {
	OrderID    string             `json:"order_id"`
	Lines      []cartLineResponse `json:"lines"`
	TotalUnits int                `json:"total_units"`
}

type stockMutationRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
	Delta    int    `json:"delta"`
}

type errorResponse struct {
	Error     string `json:"error"`
	ItemID    string `json:"item_id,omitempty"`
	Available *int   `json:"available,omitempty"`
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) Menu(w http.ResponseWriter, r *http.Request) {
	available, err := h.shop.ListAvailable(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]itemResponse, 0, len(available))
	for _, is := range available {
		out = append(out, toItemResponse(is))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) Item(w http.ResponseWriter, r *http.Request) {
	id := domain.ItemID{Size: r.PathValue("size"), Flavor: r.PathValue("flavor")}
	is, err := h.shop.ViewItem(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(is))
}

func (h *HTTPHandler) Cart(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing user"})
		return
	}
	lines, err := h.shop.CartSnapshot(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(lines))
}

func (h *HTTPHandler) AddToCart(w http.ResponseWriter, r *http.Request) {
	req, id, ok := h.decodeCartMutation(w, r)
	if !ok {
		return
	}
	if _, err := h.shop.AddToCart(r.Context(), req.UserID, id); err != nil {
		h.writeError(w, err)
		return
	}
	lines, err := h.shop.CartSnapshot(r.Context(), req.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(lines))
}

func (h *HTTPHandler) ChangeQuantity(w http.ResponseWriter, r *http.Request) {
	req, id, ok := h.decodeCartMutation(w, r)
	if !ok {
		return
	}
	if _, err := h.shop.ChangeQuantity(r.Context(), req.UserID, id, req.Delta); err != nil {
		h.writeError(w, err)
		return
	}
	lines, err := h.shop.CartSnapshot(r.Context(), req.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(lines))
}

func (h *HTTPHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	var req cartMutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := h.shop.ClearCart(r.Context(), req.UserID); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(nil))
}

func (h *HTTPHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	order, err := h.shop.Checkout(r.Context(), domain.User{
		ID:          req.UserID,
		DisplayName: req.DisplayName,
		Username:    req.Username,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := checkoutResponse{
		OrderID:    order.ID,
		Lines:      make([]cartLineResponse, 0, len(order.Lines)),
		TotalUnits: order.Total(),
	}
	for _, ln := range order.Lines {
		resp.Lines = append(resp.Lines, cartLineResponse{
			ItemID:   ln.ItemID.String(),
			Quantity: ln.Quantity,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) ListStock(w http.ResponseWriter, r *http.Request) {
	levels, err := h.shop.ListStock(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]itemResponse, 0, len(levels))
	for _, is := range levels {
		out = append(out, toItemResponse(is))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HTTPHandler) SetStock(w http.ResponseWriter, r *http.Request) {
	var req stockMutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	id, err := domain.ParseItemID(req.ItemID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.shop.SetStock(r.Context(), id, req.Quantity); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) AddStock(w http.ResponseWriter, r *http.Request) {
	var req stockMutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	id, err := domain.ParseItemID(req.ItemID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	quantity, err := h.shop.AddStock(r.Context(), id, req.Delta)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"quantity": quantity})
}

func (h *HTTPHandler) Photo(w http.ResponseWriter, r *http.Request) {
	ref, err := h.shop.Photo(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"photo": ref})
}

func (h *HTTPHandler) SetPhoto(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Photo string `json:"photo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Photo == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if err := h.shop.SetPhoto(r.Context(), req.Photo); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) decodeCartMutation(w http.ResponseWriter, r *http.Request) (cartMutationRequest, domain.ItemID, bool) {
	var req cartMutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return req, domain.ItemID{}, false
	}
	id, err := domain.ParseItemID(req.ItemID)
	if err != nil {
		h.writeError(w, err)
		return req, domain.ItemID{}, false
	}
	return req, id, true
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	var short *domain.StockShortageError
	switch {
	case errors.As(err, &short):
		available := short.Available
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:     "insufficient stock",
			ItemID:    short.ItemID.String(),
			Available: &available,
		})
	case errors.Is(err, domain.ErrEmptyCart):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "cart is empty"})
	case errors.Is(err, domain.ErrUnknownItem):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown item"})
	case errors.Is(err, domain.ErrInvalidQuantity):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid quantity"})
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func toItemResponse(is domain.ItemStock) itemResponse {
	return itemResponse{
		ItemID:      is.Item.ID.String(),
		Name:        is.Item.Name,
		Tag:         is.Item.Tag,
		Description: is.Item.Description,
		Quantity:    is.Quantity,
	}
}

func toCartResponse(lines []domain.CartLine) cartResponse {
	resp := cartResponse{Lines: make([]cartLineResponse, 0, len(lines))}
	for _, ln := range lines {
		resp.Lines = append(resp.Lines, cartLineResponse{
			ItemID:   ln.ItemID.String(),
			Quantity: ln.Quantity,
		})
	}
	resp.Total = domain.CartTotal(lines)
	return resp
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
