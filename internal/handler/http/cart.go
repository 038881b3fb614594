package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/nainu25/ELEMENT-01/internal/cart"
	"github.com/nainu25/ELEMENT-01/internal/domain"
	"github.com/nainu25/ELEMENT-01/internal/service"
	"github.com/nainu25/ELEMENT-01/pkg/httputil"
	"github.com/nainu25/ELEMENT-01/pkg/validator"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	sessions *cart.Sessions
	service  *service.CartService
	logger   *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(sessions *cart.Sessions, svc *service.CartService, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		service:  svc,
		logger:   logger,
	}
}

// --- Request DTOs ---

// AddItemRequest is the JSON request body for adding a product to the cart.
// ProductID accepts a catalog UUID or slug.
type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"required,max=200"`
}

// UpdateQuantityRequest is the JSON request body for updating a line's
// quantity. Values below 1 are clamped to 1.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// ToggleRequest is the optional JSON body for toggling the cart panel.
type ToggleRequest struct {
	Open *bool `json:"open"`
}

// --- Response DTOs ---

// CartResponse is the cart view returned by every cart endpoint.
type CartResponse struct {
	SessionID          string            `json:"session_id"`
	Items              []domain.LineItem `json:"items"`
	IsOpen             bool              `json:"is_open"`
	Subtotal           decimal.Decimal   `json:"subtotal"`
	ItemCount          int               `json:"item_count"`
	LineCount          int               `json:"line_count"`
	PromotionEligible  bool              `json:"promotion_eligible"`
	PromotionThreshold decimal.Decimal   `json:"promotion_threshold"`
	UpdatedAt          *time.Time        `json:"updated_at,omitempty"`
}

func newCartResponse(sessionID string, promo domain.Promotion, state domain.CartState) CartResponse {
	items := state.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	resp := CartResponse{
		SessionID:          sessionID,
		Items:              items,
		IsOpen:             state.IsOpen,
		Subtotal:           domain.Subtotal(items),
		ItemCount:          domain.ItemCount(items),
		LineCount:          len(items),
		PromotionEligible:  promo.Eligible(items),
		PromotionThreshold: promo.Threshold,
	}
	if !state.UpdatedAt.IsZero() {
		t := state.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}

// --- Handlers ---

// store pins the session's cart for the rest of the request.
func (h *CartHandler) store(r *http.Request) (*cart.Store, func()) {
	sid, _ := sessionIDFromContext(r.Context())
	return h.sessions.Acquire(r.Context(), sid)
}

func (h *CartHandler) writeCart(w http.ResponseWriter, s *cart.Store, state domain.CartState) {
	httputil.WriteData(w, http.StatusOK, newCartResponse(s.SessionID(), s.Promotion(), state))
}

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	s, release := h.store(r)
	defer release()
	h.writeCart(w, s, s.Snapshot())
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	s, release := h.store(r)
	defer release()
	state, err := h.service.AddProduct(r.Context(), s, req.ProductID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	h.writeCart(w, s, state)
}

// UpdateItemQuantity handles PUT /api/v1/cart/items/{productId}
func (h *CartHandler) UpdateItemQuantity(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	var req UpdateQuantityRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	s, release := h.store(r)
	defer release()
	h.writeCart(w, s, s.UpdateQuantity(r.Context(), productID, *req.Quantity))
}

// RemoveItem handles DELETE /api/v1/cart/items/{productId}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productId")

	s, release := h.store(r)
	defer release()
	h.writeCart(w, s, s.RemoveItem(r.Context(), productID))
}

// ToggleCart handles POST /api/v1/cart/toggle. The body is optional.
func (h *CartHandler) ToggleCart(w http.ResponseWriter, r *http.Request) {
	var req ToggleRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil && !errors.Is(err, validator.ErrEmptyBody) {
		httputil.WriteValidationError(w, err)
		return
	}

	s, release := h.store(r)
	defer release()
	h.writeCart(w, s, s.ToggleCart(r.Context(), req.Open))
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	s, release := h.store(r)
	defer release()
	h.writeCart(w, s, s.ClearCart(r.Context()))
}
