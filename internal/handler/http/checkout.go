package http

import (
	"log/slog"
	"net/http"

	"github.com/nainu25/ELEMENT-01/internal/cart"
	"github.com/nainu25/ELEMENT-01/internal/service"
	"github.com/nainu25/ELEMENT-01/pkg/httputil"
	"github.com/nainu25/ELEMENT-01/pkg/validator"
)

// CheckoutHandler handles HTTP requests for checkout endpoints.
type CheckoutHandler struct {
	sessions *cart.Sessions
	service  *service.CheckoutService
	logger   *slog.Logger
}

// NewCheckoutHandler creates a new checkout HTTP handler.
func NewCheckoutHandler(sessions *cart.Sessions, svc *service.CheckoutService, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		sessions: sessions,
		service:  svc,
		logger:   logger,
	}
}

// FinalizeRequest is the JSON request body for finalizing a paid cart.
type FinalizeRequest struct {
	PaymentIntentID string `json:"payment_intent_id" validate:"required,max=255"`
}

// CreatePaymentIntent handles POST /api/v1/checkout/payment-intent
func (h *CheckoutHandler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	sid, _ := sessionIDFromContext(r.Context())
	s, release := h.sessions.Acquire(r.Context(), sid)
	defer release()

	intent, err := h.service.CreatePaymentIntent(r.Context(), s)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusCreated, intent)
}

// Finalize handles POST /api/v1/checkout/finalize
func (h *CheckoutHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	var req FinalizeRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	sid, _ := sessionIDFromContext(r.Context())
	s, release := h.sessions.Acquire(r.Context(), sid)
	defer release()

	receipt, err := h.service.Finalize(r.Context(), s, req.PaymentIntentID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteData(w, http.StatusOK, receipt)
}
