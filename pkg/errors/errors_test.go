package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Sentinel error identity ---

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrNotFound, ErrInvalidInput, ErrUnauthorized, ErrInternal, ErrConflict,
		ErrServiceUnavail, ErrPaymentFailed, ErrCheckoutFailed, ErrInsufficientStock,
	}

	for i := 0; i < len(sentinels); i++ {
		for j := i + 1; j < len(sentinels); j++ {
			assert.NotEqual(t, sentinels[i], sentinels[j],
				"sentinels %d and %d should be distinct", i, j)
		}
	}
}

// --- AppError behavior ---

func TestAppError_ErrorString_WithWrappedError(t *testing.T) {
	inner := fmt.Errorf("redis connection lost")
	appErr := &AppError{Code: "INTERNAL_ERROR", Message: "something broke", Err: inner}
	assert.Contains(t, appErr.Error(), "INTERNAL_ERROR")
	assert.Contains(t, appErr.Error(), "something broke")
	assert.Contains(t, appErr.Error(), "redis connection lost")
}

func TestAppError_ErrorString_WithoutWrappedError(t *testing.T) {
	appErr := &AppError{Code: "NOT_FOUND", Message: "product not found"}
	assert.Equal(t, "NOT_FOUND: product not found", appErr.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	appErr := &AppError{Code: "NOT_FOUND", Message: "nope", Err: ErrNotFound}
	assert.True(t, errors.Is(appErr, ErrNotFound))
	assert.Nil(t, (&AppError{Code: "X"}).Unwrap())
}

// --- Constructor functions ---

func TestNotFound(t *testing.T) {
	err := NotFound("product", "abc-123")
	require.NotNil(t, err)
	assert.Equal(t, "NOT_FOUND", err.Code)
	assert.Contains(t, err.Message, "product")
	assert.Contains(t, err.Message, "abc-123")
	assert.Equal(t, http.StatusNotFound, err.Status)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestInvalidInput(t *testing.T) {
	err := InvalidInput("cart is empty")
	assert.Equal(t, "INVALID_INPUT", err.Code)
	assert.Equal(t, "cart is empty", err.Message)
	assert.Equal(t, http.StatusBadRequest, err.Status)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestConflict(t *testing.T) {
	err := Conflict("payment already used")
	assert.Equal(t, "CONFLICT", err.Code)
	assert.Equal(t, http.StatusConflict, err.Status)
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestPaymentFailed(t *testing.T) {
	err := PaymentFailed("payment not confirmed")
	assert.Equal(t, "PAYMENT_FAILED", err.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, err.Status)
	assert.True(t, errors.Is(err, ErrPaymentFailed))
}

func TestOutOfStock(t *testing.T) {
	err := OutOfStock("p1", 3, 1)
	assert.Equal(t, "OUT_OF_STOCK", err.Code)
	assert.Equal(t, "product p1 has 1 in stock, 3 requested", err.Message)
	assert.True(t, errors.Is(err, ErrInsufficientStock))
}

func TestCheckoutFailed_KeepsUnderlyingMessage(t *testing.T) {
	cause := fmt.Errorf("update product p2: connection reset by peer")
	err := CheckoutFailed(cause)

	assert.Equal(t, "CHECKOUT_FAILED", err.Code)
	assert.Equal(t, cause.Error(), err.Message)
	assert.Equal(t, http.StatusBadGateway, err.Status)
	assert.True(t, errors.Is(err, ErrCheckoutFailed))
	assert.True(t, errors.Is(err, cause))
}

func TestCheckoutFailed_UsesRemoteMessage(t *testing.T) {
	err := CheckoutFailed(Unauthorized(`new row violates row-level security policy for table "products"`))

	assert.Equal(t, "CHECKOUT_FAILED", err.Code)
	assert.Equal(t, `new row violates row-level security policy for table "products"`, err.Message)
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestCheckoutFailed_OutOfStockKeepsCode(t *testing.T) {
	err := CheckoutFailed(fmt.Errorf("decrement: %w", OutOfStock("p1", 2, 0)))

	assert.Equal(t, "OUT_OF_STOCK", err.Code)
	assert.Equal(t, http.StatusConflict, err.Status)
	assert.True(t, errors.Is(err, ErrCheckoutFailed))
	assert.True(t, errors.Is(err, ErrInsufficientStock))
}

func TestWrap(t *testing.T) {
	err := Wrap(ErrNotFound, "load cart")
	assert.Equal(t, "load cart: resource not found", err.Error())
	assert.True(t, errors.Is(err, ErrNotFound))
}

// --- HTTPStatus mapping ---

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"app error", InvalidInput("x"), http.StatusBadRequest},
		{"wrapped not found", fmt.Errorf("get: %w", ErrNotFound), http.StatusNotFound},
		{"conflict", ErrConflict, http.StatusConflict},
		{"insufficient stock", ErrInsufficientStock, http.StatusConflict},
		{"unauthorized", ErrUnauthorized, http.StatusUnauthorized},
		{"payment", ErrPaymentFailed, http.StatusUnprocessableEntity},
		{"checkout", ErrCheckoutFailed, http.StatusBadGateway},
		{"unavailable", ErrServiceUnavail, http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
