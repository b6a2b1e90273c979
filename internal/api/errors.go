package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/campaign"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/stock"
)

// errorResponse is the wire shape of every error: a stable machine-readable
// code, a human message, and optional structured detail.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// stockViolationJSON is the per-item detail for insufficient stock errors.
type stockViolationJSON struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Available   int    `json:"availableStock"`
	Requested   int    `json:"requestedQuantity"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, errorResponse{Error: code, Message: message, Details: details})
}

func badRequest(w http.ResponseWriter, message string) {
	writeErr(w, http.StatusBadRequest, "validation_error", message, nil)
}

// writeDomainErr maps a domain error to its HTTP status and stable code.
// Unknown errors become opaque 500s; the cause is logged, never leaked.
func writeDomainErr(w http.ResponseWriter, r *http.Request, err error) {
	var (
		stockErr    *stock.InsufficientStockError
		notFoundErr *stock.ProductNotFoundError
		minErr      *coupon.BelowMinimumError
		transErr    *order.InvalidTransitionError
	)

	switch {
	case errors.As(err, &stockErr):
		details := make([]stockViolationJSON, len(stockErr.Violations))
		for i, v := range stockErr.Violations {
			details[i] = stockViolationJSON{
				ProductID:   v.ProductID,
				ProductName: v.ProductName,
				Available:   v.Available,
				Requested:   v.Requested,
			}
		}
		writeErr(w, http.StatusBadRequest, "insufficient_stock", "Insufficient stock", details)

	case errors.As(err, &notFoundErr):
		writeErr(w, http.StatusNotFound, "product_not_found", notFoundErr.Error(), nil)

	case errors.Is(err, product.ErrNotFound):
		writeErr(w, http.StatusNotFound, "product_not_found", "product not found", nil)

	case errors.Is(err, stock.ErrInvalidQuantity):
		badRequest(w, err.Error())

	case errors.Is(err, order.ErrNoItems):
		badRequest(w, "no items to order")

	case errors.Is(err, coupon.ErrNotFound):
		writeErr(w, http.StatusBadRequest, "invalid_coupon", "Invalid coupon", nil)

	case errors.As(err, &minErr):
		writeErr(w, http.StatusBadRequest, "coupon_below_minimum", minErr.Error(), nil)

	case errors.Is(err, coupon.ErrInactive),
		errors.Is(err, coupon.ErrNotYetValid),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrPerUserLimitReached),
		errors.Is(err, coupon.ErrGlobalLimitReached):
		writeErr(w, http.StatusBadRequest, "invalid_coupon", err.Error(), nil)

	case errors.Is(err, order.ErrNotFound):
		writeErr(w, http.StatusNotFound, "order_not_found", "order not found", nil)

	case errors.Is(err, campaign.ErrNotFound):
		writeErr(w, http.StatusNotFound, "campaign_not_found", "campaign not found", nil)

	case errors.Is(err, order.ErrForbidden):
		writeErr(w, http.StatusForbidden, "forbidden", "not allowed to access this order", nil)

	case errors.Is(err, auth.ErrUnauthorized):
		writeErr(w, http.StatusUnauthorized, "unauthorized", "unauthorized", nil)

	case errors.As(err, &transErr):
		writeErr(w, http.StatusBadRequest, "invalid_status_transition", transErr.Error(), nil)

	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeErr(w, http.StatusInternalServerError, "internal_error", "internal server error", nil)
	}
}
