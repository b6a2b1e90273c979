package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/product"
)

// Sentinel errors for order operations.
var (
	// ErrNoItems is returned when neither explicit items nor a non-empty
	// cart are available to build the order from.
	ErrNoItems = errors.New("no items to order")
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrForbidden is returned when the acting user may not view or modify
	// an order that is not their own.
	ErrForbidden = errors.New("order belongs to another user")
)

// Status is the fulfillment state of an order.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCanceled   Status = "CANCELED"
)

// nextStatuses maps each status to the transitions the admin operation may
// perform. Cancellation is reachable only from PENDING and only through the
// user-cancel operation.
var nextStatuses = map[Status][]Status{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusShipped},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {},
	StatusCanceled:   {},
}

// ToStatus parses s into a known Status.
func ToStatus(s string) (Status, error) {
	status := Status(s)
	if _, ok := nextStatuses[status]; !ok {
		return "", errors.Errorf("invalid order status %q", s)
	}
	return status, nil
}

// CanTransitionTo reports whether the admin update operation may move an
// order from s to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range nextStatuses[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// InvalidTransitionError indicates a status update that the state machine
// does not allow.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

// Item is one order line with the unit price snapshotted at order time.
type Item struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

// ShippingInfo is the destination address with the computed shipping cost
// and tax amount embedded.
type ShippingInfo struct {
	Name         string
	AddressLine  string
	City         string
	State        string
	PostalCode   string
	Country      string
	ShippingCost decimal.Decimal
	TaxAmount    decimal.Decimal
}

// Order is a committed customer order. Total is always computed server-side:
// Total = Subtotal - Discount + ShippingCost + TaxAmount.
type Order struct {
	ID           string
	UserID       string
	Items        []Item
	CouponID     *string
	Status       Status
	Subtotal     decimal.Decimal
	Discount     decimal.Decimal
	ShippingCost decimal.Decimal
	TaxAmount    decimal.Decimal
	Total        decimal.Decimal
	ShippingInfo ShippingInfo
	// PaymentInfo is opaque to the core; no real payment processing happens.
	PaymentInfo json.RawMessage
	CreatedAt   time.Time
}

// Breakdown is the itemized financial summary returned alongside an order.
type Breakdown struct {
	Subtotal     decimal.Decimal
	Discount     decimal.Decimal
	ShippingCost decimal.Decimal
	TaxAmount    decimal.Decimal
	Total        decimal.Decimal
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)

	// UpdateStatus conditionally moves the order from one status to another
	// and reports whether a row matched. A false return means the order was
	// not in the expected status.
	UpdateStatus(ctx context.Context, id string, from, to Status) (bool, error)
}

// TxRepos bundles the repositories bound to a single transaction.
type TxRepos struct {
	Orders   Repository
	Products product.Repository
	Coupons  coupon.Repository
	Carts    cart.Repository
}

// TxManager runs a function within one database transaction. The function
// receives repositories whose operations all commit or roll back together.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, r TxRepos) error) error
}
