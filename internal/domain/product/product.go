package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Stock    int
	Category string
}

// Repository defines catalog read operations plus the stock mutations used
// by order commit and cancellation.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)

	// DecrementStock atomically subtracts quantity from the product's stock
	// and reports whether enough stock was available. A false return means
	// the conditional update matched no row and stock is left untouched.
	DecrementStock(ctx context.Context, id string, quantity int) (bool, error)

	// RestoreStock adds quantity back to the product's stock.
	RestoreStock(ctx context.Context, id string, quantity int) error
}
