package cart

import (
	"context"
	"time"
)

// Item is a single cart line. Prices are not stored on the cart: they are
// resolved from the catalog at order time so stale carts never fix prices.
type Item struct {
	ProductID string
	Quantity  int
	AddedAt   time.Time
}

// Cart holds a user's pending items, keyed by user.
type Cart struct {
	UserID string
	Items  []Item
}

// IsEmpty reports whether the cart has no items.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Repository defines persistence operations for carts. Clear participates in
// the order commit transaction and must only remove the cart when the order
// insert succeeds.
type Repository interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	AddItem(ctx context.Context, userID string, item Item) error
	RemoveItem(ctx context.Context, userID, productID string) (bool, error)
	Clear(ctx context.Context, userID string) error
}
