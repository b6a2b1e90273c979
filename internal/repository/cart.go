package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/cart"
)

const (
	getCartSQL = `SELECT product_id, quantity, added_at FROM cart_items
		WHERE user_id = $1 ORDER BY added_at`

	addCartItemSQL = `INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`

	removeCartItemSQL = `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`

	clearCartSQL = `DELETE FROM cart_items WHERE user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	db querier
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{db: pool}
}

// Get loads the user's cart. A user with no rows gets an empty cart, not an
// error.
func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	rows, err := r.db.Query(ctx, getCartSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("loading cart for user %q: %w", userID, err)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Item, error) {
		var item cart.Item
		err := row.Scan(&item.ProductID, &item.Quantity, &item.AddedAt)
		return item, err
	})
	if err != nil {
		return nil, fmt.Errorf("loading cart for user %q: %w", userID, err)
	}

	return &cart.Cart{UserID: userID, Items: items}, nil
}

// AddItem adds the item to the cart, accumulating quantity when the product
// is already present.
func (r *CartRepository) AddItem(ctx context.Context, userID string, item cart.Item) error {
	_, err := r.db.Exec(ctx, addCartItemSQL, userID, item.ProductID, item.Quantity)
	if err != nil {
		return fmt.Errorf("adding item %q to cart of user %q: %w", item.ProductID, userID, err)
	}
	return nil
}

// RemoveItem deletes one product from the cart and reports whether a row
// was removed.
func (r *CartRepository) RemoveItem(ctx context.Context, userID, productID string) (bool, error) {
	tag, err := r.db.Exec(ctx, removeCartItemSQL, userID, productID)
	if err != nil {
		return false, fmt.Errorf("removing item %q from cart of user %q: %w", productID, userID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Clear removes every item from the user's cart.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if _, err := r.db.Exec(ctx, clearCartSQL, userID); err != nil {
		return fmt.Errorf("clearing cart of user %q: %w", userID, err)
	}
	return nil
}
