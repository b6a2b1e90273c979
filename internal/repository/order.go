package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders
		(id, user_id, coupon_id, status, subtotal, discount, shipping_cost, tax_amount, total,
		 shipping_info, payment_info, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	createOrderItemSQL = `INSERT INTO order_items (order_id, product_id, name, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5)`

	orderColumns = `id, user_id, coupon_id, status, subtotal, discount, shipping_cost,
		tax_amount, total, shipping_info, payment_info, created_at`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC`

	getOrderItemsSQL = `SELECT product_id, name, unit_price, quantity
		FROM order_items WHERE order_id = $1 ORDER BY product_id`

	updateOrderStatusSQL = `UPDATE orders SET status = $3 WHERE id = $1 AND status = $2`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Order
// lines live in order_items; the address and opaque payment blob are stored
// as JSONB.
type OrderRepository struct {
	db querier
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: pool}
}

// shippingInfoJSON is the JSONB representation of order.ShippingInfo.
type shippingInfoJSON struct {
	Name         string          `json:"name"`
	AddressLine  string          `json:"address_line"`
	City         string          `json:"city"`
	State        string          `json:"state"`
	PostalCode   string          `json:"postal_code"`
	Country      string          `json:"country"`
	ShippingCost decimal.Decimal `json:"shipping_cost"`
	TaxAmount    decimal.Decimal `json:"tax_amount"`
}

func toShippingJSON(s order.ShippingInfo) shippingInfoJSON {
	return shippingInfoJSON(s)
}

// Create persists a new order together with its line items.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	shippingJSON, err := json.Marshal(toShippingJSON(o.ShippingInfo))
	if err != nil {
		return fmt.Errorf("marshaling shipping info: %w", err)
	}

	paymentJSON := o.PaymentInfo
	if len(paymentJSON) == 0 {
		paymentJSON = json.RawMessage(`{}`)
	}

	_, err = r.db.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, o.CouponID, string(o.Status),
		o.Subtotal, o.Discount, o.ShippingCost, o.TaxAmount, o.Total,
		shippingJSON, paymentJSON, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	for _, item := range o.Items {
		_, err := r.db.Exec(ctx, createOrderItemSQL,
			o.ID, item.ProductID, item.Name, item.UnitPrice, item.Quantity,
		)
		if err != nil {
			return fmt.Errorf("creating order item %q/%q: %w", o.ID, item.ProductID, err)
		}
	}

	return nil
}

// GetByID loads an order with its items.
// Returns order.ErrNotFound when no matching order exists.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.db.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	if o.Items, err = r.loadItems(ctx, id); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListByUser returns all orders of one user, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.db.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}

	for i := range orders {
		if orders[i].Items, err = r.loadItems(ctx, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

// UpdateStatus conditionally moves the order between statuses. The WHERE
// clause on the current status makes concurrent transitions race-safe.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status) (bool, error) {
	tag, err := r.db.Exec(ctx, updateOrderStatusSQL, id, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("updating status of order %q: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orderID string) ([]order.Item, error) {
	rows, err := r.db.Query(ctx, getOrderItemsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("loading items of order %q: %w", orderID, err)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var item order.Item
		err := row.Scan(&item.ProductID, &item.Name, &item.UnitPrice, &item.Quantity)
		return item, err
	})
	if err != nil {
		return nil, fmt.Errorf("loading items of order %q: %w", orderID, err)
	}
	return items, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o            order.Order
		status       string
		shippingJSON []byte
		paymentJSON  []byte
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.CouponID, &status,
		&o.Subtotal, &o.Discount, &o.ShippingCost, &o.TaxAmount, &o.Total,
		&shippingJSON, &paymentJSON, &o.CreatedAt,
	)
	if err != nil {
		return o, err
	}

	var shipping shippingInfoJSON
	if err := json.Unmarshal(shippingJSON, &shipping); err != nil {
		return o, fmt.Errorf("unmarshaling shipping info: %w", err)
	}
	o.ShippingInfo = order.ShippingInfo(shipping)
	o.PaymentInfo = paymentJSON
	o.Status = order.Status(status)
	return o, nil
}
