package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/storefront/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, price, stock, category FROM products ORDER BY id`

	getProductByIDSQL = `SELECT id, name, price, stock, category FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT id, name, price, stock, category FROM products WHERE id = ANY($1)`

	decrementStockSQL = `UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`

	restoreStockSQL = `UPDATE products SET stock = stock + $2 WHERE id = $1`

	createProductSQL = `INSERT INTO products (id, name, price, stock, category)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			stock = EXCLUDED.stock,
			category = EXCLUDED.category`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	db querier
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{db: pool}
}

// List returns all products from the catalog ordered by ID.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.db.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}

	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return products, nil
}

// GetByID returns a single product by its identifier.
// Returns product.ErrNotFound when no matching product exists.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.db.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns the products matching the given identifiers in a single
// query. Missing IDs are simply absent from the result.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.db.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}

	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return products, nil
}

// DecrementStock subtracts quantity from the product's stock only when
// enough remains. The conditional WHERE clause makes the check-and-consume
// atomic under concurrent orders.
func (r *ProductRepository) DecrementStock(ctx context.Context, id string, quantity int) (bool, error) {
	tag, err := r.db.Exec(ctx, decrementStockSQL, id, quantity)
	if err != nil {
		return false, fmt.Errorf("decrementing stock for %q: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// RestoreStock adds quantity back to the product's stock.
func (r *ProductRepository) RestoreStock(ctx context.Context, id string, quantity int) error {
	if _, err := r.db.Exec(ctx, restoreStockSQL, id, quantity); err != nil {
		return fmt.Errorf("restoring stock for %q: %w", id, err)
	}
	return nil
}

// Create inserts or updates a catalog product. Used by seeding tools.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	_, err := r.db.Exec(ctx, createProductSQL, p.ID, p.Name, p.Price, p.Stock, p.Category)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Category)
	return p, err
}
