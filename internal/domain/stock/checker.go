// Package stock validates that requested order quantities can be satisfied
// by the product catalog. Checks here are pure reads; the authoritative
// re-check happens via conditional stock decrements inside the order
// transaction.
package stock

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/domain/product"
)

// ErrInvalidQuantity is returned when a line item has a non-positive quantity.
var ErrInvalidQuantity = errors.New("quantity must be greater than 0")

// RequestedItem is a single (product, quantity) pair to validate.
type RequestedItem struct {
	ProductID string
	Quantity  int
}

// Item is a validated line item carrying the product snapshot taken at
// check time. Prices on orders come from this snapshot.
type Item struct {
	Product  product.Product
	Quantity int
}

// Violation describes one item whose requested quantity exceeds stock.
type Violation struct {
	ProductID   string
	ProductName string
	Available   int
	Requested   int
}

// InsufficientStockError reports every item in the request that cannot be
// satisfied, so callers can render all violations at once.
type InsufficientStockError struct {
	Violations []Violation
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = fmt.Sprintf("%s: requested %d, available %d", v.ProductName, v.Requested, v.Available)
	}
	return "insufficient stock: " + strings.Join(parts, "; ")
}

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// Checker validates requested quantities against the catalog.
type Checker struct {
	products product.Repository
}

// NewChecker creates a Checker backed by the given product repository.
func NewChecker(products product.Repository) *Checker {
	return &Checker{products: products}
}

// Check fetches all referenced products in one batch and verifies each
// requested quantity against available stock. A missing product fails
// immediately with *ProductNotFoundError; quantity violations are collected
// across the whole request and returned together as *InsufficientStockError.
func (c *Checker) Check(ctx context.Context, items []RequestedItem) ([]Item, error) {
	ids := make([]string, len(items))
	for i, item := range items {
		if item.Quantity <= 0 {
			return nil, errors.Wrapf(ErrInvalidQuantity, "product %s", item.ProductID)
		}
		ids[i] = item.ProductID
	}

	fetched, err := c.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	productMap := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	validated := make([]Item, 0, len(items))
	var violations []Violation
	for _, item := range items {
		p, ok := productMap[item.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: item.ProductID}
		}

		if item.Quantity > p.Stock {
			violations = append(violations, Violation{
				ProductID:   p.ID,
				ProductName: p.Name,
				Available:   p.Stock,
				Requested:   item.Quantity,
			})
			continue
		}

		validated = append(validated, Item{Product: p, Quantity: item.Quantity})
	}

	if len(violations) > 0 {
		return nil, &InsufficientStockError{Violations: violations}
	}

	return validated, nil
}
