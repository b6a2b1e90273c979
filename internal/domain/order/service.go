package order

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/coupon"
	"github.com/xenking/storefront/internal/domain/stock"
	"github.com/xenking/storefront/internal/pricing"
)

// Service assembles orders: it orchestrates the stock checker, coupon
// validator, and pricing calculator, and commits the result atomically.
type Service struct {
	stock   *stock.Checker
	coupons coupon.Validator
	orders  Repository
	carts   CartReader
	tx      TxManager
	now     func() time.Time
}

// CartReader is the read side of the cart store used to resolve items when
// the request does not supply them explicitly.
type CartReader interface {
	Get(ctx context.Context, userID string) (*cart.Cart, error)
}

// NewService creates an order Service with the required collaborators.
func NewService(
	checker *stock.Checker,
	coupons coupon.Validator,
	orders Repository,
	carts CartReader,
	tx TxManager,
) *Service {
	return &Service{
		stock:   checker,
		coupons: coupons,
		orders:  orders,
		carts:   carts,
		tx:      tx,
		now:     time.Now,
	}
}

// CreateOrderRequest holds the input for creating an order. When Items is
// empty the user's persisted cart is used instead. ClientTotal is advisory:
// it is compared against the server-computed total and logged on mismatch,
// never persisted.
type CreateOrderRequest struct {
	UserID      string
	Items       []stock.RequestedItem
	CouponAlias string
	Shipping    ShippingInfo
	PaymentInfo json.RawMessage
	ClientTotal *decimal.Decimal
}

// CreateOrderResult is the committed order plus its financial breakdown.
type CreateOrderResult struct {
	Order     *Order
	Breakdown Breakdown
}

// CreateOrder runs the full order pipeline: resolve items, check stock,
// validate the coupon, price the order, and commit everything in one
// transaction. Any validation failure aborts before a single write; a
// failure inside the transaction leaves no partial state.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	items, fromCart, err := s.resolveItems(ctx, req)
	if err != nil {
		return nil, err
	}

	// Pure read validation; re-validated by conditional decrements at commit.
	validated, err := s.stock.Check(ctx, items)
	if err != nil {
		return nil, err
	}

	subtotal := decimal.Zero
	for _, item := range validated {
		qty := decimal.NewFromInt(int64(item.Quantity))
		subtotal = subtotal.Add(item.Product.Price.Mul(qty))
	}

	// Fail-fast coupon validation. The authoritative cap check happens again
	// under a row lock inside the transaction below.
	discount := decimal.Zero
	if req.CouponAlias != "" {
		res, err := s.coupons.Validate(ctx, req.CouponAlias, req.UserID, subtotal)
		if err != nil {
			return nil, err
		}
		discount = res.Discount
	}

	dest := pricing.Destination{Country: req.Shipping.Country, State: req.Shipping.State}
	breakdown := price(subtotal, discount, dest)

	if req.ClientTotal != nil && !req.ClientTotal.Equal(breakdown.Total) {
		zctx.From(ctx).Warn("client-submitted total disagrees with server total",
			zap.String("client_total", req.ClientTotal.String()),
			zap.String("server_total", breakdown.Total.String()),
			zap.String("user_id", req.UserID),
		)
	}

	o := &Order{
		ID:          uuid.New().String(),
		UserID:      req.UserID,
		Status:      StatusPending,
		PaymentInfo: req.PaymentInfo,
		CreatedAt:   s.now(),
	}
	for _, item := range validated {
		o.Items = append(o.Items, Item{
			ProductID: item.Product.ID,
			Name:      item.Product.Name,
			UnitPrice: item.Product.Price,
			Quantity:  item.Quantity,
		})
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context, r TxRepos) error {
		// Consume stock with conditional decrements, failing the whole
		// transaction if any product no longer has enough.
		for _, item := range validated {
			ok, err := r.Products.DecrementStock(ctx, item.Product.ID, item.Quantity)
			if err != nil {
				return errors.Wrapf(err, "decrement stock for %s", item.Product.ID)
			}
			if !ok {
				return insufficientAtCommit(ctx, r, item)
			}
		}

		// Lock the coupon row, re-check caps, and append the usage record.
		// The discount is recomputed from the locked row so a concurrent
		// coupon edit cannot leave the breakdown out of sync.
		if req.CouponAlias != "" {
			locked, err := r.Coupons.LockByAlias(ctx, req.CouponAlias)
			if err != nil {
				return err
			}
			stats, err := r.Coupons.UsageStats(ctx, locked.ID, req.UserID)
			if err != nil {
				return errors.Wrap(err, "load coupon usage")
			}
			if err := coupon.Check(locked, stats, subtotal, s.now()); err != nil {
				return err
			}
			if err := r.Coupons.AppendUsage(ctx, locked.ID, req.UserID); err != nil {
				return errors.Wrap(err, "append coupon usage")
			}
			o.CouponID = &locked.ID
			breakdown = price(subtotal, locked.DiscountFor(subtotal), dest)
		}

		o.Subtotal = breakdown.Subtotal
		o.Discount = breakdown.Discount
		o.ShippingCost = breakdown.ShippingCost
		o.TaxAmount = breakdown.TaxAmount
		o.Total = breakdown.Total
		o.ShippingInfo = req.Shipping
		o.ShippingInfo.ShippingCost = breakdown.ShippingCost
		o.ShippingInfo.TaxAmount = breakdown.TaxAmount

		if err := r.Orders.Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}

		if fromCart {
			if err := r.Carts.Clear(ctx, req.UserID); err != nil {
				return errors.Wrap(err, "clear cart")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &CreateOrderResult{Order: o, Breakdown: breakdown}, nil
}

// resolveItems returns the explicit request items, or the user's cart items
// when none are supplied. The second return reports whether the cart path
// was taken (and therefore must be cleared on commit). Request lines naming
// the same product are merged into one, so each product appears as a single
// order line and a single stock decrement.
func (s *Service) resolveItems(ctx context.Context, req CreateOrderRequest) ([]stock.RequestedItem, bool, error) {
	if len(req.Items) > 0 {
		return mergeItems(req.Items), false, nil
	}

	c, err := s.carts.Get(ctx, req.UserID)
	if err != nil {
		return nil, false, errors.Wrap(err, "load cart")
	}
	if c.IsEmpty() {
		return nil, false, ErrNoItems
	}

	items := make([]stock.RequestedItem, len(c.Items))
	for i, item := range c.Items {
		items[i] = stock.RequestedItem{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return items, true, nil
}

// mergeItems sums quantities of lines sharing a product id, keeping the
// first-seen order.
func mergeItems(items []stock.RequestedItem) []stock.RequestedItem {
	index := make(map[string]int, len(items))
	merged := make([]stock.RequestedItem, 0, len(items))
	for _, item := range items {
		if i, ok := index[item.ProductID]; ok {
			merged[i].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(merged)
		merged = append(merged, item)
	}
	return merged
}

// GetOrder returns the order when it exists and the identity is its owner
// or an admin.
func (s *Service) GetOrder(ctx context.Context, id string, ident auth.Identity) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != ident.UserID && !ident.Admin {
		return nil, ErrForbidden
	}
	return o, nil
}

// ListOrders returns the identity's own orders, newest first.
func (s *Service) ListOrders(ctx context.Context, ident auth.Identity) ([]Order, error) {
	return s.orders.ListByUser(ctx, ident.UserID)
}

// CancelOrder cancels a PENDING order owned by the identity and restores the
// stock consumed at commit, all in one transaction.
func (s *Service) CancelOrder(ctx context.Context, id string, ident auth.Identity) (*Order, error) {
	var canceled *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context, r TxRepos) error {
		o, err := r.Orders.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if o.UserID != ident.UserID {
			return ErrForbidden
		}

		ok, err := r.Orders.UpdateStatus(ctx, id, StatusPending, StatusCanceled)
		if err != nil {
			return errors.Wrap(err, "update order status")
		}
		if !ok {
			return &InvalidTransitionError{From: o.Status, To: StatusCanceled}
		}

		for _, item := range o.Items {
			if err := r.Products.RestoreStock(ctx, item.ProductID, item.Quantity); err != nil {
				return errors.Wrapf(err, "restore stock for %s", item.ProductID)
			}
		}

		o.Status = StatusCanceled
		canceled = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return canceled, nil
}

// UpdateStatus performs the admin status transition. The caller is expected
// to have verified admin rights at the API boundary.
func (s *Service) UpdateStatus(ctx context.Context, id string, next Status) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(next) {
		return nil, &InvalidTransitionError{From: o.Status, To: next}
	}

	ok, err := s.orders.UpdateStatus(ctx, id, o.Status, next)
	if err != nil {
		return nil, errors.Wrap(err, "update order status")
	}
	if !ok {
		// Lost a race with a concurrent transition.
		return nil, &InvalidTransitionError{From: o.Status, To: next}
	}

	o.Status = next
	return o, nil
}

// price computes the financial breakdown. Shipping tiers key on the
// pre-discount subtotal; tax applies to the discounted subtotal. This
// ordering (discount before tax) is load-bearing.
func price(subtotal, discount decimal.Decimal, dest pricing.Destination) Breakdown {
	shipping := pricing.ShippingCost(subtotal, dest)
	tax := pricing.TaxAmount(subtotal.Sub(discount), dest)

	return Breakdown{
		Subtotal:     subtotal.Round(2),
		Discount:     discount.Round(2),
		ShippingCost: shipping,
		TaxAmount:    tax,
		Total:        subtotal.Sub(discount).Add(shipping).Add(tax).Round(2),
	}
}

// insufficientAtCommit re-reads the product to report accurate availability
// when the conditional decrement finds the stock already consumed.
func insufficientAtCommit(ctx context.Context, r TxRepos, item stock.Item) error {
	available := 0
	name := item.Product.Name
	if p, err := r.Products.GetByID(ctx, item.Product.ID); err == nil {
		available = p.Stock
		name = p.Name
	}
	return &stock.InsufficientStockError{Violations: []stock.Violation{{
		ProductID:   item.Product.ID,
		ProductName: name,
		Available:   available,
		Requested:   item.Quantity,
	}}}
}
