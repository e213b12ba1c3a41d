package service

import (
	"context"
	"time"

	"cantina/backend/internal/domain"
	"cantina/backend/internal/store"
)

// Cart accumulates lines for a sale before it is committed. Validation
// happens against a fresh read of the product on every AddLine, but
// nothing is reserved: the commit transaction re-checks stock and
// recaptures prices, so the cart is advisory only.
type Cart struct {
	repo  store.Repository
	lines []domain.CartLine
}

func NewCart(repo store.Repository) *Cart {
	return &Cart{repo: repo}
}

// AddLine appends a line for the given product. Two lines for the same
// product are kept separate; they are never merged.
func (c *Cart) AddLine(ctx context.Context, productID string, qty int) error {
	product, err := c.repo.GetProductByID(ctx, productID)
	if err != nil {
		return err
	}

	if product.ExpiryDate != nil {
		today := dateUTC(time.Now())
		if product.ExpiryDate.Before(today) {
			return store.ErrExpiredProduct
		}
	}
	if qty < 1 {
		return store.ErrInvalidQuantity
	}
	if qty > product.Stock {
		return store.ErrInsufficientStock
	}

	c.lines = append(c.lines, domain.CartLine{
		ProductID:      product.ID,
		ProductName:    product.Name,
		Qty:            qty,
		UnitPriceCents: product.PriceCents,
	})
	return nil
}

func (c *Cart) RemoveLine(index int) error {
	if index < 0 || index >= len(c.lines) {
		return store.ErrInvalidInput
	}
	c.lines = append(c.lines[:index], c.lines[index+1:]...)
	return nil
}

func (c *Cart) Lines() []domain.CartLine {
	out := make([]domain.CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// TotalCents is the running total at the prices seen when each line was
// added. The committed total can differ if prices change before commit.
func (c *Cart) TotalCents() int64 {
	var total int64
	for _, line := range c.lines {
		total += int64(line.Qty) * line.UnitPriceCents
	}
	return total
}

// Finalize converts the cart into commit-ready line requests. The
// second return is false when the cart is empty.
func (c *Cart) Finalize() ([]domain.CartLineRequest, bool) {
	if len(c.lines) == 0 {
		return nil, false
	}
	out := make([]domain.CartLineRequest, 0, len(c.lines))
	for _, line := range c.lines {
		out = append(out, domain.CartLineRequest{ProductID: line.ProductID, Qty: line.Qty})
	}
	return out, true
}

func dateUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
