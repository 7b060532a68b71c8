// Package cart holds the transient checkout session. A Session is an
// explicit object handed to whoever needs it rather than process-global
// state; the HTTP layer keeps one per shop for the lifetime of the process.
package cart

import (
	"fmt"
	"sync"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
)

// Line is a cart entry with a display snapshot of the product taken at add
// time. Prices here are for showing a running total only; the committed sale
// always re-reads live product rows.
type Line struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	SellPrice int64  `json:"sell_price"`
	Quantity  int    `json:"quantity"`
}

type Session struct {
	mu    sync.Mutex
	lines []Line
}

func NewSession() *Session {
	return &Session{}
}

// Add puts a product in the cart, merging with an existing line for the
// same product. The requested total quantity must not exceed the stock
// observed on the product right now; checkout re-validates against live
// stock anyway, this check just keeps the UI honest.
func (s *Session) Add(product domain.Product, quantity int) error {
	if quantity < 1 {
		return store.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, line := range s.lines {
		if line.ProductID == product.ID {
			if line.Quantity+quantity > product.CurrentStock {
				return fmt.Errorf("%w: %s", store.ErrInsufficientStock, product.Name)
			}
			s.lines[i].Quantity += quantity
			return nil
		}
	}

	if quantity > product.CurrentStock {
		return fmt.Errorf("%w: %s", store.ErrInsufficientStock, product.Name)
	}
	s.lines = append(s.lines, Line{
		ProductID: product.ID,
		Name:      product.Name,
		SellPrice: product.SellPrice,
		Quantity:  quantity,
	})
	return nil
}

// SetQuantity overrides a line's quantity; zero removes the line.
func (s *Session) SetQuantity(productID string, quantity int) error {
	if quantity < 0 {
		return store.ErrInvalidQuantity
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, line := range s.lines {
		if line.ProductID == productID {
			if quantity == 0 {
				s.lines = append(s.lines[:i], s.lines[i+1:]...)
			} else {
				s.lines[i].Quantity = quantity
			}
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *Session) Remove(productID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, line := range s.lines {
		if line.ProductID == productID {
			s.lines = append(s.lines[:i], s.lines[i+1:]...)
			return
		}
	}
}

func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = nil
}

// Lines returns a copy; callers can't mutate the session through it.
func (s *Session) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

// CartLines projects the session into the commit payload.
func (s *Session) CartLines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.CartLine, 0, len(s.lines))
	for _, line := range s.lines {
		out = append(out, domain.CartLine{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	return out
}

// Total is the display total from the add-time price snapshots.
func (s *Session) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	for _, line := range s.lines {
		total += line.SellPrice * int64(line.Quantity)
	}
	return total
}

func (s *Session) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines) == 0
}
