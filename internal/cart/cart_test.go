package cart

import (
	"errors"
	"testing"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
)

func product(id, name string, sellPrice int64, stock int) domain.Product {
	return domain.Product{ID: id, Name: name, SellPrice: sellPrice, CurrentStock: stock}
}

func TestAddMergesLines(t *testing.T) {
	s := NewSession()
	p := product("prd-1", "Item", 5000, 10)

	if err := s.Add(p, 2); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(p, 3); err != nil {
		t.Fatalf("Add: %v", err)
	}

	lines := s.Lines()
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want merged single line", len(lines))
	}
	if lines[0].Quantity != 5 {
		t.Errorf("Quantity = %d, want 5", lines[0].Quantity)
	}
	if s.Total() != 25000 {
		t.Errorf("Total = %d, want 25000", s.Total())
	}
}

func TestAddRejectsOverObservedStock(t *testing.T) {
	s := NewSession()
	p := product("prd-1", "Scarce", 2000, 3)

	if err := s.Add(p, 2); err != nil {
		t.Fatalf("Add: %v", err)
	}
	err := s.Add(p, 2)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}

	if err := s.Add(p, 0); !errors.Is(err, store.ErrInvalidQuantity) {
		t.Errorf("zero quantity err = %v, want ErrInvalidQuantity", err)
	}
}

func TestSetQuantity(t *testing.T) {
	s := NewSession()
	p := product("prd-1", "Item", 1000, 10)
	if err := s.Add(p, 2); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := s.SetQuantity("prd-1", 7); err != nil {
		t.Fatalf("SetQuantity: %v", err)
	}
	if s.Lines()[0].Quantity != 7 {
		t.Errorf("Quantity = %d", s.Lines()[0].Quantity)
	}

	// Zero removes the line.
	if err := s.SetQuantity("prd-1", 0); err != nil {
		t.Fatalf("SetQuantity(0): %v", err)
	}
	if !s.Empty() {
		t.Error("cart should be empty after zeroing the only line")
	}

	if err := s.SetQuantity("missing", 1); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if err := s.SetQuantity("prd-1", -1); !errors.Is(err, store.ErrInvalidQuantity) {
		t.Errorf("err = %v, want ErrInvalidQuantity", err)
	}
}

func TestRemoveAndClear(t *testing.T) {
	s := NewSession()
	if err := s.Add(product("prd-1", "A", 1000, 5), 1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.Add(product("prd-2", "B", 2000, 5), 1); err != nil {
		t.Fatalf("Add: %v", err)
	}

	s.Remove("prd-1")
	if len(s.Lines()) != 1 || s.Lines()[0].ProductID != "prd-2" {
		t.Errorf("lines after remove = %+v", s.Lines())
	}

	s.Clear()
	if !s.Empty() {
		t.Error("cart should be empty after Clear")
	}
}

func TestCartLinesProjection(t *testing.T) {
	s := NewSession()
	if err := s.Add(product("prd-1", "A", 1000, 5), 3); err != nil {
		t.Fatalf("Add: %v", err)
	}

	lines := s.CartLines()
	if len(lines) != 1 || lines[0].ProductID != "prd-1" || lines[0].Quantity != 3 {
		t.Errorf("CartLines = %+v", lines)
	}
}

func TestLinesReturnsCopy(t *testing.T) {
	s := NewSession()
	if err := s.Add(product("prd-1", "A", 1000, 5), 1); err != nil {
		t.Fatalf("Add: %v", err)
	}

	lines := s.Lines()
	lines[0].Quantity = 99

	if s.Lines()[0].Quantity != 1 {
		t.Error("mutating the returned slice must not affect the session")
	}
}
