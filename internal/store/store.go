package store

import (
	"context"
	"errors"
	"time"

	"warungpos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInvalidPrice      = errors.New("invalid price")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Repository is the shared persistence boundary for Catalog and Ledger.
// Catalog rows and ledger rows live behind the same implementation so that a
// checkout's product updates and cash-flow insert commit together.
//
// CommitSale and RestockProduct are the atomic operations: either every row
// mutation they imply becomes visible, or none does. Readers may observe the
// pre- or post-state of an in-flight commit, never a partial one.
type Repository interface {
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	FindProductByName(ctx context.Context, name string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	ListLowStock(ctx context.Context) ([]domain.Product, error)
	ListTopSelling(ctx context.Context, limit int) ([]domain.Product, error)
	ListUnsold(ctx context.Context) ([]domain.Product, error)

	InsertCashFlow(ctx context.Context, flow domain.CashFlow) (*domain.CashFlow, error)
	UpdateCashFlow(ctx context.Context, flow domain.CashFlow) (*domain.CashFlow, error)
	GetCashFlow(ctx context.Context, id string) (*domain.CashFlow, error)
	ListCashFlows(ctx context.Context) ([]domain.CashFlow, error)
	ListCashFlowsInRange(ctx context.Context, from, to time.Time) ([]domain.CashFlow, error)
	SumAmountInRange(ctx context.Context, typ domain.CashFlowType, from, to time.Time) (int64, error)
	SumProfitInRange(ctx context.Context, from, to time.Time) (int64, error)
	SumStockPurchaseInRange(ctx context.Context, from, to time.Time) (int64, error)
	CurrentBalance(ctx context.Context) (int64, error)

	CommitSale(ctx context.Context, lines []domain.CartLine, at time.Time) (*domain.CashFlow, error)
	RestockProduct(ctx context.Context, productID string, quantity int, unitBuyPrice int64, at time.Time) (*domain.Product, *domain.CashFlow, error)

	ExportSnapshot(ctx context.Context) (*domain.Snapshot, error)
	ImportSnapshot(ctx context.Context, snap domain.Snapshot) error

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

// RangeAll spans every storable timestamp; passing it to the range queries
// yields all-time figures.
func RangeAll() (time.Time, time.Time) {
	return time.Time{}, time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)
}
