package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/xid"
)

// Store keeps the whole shop in memory. It backs tests and the demo mode
// used when DATABASE_URL is unset. A single RWMutex serializes writers, so
// CommitSale and RestockProduct are atomic by construction.
type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	flows           []domain.CashFlow
	flowsByID       map[string]int
	usersByUsername map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		flows:           make([]domain.CashFlow, 0, 128),
		flowsByID:       make(map[string]int),
		usersByUsername: make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store preloaded with a small warung catalog and the
// default owner/staff accounts.
func NewSeeded() *Store {
	s := New()

	price := func(v int64) *int64 { return &v }
	seed := []domain.Product{
		{Name: "Mie Goreng Instan", SellPrice: 3500, BuyPrice: price(2800), CurrentStock: 40, MinStock: 10, Barcode: "8992388101010"},
		{Name: "Telur 10 Butir", SellPrice: 26500, BuyPrice: price(23000), CurrentStock: 15, MinStock: 5},
		{Name: "Susu UHT 1L", SellPrice: 18900, BuyPrice: price(15500), CurrentStock: 12, MinStock: 4, Barcode: "8992696404441"},
		{Name: "Roti Tawar", SellPrice: 17800, BuyPrice: price(14000), CurrentStock: 8, MinStock: 3},
		{Name: "Kopi Sachet", SellPrice: 2600, BuyPrice: price(2000), CurrentStock: 100, MinStock: 24},
		{Name: "Gula 1kg", SellPrice: 17400, BuyPrice: price(15800), CurrentStock: 20, MinStock: 6},
		{Name: "Air Mineral 600ml", SellPrice: 3900, BuyPrice: price(3000), CurrentStock: 48, MinStock: 12, Barcode: "8993675101018"},
		{Name: "Sabun Mandi", SellPrice: 7400, CurrentStock: 10, MinStock: 4},
	}
	for _, p := range seed {
		p.ID = xid.New("prd")
		s.products[p.ID] = p
	}

	s.usersByUsername = seedUsers()
	return s
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials come from SEED_OWNER_PASSWORD and SEED_STAFF_PASSWORD; unset
// variables fall back to dev defaults with a logged warning. Production
// deployments use PostgreSQL and never hit this path.
func seedUsers() map[string]domain.UserAccount {
	ownerPwd := envOr("SEED_OWNER_PASSWORD", "owner123")
	staffPwd := envOr("SEED_STAFF_PASSWORD", "staff123")
	if os.Getenv("SEED_OWNER_PASSWORD") == "" || os.Getenv("SEED_STAFF_PASSWORD") == "" {
		log.Warn().Msg("memory store: using default dev credentials, set SEED_OWNER_PASSWORD and SEED_STAFF_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"owner", ownerPwd, "owner"},
		{"staff", staffPwd, "staff"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal().Err(err).Str("username", u.username).Msg("memory store: failed to hash seed password")
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.SellPrice < 1 || product.CurrentStock < 0 || product.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}
	if product.BuyPrice != nil && *product.BuyPrice < 1 {
		return nil, store.ErrInvalidPrice
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if product.ID == "" {
		product.ID = xid.New("prd")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrInvalidInput
	}

	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.SellPrice < 1 || product.CurrentStock < 0 || product.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[product.ID]; !exists {
		return nil, store.ErrNotFound
	}

	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

// DeleteProduct is a no-op for unknown ids.
func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.products, id)
	return nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := product
	return &copied, nil
}

func (s *Store) GetProductByBarcode(_ context.Context, barcode string) (*domain.Product, error) {
	if barcode == "" {
		return nil, store.ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, product := range s.products {
		if product.Barcode == barcode {
			copied := product
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) FindProductByName(_ context.Context, name string) (*domain.Product, error) {
	want := strings.ToLower(strings.TrimSpace(name))
	if want == "" {
		return nil, store.ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, product := range s.products {
		if strings.ToLower(product.Name) == want {
			copied := product
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) ListLowStock(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, 16)
	for _, p := range s.products {
		if p.CurrentStock <= p.MinStock {
			products = append(products, p)
		}
	}
	// Popular items first so restocking them gets priority.
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.SalesCount != b.SalesCount {
			return b.SalesCount - a.SalesCount
		}
		return cmpString(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) ListTopSelling(_ context.Context, limit int) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, 16)
	for _, p := range s.products {
		if p.SalesCount > 0 {
			products = append(products, p)
		}
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.SalesCount != b.SalesCount {
			return b.SalesCount - a.SalesCount
		}
		return cmpString(a.Name, b.Name)
	})
	if limit > 0 && len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

func (s *Store) ListUnsold(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, 16)
	for _, p := range s.products {
		if p.SalesCount == 0 {
			products = append(products, p)
		}
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return cmpString(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) InsertCashFlow(_ context.Context, flow domain.CashFlow) (*domain.CashFlow, error) {
	if flow.Type != domain.FlowIn && flow.Type != domain.FlowOut {
		return nil, store.ErrInvalidInput
	}
	if flow.Amount < 1 {
		return nil, store.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.appendFlowLocked(&flow)
	inserted := flow
	return &inserted, nil
}

// appendFlowLocked assigns identity and timestamp defaults and appends the
// row. Callers must hold the write lock.
func (s *Store) appendFlowLocked(flow *domain.CashFlow) {
	if flow.ID == "" {
		flow.ID = xid.New("cf")
	}
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = time.Now().UTC()
	}
	s.flowsByID[flow.ID] = len(s.flows)
	s.flows = append(s.flows, *flow)
}

// UpdateCashFlow only serves the expense edit backdoor: OUT rows with no
// product reference. Everything else in the ledger is immutable.
func (s *Store) UpdateCashFlow(_ context.Context, flow domain.CashFlow) (*domain.CashFlow, error) {
	if flow.Amount < 1 {
		return nil, store.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx, exists := s.flowsByID[flow.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	existing := s.flows[idx]
	if existing.Type != domain.FlowOut || existing.ProductID != "" {
		return nil, store.ErrInvalidInput
	}

	existing.Amount = flow.Amount
	existing.Description = flow.Description
	s.flows[idx] = existing
	updated := existing
	return &updated, nil
}

func (s *Store) GetCashFlow(_ context.Context, id string) (*domain.CashFlow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, exists := s.flowsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copied := s.flows[idx]
	return &copied, nil
}

func (s *Store) ListCashFlows(_ context.Context) ([]domain.CashFlow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.CashFlow, len(s.flows))
	copy(result, s.flows)
	slices.SortStableFunc(result, func(a, b domain.CashFlow) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) ListCashFlowsInRange(_ context.Context, from, to time.Time) ([]domain.CashFlow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.CashFlow, 0, len(s.flows))
	for _, f := range s.flows {
		if inRange(f.CreatedAt, from, to) {
			result = append(result, f)
		}
	}
	slices.SortStableFunc(result, func(a, b domain.CashFlow) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return -1
		}
		return 1
	})
	return result, nil
}

func (s *Store) SumAmountInRange(_ context.Context, typ domain.CashFlowType, from, to time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, f := range s.flows {
		if f.Type == typ && inRange(f.CreatedAt, from, to) {
			total += f.Amount
		}
	}
	return total, nil
}

func (s *Store) SumProfitInRange(_ context.Context, from, to time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, f := range s.flows {
		if f.Type == domain.FlowIn && inRange(f.CreatedAt, from, to) {
			total += f.Profit
		}
	}
	return total, nil
}

func (s *Store) SumStockPurchaseInRange(_ context.Context, from, to time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, f := range s.flows {
		if f.IsStockPurchase() && inRange(f.CreatedAt, from, to) {
			total += f.Amount
		}
	}
	return total, nil
}

func (s *Store) CurrentBalance(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var balance int64
	for _, f := range s.flows {
		if f.Type == domain.FlowIn {
			balance += f.Amount
		} else {
			balance -= f.Amount
		}
	}
	return balance, nil
}

// CommitSale re-validates every cart line against live stock under the write
// lock, then applies all product mutations and appends the single aggregate
// IN row. Any failing line aborts the whole cart before anything is touched.
func (s *Store) CommitSale(_ context.Context, lines []domain.CartLine, at time.Time) (*domain.CashFlow, error) {
	if len(lines) == 0 {
		return nil, store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]domain.SaleItem, 0, len(lines))
	remaining := make(map[string]int, len(lines))
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, store.ErrInvalidQuantity
		}
		product, exists := s.products[line.ProductID]
		if !exists {
			return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, line.ProductID)
		}
		// Lines may repeat a product, so validate against what earlier
		// lines in this cart already claimed, not the stored stock alone.
		left, seen := remaining[line.ProductID]
		if !seen {
			left = product.CurrentStock
		}
		if line.Quantity > left {
			return nil, fmt.Errorf("%w: %s", store.ErrInsufficientStock, product.Name)
		}
		remaining[line.ProductID] = left - line.Quantity
		items = append(items, domain.SaleItem{Product: product, Quantity: line.Quantity})
	}

	if at.IsZero() {
		at = time.Now().UTC()
	}
	for _, item := range items {
		product := s.products[item.Product.ID]
		product.CurrentStock -= item.Quantity
		product.SalesCount += item.Quantity
		product.LastSoldAt = at
		s.products[product.ID] = product
	}

	flow := domain.ComposeSale(items, at)
	s.appendFlowLocked(&flow)
	committed := flow
	return &committed, nil
}

// RestockProduct raises stock, refreshes the buy price when it changed, and
// appends the tagged OUT row, all under one lock acquisition.
func (s *Store) RestockProduct(_ context.Context, productID string, quantity int, unitBuyPrice int64, at time.Time) (*domain.Product, *domain.CashFlow, error) {
	if quantity < 1 {
		return nil, nil, store.ErrInvalidQuantity
	}
	if unitBuyPrice < 1 {
		return nil, nil, store.ErrInvalidPrice
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[productID]
	if !exists {
		return nil, nil, store.ErrNotFound
	}

	product.CurrentStock += quantity
	if product.BuyPrice == nil || *product.BuyPrice != unitBuyPrice {
		price := unitBuyPrice
		product.BuyPrice = &price
	}
	s.products[productID] = product

	if at.IsZero() {
		at = time.Now().UTC()
	}
	flow := domain.ComposeRestock(product, quantity, unitBuyPrice, at)
	s.appendFlowLocked(&flow)

	updated := product
	committed := flow
	return &updated, &committed, nil
}

func (s *Store) ExportSnapshot(_ context.Context) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &domain.Snapshot{
		Version:   domain.SnapshotVersion,
		CreatedAt: time.Now().UTC(),
		Products:  make([]domain.Product, 0, len(s.products)),
		CashFlows: make([]domain.CashFlow, len(s.flows)),
	}
	for _, p := range s.products {
		snap.Products = append(snap.Products, p)
	}
	slices.SortFunc(snap.Products, func(a, b domain.Product) int {
		return cmpString(a.ID, b.ID)
	})
	copy(snap.CashFlows, s.flows)
	return snap, nil
}

// ImportSnapshot replaces the whole store with the snapshot's rows. User
// accounts are kept; they are not part of the backup payload.
func (s *Store) ImportSnapshot(_ context.Context, snap domain.Snapshot) error {
	if snap.Version != domain.SnapshotVersion {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.products = make(map[string]domain.Product, len(snap.Products))
	for _, p := range snap.Products {
		if p.ID == "" {
			p.ID = xid.New("prd")
		}
		s.products[p.ID] = p
	}

	s.flows = make([]domain.CashFlow, 0, len(snap.CashFlows))
	s.flowsByID = make(map[string]int, len(snap.CashFlows))
	for _, f := range snap.CashFlows {
		flow := f
		s.appendFlowLocked(&flow)
	}
	return nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrInvalidInput
	}
	user.Username = username
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

// inRange is inclusive on both ends, matching the aggregation contract.
func inRange(ts, from, to time.Time) bool {
	return !ts.Before(from) && !ts.After(to)
}

func cmpString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
