package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"warungpos/backend/internal/domain"
	"warungpos/backend/internal/store"
	"warungpos/backend/internal/xid"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const productColumns = "id, name, sell_price, buy_price, current_stock, min_stock, sales_count, is_favorite, last_sold_at, barcode, image_url"

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	var (
		p        domain.Product
		buyPrice sql.NullInt64
		lastSold sql.NullTime
		barcode  sql.NullString
		imageURL sql.NullString
	)
	err := row.Scan(&p.ID, &p.Name, &p.SellPrice, &buyPrice, &p.CurrentStock, &p.MinStock, &p.SalesCount, &p.IsFavorite, &lastSold, &barcode, &imageURL)
	if err != nil {
		return nil, err
	}
	if buyPrice.Valid {
		v := buyPrice.Int64
		p.BuyPrice = &v
	}
	if lastSold.Valid {
		p.LastSoldAt = lastSold.Time.UTC()
	}
	p.Barcode = barcode.String
	p.ImageURL = imageURL.String
	return &p, nil
}

func nullBuyPrice(p domain.Product) sql.NullInt64 {
	if p.BuyPrice == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p.BuyPrice, Valid: true}
}

func nullLastSold(p domain.Product) sql.NullTime {
	if p.LastSoldAt.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: p.LastSoldAt.UTC(), Valid: true}
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.SellPrice < 1 || product.CurrentStock < 0 || product.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}
	if product.BuyPrice != nil && *product.BuyPrice < 1 {
		return nil, store.ErrInvalidPrice
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, sell_price, buy_price, current_stock, min_stock, sales_count, is_favorite, last_sold_at, barcode, image_url, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now(),now())
	`, product.ID, product.Name, product.SellPrice, nullBuyPrice(product), product.CurrentStock, product.MinStock,
		product.SalesCount, product.IsFavorite, nullLastSold(product), nullString(product.Barcode), nullString(product.ImageURL))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" || product.Name == "" || product.SellPrice < 1 || product.CurrentStock < 0 || product.MinStock < 0 {
		return nil, store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE products
		SET name = $2, sell_price = $3, buy_price = $4, current_stock = $5, min_stock = $6,
		    sales_count = $7, is_favorite = $8, last_sold_at = $9, barcode = $10, image_url = $11, updated_at = now()
		WHERE id = $1
	`, product.ID, product.Name, product.SellPrice, nullBuyPrice(product), product.CurrentStock, product.MinStock,
		product.SalesCount, product.IsFavorite, nullLastSold(product), nullString(product.Barcode), nullString(product.ImageURL))
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	updated := product
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	return err
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *Store) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	if barcode == "" {
		return nil, store.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE barcode = $1 LIMIT 1`, barcode)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *Store) FindProductByName(ctx context.Context, name string) (*domain.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, store.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE lower(name) = lower($1) LIMIT 1`, name)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return product, nil
}

func (s *Store) queryProducts(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.queryProducts(ctx, `SELECT `+productColumns+` FROM products ORDER BY name ASC`)
}

func (s *Store) ListLowStock(ctx context.Context) ([]domain.Product, error) {
	return s.queryProducts(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE current_stock <= min_stock
		ORDER BY sales_count DESC, name ASC
	`)
}

func (s *Store) ListTopSelling(ctx context.Context, limit int) ([]domain.Product, error) {
	if limit < 1 {
		limit = 10
	}
	return s.queryProducts(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE sales_count > 0
		ORDER BY sales_count DESC, name ASC
		LIMIT $1
	`, limit)
}

func (s *Store) ListUnsold(ctx context.Context) ([]domain.Product, error) {
	return s.queryProducts(ctx, `
		SELECT `+productColumns+` FROM products
		WHERE sales_count = 0
		ORDER BY name ASC
	`)
}

const flowColumns = "id, type, amount, description, created_at, product_id, profit"

func scanFlow(row interface{ Scan(...any) error }) (*domain.CashFlow, error) {
	var (
		f         domain.CashFlow
		productID sql.NullString
	)
	err := row.Scan(&f.ID, &f.Type, &f.Amount, &f.Description, &f.CreatedAt, &productID, &f.Profit)
	if err != nil {
		return nil, err
	}
	f.CreatedAt = f.CreatedAt.UTC()
	f.ProductID = productID.String
	return &f, nil
}

func (s *Store) InsertCashFlow(ctx context.Context, flow domain.CashFlow) (*domain.CashFlow, error) {
	if flow.Type != domain.FlowIn && flow.Type != domain.FlowOut {
		return nil, store.ErrInvalidInput
	}
	if flow.Amount < 1 {
		return nil, store.ErrInvalidAmount
	}
	if flow.ID == "" {
		flow.ID = xid.New("cf")
	}
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cash_flow (id, type, amount, description, created_at, product_id, profit)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, flow.ID, flow.Type, flow.Amount, flow.Description, flow.CreatedAt, nullString(flow.ProductID), flow.Profit)
	if err != nil {
		return nil, err
	}

	inserted := flow
	return &inserted, nil
}

func (s *Store) UpdateCashFlow(ctx context.Context, flow domain.CashFlow) (*domain.CashFlow, error) {
	if flow.Amount < 1 {
		return nil, store.ErrInvalidAmount
	}

	existing, err := s.GetCashFlow(ctx, flow.ID)
	if err != nil {
		return nil, err
	}
	if existing.Type != domain.FlowOut || existing.ProductID != "" {
		return nil, store.ErrInvalidInput
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE cash_flow SET amount = $2, description = $3 WHERE id = $1
	`, flow.ID, flow.Amount, flow.Description)
	if err != nil {
		return nil, err
	}

	existing.Amount = flow.Amount
	existing.Description = flow.Description
	return existing, nil
}

func (s *Store) GetCashFlow(ctx context.Context, id string) (*domain.CashFlow, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+flowColumns+` FROM cash_flow WHERE id = $1`, id)
	flow, err := scanFlow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return flow, nil
}

func (s *Store) queryFlows(ctx context.Context, query string, args ...any) ([]domain.CashFlow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flows := make([]domain.CashFlow, 0, 128)
	for rows.Next() {
		flow, err := scanFlow(rows)
		if err != nil {
			return nil, err
		}
		flows = append(flows, *flow)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return flows, nil
}

func (s *Store) ListCashFlows(ctx context.Context) ([]domain.CashFlow, error) {
	return s.queryFlows(ctx, `SELECT `+flowColumns+` FROM cash_flow ORDER BY created_at DESC, id DESC`)
}

func (s *Store) ListCashFlowsInRange(ctx context.Context, from, to time.Time) ([]domain.CashFlow, error) {
	return s.queryFlows(ctx, `
		SELECT `+flowColumns+` FROM cash_flow
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at ASC, id ASC
	`, from, to)
}

func (s *Store) sumQuery(ctx context.Context, query string, args ...any) (int64, error) {
	var total sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total.Int64, nil
}

func (s *Store) SumAmountInRange(ctx context.Context, typ domain.CashFlowType, from, to time.Time) (int64, error) {
	return s.sumQuery(ctx, `
		SELECT SUM(amount) FROM cash_flow
		WHERE type = $1 AND created_at >= $2 AND created_at <= $3
	`, typ, from, to)
}

func (s *Store) SumProfitInRange(ctx context.Context, from, to time.Time) (int64, error) {
	return s.sumQuery(ctx, `
		SELECT SUM(profit) FROM cash_flow
		WHERE type = 'IN' AND created_at >= $1 AND created_at <= $2
	`, from, to)
}

func (s *Store) SumStockPurchaseInRange(ctx context.Context, from, to time.Time) (int64, error) {
	return s.sumQuery(ctx, `
		SELECT SUM(amount) FROM cash_flow
		WHERE type = 'OUT'
		  AND (product_id IS NOT NULL OR description LIKE $1)
		  AND created_at >= $2 AND created_at <= $3
	`, domain.StockPurchaseTag+"%", from, to)
}

func (s *Store) CurrentBalance(ctx context.Context) (int64, error) {
	return s.sumQuery(ctx, `
		SELECT SUM(CASE WHEN type = 'IN' THEN amount ELSE -amount END) FROM cash_flow
	`)
}

// CommitSale validates and applies a whole cart in one serializable
// transaction. Product rows are locked up front so concurrent checkouts of
// the same product serialize on stock.
func (s *Store) CommitSale(ctx context.Context, lines []domain.CartLine, at time.Time) (*domain.CashFlow, error) {
	if len(lines) == 0 {
		return nil, store.ErrInvalidInput
	}
	for _, line := range lines {
		if line.Quantity < 1 {
			return nil, store.ErrInvalidQuantity
		}
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	items := make([]domain.SaleItem, 0, len(lines))
	remaining := make(map[string]int, len(lines))
	for _, line := range lines {
		row := tx.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, line.ProductID)
		product, err := scanProduct(row)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("%w: product %s", store.ErrNotFound, line.ProductID)
			}
			return nil, err
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
		items = append(items, domain.SaleItem{Product: *product, Quantity: line.Quantity})
	}

	for _, item := range items {
		_, err := tx.ExecContext(ctx, `
			UPDATE products
			SET current_stock = current_stock - $2,
			    sales_count = sales_count + $2,
			    last_sold_at = $3,
			    updated_at = now()
			WHERE id = $1
		`, item.Product.ID, item.Quantity, at)
		if err != nil {
			return nil, err
		}
	}

	flow := domain.ComposeSale(items, at)
	flow.ID = xid.New("cf")
	_, err = tx.ExecContext(ctx, `
		INSERT INTO cash_flow (id, type, amount, description, created_at, product_id, profit)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, flow.ID, flow.Type, flow.Amount, flow.Description, flow.CreatedAt, nullString(flow.ProductID), flow.Profit)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed := flow
	return &committed, nil
}

func (s *Store) RestockProduct(ctx context.Context, productID string, quantity int, unitBuyPrice int64, at time.Time) (*domain.Product, *domain.CashFlow, error) {
	if quantity < 1 {
		return nil, nil, store.ErrInvalidQuantity
	}
	if unitBuyPrice < 1 {
		return nil, nil, store.ErrInvalidPrice
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, productID)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, store.ErrNotFound
		}
		return nil, nil, err
	}

	product.CurrentStock += quantity
	if product.BuyPrice == nil || *product.BuyPrice != unitBuyPrice {
		price := unitBuyPrice
		product.BuyPrice = &price
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE products SET current_stock = $2, buy_price = $3, updated_at = now() WHERE id = $1
	`, product.ID, product.CurrentStock, nullBuyPrice(*product))
	if err != nil {
		return nil, nil, err
	}

	flow := domain.ComposeRestock(*product, quantity, unitBuyPrice, at)
	flow.ID = xid.New("cf")
	_, err = tx.ExecContext(ctx, `
		INSERT INTO cash_flow (id, type, amount, description, created_at, product_id, profit)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, flow.ID, flow.Type, flow.Amount, flow.Description, flow.CreatedAt, nullString(flow.ProductID), flow.Profit)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, err
	}
	return product, &flow, nil
}

func (s *Store) ExportSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	products, err := s.queryProducts(ctx, `SELECT `+productColumns+` FROM products ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	flows, err := s.queryFlows(ctx, `SELECT `+flowColumns+` FROM cash_flow ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	return &domain.Snapshot{
		Version:   domain.SnapshotVersion,
		CreatedAt: time.Now().UTC(),
		Products:  products,
		CashFlows: flows,
	}, nil
}

// ImportSnapshot wipes both tables and reinserts the snapshot rows inside a
// single transaction. User accounts are untouched.
func (s *Store) ImportSnapshot(ctx context.Context, snap domain.Snapshot) error {
	if snap.Version != domain.SnapshotVersion {
		return store.ErrInvalidInput
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cash_flow`); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM products`); err != nil {
		return err
	}

	for _, p := range snap.Products {
		if p.ID == "" {
			p.ID = xid.New("prd")
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO products (id, name, sell_price, buy_price, current_stock, min_stock, sales_count, is_favorite, last_sold_at, barcode, image_url, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now(),now())
		`, p.ID, p.Name, p.SellPrice, nullBuyPrice(p), p.CurrentStock, p.MinStock,
			p.SalesCount, p.IsFavorite, nullLastSold(p), nullString(p.Barcode), nullString(p.ImageURL))
		if err != nil {
			return err
		}
	}
	for _, f := range snap.CashFlows {
		if f.ID == "" {
			f.ID = xid.New("cf")
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cash_flow (id, type, amount, description, created_at, product_id, profit)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, f.ID, f.Type, f.Amount, f.Description, f.CreatedAt, nullString(f.ProductID), f.Profit)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || user.Password == "" {
		return store.ErrInvalidInput
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, username, user.Password, user.Role, user.Active, user.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrInvalidInput
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT username, password, role, active, created_at FROM users ORDER BY username ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password = $2 WHERE username = $1`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
