package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"puntoventa/backend/internal/domain"
	"puntoventa/backend/internal/store"
	"puntoventa/backend/internal/xid"
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
		return nil, err
	}

	return &Store{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, brand, model, type, color, category, qr_code, price_cents, stock, created_at, updated_at
		FROM products
		ORDER BY category, brand, model
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Brand, &p.Model, &p.Type, &p.Color, &p.Category, &p.QRCode, &p.PriceCents, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.getProductBy(ctx, "id", id)
}

func (s *Store) GetProductByQRCode(ctx context.Context, code string) (*domain.Product, error) {
	if code == "" {
		return nil, store.ErrNotFound
	}
	return s.getProductBy(ctx, "qr_code", code)
}

func (s *Store) getProductBy(ctx context.Context, column string, value string) (*domain.Product, error) {
	var p domain.Product
	query := fmt.Sprintf(`
		SELECT id, brand, model, type, color, category, qr_code, price_cents, stock, created_at, updated_at
		FROM products
		WHERE %s = $1
	`, column)
	err := s.db.QueryRowContext(ctx, query, value).
		Scan(&p.ID, &p.Brand, &p.Model, &p.Type, &p.Color, &p.Category, &p.QRCode, &p.PriceCents, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Brand == "" || product.Model == "" || product.PriceCents < 1 || product.Stock < 0 {
		return nil, store.ErrInvalidRequest
	}
	if product.ID == "" {
		product.ID = xid.New("prd")
	}

	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, brand, model, type, color, category, qr_code, price_cents, stock, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, product.ID, product.Brand, product.Model, product.Type, product.Color, product.Category, product.QRCode, product.PriceCents, product.Stock, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateQRCode
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (*domain.Product, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var p domain.Product
	err = tx.QueryRowContext(ctx, `
		SELECT id, brand, model, type, color, category, qr_code, price_cents, stock, created_at, updated_at
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&p.ID, &p.Brand, &p.Model, &p.Type, &p.Color, &p.Category, &p.QRCode, &p.PriceCents, &p.Stock, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	if req.Brand != nil {
		p.Brand = strings.TrimSpace(*req.Brand)
	}
	if req.Model != nil {
		p.Model = strings.TrimSpace(*req.Model)
	}
	if req.Type != nil {
		p.Type = strings.TrimSpace(*req.Type)
	}
	if req.Color != nil {
		p.Color = strings.TrimSpace(*req.Color)
	}
	if req.Category != nil {
		p.Category = strings.TrimSpace(*req.Category)
	}
	if req.QRCode != nil {
		p.QRCode = strings.TrimSpace(*req.QRCode)
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 1 {
			return nil, store.ErrInvalidRequest
		}
		p.PriceCents = *req.PriceCents
	}
	if req.Stock != nil {
		if *req.Stock < 0 {
			return nil, store.ErrInsufficientStock
		}
		p.Stock = *req.Stock
	}
	p.UpdatedAt = time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		UPDATE products
		SET brand = $2, model = $3, type = $4, color = $5, category = $6, qr_code = $7, price_cents = $8, stock = $9, updated_at = $10
		WHERE id = $1
	`, p.ID, p.Brand, p.Model, p.Type, p.Color, p.Category, p.QRCode, p.PriceCents, p.Stock, p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicateQRCode
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	updated := p
	return &updated, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
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

// AdjustStock is a single conditional UPDATE: the row either moves to a
// non-negative stock or is left untouched, so concurrent adjustments on
// the same product serialize on the row lock and exactly one of two
// conflicting decrements wins.
func (s *Store) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	var newStock int
	err := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = now()
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING stock
	`, id, delta).Scan(&newStock)
	if err == nil {
		return newStock, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	// No row updated: distinguish a missing product from a rejected change.
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists); err != nil {
		return 0, err
	}
	if !exists {
		return 0, store.ErrNotFound
	}
	return 0, store.ErrInsufficientStock
}

func (s *Store) NextFolio(ctx context.Context) (string, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT nextval('ticket_folio_seq')`).Scan(&seq); err != nil {
		return "", err
	}
	return fmt.Sprintf("T-%06d", seq), nil
}

func (s *Store) CreateTicket(ctx context.Context, ticket domain.Ticket) (*domain.Ticket, error) {
	if ticket.ID == "" || ticket.Folio == "" || len(ticket.Items) == 0 {
		return nil, store.ErrInvalidRequest
	}
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusActive
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tickets (id, folio, seller, payment_method, total_cents, status, created_at, cancelled_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, ticket.ID, ticket.Folio, ticket.Seller, ticket.PaymentMethod, ticket.TotalCents, ticket.Status, ticket.CreatedAt, nullTime(ticket.CancelledAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidRequest
		}
		return nil, err
	}

	for i, item := range ticket.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO ticket_items (ticket_id, line_no, product_id, brand, model, qty, price_cents, discount_cents, total_cents)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, ticket.ID, i+1, item.ProductID, item.Brand, item.Model, item.Qty, item.PriceCents, item.DiscountCents, item.TotalCents)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := ticket
	return &created, nil
}

func (s *Store) GetTicket(ctx context.Context, id string) (*domain.Ticket, error) {
	var t domain.Ticket
	var cancelledAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, folio, seller, payment_method, total_cents, status, created_at, cancelled_at
		FROM tickets
		WHERE id = $1
	`, id).Scan(&t.ID, &t.Folio, &t.Seller, &t.PaymentMethod, &t.TotalCents, &t.Status, &t.CreatedAt, &cancelledAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if cancelledAt.Valid {
		at := cancelledAt.Time
		t.CancelledAt = &at
	}

	items, err := s.ticketItems(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Items = items
	return &t, nil
}

func (s *Store) ticketItems(ctx context.Context, ticketID string) ([]domain.TicketItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, brand, model, qty, price_cents, discount_cents, total_cents
		FROM ticket_items
		WHERE ticket_id = $1
		ORDER BY line_no
	`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.TicketItem, 0, 8)
	for rows.Next() {
		var item domain.TicketItem
		if err := rows.Scan(&item.ProductID, &item.Brand, &item.Model, &item.Qty, &item.PriceCents, &item.DiscountCents, &item.TotalCents); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) ListTickets(ctx context.Context, limit int) ([]domain.Ticket, error) {
	query := `
		SELECT id, folio, seller, payment_method, total_cents, status, created_at, cancelled_at
		FROM tickets
		ORDER BY created_at DESC, folio DESC
	`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	return s.queryTickets(ctx, query, args...)
}

func (s *Store) ListTicketsBetween(ctx context.Context, from time.Time, to time.Time) ([]domain.Ticket, error) {
	return s.queryTickets(ctx, `
		SELECT id, folio, seller, payment_method, total_cents, status, created_at, cancelled_at
		FROM tickets
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC, folio DESC
	`, from, to)
}

func (s *Store) queryTickets(ctx context.Context, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tickets := make([]domain.Ticket, 0, 64)
	for rows.Next() {
		var t domain.Ticket
		var cancelledAt sql.NullTime
		if err := rows.Scan(&t.ID, &t.Folio, &t.Seller, &t.PaymentMethod, &t.TotalCents, &t.Status, &t.CreatedAt, &cancelledAt); err != nil {
			return nil, err
		}
		if cancelledAt.Valid {
			at := cancelledAt.Time
			t.CancelledAt = &at
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range tickets {
		items, err := s.ticketItems(ctx, tickets[i].ID)
		if err != nil {
			return nil, err
		}
		tickets[i].Items = items
	}
	return tickets, nil
}

func (s *Store) CancelTicket(ctx context.Context, id string, at time.Time) (*domain.Ticket, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	err = tx.QueryRowContext(ctx, `
		SELECT status
		FROM tickets
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if status == domain.TicketStatusCancelled {
		return nil, store.ErrTicketCancelled
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE tickets
		SET status = $2, cancelled_at = $3
		WHERE id = $1 AND status = $4
	`, id, domain.TicketStatusCancelled, at, domain.TicketStatusActive)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.GetTicket(ctx, id)
}

func (s *Store) SaveCashCut(ctx context.Context, report domain.CashCutReport) (*domain.CashCutReport, error) {
	if report.ID == "" {
		report.ID = xid.New("cut")
	}
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = time.Now().UTC()
	}

	expenses, err := json.Marshal(report.Expenses)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cash_cuts (
			id, window_name, range_start, range_end, opening_cents, closing_cents,
			sales_cents, ticket_count, expenses_cents, expected_cents, variance_cents,
			net_profit_cents, expenses, generated_by, generated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, report.ID, report.Window, report.Start, report.End, report.OpeningCents, report.ClosingCents,
		report.SalesCents, report.TicketCount, report.ExpensesCents, report.ExpectedCents, report.VarianceCents,
		report.NetProfitCents, expenses, report.GeneratedBy, report.GeneratedAt)
	if err != nil {
		return nil, err
	}

	saved := report
	return &saved, nil
}

func (s *Store) GetCashCut(ctx context.Context, id string) (*domain.CashCutReport, error) {
	var r domain.CashCutReport
	var expenses []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, window_name, range_start, range_end, opening_cents, closing_cents,
		       sales_cents, ticket_count, expenses_cents, expected_cents, variance_cents,
		       net_profit_cents, expenses, generated_by, generated_at
		FROM cash_cuts
		WHERE id = $1
	`, id).Scan(&r.ID, &r.Window, &r.Start, &r.End, &r.OpeningCents, &r.ClosingCents,
		&r.SalesCents, &r.TicketCount, &r.ExpensesCents, &r.ExpectedCents, &r.VarianceCents,
		&r.NetProfitCents, &expenses, &r.GeneratedBy, &r.GeneratedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if len(expenses) > 0 {
		if err := json.Unmarshal(expenses, &r.Expenses); err != nil {
			return nil, err
		}
	}
	return &r, nil
}

func (s *Store) ListCashCuts(ctx context.Context, limit int) ([]domain.CashCutReport, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, window_name, range_start, range_end, opening_cents, closing_cents,
		       sales_cents, ticket_count, expenses_cents, expected_cents, variance_cents,
		       net_profit_cents, expenses, generated_by, generated_at
		FROM cash_cuts
		ORDER BY generated_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reports := make([]domain.CashCutReport, 0, limit)
	for rows.Next() {
		var r domain.CashCutReport
		var expenses []byte
		if err := rows.Scan(&r.ID, &r.Window, &r.Start, &r.End, &r.OpeningCents, &r.ClosingCents,
			&r.SalesCents, &r.TicketCount, &r.ExpensesCents, &r.ExpectedCents, &r.VarianceCents,
			&r.NetProfitCents, &expenses, &r.GeneratedBy, &r.GeneratedAt); err != nil {
			return nil, err
		}
		if len(expenses) > 0 {
			if err := json.Unmarshal(expenses, &r.Expenses); err != nil {
				return nil, err
			}
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.Username == "" || user.Password == "" {
		return store.ErrInvalidRequest
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidRequest
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var u domain.UserAccount
		if err := rows.Scan(&u.Username, &u.Password, &u.Role, &u.Active, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $2 WHERE username = $1
	`, username, password)
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

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}
