package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

var (
	ErrReceiptNotFound = errors.New("receipt not found")
	ErrDuplicateID     = errors.New("receipt already recorded")
)

// Receipt is a journal entry for an order the shop API accepted.
type Receipt struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Order     domain.Order    `json:"order"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
}

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// one writer at a time
	db.SetMaxOpenConns(1)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

func (r *Repository) SaveReceipt(ctx context.Context, rc Receipt) error {
	items, err := json.Marshal(rc.Order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal items: %w", err)
	}
	if rc.CreatedAt.IsZero() {
		rc.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO receipts (id, session_id, payment, address, email, phone, items, total, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT(id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query,
		rc.ID,
		rc.SessionID,
		string(rc.Order.Payment),
		rc.Order.Address,
		rc.Order.Email,
		rc.Order.Phone,
		string(items),
		rc.Total.String(),
		rc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check insert result: %w", err)
	}
	if n == 0 {
		return ErrDuplicateID
	}
	return nil
}

func (r *Repository) GetReceipt(ctx context.Context, id string) (Receipt, error) {
	query := `
		SELECT id, session_id, payment, address, email, phone, items, total, created_at
		FROM receipts
		WHERE id = $1
	`
	rc, err := scanReceipt(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Receipt{}, ErrReceiptNotFound
	}
	if err != nil {
		return Receipt{}, err
	}
	return rc, nil
}

// ListReceipts returns the newest receipts first.
func (r *Repository) ListReceipts(ctx context.Context, limit int) ([]Receipt, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, session_id, payment, address, email, phone, items, total, created_at
		FROM receipts
		ORDER BY created_at DESC, id
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	receipts := []Receipt{}
	for rows.Next() {
		rc, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, rc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return receipts, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReceipt(s scanner) (Receipt, error) {
	var (
		rc      Receipt
		payment string
		items   string
		total   string
	)
	err := s.Scan(
		&rc.ID,
		&rc.SessionID,
		&payment,
		&rc.Order.Address,
		&rc.Order.Email,
		&rc.Order.Phone,
		&items,
		&total,
		&rc.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Receipt{}, err
	}
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to scan receipt: %w", err)
	}

	rc.Order.Payment = domain.PaymentMethod(payment)
	if err := json.Unmarshal([]byte(items), &rc.Order.Items); err != nil {
		return Receipt{}, fmt.Errorf("failed to unmarshal items: %w", err)
	}
	if rc.Total, err = decimal.NewFromString(total); err != nil {
		return Receipt{}, fmt.Errorf("failed to parse total: %w", err)
	}
	rc.Order.Total = rc.Total
	return rc, nil
}
