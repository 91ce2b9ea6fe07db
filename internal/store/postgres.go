package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // Postgres driver
)

const schema = `
CREATE TABLE IF NOT EXISTS invoices (
	id          UUID PRIMARY KEY,
	provider_id TEXT NOT NULL,
	folio       TEXT NOT NULL,
	issued_at   TIMESTAMPTZ NOT NULL,
	total       NUMERIC(14,2) NOT NULL,
	pdf_url     TEXT NOT NULL,
	xml_url     TEXT NOT NULL,
	customer    JSONB NOT NULL,
	line_items  JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
)`

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// PostgresStore keeps invoices in one table with JSONB customer and line items.
type PostgresStore struct {
	db    *sql.DB
	newID func() string
	now   func() time.Time
}

// NewPostgresStore returns a store over db. Call EnsureSchema before first use.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, newID: uuid.NewString, now: time.Now}
}

// EnsureSchema creates the invoices table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create invoices table: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, rec Record) (string, error) {
	customer, err := json.Marshal(rec.Customer)
	if err != nil {
		return "", fmt.Errorf("marshal customer: %w", err)
	}
	items, err := json.Marshal(rec.LineItems)
	if err != nil {
		return "", fmt.Errorf("marshal line items: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}

	id := s.newID()
	query := `
		INSERT INTO invoices (id, provider_id, folio, issued_at, total, pdf_url, xml_url, customer, line_items, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	inv := rec.Invoice
	_, err = s.db.ExecContext(ctx, query,
		id, inv.ProviderID, inv.Folio, inv.IssuedAt, inv.Total.String(),
		inv.PDFURL, inv.XMLURL, customer, items, rec.CreatedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert invoice: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Record{}, ErrNotFound
	}

	query := `
		SELECT id, provider_id, folio, issued_at, total, pdf_url, xml_url, customer, line_items, created_at
		FROM invoices
		WHERE id = $1
	`
	var (
		rec             Record
		customer, items []byte
	)
	inv := &rec.Invoice
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&inv.ID, &inv.ProviderID, &inv.Folio, &inv.IssuedAt, &inv.Total,
		&inv.PDFURL, &inv.XMLURL, &customer, &items, &rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("select invoice: %w", err)
	}
	if err := json.Unmarshal(customer, &rec.Customer); err != nil {
		return Record{}, fmt.Errorf("decode customer: %w", err)
	}
	if err := json.Unmarshal(items, &rec.LineItems); err != nil {
		return Record{}, fmt.Errorf("decode line items: %w", err)
	}
	return rec, nil
}

var _ Store = (*PostgresStore)(nil)
