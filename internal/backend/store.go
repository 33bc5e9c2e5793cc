// Package backend provides the SQLite-backed order store the status-query
// capability reads from. It stands in for the upstream order-management
// system and ships with a seed fixture for local runs and tests.
package backend

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when an order number has no row.
var ErrNotFound = errors.New("order not found")

// Order is a single row of the order store.
type Order struct {
	Number  string
	Type    string
	Status  string
	Details map[string]any
}

// Store wraps an SQLite database holding order records.
type Store struct {
	conn *sql.DB
	path string
}

// Open opens an SQLite database at the given path, creating parent
// directories as needed. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL mode for concurrent reads
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	return &Store{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

// Path returns the path to the database file.
func (s *Store) Path() string {
	return s.path
}

// Migrate creates the orders table if it does not exist.
func (s *Store) Migrate() error {
	_, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS orders (
			number  TEXT PRIMARY KEY,
			type    TEXT NOT NULL,
			status  TEXT NOT NULL,
			details TEXT NOT NULL DEFAULT '{}'
		)
	`)
	if err != nil {
		return fmt.Errorf("create orders table: %w", err)
	}
	return nil
}

// Seed inserts the fixture orders used by local runs and tests. Existing
// rows with the same number are replaced.
func (s *Store) Seed() error {
	for _, o := range fixtureOrders() {
		if err := s.PutOrder(context.Background(), o); err != nil {
			return fmt.Errorf("seed order %s: %w", o.Number, err)
		}
	}
	return nil
}

// PutOrder upserts a single order.
func (s *Store) PutOrder(ctx context.Context, o Order) error {
	details, err := json.Marshal(o.Details)
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO orders (number, type, status, details)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(number) DO UPDATE SET
			type = excluded.type,
			status = excluded.status,
			details = excluded.details
	`, o.Number, o.Type, o.Status, string(details))
	if err != nil {
		return fmt.Errorf("upsert order: %w", err)
	}
	return nil
}

// GetOrder fetches one order by number. Returns ErrNotFound when absent.
func (s *Store) GetOrder(ctx context.Context, number string) (*Order, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT number, type, status, details FROM orders WHERE number = ?", number)

	var o Order
	var details string
	if err := row.Scan(&o.Number, &o.Type, &o.Status, &details); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query order: %w", err)
	}

	if err := json.Unmarshal([]byte(details), &o.Details); err != nil {
		return nil, fmt.Errorf("decode order details: %w", err)
	}
	return &o, nil
}

// fixtureOrders mirrors the order book the upstream system is mocked with.
func fixtureOrders() []Order {
	return []Order{
		{
			Number: "12345", Type: "electronics", Status: "Shipped",
			Details: map[string]any{"carrier": "FedEx", "tracking_id": "FX123456789"},
		},
		{
			Number: "98765", Type: "electronics", Status: "Processing",
			Details: map[string]any{"estimated_ship_date": "2023-10-28"},
		},
		{
			Number: "ABCDE", Type: "books", Status: "Delivered",
			Details: map[string]any{"delivery_date": "2023-10-20"},
		},
		{
			Number: "XYZ00", Type: "clothing", Status: "Pending Payment",
			Details: map[string]any{"reason": "Awaiting payment confirmation."},
		},
		{
			Number: "ERR01", Type: "electronics", Status: "Error",
			Details: map[string]any{"error_code": "E102", "message": "Inventory not available."},
		},
		{
			Number: "MULTI", Type: "groceries", Status: "Partially Shipped",
			Details: map[string]any{
				"shipped_items": []any{"Apples", "Bananas"},
				"pending_items": []any{"Milk"},
			},
		},
	}
}
