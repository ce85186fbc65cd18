// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package payments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const createTransactionsTableSQL = `
CREATE TABLE IF NOT EXISTS payment_transactions (
    id VARCHAR(64) NOT NULL PRIMARY KEY,
    kind VARCHAR(32) NOT NULL,
    user_id VARCHAR(255) NOT NULL,
    recipient_id VARCHAR(255) NOT NULL DEFAULT '',
    session_id VARCHAR(255) NOT NULL DEFAULT '',
    amount BIGINT NOT NULL,
    fee BIGINT NOT NULL,
    net BIGINT NOT NULL,
    currency VARCHAR(8) NOT NULL,
    status VARCHAR(32) NOT NULL,
    message TEXT,
    created_at TIMESTAMP NOT NULL
)`

// MySQL has no CREATE INDEX IF NOT EXISTS.
const createTransactionsIndexSQL = `CREATE INDEX IF NOT EXISTS idx_payment_transactions_user ON payment_transactions(user_id, created_at)`

const transactionColumns = `id, kind, user_id, recipient_id, session_id, amount, fee, net, currency, status, message, created_at`

// SQLStore is a SQL-based implementation of Store.
// It supports Postgres, MySQL, and SQLite.
type SQLStore struct {
	db      *sql.DB
	dialect string
}

// NewSQLStore creates a new SQL-based store and bootstraps its schema.
// Supported dialects: "postgres", "mysql", "sqlite".
func NewSQLStore(db *sql.DB, dialect string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	switch dialect {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}

	s := &SQLStore{
		db:      db,
		dialect: dialect,
	}

	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLStore) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, createTransactionsTableSQL); err != nil {
		return fmt.Errorf("failed to create payment_transactions table: %w", err)
	}
	if s.dialect == "mysql" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, createTransactionsIndexSQL); err != nil {
		return fmt.Errorf("failed to create payment_transactions index: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Create implements Store.
func (s *SQLStore) Create(ctx context.Context, tx *Transaction) error {
	query := s.rebind(`INSERT INTO payment_transactions (` + transactionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		tx.ID, string(tx.Kind), tx.UserID, tx.RecipientID, tx.SessionID,
		tx.Amount, tx.Fee, tx.Net, tx.Currency, string(tx.Status), tx.Message,
		tx.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *SQLStore) Get(ctx context.Context, id string) (*Transaction, error) {
	query := s.rebind(`SELECT ` + transactionColumns + ` FROM payment_transactions WHERE id = ?`)

	tx, err := scanTransaction(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction: %w", err)
	}
	return tx, nil
}

// ListByUser implements Store.
func (s *SQLStore) ListByUser(ctx context.Context, userID string, limit int) ([]*Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM payment_transactions WHERE user_id = ? ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return out, nil
}

// Close implements Store. The *sql.DB is owned by the pool that opened it.
func (s *SQLStore) Close() error {
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*Transaction, error) {
	var (
		tx      Transaction
		kind    string
		status  string
		message sql.NullString
	)
	err := row.Scan(
		&tx.ID, &kind, &tx.UserID, &tx.RecipientID, &tx.SessionID,
		&tx.Amount, &tx.Fee, &tx.Net, &tx.Currency, &status, &message,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	tx.Kind = Kind(kind)
	tx.Status = Status(status)
	tx.Message = message.String
	return &tx, nil
}
