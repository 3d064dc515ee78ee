// Package postgres stores registrations in PostgreSQL. The counter row is
// locked with SELECT ... FOR UPDATE for the duration of an allocation, so
// concurrent writers queue on it and each observes the previous commit.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"eventreg/internal/registration/models"
	"eventreg/internal/registration/ports"
	"eventreg/pkg/platform/sentinel"
)

// SQLSTATE codes that mean the transaction was rolled back by the server and
// can be replayed.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

// PostgresStore implements ports.Store on a pgx pool.
type PostgresStore struct {
	pool       *pgxpool.Pool
	collection string
}

// New creates a store for the given collection.
func New(pool *pgxpool.Pool, collection string) *PostgresStore {
	return &PostgresStore{pool: pool, collection: collection}
}

// RunInTx executes fn inside a single read-committed transaction.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(tx ports.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return classify("begin allocation", err)
	}
	defer func() {
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if err := fn(&pgTx{tx: tx, collection: s.collection}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return classify("commit allocation", err)
	}
	return nil
}

// ListBySequence returns up to limit records in ascending sequence order.
func (s *PostgresStore) ListBySequence(ctx context.Context, limit int) ([]*models.Registration, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, doc
		FROM registrations
		WHERE collection = $1
		ORDER BY seq, id
		LIMIT $2`, s.collection, limit)
	if err != nil {
		return nil, classify("list registrations", err)
	}
	return scanRegistrations(rows)
}

// FindByNamePrefix runs a byte-wise range scan on the name column. The
// birth-date predicate is part of the WHERE clause so it applies before LIMIT.
func (s *PostgresStore) FindByNamePrefix(ctx context.Context, q models.NameQuery) ([]*models.Registration, error) {
	lo, hi := q.Range()
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, doc
		FROM registrations
		WHERE collection = $1
		  AND name COLLATE "C" >= $2
		  AND name COLLATE "C" < $3
		  AND ($4::text = '' OR birth_date = $4::text)
		ORDER BY name COLLATE "C", seq
		LIMIT $5`, s.collection, lo, hi, q.BirthDate, q.Limit)
	if err != nil {
		return nil, classify("search registrations", err)
	}
	return scanRegistrations(rows)
}

// Ping checks the pool.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanRegistrations(rows pgx.Rows) ([]*models.Registration, error) {
	defer rows.Close()
	out := make([]*models.Registration, 0)
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, models.FromDocument(id, models.ParseDocument(raw)))
	}
	if err := rows.Err(); err != nil {
		return nil, classify("read registrations", err)
	}
	return out, nil
}

type pgTx struct {
	tx         pgx.Tx
	collection string
}

func (t *pgTx) Counter(ctx context.Context, key string) (int64, bool, error) {
	var value int64
	err := t.tx.QueryRow(ctx,
		`SELECT value FROM sequence_counters WHERE name = $1 FOR UPDATE`, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, classify("read counter", err)
	}
	return value, true, nil
}

// InitCounter is a plain INSERT: a racing initializer blocks on the primary
// key and then fails with a unique violation, which is reported as a conflict.
func (t *pgTx) InitCounter(ctx context.Context, key string) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO sequence_counters (name, value) VALUES ($1, 1)`, key)
	if err != nil {
		return classify("init counter", err)
	}
	return nil
}

func (t *pgTx) UpdateCounter(ctx context.Context, key string, value int64) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE sequence_counters SET value = $2, updated_at = now() WHERE name = $1`, key, value)
	if err != nil {
		return classify("update counter", err)
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("update counter %q: %w", key, sentinel.ErrConflict)
	}
	return nil
}

func (t *pgTx) NewID() string {
	return uuid.NewString()
}

func (t *pgTx) Insert(ctx context.Context, r *models.Registration) error {
	doc, err := r.MarshalDocument()
	if err != nil {
		return fmt.Errorf("encode registration: %w", err)
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO registrations (collection, id, seq, name, birth_date, doc, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.collection, r.ID, r.Sequence, r.Name, r.BirthDate, string(doc), r.CreatedAt)
	if err != nil {
		return classify("insert registration", err)
	}
	return nil
}

// classify maps driver errors onto the sentinel retry contract.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeUniqueViolation:
			return fmt.Errorf("%s: %w: %w", op, sentinel.ErrConflict, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	if pgconn.SafeToRetry(err) {
		return fmt.Errorf("%s: %w: %w", op, sentinel.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
