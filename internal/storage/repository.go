package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gastos/internal/core"

	_ "modernc.org/sqlite"
)

const (
	insertExpenseSQL = `INSERT INTO expenses (created_at, category, description, amount_cents) VALUES (?, ?, ?, ?)`
	listExpensesSQL  = `SELECT id, created_at, category, description, amount_cents FROM expenses ORDER BY id`
	deleteAllSQL     = `DELETE FROM expenses`
)

// SQLiteRepository keeps expenses in an SQLite database. Rows are ordered by
// their autoincrement id, which is the append order.
type SQLiteRepository struct {
	db     *sql.DB
	dbPath string
	loc    *time.Location
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection keeps writes ordered and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := migrateSchema(context.Background(), dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, dbPath: dbPath, loc: time.Local}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Init re-applies pending migrations; it is a no-op on an up to date database.
func (r *SQLiteRepository) Init(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return core.NewStorageError("ping database", err)
	}
	_, err := migrateSchema(ctx, r.dbPath)
	return core.NewStorageError("run migrations", err)
}

// Append implements store.Backend
func (r *SQLiteRepository) Append(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, insertExpenseSQL, encodeTime(e.Timestamp), e.Category, e.Description, e.Amount.Cents)
	if err != nil {
		return core.NewStorageError("create expense", err)
	}
	id, _ := res.LastInsertId()

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", id,
		"description", e.Description,
		"amount_cents", e.Amount.Cents,
		"category", e.Category)
	return nil
}

// List implements store.Backend
func (r *SQLiteRepository) List(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, listExpensesSQL)
	if err != nil {
		return nil, core.NewStorageError("list expenses", err)
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		var (
			id          int64
			createdAt   string
			category    string
			description string
			cents       int64
		)
		if err := rows.Scan(&id, &createdAt, &category, &description, &cents); err != nil {
			return nil, core.NewStorageError("scan expense", err)
		}
		ts, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			slog.WarnContext(ctx, "Skipping expense with invalid timestamp", "id", id, "created_at", createdAt)
			continue
		}
		e := core.NewExpense(ts.In(r.loc), category, description, core.Money{Cents: cents})
		if err := e.Validate(); err != nil {
			slog.WarnContext(ctx, "Skipping invalid expense row", "id", id, "error", err)
			continue
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewStorageError("list expenses", err)
	}
	return out, nil
}

// Persist replaces every row inside one transaction.
func (r *SQLiteRepository) Persist(ctx context.Context, expenses []core.Expense) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.NewStorageError("begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, deleteAllSQL); err != nil {
		return core.NewStorageError("clear expenses", err)
	}
	stmt, err := tx.PrepareContext(ctx, insertExpenseSQL)
	if err != nil {
		return core.NewStorageError("prepare insert", err)
	}
	defer stmt.Close()

	for _, e := range expenses {
		if _, err := stmt.ExecContext(ctx, encodeTime(e.Timestamp), e.Category, e.Description, e.Amount.Cents); err != nil {
			return core.NewStorageError("insert expense", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return core.NewStorageError("commit", err)
	}

	slog.InfoContext(ctx, "Expenses rewritten in SQLite", "count", len(expenses))
	return nil
}

func encodeTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}
