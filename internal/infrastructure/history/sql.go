// Package history persists completed searches in a SQL database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/pricelens/backend/internal/domain"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var schemas = map[string]string{
	DriverPostgres: `CREATE TABLE IF NOT EXISTS search_history (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL DEFAULT '',
		barcode TEXT NOT NULL DEFAULT '',
		product_name TEXT NOT NULL,
		brand TEXT NOT NULL DEFAULT '',
		source VARCHAR(20) NOT NULL,
		confidence VARCHAR(10) NOT NULL,
		offer_count INTEGER NOT NULL DEFAULT 0,
		best_price NUMERIC(12,2) NOT NULL DEFAULT 0,
		searched_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	DriverSQLite: `CREATE TABLE IF NOT EXISTS search_history (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL DEFAULT '',
		barcode TEXT NOT NULL DEFAULT '',
		product_name TEXT NOT NULL,
		brand TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL,
		confidence TEXT NOT NULL,
		offer_count INTEGER NOT NULL DEFAULT 0,
		best_price TEXT NOT NULL DEFAULT '0',
		searched_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

const indexDDL = `CREATE INDEX IF NOT EXISTS idx_search_history_user ON search_history (user_id, searched_at)`

// SQLRecorder implements domain.HistoryRecorder on postgres or sqlite
type SQLRecorder struct {
	db     *sql.DB
	driver string
	now    func() time.Time
	logger *zap.Logger
}

// Open connects to the database and makes sure the history table exists
func Open(ctx context.Context, driver, dsn string, logger *zap.Logger) (*SQLRecorder, error) {
	schema, ok := schemas[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported history driver %q", driver)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if driver == DriverSQLite {
		// one writer at a time
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping history database: %w", err)
	}

	for _, ddl := range []string{schema, indexDDL} {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create history table: %w", err)
		}
	}

	logger.Info("history store ready", zap.String("driver", driver))
	return &SQLRecorder{
		db:     db,
		driver: driver,
		now:    time.Now,
		logger: logger.Named("history"),
	}, nil
}

// Record inserts entry, filling in the ID and timestamp when missing
func (r *SQLRecorder) Record(ctx context.Context, entry domain.HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.SearchedAt.IsZero() {
		entry.SearchedAt = r.now()
	}

	_, err := r.db.ExecContext(ctx, r.rebind(`
		INSERT INTO search_history (
			id, user_id, barcode, product_name, brand, source,
			confidence, offer_count, best_price, searched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), entry.ID, entry.UserID, entry.Barcode, entry.ProductName, entry.Brand,
		string(entry.Source), entry.Confidence.String(), entry.OfferCount,
		entry.BestPrice.StringFixed(2), entry.SearchedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record search: %w", err)
	}

	r.logger.Debug("search recorded",
		zap.String("id", entry.ID),
		zap.String("product", entry.ProductName))
	return nil
}

// Recent returns the latest searches of userID, newest first
func (r *SQLRecorder) Recent(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT id, user_id, barcode, product_name, brand, source,
			confidence, offer_count, best_price, searched_at
		FROM search_history
		WHERE user_id = ?
		ORDER BY searched_at DESC
		LIMIT ?
	`), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var (
			e          domain.HistoryEntry
			source     string
			confidence string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Barcode, &e.ProductName, &e.Brand,
			&source, &confidence, &e.OfferCount, &e.BestPrice, &e.SearchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.Source = domain.IdentificationSource(source)
		e.Confidence = domain.ParseConfidence(confidence)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database
func (r *SQLRecorder) Close() error {
	return r.db.Close()
}

// rebind turns ? placeholders into $n for postgres
func (r *SQLRecorder) rebind(query string) string {
	if r.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}
