package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/crypto_signal_desk/internal/domain"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite has a single writer; one connection also keeps ":memory:" shared.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS cooldowns (
			key TEXT PRIMARY KEY,
			last_notified_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS positions (
			symbol TEXT PRIMARY KEY,
			side TEXT NOT NULL,
			entry_price REAL NOT NULL,
			amount REAL NOT NULL,
			take_profit REAL NOT NULL,
			stop_loss REAL NOT NULL,
			leverage INTEGER NOT NULL,
			partial_taken BOOLEAN NOT NULL DEFAULT 0,
			opened_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			entry_price REAL NOT NULL,
			exit_price REAL NOT NULL,
			amount_closed REAL NOT NULL,
			pnl REAL NOT NULL,
			reason TEXT NOT NULL,
			closed_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_closed_at ON trades(closed_at);`,
		`CREATE TABLE IF NOT EXISTS decisions (
			id TEXT PRIMARY KEY,
			ts DATETIME NOT NULL,
			symbol TEXT NOT NULL,
			signal_kind TEXT NOT NULL,
			outcome TEXT NOT NULL,
			reason TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_ts ON decisions(ts);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CooldownRepository Implementation

func (s *SQLiteStore) GetCooldown(ctx context.Context, key string) (*domain.CooldownEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT key, last_notified_at FROM cooldowns WHERE key = ?`, key)

	var e domain.CooldownEntry
	if err := row.Scan(&e.Key, &e.LastNotifiedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (s *SQLiteStore) UpsertCooldown(ctx context.Context, entry domain.CooldownEntry) error {
	query := `INSERT INTO cooldowns (key, last_notified_at) VALUES (?, ?)
			  ON CONFLICT(key) DO UPDATE SET last_notified_at=excluded.last_notified_at`
	_, err := s.db.ExecContext(ctx, query, entry.Key, entry.LastNotifiedAt.UTC())
	return err
}

func (s *SQLiteStore) PruneCooldowns(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cooldowns WHERE last_notified_at < ?`, before.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// LedgerRepository Implementation

func (s *SQLiteStore) SavePosition(ctx context.Context, p domain.Position) error {
	query := `INSERT INTO positions (symbol, side, entry_price, amount, take_profit, stop_loss, leverage, partial_taken, opened_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON CONFLICT(symbol) DO UPDATE SET
			  side=excluded.side,
			  entry_price=excluded.entry_price,
			  amount=excluded.amount,
			  take_profit=excluded.take_profit,
			  stop_loss=excluded.stop_loss,
			  leverage=excluded.leverage,
			  partial_taken=excluded.partial_taken,
			  opened_at=excluded.opened_at`
	_, err := s.db.ExecContext(ctx, query,
		p.Symbol, p.Side, p.EntryPrice, p.Amount, p.TakeProfit, p.StopLoss, p.Leverage, p.PartialTaken, p.OpenedAt.UTC())
	return err
}

func (s *SQLiteStore) DeletePosition(ctx context.Context, symbol string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM positions WHERE symbol = ?", symbol)
	return err
}

func (s *SQLiteStore) ListPositions(ctx context.Context) ([]domain.Position, error) {
	query := `SELECT symbol, side, entry_price, amount, take_profit, stop_loss, leverage, partial_taken, opened_at FROM positions ORDER BY symbol`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(&p.Symbol, &p.Side, &p.EntryPrice, &p.Amount, &p.TakeProfit, &p.StopLoss, &p.Leverage, &p.PartialTaken, &p.OpenedAt); err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (s *SQLiteStore) SaveTrade(ctx context.Context, t domain.TradeRecord) error {
	query := `INSERT INTO trades (id, symbol, side, entry_price, exit_price, amount_closed, pnl, reason, closed_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		t.ID, t.Symbol, t.Side, t.EntryPrice, t.ExitPrice, t.AmountClosed, t.PnL, t.Reason, t.ClosedAt.UTC())
	return err
}

// ListTrades returns the newest trades first. A limit of zero or less
// returns the full history.
func (s *SQLiteStore) ListTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	query := `SELECT id, symbol, side, entry_price, exit_price, amount_closed, pnl, reason, closed_at FROM trades ORDER BY closed_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.TradeRecord
	for rows.Next() {
		var t domain.TradeRecord
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Side, &t.EntryPrice, &t.ExitPrice, &t.AmountClosed, &t.PnL, &t.Reason, &t.ClosedAt); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// DecisionRepository Implementation

func (s *SQLiteStore) SaveDecision(ctx context.Context, d domain.Decision) error {
	query := `INSERT INTO decisions (id, ts, symbol, signal_kind, outcome, reason) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, d.ID, d.Timestamp.UTC(), d.Symbol, d.SignalKind, d.Outcome, d.Reason)
	return err
}

func (s *SQLiteStore) ListDecisions(ctx context.Context, limit int) ([]domain.Decision, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, ts, symbol, signal_kind, outcome, reason FROM decisions ORDER BY ts DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []domain.Decision
	for rows.Next() {
		var d domain.Decision
		if err := rows.Scan(&d.ID, &d.Timestamp, &d.Symbol, &d.SignalKind, &d.Outcome, &d.Reason); err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}
