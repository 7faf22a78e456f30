package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vitos/crypto_signal_desk/internal/domain"
)

// PostgresStore implements the repositories on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store := &PostgresStore{pool: pool}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS cooldowns (
			key TEXT PRIMARY KEY,
			last_notified_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS positions (
			symbol TEXT PRIMARY KEY,
			side TEXT NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			amount DOUBLE PRECISION NOT NULL,
			take_profit DOUBLE PRECISION NOT NULL,
			stop_loss DOUBLE PRECISION NOT NULL,
			leverage INTEGER NOT NULL,
			partial_taken BOOLEAN NOT NULL DEFAULT FALSE,
			opened_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			exit_price DOUBLE PRECISION NOT NULL,
			amount_closed DOUBLE PRECISION NOT NULL,
			pnl DOUBLE PRECISION NOT NULL,
			reason TEXT NOT NULL,
			closed_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_closed_at ON trades(closed_at)`,
		`CREATE TABLE IF NOT EXISTS decisions (
			id TEXT PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			symbol TEXT NOT NULL,
			signal_kind TEXT NOT NULL,
			outcome TEXT NOT NULL,
			reason TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_ts ON decisions(ts)`,
	}
	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetCooldown(ctx context.Context, key string) (*domain.CooldownEntry, error) {
	var e domain.CooldownEntry
	err := s.pool.QueryRow(ctx, `SELECT key, last_notified_at FROM cooldowns WHERE key = $1`, key).
		Scan(&e.Key, &e.LastNotifiedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

func (s *PostgresStore) UpsertCooldown(ctx context.Context, entry domain.CooldownEntry) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO cooldowns (key, last_notified_at) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET last_notified_at = EXCLUDED.last_notified_at`,
		entry.Key, entry.LastNotifiedAt)
	return err
}

func (s *PostgresStore) PruneCooldowns(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM cooldowns WHERE last_notified_at < $1`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) SavePosition(ctx context.Context, p domain.Position) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO positions
		(symbol, side, entry_price, amount, take_profit, stop_loss, leverage, partial_taken, opened_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (symbol) DO UPDATE SET
		side = EXCLUDED.side,
		entry_price = EXCLUDED.entry_price,
		amount = EXCLUDED.amount,
		take_profit = EXCLUDED.take_profit,
		stop_loss = EXCLUDED.stop_loss,
		leverage = EXCLUDED.leverage,
		partial_taken = EXCLUDED.partial_taken,
		opened_at = EXCLUDED.opened_at`,
		p.Symbol, string(p.Side), p.EntryPrice, p.Amount, p.TakeProfit, p.StopLoss, p.Leverage, p.PartialTaken, p.OpenedAt)
	return err
}

func (s *PostgresStore) DeletePosition(ctx context.Context, symbol string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM positions WHERE symbol = $1`, symbol)
	return err
}

func (s *PostgresStore) ListPositions(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx, `SELECT symbol, side, entry_price, amount, take_profit, stop_loss, leverage, partial_taken, opened_at
		FROM positions ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var p domain.Position
		var side string
		if err := rows.Scan(&p.Symbol, &side, &p.EntryPrice, &p.Amount, &p.TakeProfit, &p.StopLoss, &p.Leverage, &p.PartialTaken, &p.OpenedAt); err != nil {
			return nil, err
		}
		p.Side = domain.Side(side)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (s *PostgresStore) SaveTrade(ctx context.Context, t domain.TradeRecord) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO trades
		(id, symbol, side, entry_price, exit_price, amount_closed, pnl, reason, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.Symbol, string(t.Side), t.EntryPrice, t.ExitPrice, t.AmountClosed, t.PnL, t.Reason, t.ClosedAt)
	return err
}

func (s *PostgresStore) ListTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	query := `SELECT id, symbol, side, entry_price, exit_price, amount_closed, pnl, reason, closed_at
		FROM trades ORDER BY closed_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.TradeRecord
	for rows.Next() {
		var t domain.TradeRecord
		var side string
		if err := rows.Scan(&t.ID, &t.Symbol, &side, &t.EntryPrice, &t.ExitPrice, &t.AmountClosed, &t.PnL, &t.Reason, &t.ClosedAt); err != nil {
			return nil, err
		}
		t.Side = domain.Side(side)
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (s *PostgresStore) SaveDecision(ctx context.Context, d domain.Decision) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO decisions (id, ts, symbol, signal_kind, outcome, reason)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID, d.Timestamp, d.Symbol, string(d.SignalKind), string(d.Outcome), d.Reason)
	return err
}

func (s *PostgresStore) ListDecisions(ctx context.Context, limit int) ([]domain.Decision, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `SELECT id, ts, symbol, signal_kind, outcome, reason
		FROM decisions ORDER BY ts DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []domain.Decision
	for rows.Next() {
		var d domain.Decision
		var kind, outcome string
		if err := rows.Scan(&d.ID, &d.Timestamp, &d.Symbol, &kind, &outcome, &d.Reason); err != nil {
			return nil, err
		}
		d.SignalKind = domain.SignalKind(kind)
		d.Outcome = domain.Outcome(outcome)
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}
