package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"LutherTerminal/internal/domain/models"
	domrepo "LutherTerminal/internal/domain/repository"
	pkgch "LutherTerminal/pkg/clickhouse"
	applogger "LutherTerminal/pkg/logger"
)

// CHBarStore implements BarStore backed by ClickHouse.
type CHBarStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHBarStore(ch *pkgch.Client, database string) *CHBarStore {
	return &CHBarStore{db: ch.DB(), database: database, l: applogger.Nop()}
}

// SetLogger injects a structured logger.
func (s *CHBarStore) SetLogger(l *applogger.Logger) {
	if l != nil {
		s.l = l
	}
}

// BarSchema returns the idempotent DDL for the bar tables, one per timeframe.
// rsi is filled by an upstream indicator job and may be NULL.
func BarSchema(database string) []string {
	stmts := []string{fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database)}
	for _, tf := range []domrepo.Timeframe{domrepo.TF1m, domrepo.TF1h, domrepo.TF1d} {
		table, _ := tableForTF(database, tf)
		stmts = append(stmts, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
            ts DateTime,
            symbol LowCardinality(String),
            open Float64,
            high Float64,
            low Float64,
            close Float64,
            volume Float64,
            rsi Nullable(Float64)
        ) ENGINE = ReplacingMergeTree ORDER BY (symbol, ts)`, table))
	}
	return stmts
}

func (s *CHBarStore) GetBars(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Bar, error) {
	start := time.Now()
	table, err := tableForTF(s.database, tf)
	if err != nil {
		return nil, err
	}
	const qtpl = `
        SELECT ts, symbol, open, high, low, close, volume, rsi
        FROM %s FINAL
        WHERE symbol = ? AND ts >= ? AND ts <= ?
        ORDER BY ts ASC
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, table), symbol, from, to)
	if err != nil {
		s.l.Error("clickhouse get_bars query error",
			applogger.String("table", table),
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get bars: %w", err)
	}
	defer rows.Close()

	out, err := scanBars(rows, 256)
	if err != nil {
		s.l.Error("clickhouse get_bars scan error",
			applogger.String("table", table),
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, err
	}
	s.l.Debug("clickhouse get_bars ok",
		applogger.String("table", table),
		applogger.String("symbol", symbol),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func (s *CHBarStore) GetLatestNBars(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Bar, error) {
	start := time.Now()
	table, err := tableForTF(s.database, tf)
	if err != nil {
		return nil, err
	}
	const qtpl = `
        SELECT ts, symbol, open, high, low, close, volume, rsi
        FROM %s FINAL
        WHERE symbol = ?
        ORDER BY ts DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(qtpl, table), symbol, n)
	if err != nil {
		s.l.Error("clickhouse latest_bars query error",
			applogger.String("table", table),
			applogger.String("symbol", symbol),
			applogger.Int("limit", n),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get latest bars: %w", err)
	}
	defer rows.Close()

	out, err := scanBars(rows, n)
	if err != nil {
		return nil, err
	}
	reverseBars(out)
	s.l.Debug("clickhouse latest_bars ok",
		applogger.String("table", table),
		applogger.String("symbol", symbol),
		applogger.Int("limit", n),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func scanBars(rows *sql.Rows, capHint int) ([]models.Bar, error) {
	out := make([]models.Bar, 0, capHint)
	for rows.Next() {
		var (
			b   models.Bar
			rsi sql.NullFloat64
		)
		if err := rows.Scan(&b.Timestamp, &b.Symbol, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &rsi); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		if rsi.Valid {
			v := rsi.Float64
			b.RSI = &v
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func reverseBars(b []models.Bar) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

func tableForTF(database string, tf domrepo.Timeframe) (string, error) {
	switch tf {
	case domrepo.TF1m:
		return database + ".bars_1m", nil
	case domrepo.TF1h:
		return database + ".bars_1h", nil
	case domrepo.TF1d:
		return database + ".bars_1d", nil
	default:
		return "", fmt.Errorf("unsupported timeframe: %s", tf)
	}
}

var _ domrepo.BarStore = (*CHBarStore)(nil)
