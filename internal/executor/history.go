package executor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/p3dr-dev/hydra/internal/models"
)

const createTradeHistoryTable = `
CREATE TABLE IF NOT EXISTS trade_history (
	id                       INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp                TEXT NOT NULL,
	path                     TEXT NOT NULL,
	success                  INTEGER NOT NULL,
	profit_loss              REAL NOT NULL,
	initial_amount           REAL NOT NULL,
	final_amount             REAL NOT NULL,
	execution_time           REAL NOT NULL,
	total_commission         REAL NOT NULL,
	predicted_profit_percent REAL NOT NULL,
	operating_regime         TEXT NOT NULL
)`

// History persists every completed path execution to a local sqlite
// database, append-only, for later strategy review.
type History struct {
	db *sql.DB
}

// OpenHistory opens (creating if absent) the sqlite database at path and
// ensures the trade_history table exists.
func OpenHistory(path string) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if _, err := db.Exec(createTradeHistoryTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create trade_history table: %w", err)
	}
	return &History{db: db}, nil
}

// NewHistoryWithDB wraps an already-open *sql.DB, used by tests with
// go-sqlmock.
func NewHistoryWithDB(db *sql.DB) *History {
	return &History{db: db}
}

// Record appends one completed path execution.
func (h *History) Record(ctx context.Context, result models.PathExecutionResult, regime string) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO trade_history
			(timestamp, path, success, profit_loss, initial_amount, final_amount,
			 execution_time, total_commission, predicted_profit_percent, operating_regime)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339),
		result.Path.String(),
		boolToInt(result.Success),
		result.ProfitLoss,
		result.InitialAmount,
		result.FinalAmount,
		result.WallTime.Seconds(),
		result.TotalCommission,
		result.PredictedProfitPct,
		regime,
	)
	if err != nil {
		return fmt.Errorf("insert trade_history: %w", err)
	}
	return nil
}

// Stats aggregates trade_history into the fields TradingStats needs.
func (h *History) Stats(ctx context.Context) (models.TradingStats, error) {
	var stats models.TradingStats
	row := h.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(success), 0),
			COALESCE(SUM(profit_loss), 0)
		FROM trade_history`)

	var successful int
	if err := row.Scan(&stats.TotalTrades, &successful, &stats.TotalProfit); err != nil {
		return stats, fmt.Errorf("scan trade_history stats: %w", err)
	}

	stats.SuccessfulTrades = successful
	stats.FailedTrades = stats.TotalTrades - successful
	if stats.TotalTrades > 0 {
		stats.SuccessRate = float64(successful) / float64(stats.TotalTrades)
		stats.AvgProfit = stats.TotalProfit / float64(stats.TotalTrades)
	}
	return stats, nil
}

// KellyStats aggregates trade_history into the win rate, average win and
// average loss the kelly sizing regime needs, expressed as a fraction of
// each trade's initial_amount. Falls back to risk.DefaultKellyStats when
// no trades have been recorded yet.
func (h *History) KellyStats(ctx context.Context) (winRate, avgWin, avgLoss float64, err error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT profit_loss, initial_amount FROM trade_history WHERE initial_amount > 0`)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("query trade_history: %w", err)
	}
	defer rows.Close()

	var total, wins, losses int
	var winSum, lossSum float64
	for rows.Next() {
		var profitLoss, initial float64
		if err := rows.Scan(&profitLoss, &initial); err != nil {
			return 0, 0, 0, fmt.Errorf("scan trade_history: %w", err)
		}
		total++
		fraction := profitLoss / initial
		switch {
		case fraction > 0:
			wins++
			winSum += fraction
		case fraction < 0:
			losses++
			lossSum += -fraction
		}
	}
	if err := rows.Err(); err != nil {
		return 0, 0, 0, fmt.Errorf("iterate trade_history: %w", err)
	}

	if total == 0 {
		return 0.5, 0.02, 0.01, nil
	}

	winRate = float64(wins) / float64(total)
	if wins > 0 {
		avgWin = winSum / float64(wins)
	} else {
		avgWin = 0.02
	}
	if losses > 0 {
		avgLoss = lossSum / float64(losses)
	} else {
		avgLoss = 0.01
	}
	return winRate, avgWin, avgLoss, nil
}

// Close closes the underlying database handle.
func (h *History) Close() error {
	return h.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
