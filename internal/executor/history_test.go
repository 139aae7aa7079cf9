package executor

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/p3dr-dev/hydra/internal/models"
)

func TestHistory_Record(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO trade_history").WillReturnResult(sqlmock.NewResult(1, 1))

	h := NewHistoryWithDB(db)
	result := models.PathExecutionResult{
		Path:               models.Path{"USDT", "BTC", "ETH", "USDT"},
		Success:            true,
		InitialAmount:      1000,
		FinalAmount:         1010,
		ProfitLoss:          10,
		TotalCommission:     0.3,
		PredictedProfitPct:  1.0,
	}

	if err := h.Record(context.Background(), result, "fixed"); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestHistory_Stats(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"count", "successful", "total_profit"}).AddRow(10, 7, 150.5)
	mock.ExpectQuery("SELECT").WillReturnRows(rows)

	h := NewHistoryWithDB(db)
	stats, err := h.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalTrades != 10 || stats.SuccessfulTrades != 7 || stats.FailedTrades != 3 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.SuccessRate != 0.7 {
		t.Errorf("expected success rate 0.7, got %v", stats.SuccessRate)
	}
}
