package pricefeed

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/vitos/premium_backtest/internal/domain"
)

// WriteTradesCSV exports a trade log, one row per trade.
func WriteTradesCSV(path string, trades []domain.Trade) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %q: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %q: %w", path, cerr)
		}
	}()

	w := csv.NewWriter(f)
	_ = w.Write([]string{
		"timestamp", "action", "position_id", "amount", "premium", "level", "fx_rate",
		"price_a", "price_b", "commission", "slippage", "realized_pnl", "forced", "stop_loss",
	})
	for _, t := range trades {
		_ = w.Write([]string{
			t.Timestamp.Format(time.RFC3339),
			string(t.Action),
			strconv.FormatInt(t.PositionID, 10),
			formatF(t.Amount), formatF(t.Premium), formatF(t.Level), formatF(t.FXRate),
			formatF(t.LegA.Price), formatF(t.LegB.Price),
			formatF(t.Commission), formatF(t.Slippage), formatF(t.RealizedPnL),
			strconv.FormatBool(t.Forced),
			strconv.FormatBool(t.StopLoss),
		})
	}
	w.Flush()
	return w.Error()
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
