package backtest

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"grid-backtest/internal/model"

	"github.com/shopspring/decimal"
)

// WriteTradesCSV writes the trade log to path.
func WriteTradesCSV(path string, trades []model.TradeRecord) error {
	return writeFile(path, func(w io.Writer) error { return EncodeTradesCSV(w, trades) })
}

// WriteEquityCSV writes the equity curve to path.
func WriteEquityCSV(path string, curve []model.EquityPoint) error {
	return writeFile(path, func(w io.Writer) error { return EncodeEquityCSV(w, curve) })
}

func EncodeTradesCSV(out io.Writer, trades []model.TradeRecord) error {
	w := csv.NewWriter(out)

	header := []string{
		"timestamp",
		"time",
		"action",
		"amount",
		"price",
		"fee",
		"taker",
		"leverage",
		"realized_pnl",
		"resulting_long",
		"resulting_short",
		"resulting_equity",
		"reason",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, t := range trades {
		row := []string{
			strconv.FormatInt(t.Timestamp, 10),
			fmtTime(t.Time()),
			string(t.Action),
			fmtDec(t.Amount),
			fmtDec(t.Price),
			fmtDec(t.Fee),
			strconv.FormatBool(t.Taker),
			strconv.Itoa(t.Leverage),
			fmtDec(t.RealizedPnL),
			fmtDec(t.ResultingLong),
			fmtDec(t.ResultingShort),
			fmtDec(t.ResultingEquity),
			string(t.Reason),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func EncodeEquityCSV(out io.Writer, curve []model.EquityPoint) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{"timestamp", "time", "equity"}); err != nil {
		return err
	}
	for _, p := range curve {
		if err := w.Write([]string{strconv.FormatInt(p.Timestamp, 10), fmtTime(p.Time()), fmtDec(p.Equity)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeFile(path string, encode func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

func fmtDec(d decimal.Decimal) string {
	return d.String()
}
