package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"grid-backtest/internal/model"
)

// ErrDataNotFound means no candles exist for the requested source and range.
var ErrDataNotFound = errors.New("data not found")

const dateLayout = "2006-01-02"

// Supplier produces raw candles for a source. Results may be unsorted, may
// contain duplicates and may extend past the requested range.
type Supplier interface {
	Fetch(ctx context.Context, sourceID string, start, end time.Time) ([]model.Candle, error)
}

// Lister enumerates the source ids a supplier can serve.
type Lister interface {
	Sources(ctx context.Context) ([]string, error)
}

// ParseDateRange parses inclusive YYYY-MM-DD dates into the half-open UTC
// range [start 00:00, end+1d 00:00).
func ParseDateRange(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(dateLayout, startDate, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date %q (expected YYYY-MM-DD): %w", startDate, err)
	}
	end, err := time.ParseInLocation(dateLayout, endDate, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date %q (expected YYYY-MM-DD): %w", endDate, err)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date %s is before start_date %s", endDate, startDate)
	}
	return start, end.AddDate(0, 0, 1), nil
}
