package data

import (
	"encoding/json"
	"os"

	"grid-backtest/internal/model"
)

// LoadCandlesJSON reads a JSON array of candles.
func LoadCandlesJSON(path string) ([]model.Candle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var candles []model.Candle
	if err := json.Unmarshal(raw, &candles); err != nil {
		return nil, err
	}
	return candles, nil
}
