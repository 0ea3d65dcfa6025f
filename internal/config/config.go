package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"grid-backtest/internal/logging"
)

// Config is the on-disk configuration shape (YAML). The same shape is
// accepted as JSON by the HTTP API.
type Config struct {
	// Optional: load grid/atr/account presets from a separate YAML
	// (e.g. configs/presets/*.yaml). Fields set in this file override it.
	PresetFile string `yaml:"preset_file" json:"preset_file,omitempty"`

	Data    DataConfig     `yaml:"data" json:"data"`
	Account AccountConfig  `yaml:"account" json:"account"`
	Grid    GridConfig     `yaml:"grid" json:"grid"`
	ATR     ATRConfig      `yaml:"atr" json:"atr"`
	Rebate  RebateConfig   `yaml:"rebate" json:"rebate"`
	Report  ReportConfig   `yaml:"report" json:"report"`
	Logging logging.Config `yaml:"logging" json:"logging"`
}

type DataConfig struct {
	// Source is csv, postgres or synthetic.
	Source    string `yaml:"source" json:"source"`
	Symbol    string `yaml:"symbol" json:"symbol"`
	StartDate string `yaml:"start_date" json:"start_date"`
	EndDate   string `yaml:"end_date" json:"end_date"`

	CSVDir        string `yaml:"csv_dir" json:"csv_dir,omitempty"`
	PostgresDSN   string `yaml:"postgres_dsn" json:"-"`
	PostgresTable string `yaml:"postgres_table" json:"postgres_table,omitempty"`
	SyntheticSeed int64  `yaml:"synthetic_seed" json:"synthetic_seed,omitempty"`
	// CacheDir enables the file cache; empty keeps blobs in memory.
	CacheDir string `yaml:"cache_dir" json:"cache_dir,omitempty"`
}

type AccountConfig struct {
	InitialBalance   float64 `yaml:"initial_balance" json:"initial_balance"`
	Leverage         int     `yaml:"leverage" json:"leverage"`
	MakerFee         float64 `yaml:"maker_fee" json:"maker_fee"`
	TakerFee         float64 `yaml:"taker_fee" json:"taker_fee"`
	MaintenanceRatio float64 `yaml:"maintenance_ratio" json:"maintenance_ratio"`
}

type GridConfig struct {
	BidSpread             float64 `yaml:"bid_spread" json:"bid_spread"`
	AskSpread             float64 `yaml:"ask_spread" json:"ask_spread"`
	PositionSizeRatio     float64 `yaml:"position_size_ratio" json:"position_size_ratio"`
	MaxPositionValueRatio float64 `yaml:"max_position_value_ratio" json:"max_position_value_ratio"`
	// OrderRefreshTime is in seconds.
	OrderRefreshTime    float64 `yaml:"order_refresh_time" json:"order_refresh_time"`
	UseDynamicOrderSize bool    `yaml:"use_dynamic_order_size" json:"use_dynamic_order_size"`
	MinOrderAmount      float64 `yaml:"min_order_amount" json:"min_order_amount"`
	MaxOrderAmount      float64 `yaml:"max_order_amount" json:"max_order_amount"`
}

type ATRConfig struct {
	Period                     int     `yaml:"period" json:"period"`
	HighVolatilityThreshold    float64 `yaml:"high_volatility_threshold" json:"high_volatility_threshold"`
	ExtremeVolatilityThreshold float64 `yaml:"extreme_volatility_threshold" json:"extreme_volatility_threshold"`
	EmergencyCloseThreshold    float64 `yaml:"emergency_close_threshold" json:"emergency_close_threshold"`
	MaxImbalanceRatio          float64 `yaml:"max_imbalance_ratio" json:"max_imbalance_ratio"`
	PositionBalanceRatio       float64 `yaml:"position_balance_ratio" json:"position_balance_ratio"`
}

type RebateConfig struct {
	UseFeeRebate bool    `yaml:"use_fee_rebate" json:"use_fee_rebate"`
	RebateRate   float64 `yaml:"rebate_rate" json:"rebate_rate"`
	FXRate       float64 `yaml:"fx_rate" json:"fx_rate"`
	PayoutDay    int     `yaml:"payout_day" json:"payout_day"`
	// Timezone is an IANA name deciding which calendar day a trade is on.
	Timezone string `yaml:"timezone" json:"timezone"`
}

type ReportConfig struct {
	// EquitySampleInterval is in candles.
	EquitySampleInterval int    `yaml:"equity_sample_interval" json:"equity_sample_interval"`
	TradesCSV            string `yaml:"trades_csv" json:"trades_csv,omitempty"`
	EquityCSV            string `yaml:"equity_csv" json:"equity_csv,omitempty"`
	JSON                 string `yaml:"json" json:"json,omitempty"`
}

// Default returns a complete, valid configuration.
func Default() Config {
	return Config{
		Data: DataConfig{
			Source:        "csv",
			Symbol:        "ETHUSDT",
			StartDate:     "2024-01-01",
			EndDate:       "2024-01-31",
			CSVDir:        "./data/klines",
			PostgresTable: "candles",
			SyntheticSeed: 42,
		},
		Account: AccountConfig{
			InitialBalance:   1000,
			Leverage:         10,
			MakerFee:         0.0002,
			TakerFee:         0.0005,
			MaintenanceRatio: 0.5,
		},
		Grid: GridConfig{
			BidSpread:             0.002,
			AskSpread:             0.002,
			PositionSizeRatio:     0.05,
			MaxPositionValueRatio: 5,
			OrderRefreshTime:      60,
			UseDynamicOrderSize:   true,
			MinOrderAmount:        0.01,
			MaxOrderAmount:        1,
		},
		ATR: ATRConfig{
			Period:                     14,
			HighVolatilityThreshold:    0.005,
			ExtremeVolatilityThreshold: 0.01,
			EmergencyCloseThreshold:    0.02,
			MaxImbalanceRatio:          0.2,
			PositionBalanceRatio:       0.5,
		},
		Rebate: RebateConfig{
			UseFeeRebate: true,
			RebateRate:   0.3,
			FXRate:       1,
			PayoutDay:    25,
			Timezone:     "UTC",
		},
		Report: ReportConfig{
			EquitySampleInterval: 60,
		},
		Logging: logging.Config{Level: "info", Format: "json"},
	}
}

func Load(path string) (*Config, error) {
	c, err := LoadUnchecked(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadUnchecked layers defaults, the preset file (if any) and the file at
// path, but does not validate the result.
// Useful for debugging/printing partial configs.
func LoadUnchecked(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var head struct {
		PresetFile string `yaml:"preset_file"`
	}
	if err := yaml.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	c := Default()
	if head.PresetFile != "" {
		presetPath := head.PresetFile
		if !filepath.IsAbs(presetPath) {
			// Prefer interpreting relative paths as relative to the config file directory,
			// but fall back to the provided path (relative to cwd) if that doesn't exist.
			cand := filepath.Join(filepath.Dir(path), presetPath)
			if _, err := os.Stat(cand); err == nil {
				presetPath = cand
			}
		}
		presetRaw, err := os.ReadFile(presetPath)
		if err != nil {
			return nil, fmt.Errorf("read preset: %w", err)
		}
		if err := yaml.Unmarshal(presetRaw, &c); err != nil {
			return nil, fmt.Errorf("parse preset %s: %w", presetPath, err)
		}
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &c, nil
}

// Marshal renders the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	if c == nil {
		return nil, errors.New("config is nil")
	}
	return yaml.Marshal(c)
}
