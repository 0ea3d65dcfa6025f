package handlers

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"grid-backtest/internal/config"
)

// ConfigResolver builds run configs from API requests: the server's base
// config, then an optional named preset, then JSON overlays in order.
// Fields absent from an overlay keep their current value.
type ConfigResolver struct {
	Base       config.Config
	PresetsDir string
}

func (r ConfigResolver) Resolve(preset string, overlays ...json.RawMessage) (*config.Config, error) {
	cfg := r.Base
	if preset != "" {
		p, err := r.preset(preset)
		if err != nil {
			return nil, err
		}
		cfg = config.Merge(cfg, p.Config)
	}
	for _, raw := range overlays {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return nil, &config.ConfigError{Field: "config", Reason: err.Error()}
		}
	}

	// Requests choose the symbol and dates, never server paths or outputs.
	cfg.PresetFile = ""
	cfg.Data.CSVDir = r.Base.Data.CSVDir
	cfg.Data.PostgresDSN = r.Base.Data.PostgresDSN
	cfg.Data.PostgresTable = r.Base.Data.PostgresTable
	cfg.Data.CacheDir = r.Base.Data.CacheDir
	cfg.Report.TradesCSV = ""
	cfg.Report.EquityCSV = ""
	cfg.Report.JSON = ""

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r ConfigResolver) preset(name string) (config.Preset, error) {
	presets, err := config.ListPresets(r.PresetsDir)
	if err != nil {
		return config.Preset{}, &config.ConfigError{Field: "preset", Reason: err.Error()}
	}
	for _, p := range presets {
		if p.Name == name || p.File == name || p.File == filepath.Base(name)+".yaml" {
			return p, nil
		}
	}
	return config.Preset{}, &config.ConfigError{Field: "preset", Reason: fmt.Sprintf("unknown preset %q", name)}
}
