package data

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Source describes a candle source in the catalog.
type Source struct {
	ID       string `json:"id"`
	Symbol   string `json:"symbol"`   // e.g., "ETHUSDT"
	Interval string `json:"interval"` // e.g., "1m"
	Exchange string `json:"exchange"` // e.g., "binance-futures"
	Kind     string `json:"kind"`     // "csv", "postgres" or "synthetic"
}

// SourceList is the on-disk source catalog.
type SourceList struct {
	UpdatedAt string   `json:"updated_at"` // ISO 8601 timestamp
	Sources   []Source `json:"sources"`
}

// Find returns the source with the given id.
func (l *SourceList) Find(id string) (Source, bool) {
	if l == nil {
		return Source{}, false
	}
	for _, s := range l.Sources {
		if s.ID == id {
			return s, true
		}
	}
	return Source{}, false
}

// LoadSources loads the catalog from a JSON file
func LoadSources(filePath string) (*SourceList, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var list SourceList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}

	return &list, nil
}

// SaveSources saves the catalog to a JSON file
func SaveSources(list *SourceList, filePath string) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	raw, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}

	if err := os.WriteFile(filePath, raw, 0644); err != nil {
		return fmt.Errorf("failed to write sources file: %w", err)
	}

	return nil
}

// GetDefaultSourcesPath returns the default path for the sources catalog
func GetDefaultSourcesPath() string {
	if path := os.Getenv("SOURCES_FILE"); path != "" {
		return path
	}
	return "./data/sources.json"
}
