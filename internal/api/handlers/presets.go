package handlers

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"grid-backtest/internal/api/models"
	"grid-backtest/internal/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PresetHandler handles preset-related requests
type PresetHandler struct {
	presetsDir string
	log        *zap.Logger
}

// NewPresetHandler creates a preset handler reading dir. Empty dir falls back
// to PRESETS_DIR, then $CONFIG_DIR/presets, then ./configs/presets.
func NewPresetHandler(dir string, log *zap.Logger) *PresetHandler {
	if dir == "" {
		dir = DefaultPresetsDir()
	}
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PresetHandler{presetsDir: dir, log: log}
}

// DefaultPresetsDir resolves the presets directory from the environment.
func DefaultPresetsDir() string {
	if dir := os.Getenv("PRESETS_DIR"); dir != "" {
		return dir
	}
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return filepath.Join(dir, "presets")
	}
	return filepath.Join("configs", "presets")
}

func (h *PresetHandler) Dir() string { return h.presetsDir }

// ListPresets handles GET /api/v1/presets
func (h *PresetHandler) ListPresets(c *gin.Context) {
	presets, err := config.ListPresets(h.presetsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			h.log.Warn("presets directory not found", zap.String("dir", h.presetsDir))
			c.JSON(http.StatusOK, gin.H{"presets": []models.PresetInfo{}})
			return
		}
		abortWithError(c, http.StatusInternalServerError, "PRESETS_LOAD_ERROR", err.Error(), nil)
		return
	}

	infos := make([]models.PresetInfo, 0, len(presets))
	for _, p := range presets {
		infos = append(infos, models.PresetInfo{
			Name:        p.Name,
			Description: p.Description,
			File:        p.File,
			Leverage:    p.Config.Account.Leverage,
			BidSpread:   p.Config.Grid.BidSpread,
			AskSpread:   p.Config.Grid.AskSpread,
		})
	}
	c.JSON(http.StatusOK, gin.H{"presets": infos})
}
