package handlers

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"

	"grid-backtest/internal/analysis"
	"grid-backtest/internal/api/models"
	"grid-backtest/internal/config"
	"grid-backtest/internal/data"
	"grid-backtest/internal/runner"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SourceHandler lists candle sources and summarizes their candles.
type SourceHandler struct {
	runner      *runner.Runner
	data        config.DataConfig
	catalogPath string
	log         *zap.Logger
}

// NewSourceHandler serves sources for the server's data config. The catalog
// at catalogPath takes precedence over asking the supplier.
func NewSourceHandler(r *runner.Runner, d config.DataConfig, catalogPath string, log *zap.Logger) *SourceHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SourceHandler{runner: r, data: d, catalogPath: catalogPath, log: log}
}

// ListSources handles GET /api/v1/sources
func (h *SourceHandler) ListSources(c *gin.Context) {
	list, err := h.sources(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "SOURCES_LOAD_ERROR",
			fmt.Sprintf("Failed to load sources: %v", err), nil)
		return
	}

	sources := make([]models.SourceInfo, len(list.Sources))
	for i, s := range list.Sources {
		sources[i] = models.SourceInfo{
			ID:       s.ID,
			Symbol:   s.Symbol,
			Interval: s.Interval,
			Exchange: s.Exchange,
			Kind:     s.Kind,
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"sources":    sources,
		"updated_at": list.UpdatedAt,
		"count":      len(sources),
	})
}

// GetProfile handles GET /api/v1/sources/:id/profile
func (h *SourceHandler) GetProfile(c *gin.Context) {
	id := c.Param("id")
	if !data.ValidSourceID(id) {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("invalid source id %q", id), nil)
		return
	}
	var req models.ProfileRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}
	if _, _, err := data.ParseDateRange(req.StartDate, req.EndDate); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_DATE", err.Error(), nil)
		return
	}

	profile, err := h.profile(c, id, req.StartDate, req.EndDate)
	if err != nil {
		writeRunError(c, err, map[string]interface{}{"source_id": id})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// RankSources handles GET /api/v1/rank. Sources without candles in the range
// are skipped.
func (h *SourceHandler) RankSources(c *gin.Context) {
	var req models.RankSourcesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), nil)
		return
	}
	if _, _, err := data.ParseDateRange(req.StartDate, req.EndDate); err != nil {
		abortWithError(c, http.StatusBadRequest, "INVALID_DATE", err.Error(), nil)
		return
	}

	var ids []string
	if req.SourceIDs != "" {
		for _, id := range strings.Split(req.SourceIDs, ",") {
			id = strings.TrimSpace(id)
			if !data.ValidSourceID(id) {
				abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("invalid source id %q", id), nil)
				return
			}
			ids = append(ids, id)
		}
	} else {
		list, err := h.sources(c)
		if err != nil {
			abortWithError(c, http.StatusInternalServerError, "SOURCES_LOAD_ERROR", err.Error(), nil)
			return
		}
		for _, s := range list.Sources {
			ids = append(ids, s.ID)
		}
	}

	profiles := make([]analysis.SourceProfile, 0, len(ids))
	for _, id := range ids {
		p, err := h.profile(c, id, req.StartDate, req.EndDate)
		if errors.Is(err, data.ErrDataNotFound) {
			h.log.Debug("rank: no data", zap.String("source", id))
			continue
		}
		if err != nil {
			writeRunError(c, err, map[string]interface{}{"source_id": id})
			return
		}
		profiles = append(profiles, p)
	}

	ranked := analysis.RankSourcesByVolatility(profiles)
	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit < len(ranked) {
		ranked = ranked[:limit]
	}

	rankings := make([]models.Ranking, len(ranked))
	for i, p := range ranked {
		rankings[i] = models.Ranking{Rank: i + 1, SourceProfile: p}
	}
	c.JSON(http.StatusOK, models.RankResponse{Rankings: rankings})
}

func (h *SourceHandler) profile(c *gin.Context, id, startDate, endDate string) (analysis.SourceProfile, error) {
	cache, err := h.runner.Cache(c.Request.Context(), h.data)
	if err != nil {
		return analysis.SourceProfile{}, err
	}
	candles, err := cache.LoadDates(c.Request.Context(), id, startDate, endDate)
	if err != nil {
		return analysis.SourceProfile{}, err
	}
	return analysis.ComputeProfile(id, candles), nil
}

// sources reads the catalog file, falling back to the supplier's own list.
func (h *SourceHandler) sources(c *gin.Context) (*data.SourceList, error) {
	if h.catalogPath != "" {
		list, err := data.LoadSources(h.catalogPath)
		if err == nil {
			return list, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	lister, err := h.runner.Lister(c.Request.Context(), h.data)
	if err != nil {
		return nil, err
	}
	ids, err := lister.Sources(c.Request.Context())
	if err != nil {
		return nil, err
	}
	list := &data.SourceList{Sources: make([]data.Source, len(ids))}
	for i, id := range ids {
		list.Sources[i] = data.Source{ID: id, Kind: h.data.Source}
	}
	return list, nil
}
