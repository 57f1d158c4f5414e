package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"stock-pattern-engine/internal/auth"
	"stock-pattern-engine/internal/backtest"
	"stock-pattern-engine/internal/cache"
	"stock-pattern-engine/internal/patterns"
	"stock-pattern-engine/internal/series"
)

const validateTask = "validate_patterns"

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"cache_healthy": s.cache != nil && s.cache.IsHealthy(),
	})
}

func (s *Server) handleTokenExchange(c *gin.Context) {
	if s.authSvc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "authentication is disabled"})
		return
	}

	var req struct {
		APIToken string `json:"api_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "api_token is required"})
		return
	}

	token, err := s.authSvc.ExchangeToken(req.APIToken)
	if err != nil {
		if errors.Is(err, auth.ErrBadCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "bad credentials"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   s.authSvc.TokenTTLSeconds(),
	})
}

// loadDefinitions prefers saved database patterns and falls back to the
// bundled classic pattern file.
func (s *Server) loadDefinitions(ctx context.Context) ([]patterns.PatternDefinition, error) {
	defs, err := s.repo.LoadPatterns(ctx)
	if err != nil {
		return nil, err
	}
	if len(defs) > 0 {
		return defs, nil
	}

	report, err := patterns.LoadDefinitions(s.cfg.MatcherConfig.PatternFile)
	if err != nil {
		return nil, err
	}
	for _, reason := range report.Rejected {
		s.logger.Warn().Str("reason", reason).Msg("pattern definition rejected")
	}
	return report.Patterns, nil
}

func (s *Server) handleMatch(c *gin.Context) {
	var req struct {
		Code string       `json:"code"`
		Bars []series.Bar `json:"bars"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	bars := req.Bars
	if len(bars) == 0 && req.Code != "" {
		var err error
		bars, err = s.repo.TrailingBars(c.Request.Context(), req.Code, time.Now(), s.cfg.ScreenerConfig.HistoryDays)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	if len(bars) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "provide bars or a known instrument code"})
		return
	}

	defs, err := s.loadDefinitions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	matches := patterns.MatchBars(bars, defs)
	if matches == nil {
		matches = []patterns.MatchResult{}
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}

func (s *Server) handlePrescreen(c *gin.Context) {
	var req struct {
		Codes []string `json:"codes"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	ctx := c.Request.Context()
	codes := req.Codes
	if len(codes) == 0 {
		var err error
		codes, err = s.repo.ActiveCodes(ctx, 5000)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	defs, err := s.loadDefinitions(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	barsByCode, err := s.repo.RecentBarsByCode(ctx, codes, s.cfg.ScreenerConfig.HistoryDays)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	result := s.screener.Screen(ctx, barsByCode, defs)
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, cache.KeyScreenResult, result); err != nil && !errors.Is(err, cache.ErrCacheUnavailable) {
			s.logger.Warn().Err(err).Msg("failed to cache screening result")
		}
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleValidate(c *gin.Context) {
	taskID, ok := s.tracker.Start(validateTask)
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "a validation run is already in progress"})
		return
	}

	go s.runValidation(taskID)

	c.JSON(http.StatusAccepted, gin.H{
		"task_id": taskID,
		"message": "validation run started",
	})
}

// runValidation is the background body of POST /api/validate.
func (s *Server) runValidation(taskID string) {
	ctx := context.Background()
	logger := s.logger.With().Str("task_id", taskID).Logger()

	s.tracker.Update(validateTask, 5, "loading pattern definitions")
	defs, err := s.loadDefinitions(ctx)
	if err != nil {
		s.tracker.Fail(validateTask, err.Error())
		logger.Error().Err(err).Msg("validation run failed")
		return
	}

	s.tracker.Update(validateTask, 10, fmt.Sprintf("loaded %d patterns", len(defs)))

	validator := backtest.NewValidator(s.sampler, s.cfg.ValidatorConfig, logger)
	report, err := validator.Run(ctx, defs, func(p backtest.Progress) {
		progress := 25
		if p.Total > 0 {
			progress += int(float64(p.Processed) / float64(p.Total) * 50)
		}
		if progress > 90 {
			progress = 90
		}
		s.tracker.Update(validateTask, progress, p.Message)
	})
	if err != nil {
		s.tracker.Fail(validateTask, err.Error())
		logger.Error().Err(err).Msg("validation run failed")
		return
	}

	s.tracker.Update(validateTask, 95, "persisting validation report")
	if err := s.repo.SaveValidationReport(ctx, report); err != nil {
		s.tracker.Fail(validateTask, err.Error())
		logger.Error().Err(err).Msg("failed to persist validation report")
		return
	}

	if s.cache != nil {
		s.cache.Invalidate(ctx, cache.KeyValidationReport)
		if err := s.cache.SetJSON(ctx, cache.KeyValidationReport, report); err != nil && !errors.Is(err, cache.ErrCacheUnavailable) {
			logger.Warn().Err(err).Msg("failed to cache validation report")
		}
	}

	s.tracker.Finish(validateTask, fmt.Sprintf("validated %d patterns", len(report.Summaries)))
}

func (s *Server) handleTaskStatus(c *gin.Context) {
	status, ok := s.tracker.Get(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown task"})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleValidationResults(c *gin.Context) {
	ctx := c.Request.Context()

	if s.cache != nil {
		var cached backtest.Report
		err := s.cache.GetJSON(ctx, cache.KeyValidationReport, &cached)
		if err == nil {
			c.JSON(http.StatusOK, cached)
			return
		}
		if !errors.Is(err, cache.ErrCacheMiss) && !errors.Is(err, cache.ErrCacheUnavailable) {
			s.logger.Warn().Err(err).Msg("validation report cache read failed")
		}
	}

	report, err := s.repo.LatestValidationReport(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no validation run has completed yet"})
		return
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, cache.KeyValidationReport, report); err != nil && !errors.Is(err, cache.ErrCacheUnavailable) {
			s.logger.Warn().Err(err).Msg("failed to cache validation report")
		}
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleListPatterns(c *gin.Context) {
	defs, err := s.loadDefinitions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"patterns": defs})
}

func (s *Server) handleSavePatterns(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable request body"})
		return
	}

	report := patterns.ParseDefinitions(body)
	if len(report.Patterns) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    "no usable pattern definitions",
			"rejected": report.Rejected,
		})
		return
	}

	if err := s.repo.UpsertPatterns(c.Request.Context(), report.Patterns); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"saved":    len(report.Patterns),
		"rejected": report.Rejected,
	})
}
