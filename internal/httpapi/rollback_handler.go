package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/sitewatch/internal/baseline"
	"github.com/jonesrussell/sitewatch/internal/evolution"
)

// rollbackRequest is the body of POST /baselines/{site-id}/rollback.
type rollbackRequest struct {
	BaselineID string `json:"baseline_id" binding:"required"`
}

// handleRollback implements POST /baselines/{site-id}/rollback: sets the
// named baseline as the site's latest and appends a rolled-back event,
// per spec.md §6.
func (s *Server) handleRollback(c *gin.Context) {
	siteID := c.Param("site_id")

	if _, ok := s.Config.SiteByID(siteID); !ok {
		respondNotFound(c, "site")
		return
	}

	var req rollbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "baseline_id is required")
		return
	}

	target, err := s.Store.Load(siteID, req.BaselineID)
	if err != nil {
		if errors.Is(err, baseline.ErrNotFound) {
			respondNotFound(c, "baseline")
			return
		}
		respondInternalError(c, err.Error())
		return
	}

	current, err := s.Store.Latest(siteID)
	if err != nil {
		respondInternalError(c, err.Error())
		return
	}

	res, err := evolution.Rollback(s.Store, evolution.RollbackRequest{
		SiteID:  siteID,
		Current: current,
		Target:  target,
		At:      time.Now(),
	})
	if err != nil {
		respondInternalError(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"site_id":     siteID,
		"baseline_id": res.BaselineID,
		"rolled_back_to": req.BaselineID,
	})
}
