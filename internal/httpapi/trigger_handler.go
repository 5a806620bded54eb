package httpapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// handleTriggerSite implements POST /trigger/{site-id}: enqueue a
// detection run for one site. The run executes in the background,
// detached from the request context, so the handler can answer 202
// immediately; spec.md §6 specifies only acceptance semantics here, not
// a synchronous result.
func (s *Server) handleTriggerSite(c *gin.Context) {
	siteID := c.Param("site_id")

	if _, ok := s.Config.SiteByID(siteID); !ok {
		respondNotFound(c, "site")
		return
	}

	runID := uuid.NewString()
	go s.runDetached(siteID, runID)

	c.JSON(http.StatusAccepted, gin.H{"run_id": runID, "site_id": siteID})
}

// handleTriggerAll implements POST /trigger/all: enqueue a run for every
// active site.
func (s *Server) handleTriggerAll(c *gin.Context) {
	sites := s.Config.Sites()

	runs := make([]gin.H, 0, len(sites))
	for _, sc := range sites {
		if !sc.Active {
			continue
		}
		runID := uuid.NewString()
		go s.runDetached(sc.ID, runID)
		runs = append(runs, gin.H{"run_id": runID, "site_id": sc.ID})
	}

	c.JSON(http.StatusAccepted, gin.H{"triggered": runs, "count": len(runs)})
}

func (s *Server) runDetached(siteID, runID string) {
	if _, err := s.Scheduler.TriggerNow(context.Background(), siteID); err != nil {
		if s.Log != nil {
			s.Log.Error("httpapi: triggered run failed", "run_id", runID, "site_id", siteID, "error", err)
		}
	}
}
