package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/sitewatch/internal/baseline"
)

// handleStatus implements GET /status: a global snapshot of every
// configured site's most recent run, if the run registry is wired.
func (s *Server) handleStatus(c *gin.Context) {
	sites := s.Config.Sites()
	snapshot := make([]gin.H, 0, len(sites))

	for _, sc := range sites {
		entry := gin.H{"site_id": sc.ID, "active": sc.Active}

		if latest, err := s.Store.Latest(sc.ID); err == nil && latest != nil {
			entry["baseline_id"] = latest.ID()
			entry["baseline_created_at"] = latest.CreatedAt
		}

		if s.Runs != nil {
			if run, err := s.Runs.LatestBySite(c.Request.Context(), sc.ID); err == nil {
				entry["last_run"] = run
			}
		}

		snapshot = append(snapshot, entry)
	}

	c.JSON(http.StatusOK, gin.H{"sites": snapshot})
}

// handleGetSite implements GET /sites/{site-id}: the latest baseline
// metadata plus recent run history for one site.
func (s *Server) handleGetSite(c *gin.Context) {
	siteID := c.Param("site_id")

	sc, ok := s.Config.SiteByID(siteID)
	if !ok {
		respondNotFound(c, "site")
		return
	}

	latest, err := s.Store.Latest(siteID)
	if err != nil {
		respondInternalError(c, err.Error())
		return
	}

	resp := gin.H{"site_id": sc.ID, "name": sc.Name, "active": sc.Active, "methods": sc.Methods}
	if latest != nil {
		resp["baseline"] = latest
	}

	if s.Runs != nil {
		runs, err := s.Runs.ListBySite(c.Request.Context(), siteID, defaultChangesLimit)
		if err == nil {
			resp["recent_runs"] = runs
		}
	}

	c.JSON(http.StatusOK, resp)
}

// handleGetChanges implements GET /changes/{site-id}?limit=N: the most
// recent N recorded detection runs for a site, standing in for "change
// reports" since the run registry is this project's queryable mirror of
// them.
func (s *Server) handleGetChanges(c *gin.Context) {
	siteID := c.Param("site_id")

	if _, ok := s.Config.SiteByID(siteID); !ok {
		respondNotFound(c, "site")
		return
	}
	if s.Runs == nil {
		respondUnavailable(c, "run registry not configured")
		return
	}

	limit := parseLimit(c, defaultChangesLimit)
	runs, err := s.Runs.ListBySite(c.Request.Context(), siteID, limit)
	if err != nil {
		respondInternalError(c, err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{"site_id": siteID, "changes": runs})
}

// baselineSummary is the trimmed view of a baseline.Baseline returned in
// history listings: callers rarely need the full URL set and content
// hashes to pick a rollback target.
type baselineSummary struct {
	ID            string                 `json:"id"`
	CreatedAt     string                 `json:"created_at"`
	EvolutionType baseline.EvolutionType `json:"evolution_type"`
	URLCount      int                    `json:"url_count"`
	ChangeSummary baseline.ChangeSummary `json:"change_summary"`
}

// handleGetBaselines implements GET /baselines/{site-id}: the full
// baseline history, newest first.
func (s *Server) handleGetBaselines(c *gin.Context) {
	siteID := c.Param("site_id")

	if _, ok := s.Config.SiteByID(siteID); !ok {
		respondNotFound(c, "site")
		return
	}

	ids, err := s.Store.List(siteID)
	if err != nil {
		respondInternalError(c, err.Error())
		return
	}

	summaries := make([]baselineSummary, 0, len(ids))
	for _, id := range ids {
		b, err := s.Store.Load(siteID, id)
		if err != nil {
			continue
		}
		summaries = append(summaries, baselineSummary{
			ID:            b.ID(),
			CreatedAt:     b.CreatedAt.UTC().Format("2006-01-02T15:04:05.000000000Z"),
			EvolutionType: b.EvolutionType,
			URLCount:      len(b.URLs),
			ChangeSummary: b.ChangeSummary,
		})
	}

	c.JSON(http.StatusOK, gin.H{"site_id": siteID, "baselines": summaries})
}
