package api

import (
	"errors"
	"log"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/spillinova/github-actions-dashboard/pkg/dashboard"
	"github.com/spillinova/github-actions-dashboard/pkg/gh"
	"github.com/spillinova/github-actions-dashboard/pkg/selection"
)

type handlers struct {
	svc    Dashboard
	store  selection.Store
	logger *log.Logger
	opts   Options
}

func (h *handlers) dashboardPage(c *gin.Context) {
	c.HTML(http.StatusOK, "dashboard.html", gin.H{
		"title": "GitHub Actions Dashboard",
	})
}

// listRepos serves the lite full enumeration. An unset token answers 401
// rather than 500: the endpoint is auth-gated, not broken.
func (h *handlers) listRepos(c *gin.Context) {
	repos, err := h.svc.ListRepoSummaries(c.Request.Context())
	if err != nil {
		if errors.Is(err, gh.ErrNoToken) {
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "GitHub authentication not configured"})
			return
		}
		h.logger.Printf("ERROR: listing repositories: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to fetch repositories: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"repos": repos})
}

func (h *handlers) listMyRepos(c *gin.Context) {
	items, err := h.svc.ListRepositories(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.logger.Printf("ERROR: listing repositories: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to fetch repositories: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *handlers) addRepo(c *gin.Context) {
	var req struct {
		Owner string `json:"owner" binding:"required"`
		Name  string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": "owner and name are required"})
		return
	}

	entries, err := h.store.Add(req.Owner, req.Name)
	if err != nil {
		h.logger.Printf("ERROR: adding selection %s/%s: %v", req.Owner, req.Name, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to store selection"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "selected_repos": entries})
}

func (h *handlers) listWorkflows(c *gin.Context) {
	owner, repo := c.Param("owner"), c.Param("repo")

	workflows, err := h.svc.ListWorkflows(c.Request.Context(), owner, repo)
	if err != nil {
		if errors.Is(err, dashboard.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Repository " + owner + "/" + repo + " not found"})
			return
		}
		h.logger.Printf("ERROR: listing workflows for %s/%s: %v", owner, repo, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to fetch workflows: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"workflows": workflows})
}

func (h *handlers) listRuns(c *gin.Context) {
	owner, repo := c.Param("owner"), c.Param("repo")
	workflowRef := c.Param("workflow_id")

	limit := 0
	if v := c.Query("per_page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	page, err := h.svc.ListRuns(c.Request.Context(), owner, repo, workflowRef, limit)
	if err != nil {
		if errors.Is(err, dashboard.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "Repository " + owner + "/" + repo + " not found"})
			return
		}
		h.logger.Printf("ERROR: listing runs for %s/%s/%s: %v", owner, repo, workflowRef, err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Failed to fetch workflow runs: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *handlers) health(c *gin.Context) {
	payload := gin.H{
		"status":  "healthy",
		"app":     h.opts.AppName,
		"version": h.opts.Version,
		"system": gin.H{
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
	if status := h.svc.GitHubStatus(c.Request.Context()); status != nil {
		payload["github"] = status
	}
	c.JSON(http.StatusOK, payload)
}

// healthFull always makes a fresh verification call, bypassing the probe
// throttle.
func (h *handlers) healthFull(c *gin.Context) {
	now := time.Now().UTC().Format(time.RFC3339)

	login, err := h.svc.Verify(c.Request.Context())
	if err != nil {
		h.logger.Printf("ERROR: full health check failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":           "error",
			"github_connected": false,
			"timestamp":        now,
			"detail":           err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":           "healthy",
		"github_connected": true,
		"github_user":      login,
		"timestamp":        now,
	})
}
