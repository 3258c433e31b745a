// Package api exposes the HTTP surface of the dashboard backend.
package api

import (
	"context"
	"log"

	"github.com/gin-gonic/gin"

	"github.com/spillinova/github-actions-dashboard/pkg/models"
	"github.com/spillinova/github-actions-dashboard/pkg/selection"
)

// Dashboard is the service surface the handlers call. Declared here so tests
// can substitute a mock.
type Dashboard interface {
	ListRepoSummaries(ctx context.Context) ([]models.RepoSummary, error)
	ListRepositories(ctx context.Context, query string) ([]models.RepositoryView, error)
	ListWorkflows(ctx context.Context, owner, repo string) ([]models.WorkflowView, error)
	ListRuns(ctx context.Context, owner, repo, workflowRef string, limit int) (models.RunsPage, error)
	Verify(ctx context.Context) (string, error)
	GitHubStatus(ctx context.Context) *models.GitHubStatus
}

// Options configures the router.
type Options struct {
	// TemplatesGlob loads the dashboard page templates. When empty no HTML
	// route is registered (the JSON API still serves).
	TemplatesGlob string
	// StaticDir serves /static assets when set.
	StaticDir string
	AppName   string
	Version   string
}

// NewRouter wires every route exactly once. The /api/repos contract is the
// lite listing; the richer filtered listing lives only at /api/my-repos.
func NewRouter(svc Dashboard, store selection.Store, logger *log.Logger, opts Options) *gin.Engine {
	r := gin.Default()

	h := &handlers{svc: svc, store: store, logger: logger, opts: opts}

	if opts.TemplatesGlob != "" {
		r.LoadHTMLGlob(opts.TemplatesGlob)
		r.GET("/", h.dashboardPage)
	}
	if opts.StaticDir != "" {
		r.Static("/static", opts.StaticDir)
	}

	api := r.Group("/api")
	api.GET("/repos", h.listRepos)
	api.GET("/my-repos", h.listMyRepos)
	api.POST("/repos/add", h.addRepo)
	api.GET("/workflows/:owner/:repo", h.listWorkflows)
	api.GET("/runs/:owner/:repo/:workflow_id", h.listRuns)

	r.GET("/health", h.health)
	r.GET("/health/full", h.healthFull)

	return r
}
