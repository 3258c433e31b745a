// Package dashboard implements the query-and-normalize facade between the
// HTTP surface and the GitHub API: repository, workflow, and run listings with
// partial-result tolerance, plus the throttled upstream health probe.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/go-github/v56/github"

	"github.com/spillinova/github-actions-dashboard/pkg/gh"
	"github.com/spillinova/github-actions-dashboard/pkg/models"
)

// ErrNotFound reports a repository or workflow that does not exist or is not
// accessible to the authenticated principal.
var ErrNotFound = errors.New("not found")

// Factory builds a fresh verified GitHub client. It is invoked on every
// operation rather than memoized, so token rotation in the environment takes
// effect without a restart.
type Factory func(ctx context.Context) (*gh.Client, error)

// Config tunes the service. Zero values select the defaults.
type Config struct {
	// RepoCap bounds the filtered listing of /api/my-repos. Default 200.
	RepoCap int
	// PageSize is the per-page size for upstream enumeration. Default 100.
	PageSize int
	// RunLimit is the default run-listing size. Default 5.
	RunLimit int
	// ProbeInterval throttles the upstream health probe. Default 300s.
	ProbeInterval time.Duration
}

const (
	defaultRepoCap       = 200
	defaultPageSize      = 100
	defaultRunLimit      = 5
	defaultProbeInterval = 300 * time.Second
)

// Service is safe for concurrent use; the only mutable state it carries is
// the health-probe timestamp, which is mutex-guarded.
type Service struct {
	factory  Factory
	logger   *log.Logger
	repoCap  int
	pageSize int
	runLimit int

	probeEvery time.Duration
	mu         sync.Mutex
	lastProbe  time.Time
	lastStatus *models.GitHubStatus
}

// NewService creates a dashboard service over the given client factory.
func NewService(factory Factory, logger *log.Logger, cfg Config) *Service {
	if cfg.RepoCap <= 0 {
		cfg.RepoCap = defaultRepoCap
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultPageSize
	}
	if cfg.RunLimit <= 0 {
		cfg.RunLimit = defaultRunLimit
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = defaultProbeInterval
	}
	return &Service{
		factory:    factory,
		logger:     logger,
		repoCap:    cfg.RepoCap,
		pageSize:   cfg.PageSize,
		runLimit:   cfg.RunLimit,
		probeEvery: cfg.ProbeInterval,
	}
}

// ListRepoSummaries enumerates every accessible repository in the lite shape.
func (s *Service) ListRepoSummaries(ctx context.Context) ([]models.RepoSummary, error) {
	client, err := s.factory(ctx)
	if err != nil {
		return nil, err
	}

	repos, err := client.ListAccessibleRepos(ctx, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("fetching repositories: %w", err)
	}

	out := make([]models.RepoSummary, 0, len(repos))
	for _, r := range repos {
		summary, err := gh.NormalizeRepoSummary(r)
		if err != nil {
			s.logger.Printf("WARNING: skipping repository: %v", err)
			continue
		}
		out = append(out, summary)
	}
	return out, nil
}

// ListRepositories enumerates accessible repositories in upstream order,
// filters by a case-insensitive substring over name/description, and caps the
// retained set. A repository that fails normalization is logged and skipped;
// one malformed record never blanks the listing.
func (s *Service) ListRepositories(ctx context.Context, query string) ([]models.RepositoryView, error) {
	client, err := s.factory(ctx)
	if err != nil {
		return nil, err
	}

	repos, err := client.ListAccessibleRepos(ctx, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("fetching repositories: %w", err)
	}

	out := make([]models.RepositoryView, 0)
	retained := 0
	for _, r := range repos {
		if !matchesQuery(r.GetName(), r.Description, query) {
			continue
		}
		// Filter first, then cap: items beyond the cap are silently dropped.
		if retained >= s.repoCap {
			break
		}
		retained++

		view, err := gh.NormalizeRepository(r)
		if err != nil {
			s.logger.Printf("WARNING: skipping repository: %v", err)
			continue
		}
		out = append(out, view)
	}

	s.logger.Printf("Returning %d repositories (query=%q)", len(out), query)
	return out, nil
}

// matchesQuery reports whether the query is a case-insensitive substring of
// the repository name or, when present, its description. A repository with no
// description never matches on description.
func matchesQuery(name string, description *string, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(name), q) {
		return true
	}
	return description != nil && strings.Contains(strings.ToLower(*description), q)
}

// ListWorkflows returns the workflows of a repository, each annotated with its
// most recent run when one exists. A workflow whose run history cannot be
// fetched is logged and skipped.
func (s *Service) ListWorkflows(ctx context.Context, owner, repo string) ([]models.WorkflowView, error) {
	client, err := s.factory(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := client.GetRepository(ctx, owner, repo); err != nil {
		if gh.IsNotFound(err) {
			return nil, fmt.Errorf("%w: repository %s/%s", ErrNotFound, owner, repo)
		}
		return nil, fmt.Errorf("resolving repository %s/%s: %w", owner, repo, err)
	}

	workflows, err := client.ListWorkflows(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("fetching workflows: %w", err)
	}

	out := make([]models.WorkflowView, 0, len(workflows))
	for _, w := range workflows {
		runs, err := client.ListWorkflowRuns(ctx, owner, repo, w.GetID(), 1)
		if err != nil {
			s.logger.Printf("WARNING: skipping workflow %d: fetching runs: %v", w.GetID(), err)
			continue
		}
		var latest *github.WorkflowRun
		if len(runs) > 0 {
			latest = runs[0]
		}
		view, err := gh.NormalizeWorkflow(w, latest)
		if err != nil {
			s.logger.Printf("WARNING: skipping workflow: %v", err)
			continue
		}
		out = append(out, view)
	}
	return out, nil
}

// ListRuns returns up to limit most-recent runs of a workflow with commit and
// actor metadata resolved through fail-soft fallback chains. A workflow that
// cannot be resolved yields a well-formed empty page with a best-effort
// summary instead of an error, so the dashboard always has something to
// render for a known-bad workflow reference.
func (s *Service) ListRuns(ctx context.Context, owner, repo, workflowRef string, limit int) (models.RunsPage, error) {
	if limit <= 0 {
		limit = s.runLimit
	}

	client, err := s.factory(ctx)
	if err != nil {
		return models.RunsPage{}, err
	}

	if _, err := client.GetRepository(ctx, owner, repo); err != nil {
		if gh.IsNotFound(err) {
			return models.RunsPage{}, fmt.Errorf("%w: repository %s/%s", ErrNotFound, owner, repo)
		}
		return models.RunsPage{}, fmt.Errorf("resolving repository %s/%s: %w", owner, repo, err)
	}

	workflow, err := client.GetWorkflow(ctx, owner, repo, workflowRef)
	if err != nil {
		s.logger.Printf("WARNING: workflow %q not resolvable in %s/%s: %v", workflowRef, owner, repo, err)
		return models.RunsPage{
			Runs:     []models.RunView{},
			Workflow: unknownWorkflow(workflowRef),
		}, nil
	}

	runs, err := client.ListWorkflowRuns(ctx, owner, repo, workflow.GetID(), limit)
	if err != nil {
		return models.RunsPage{}, fmt.Errorf("fetching runs: %w", err)
	}
	if len(runs) > limit {
		runs = runs[:limit]
	}

	page := models.RunsPage{
		Runs: make([]models.RunView, 0, len(runs)),
		Workflow: models.WorkflowSummary{
			ID:    workflow.GetID(),
			Name:  workflow.GetName(),
			State: workflow.GetState(),
		},
	}

	for _, run := range runs {
		view, err := gh.NormalizeRun(run)
		if err != nil {
			s.logger.Printf("WARNING: skipping run: %v", err)
			continue
		}
		s.resolveCommit(ctx, client, owner, repo, run.GetHeadSHA(), &view)
		s.resolveActor(&view)
		page.Runs = append(page.Runs, view)
	}
	return page, nil
}

// resolveCommit applies the commit-message fallback: prefer the embedded head
// commit, else fetch the commit by SHA, else leave the message absent. Every
// step is fail-soft.
func (s *Service) resolveCommit(ctx context.Context, client *gh.Client, owner, repo, sha string, view *models.RunView) {
	if view.HeadCommit != nil && view.HeadCommit.Message != nil {
		return
	}
	if sha == "" {
		return
	}

	commit, err := client.GetCommit(ctx, owner, repo, sha)
	if err != nil {
		s.logger.Printf("WARNING: could not fetch commit %s in %s/%s: %v", sha, owner, repo, err)
		return
	}
	info := gh.NormalizeCommit(commit)
	if info == nil {
		return
	}

	if view.HeadCommit == nil {
		view.HeadCommit = info
		return
	}
	view.HeadCommit.Message = info.Message
	if view.HeadCommit.AuthorName == nil {
		view.HeadCommit.AuthorName = info.AuthorName
		view.HeadCommit.AuthorEmail = info.AuthorEmail
	}
}

// resolveActor derives a synthetic actor from the commit author when the run
// carried no actor at all.
func (s *Service) resolveActor(view *models.RunView) {
	if view.Actor != nil {
		return
	}
	if view.HeadCommit != nil && view.HeadCommit.AuthorName != nil {
		view.Actor = gh.SyntheticActor(*view.HeadCommit.AuthorName)
	}
}

// Verify builds and verifies a client, returning the authenticated login.
// Used by the forced health check.
func (s *Service) Verify(ctx context.Context) (string, error) {
	client, err := s.factory(ctx)
	if err != nil {
		return "", err
	}
	return client.Login(), nil
}

// GitHubStatus reports upstream connectivity for /health. A fresh probe is
// made at most once per probe interval; within the window the cached result
// is returned. The timestamp check and update are a critical section.
func (s *Service) GitHubStatus(ctx context.Context) *models.GitHubStatus {
	s.mu.Lock()
	if s.lastStatus != nil && time.Since(s.lastProbe) < s.probeEvery {
		cached := *s.lastStatus
		s.mu.Unlock()
		return &cached
	}
	s.mu.Unlock()

	status := s.probe(ctx)

	s.mu.Lock()
	s.lastProbe = time.Now()
	s.lastStatus = status
	s.mu.Unlock()
	return status
}

func (s *Service) probe(ctx context.Context) *models.GitHubStatus {
	status := &models.GitHubStatus{
		CheckedAt: time.Now().UTC().Format(time.RFC3339),
	}

	client, err := s.factory(ctx)
	if err != nil {
		s.logger.Printf("WARNING: health probe could not build client: %v", err)
		return status
	}
	status.Connected = true
	status.Login = client.Login()

	rate, err := client.RateLimit(ctx)
	if err != nil {
		s.logger.Printf("WARNING: health probe rate-limit call failed: %v", err)
		return status
	}
	status.Rate = &models.RateInfo{
		Limit:     rate.Limit,
		Remaining: rate.Remaining,
		Reset:     rate.Reset.Time.UTC().Format(time.RFC3339),
	}
	return status
}

func unknownWorkflow(ref string) models.WorkflowSummary {
	id, _ := strconv.ParseInt(ref, 10, 64)
	return models.WorkflowSummary{
		ID:    id,
		Name:  "workflow-" + ref,
		State: "unknown",
	}
}
