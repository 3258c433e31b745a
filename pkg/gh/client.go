// Package gh wraps the GitHub REST client: building a verified client from
// environment credentials and normalizing upstream responses into view models.
package gh

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v56/github"
	"golang.org/x/oauth2"
)

const (
	userAgent      = "GitHub-Actions-Dashboard"
	defaultBaseURL = "https://api.github.com/"
)

// ErrUnavailable is returned when no usable GitHub client can be built: the
// credential is absent, invalid, or the verification call failed.
var ErrUnavailable = errors.New("github client unavailable")

// ErrNoToken reports the specific unavailable case where no credential is
// configured at all. It matches errors.Is(err, ErrUnavailable).
var ErrNoToken = fmt.Errorf("%w: GITHUB_TOKEN is not set", ErrUnavailable)

// Client wraps an authenticated go-github client together with the login it
// verified against.
type Client struct {
	api    *github.Client
	logger *log.Logger
	login  string
}

// Build constructs a client from the process environment. The token is read at
// call time, never cached, so callers must re-invoke Build on every request to
// pick up rotation. The client is verified with a "who am I" call before being
// returned; any failure yields ErrUnavailable rather than a half-working client.
func Build(ctx context.Context, logger *log.Logger) (*Client, error) {
	baseURL := os.Getenv("GITHUB_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	token := os.Getenv("GITHUB_TOKEN")

	var api *github.Client
	var err error

	switch {
	case token != "":
		api, err = newTokenClient(ctx, token, baseURL)
	case appAuthConfigured():
		api, err = newAppClient(baseURL)
	default:
		logger.Printf("ERROR: no GitHub credential configured")
		return nil, ErrNoToken
	}
	if err != nil {
		logger.Printf("ERROR: failed to build GitHub client: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	user, _, err := api.Users.Get(ctx, "")
	if err != nil {
		logger.Printf("ERROR: GitHub token verification failed: %v", err)
		return nil, fmt.Errorf("%w: verification failed: %v", ErrUnavailable, err)
	}

	login := user.GetLogin()
	logger.Printf("Authenticated to GitHub as %s", login)
	return &Client{api: api, logger: logger, login: login}, nil
}

func newTokenClient(ctx context.Context, token, baseURL string) (*github.Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(ctx, ts)
	httpClient.Timeout = 30 * time.Second
	return newAPIClient(httpClient, baseURL)
}

func appAuthConfigured() bool {
	return os.Getenv("GITHUB_APP_ID") != "" &&
		os.Getenv("GITHUB_INSTALLATION_ID") != "" &&
		os.Getenv("GITHUB_APP_KEY_PATH") != ""
}

func newAppClient(baseURL string) (*github.Client, error) {
	appID, err := strconv.ParseInt(os.Getenv("GITHUB_APP_ID"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid GITHUB_APP_ID: %w", err)
	}
	installID, err := strconv.ParseInt(os.Getenv("GITHUB_INSTALLATION_ID"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid GITHUB_INSTALLATION_ID: %w", err)
	}
	keyPath := os.Getenv("GITHUB_APP_KEY_PATH")
	if _, err := os.Stat(keyPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("GitHub App private key not found at %s: %w", keyPath, err)
	}

	itr, err := ghinstallation.NewKeyFromFile(http.DefaultTransport, appID, installID, keyPath)
	if err != nil {
		return nil, fmt.Errorf("error creating GitHub App transport: %w", err)
	}
	if baseURL != defaultBaseURL {
		itr.BaseURL = strings.TrimSuffix(baseURL, "/")
	}

	httpClient := &http.Client{
		Transport: itr,
		Timeout:   30 * time.Second,
	}
	return newAPIClient(httpClient, baseURL)
}

func newAPIClient(httpClient *http.Client, baseURL string) (*github.Client, error) {
	var client *github.Client
	if baseURL != defaultBaseURL {
		baseEndpoint, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL: %w", err)
		}
		client, err = github.NewEnterpriseClient(baseEndpoint.String(), baseEndpoint.String(), httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create GitHub Enterprise client: %w", err)
		}
	} else {
		client = github.NewClient(httpClient)
	}
	client.UserAgent = userAgent
	return client, nil
}

// Login returns the authenticated login confirmed during verification.
func (c *Client) Login() string {
	return c.login
}

// ListAccessibleRepos enumerates every repository reachable by the
// authenticated principal across all affiliations, most recently updated
// first. Ordering is upstream's; it is not re-sorted here.
func (c *Client) ListAccessibleRepos(ctx context.Context, pageSize int) ([]*github.Repository, error) {
	opts := &github.RepositoryListOptions{
		Sort:        "updated",
		Direction:   "desc",
		Affiliation: "owner,collaborator,organization_member",
		ListOptions: github.ListOptions{PerPage: pageSize},
	}

	var all []*github.Repository
	for {
		repos, resp, err := c.api.Repositories.List(ctx, "", opts)
		if err != nil {
			return nil, fmt.Errorf("listing repositories: %w", err)
		}
		all = append(all, repos...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// GetRepository fetches a single repository.
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (*github.Repository, error) {
	r, _, err := c.api.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListWorkflows returns the Actions workflows defined in a repository.
func (c *Client) ListWorkflows(ctx context.Context, owner, repo string) ([]*github.Workflow, error) {
	opts := &github.ListOptions{PerPage: 100}
	var all []*github.Workflow
	for {
		page, resp, err := c.api.Actions.ListWorkflows(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing workflows for %s/%s: %w", owner, repo, err)
		}
		all = append(all, page.Workflows...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// GetWorkflow resolves a workflow reference that is either a numeric ID or a
// workflow file name, the two forms the upstream API accepts.
func (c *Client) GetWorkflow(ctx context.Context, owner, repo, ref string) (*github.Workflow, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		w, _, err := c.api.Actions.GetWorkflowByID(ctx, owner, repo, id)
		return w, err
	}
	w, _, err := c.api.Actions.GetWorkflowByFileName(ctx, owner, repo, ref)
	return w, err
}

// ListWorkflowRuns returns up to perPage most recent runs of a workflow,
// upstream recency ordering.
func (c *Client) ListWorkflowRuns(ctx context.Context, owner, repo string, workflowID int64, perPage int) ([]*github.WorkflowRun, error) {
	opts := &github.ListWorkflowRunsOptions{
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	runs, _, err := c.api.Actions.ListWorkflowRunsByID(ctx, owner, repo, workflowID, opts)
	if err != nil {
		return nil, err
	}
	return runs.WorkflowRuns, nil
}

// GetCommit fetches a commit by SHA. Used by the commit-message fallback chain.
func (c *Client) GetCommit(ctx context.Context, owner, repo, sha string) (*github.RepositoryCommit, error) {
	commit, _, err := c.api.Repositories.GetCommit(ctx, owner, repo, sha, nil)
	if err != nil {
		return nil, err
	}
	return commit, nil
}

// RateLimit reports the remaining core API budget.
func (c *Client) RateLimit(ctx context.Context) (github.Rate, error) {
	limits, _, err := c.api.RateLimits(ctx)
	if err != nil {
		return github.Rate{}, err
	}
	if limits.Core == nil {
		return github.Rate{}, errors.New("rate limit response missing core bucket")
	}
	return *limits.Core, nil
}

// IsNotFound reports whether an upstream error is a 404.
func IsNotFound(err error) bool {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		return ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
	}
	return false
}
