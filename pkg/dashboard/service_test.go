package dashboard

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spillinova/github-actions-dashboard/pkg/gh"
)

// newService points a real client at a fake upstream and returns a service
// over it. Handlers are registered under the enterprise API prefix go-github
// uses for non-github.com base URLs.
func newService(t *testing.T, cfg Config, routes map[string]string) *Service {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/user", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"login":"octocat"}`)
	})
	for path, body := range routes {
		body := body
		mux.HandleFunc("/api/v3"+path, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, body)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Setenv("GITHUB_TOKEN", "test-token")
	t.Setenv("GITHUB_BASE_URL", srv.URL)

	logger := log.New(io.Discard, "", 0)
	return NewService(func(ctx context.Context) (*gh.Client, error) {
		return gh.Build(ctx, logger)
	}, logger, cfg)
}

func TestListRepositoriesFiltersAndNormalizes(t *testing.T) {
	svc := newService(t, Config{}, map[string]string{
		"/user/repos": `[
            {"id":1,"name":"actions-dashboard","owner":{"login":"octocat"},"description":"CI overview"},
            {"id":2,"name":"spoon-knife","owner":{"login":"octocat"},"description":"forking demo"},
            {"id":3,"name":"dash-utils","owner":{"login":"octocat"},"description":null}
        ]`,
	})

	items, err := svc.ListRepositories(context.Background(), "dash")
	assert.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, "octocat/actions-dashboard", items[0].FullName)
	assert.Equal(t, "octocat/dash-utils", items[1].FullName)
}

func TestListRepositoriesQueryMatchesDescription(t *testing.T) {
	svc := newService(t, Config{}, map[string]string{
		"/user/repos": `[
            {"id":1,"name":"alpha","owner":{"login":"octocat"},"description":"the DASHBOARD backend"},
            {"id":2,"name":"beta","owner":{"login":"octocat"}}
        ]`,
	})

	items, err := svc.ListRepositories(context.Background(), "dashboard")
	assert.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, "alpha", items[0].Name)
}

func TestListRepositoriesSkipsMalformedRecord(t *testing.T) {
	// One record is missing its owner; the listing still returns the good one.
	svc := newService(t, Config{}, map[string]string{
		"/user/repos": `[
            {"id":1,"name":"good","owner":{"login":"octocat"}},
            {"id":2,"name":"broken"}
        ]`,
	})

	items, err := svc.ListRepositories(context.Background(), "")
	assert.NoError(t, err)
	assert.Len(t, items, 1)
	assert.Equal(t, "good", items[0].Name)
}

func TestListRepositoriesCapsAfterFiltering(t *testing.T) {
	svc := newService(t, Config{RepoCap: 2}, map[string]string{
		"/user/repos": `[
            {"id":1,"name":"match-one","owner":{"login":"octocat"}},
            {"id":2,"name":"other","owner":{"login":"octocat"}},
            {"id":3,"name":"match-two","owner":{"login":"octocat"}},
            {"id":4,"name":"match-three","owner":{"login":"octocat"}}
        ]`,
	})

	items, err := svc.ListRepositories(context.Background(), "match")
	assert.NoError(t, err)
	// The non-matching repo does not consume a cap slot.
	assert.Equal(t, []string{"match-one", "match-two"}, []string{items[0].Name, items[1].Name})
}

func TestListRepositoriesNoClient(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	logger := log.New(io.Discard, "", 0)
	svc := NewService(func(ctx context.Context) (*gh.Client, error) {
		return gh.Build(ctx, logger)
	}, logger, Config{})

	_, err := svc.ListRepositories(context.Background(), "")
	assert.ErrorIs(t, err, gh.ErrUnavailable)
}

func TestListWorkflowsLatestRunAbsent(t *testing.T) {
	svc := newService(t, Config{}, map[string]string{
		"/repos/octocat/dashboard": `{"id":1,"name":"dashboard","owner":{"login":"octocat"}}`,
		"/repos/octocat/dashboard/actions/workflows": `{
            "total_count":1,
            "workflows":[{"id":9,"name":"CI","state":"active","path":".github/workflows/ci.yml"}]
        }`,
		"/repos/octocat/dashboard/actions/workflows/9/runs": `{"total_count":0,"workflow_runs":[]}`,
	})

	workflows, err := svc.ListWorkflows(context.Background(), "octocat", "dashboard")
	assert.NoError(t, err)
	assert.Len(t, workflows, 1)
	assert.Equal(t, "CI", workflows[0].Name)
	assert.Nil(t, workflows[0].LatestRun)
}

func TestListWorkflowsAnnotatesLatestRun(t *testing.T) {
	svc := newService(t, Config{}, map[string]string{
		"/repos/octocat/dashboard": `{"id":1,"name":"dashboard","owner":{"login":"octocat"}}`,
		"/repos/octocat/dashboard/actions/workflows": `{
            "total_count":1,
            "workflows":[{"id":9,"name":"CI","state":"active"}]
        }`,
		"/repos/octocat/dashboard/actions/workflows/9/runs": `{
            "total_count":2,
            "workflow_runs":[
                {"id":1001,"status":"completed","conclusion":"success"},
                {"id":1000,"status":"completed","conclusion":"failure"}
            ]
        }`,
	})

	workflows, err := svc.ListWorkflows(context.Background(), "octocat", "dashboard")
	assert.NoError(t, err)
	assert.Len(t, workflows, 1)
	assert.NotNil(t, workflows[0].LatestRun)
	assert.Equal(t, int64(1001), workflows[0].LatestRun.ID)
	assert.Equal(t, "success", *workflows[0].LatestRun.Conclusion)
}

func TestListWorkflowsRepoNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/user", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"login":"octocat"}`)
	})
	mux.HandleFunc("/api/v3/repos/octocat/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"message":"Not Found"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Setenv("GITHUB_TOKEN", "test-token")
	t.Setenv("GITHUB_BASE_URL", srv.URL)

	logger := log.New(io.Discard, "", 0)
	svc := NewService(func(ctx context.Context) (*gh.Client, error) {
		return gh.Build(ctx, logger)
	}, logger, Config{})

	_, err := svc.ListWorkflows(context.Background(), "octocat", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRunsUnknownWorkflowSoftEmpty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/user", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"login":"octocat"}`)
	})
	mux.HandleFunc("/api/v3/repos/octocat/dashboard", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":1,"name":"dashboard","owner":{"login":"octocat"}}`)
	})
	mux.HandleFunc("/api/v3/repos/octocat/dashboard/actions/workflows/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"message":"Not Found"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Setenv("GITHUB_TOKEN", "test-token")
	t.Setenv("GITHUB_BASE_URL", srv.URL)

	logger := log.New(io.Discard, "", 0)
	svc := NewService(func(ctx context.Context) (*gh.Client, error) {
		return gh.Build(ctx, logger)
	}, logger, Config{})

	page, err := svc.ListRuns(context.Background(), "octocat", "dashboard", "12345", 5)
	assert.NoError(t, err)
	assert.Empty(t, page.Runs)
	assert.NotNil(t, page.Runs)
	assert.Equal(t, int64(12345), page.Workflow.ID)
	assert.Equal(t, "workflow-12345", page.Workflow.Name)
	assert.Equal(t, "unknown", page.Workflow.State)
}

func TestListRunsCommitMessageFallback(t *testing.T) {
	svc := newService(t, Config{}, map[string]string{
		"/repos/octocat/dashboard":            `{"id":1,"name":"dashboard","owner":{"login":"octocat"}}`,
		"/repos/octocat/dashboard/actions/workflows/9": `{"id":9,"name":"CI","state":"active"}`,
		"/repos/octocat/dashboard/actions/workflows/9/runs": `{
            "total_count":1,
            "workflow_runs":[{"id":1001,"run_number":3,"event":"push","status":"completed","head_sha":"abc123"}]
        }`,
		"/repos/octocat/dashboard/commits/abc123": `{
            "sha":"abc123",
            "commit":{"message":"resolved by sha","author":{"name":"Ada","email":"ada@example.com"}}
        }`,
	})

	page, err := svc.ListRuns(context.Background(), "octocat", "dashboard", "9", 5)
	assert.NoError(t, err)
	assert.Len(t, page.Runs, 1)

	run := page.Runs[0]
	assert.NotNil(t, run.HeadCommit)
	assert.Equal(t, "resolved by sha", *run.HeadCommit.Message)
	// With no actor on the run, the commit author becomes a synthetic actor.
	assert.NotNil(t, run.Actor)
	assert.Empty(t, run.Actor.Login)
	assert.Contains(t, run.Actor.HTMLURL, "search?q=Ada")
}

func TestListRunsFallbackIsFailSoft(t *testing.T) {
	// The commit endpoint errors; the run is still returned, message absent.
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/user", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"login":"octocat"}`)
	})
	mux.HandleFunc("/api/v3/repos/octocat/dashboard", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":1,"name":"dashboard","owner":{"login":"octocat"}}`)
	})
	mux.HandleFunc("/api/v3/repos/octocat/dashboard/actions/workflows/9", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":9,"name":"CI","state":"active"}`)
	})
	mux.HandleFunc("/api/v3/repos/octocat/dashboard/actions/workflows/9/runs", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"total_count":1,"workflow_runs":[{"id":1001,"head_sha":"abc123"}]}`)
	})
	mux.HandleFunc("/api/v3/repos/octocat/dashboard/commits/abc123", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Setenv("GITHUB_TOKEN", "test-token")
	t.Setenv("GITHUB_BASE_URL", srv.URL)

	logger := log.New(io.Discard, "", 0)
	svc := NewService(func(ctx context.Context) (*gh.Client, error) {
		return gh.Build(ctx, logger)
	}, logger, Config{})

	page, err := svc.ListRuns(context.Background(), "octocat", "dashboard", "9", 5)
	assert.NoError(t, err)
	assert.Len(t, page.Runs, 1)
	assert.Nil(t, page.Runs[0].HeadCommit)
	assert.Nil(t, page.Runs[0].Actor)
}

func TestListRunsRespectsLimit(t *testing.T) {
	svc := newService(t, Config{}, map[string]string{
		"/repos/octocat/dashboard":            `{"id":1,"name":"dashboard","owner":{"login":"octocat"}}`,
		"/repos/octocat/dashboard/actions/workflows/9": `{"id":9,"name":"CI","state":"active"}`,
		"/repos/octocat/dashboard/actions/workflows/9/runs": `{
            "total_count":3,
            "workflow_runs":[{"id":3},{"id":2},{"id":1}]
        }`,
	})

	page, err := svc.ListRuns(context.Background(), "octocat", "dashboard", "9", 2)
	assert.NoError(t, err)
	assert.Len(t, page.Runs, 2)
	assert.Equal(t, int64(3), page.Runs[0].ID)
	assert.Equal(t, int64(2), page.Runs[1].ID)
}

func TestMatchesQuery(t *testing.T) {
	desc := "A CI dashboard"

	tests := []struct {
		name        string
		repoName    string
		description *string
		query       string
		want        bool
	}{
		{"empty query matches", "anything", nil, "", true},
		{"name match case-insensitive", "My-Dashboard", nil, "dashboard", true},
		{"description match", "tool", &desc, "ci dash", true},
		{"nil description never matches", "tool", nil, "dashboard", false},
		{"no match", "tool", &desc, "kubernetes", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesQuery(tt.repoName, tt.description, tt.query))
		})
	}
}

func TestGitHubStatusThrottlesProbe(t *testing.T) {
	var rateCalls int
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v3/user", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"login":"octocat"}`)
	})
	mux.HandleFunc("/api/v3/rate_limit", func(w http.ResponseWriter, r *http.Request) {
		rateCalls++
		io.WriteString(w, `{"resources":{"core":{"limit":5000,"remaining":4999,"reset":1700000000}}}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Setenv("GITHUB_TOKEN", "test-token")
	t.Setenv("GITHUB_BASE_URL", srv.URL)

	logger := log.New(io.Discard, "", 0)
	svc := NewService(func(ctx context.Context) (*gh.Client, error) {
		return gh.Build(ctx, logger)
	}, logger, Config{ProbeInterval: time.Hour})

	first := svc.GitHubStatus(context.Background())
	assert.True(t, first.Connected)
	assert.Equal(t, "octocat", first.Login)
	assert.Equal(t, 4999, first.Rate.Remaining)

	second := svc.GitHubStatus(context.Background())
	assert.Equal(t, first.Rate, second.Rate)
	assert.Equal(t, 1, rateCalls, "probe within the window must not hit upstream")
}
