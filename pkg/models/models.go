package models

// OwnerInfo is the owner summary embedded in repository views.
type OwnerInfo struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
}

// RepoSummary is the lite repository shape returned by GET /api/repos.
type RepoSummary struct {
	Owner       string  `json:"owner"`
	Name        string  `json:"name"`
	FullName    string  `json:"full_name"`
	Private     bool    `json:"private"`
	Description *string `json:"description"`
}

// RepositoryView is the rich repository shape returned by GET /api/my-repos.
// Optional upstream fields are pointers so absence serializes as null.
type RepositoryView struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	FullName        string    `json:"full_name"`
	Owner           OwnerInfo `json:"owner"`
	HTMLURL         string    `json:"html_url"`
	Description     *string   `json:"description"`
	Private         bool      `json:"private"`
	StargazersCount int       `json:"stargazers_count"`
	ForksCount      int       `json:"forks_count"`
	Language        *string   `json:"language"`
	UpdatedAt       *string   `json:"updated_at"`
	DefaultBranch   *string   `json:"default_branch"`
}

// LatestRun summarizes the most recent run of a workflow.
type LatestRun struct {
	ID         int64   `json:"id"`
	Status     *string `json:"status"`
	Conclusion *string `json:"conclusion"`
	CreatedAt  *string `json:"created_at"`
	UpdatedAt  *string `json:"updated_at"`
	HTMLURL    *string `json:"html_url"`
}

// WorkflowView represents an Actions workflow with its latest run, if any.
type WorkflowView struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	State     string     `json:"state"`
	Path      string     `json:"path"`
	CreatedAt *string    `json:"created_at"`
	UpdatedAt *string    `json:"updated_at"`
	URL       string     `json:"url"`
	HTMLURL   string     `json:"html_url"`
	BadgeURL  string     `json:"badge_url"`
	LatestRun *LatestRun `json:"latest_run"`
}

// WorkflowSummary identifies the workflow a run listing belongs to.
type WorkflowSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
}

// CommitInfo carries the commit metadata attached to a run.
type CommitInfo struct {
	SHA         string  `json:"sha,omitempty"`
	Message     *string `json:"message"`
	AuthorName  *string `json:"author_name,omitempty"`
	AuthorEmail *string `json:"author_email,omitempty"`
}

// ActorInfo identifies who triggered a run. A synthetic actor derived from a
// commit author has an empty login and a search URL instead of a profile URL.
type ActorInfo struct {
	Login     string `json:"login"`
	AvatarURL string `json:"avatar_url,omitempty"`
	HTMLURL   string `json:"html_url,omitempty"`
}

// RepoRef points at the source repository of a run (fork case).
type RepoRef struct {
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url,omitempty"`
}

// RunView represents one workflow run.
type RunView struct {
	ID             int64       `json:"id"`
	RunNumber      int         `json:"run_number"`
	Event          string      `json:"event"`
	Status         *string     `json:"status"`
	Conclusion     *string     `json:"conclusion"`
	CreatedAt      *string     `json:"created_at"`
	UpdatedAt      *string     `json:"updated_at"`
	HTMLURL        *string     `json:"html_url"`
	HeadBranch     *string     `json:"head_branch"`
	HeadRepository *RepoRef    `json:"head_repository,omitempty"`
	HeadCommit     *CommitInfo `json:"head_commit"`
	Actor          *ActorInfo  `json:"actor"`
}

// RunsPage is the response body of GET /api/runs/{owner}/{repo}/{workflow_id}.
type RunsPage struct {
	Runs     []RunView       `json:"runs"`
	Workflow WorkflowSummary `json:"workflow"`
}

// SelectionEntry is one tracked repository in the selection registry.
type SelectionEntry struct {
	ID    string `json:"id"`
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// RateInfo reports the upstream API rate budget from the health probe.
type RateInfo struct {
	Limit     int    `json:"limit"`
	Remaining int    `json:"remaining"`
	Reset     string `json:"reset"`
}

// GitHubStatus is the optional "github" section of GET /health.
type GitHubStatus struct {
	Connected bool      `json:"connected"`
	Login     string    `json:"login,omitempty"`
	Rate      *RateInfo `json:"rate,omitempty"`
	CheckedAt string    `json:"checked_at"`
}
