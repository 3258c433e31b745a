package gh

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/go-github/v56/github"

	"github.com/spillinova/github-actions-dashboard/pkg/models"
)

// Each exported function here is the single normalization point for one view
// entity. Optionality rules live in these functions and nowhere else: a field
// the upstream omitted stays nil, never a placeholder.

var errMalformed = errors.New("malformed upstream record")

// NormalizeRepoSummary maps a repository into the lite shape of /api/repos.
func NormalizeRepoSummary(r *github.Repository) (models.RepoSummary, error) {
	if r == nil || r.Owner == nil || r.GetName() == "" {
		return models.RepoSummary{}, fmt.Errorf("%w: repository missing owner or name", errMalformed)
	}
	owner := r.Owner.GetLogin()
	return models.RepoSummary{
		Owner:       owner,
		Name:        r.GetName(),
		FullName:    fullName(r, owner),
		Private:     r.GetPrivate(),
		Description: r.Description,
	}, nil
}

// NormalizeRepository maps a repository into the rich shape of /api/my-repos.
func NormalizeRepository(r *github.Repository) (models.RepositoryView, error) {
	if r == nil || r.Owner == nil || r.GetName() == "" {
		return models.RepositoryView{}, fmt.Errorf("%w: repository missing owner or name", errMalformed)
	}
	owner := r.Owner.GetLogin()
	view := models.RepositoryView{
		ID:       r.GetID(),
		Name:     r.GetName(),
		FullName: fullName(r, owner),
		Owner: models.OwnerInfo{
			Login:     owner,
			AvatarURL: r.Owner.GetAvatarURL(),
			HTMLURL:   r.Owner.GetHTMLURL(),
		},
		HTMLURL:         r.GetHTMLURL(),
		Description:     r.Description,
		Private:         r.GetPrivate(),
		StargazersCount: r.GetStargazersCount(),
		ForksCount:      r.GetForksCount(),
		Language:        r.Language,
		UpdatedAt:       timeString(r.UpdatedAt),
		DefaultBranch:   r.DefaultBranch,
	}
	if view.HTMLURL == "" {
		view.HTMLURL = "https://github.com/" + view.FullName
	}
	return view, nil
}

// NormalizeWorkflow maps a workflow and its most recent run (nil when the
// workflow has never run) into a WorkflowView.
func NormalizeWorkflow(w *github.Workflow, latest *github.WorkflowRun) (models.WorkflowView, error) {
	if w == nil || w.GetID() == 0 {
		return models.WorkflowView{}, fmt.Errorf("%w: workflow missing id", errMalformed)
	}
	view := models.WorkflowView{
		ID:        w.GetID(),
		Name:      w.GetName(),
		State:     w.GetState(),
		Path:      w.GetPath(),
		CreatedAt: timeString(w.CreatedAt),
		UpdatedAt: timeString(w.UpdatedAt),
		URL:       w.GetURL(),
		HTMLURL:   w.GetHTMLURL(),
		BadgeURL:  w.GetBadgeURL(),
	}
	if latest != nil {
		view.LatestRun = &models.LatestRun{
			ID:         latest.GetID(),
			Status:     latest.Status,
			Conclusion: latest.Conclusion,
			CreatedAt:  timeString(latest.CreatedAt),
			UpdatedAt:  timeString(latest.UpdatedAt),
			HTMLURL:    latest.HTMLURL,
		}
	}
	return view, nil
}

// NormalizeRun maps a workflow run into a RunView using only the fields the
// upstream response carried. Fallback chains that need extra upstream calls
// (commit by SHA) are composed by the caller on top of this.
func NormalizeRun(run *github.WorkflowRun) (models.RunView, error) {
	if run == nil || run.GetID() == 0 {
		return models.RunView{}, fmt.Errorf("%w: run missing id", errMalformed)
	}
	view := models.RunView{
		ID:         run.GetID(),
		RunNumber:  run.GetRunNumber(),
		Event:      run.GetEvent(),
		Status:     run.Status,
		Conclusion: run.Conclusion,
		CreatedAt:  timeString(run.CreatedAt),
		UpdatedAt:  timeString(run.UpdatedAt),
		HTMLURL:    run.HTMLURL,
		HeadBranch: run.HeadBranch,
	}
	if hr := run.HeadRepository; hr != nil && hr.GetFullName() != "" {
		view.HeadRepository = &models.RepoRef{
			FullName: hr.GetFullName(),
			HTMLURL:  hr.GetHTMLURL(),
		}
	}
	if hc := run.HeadCommit; hc != nil {
		commit := &models.CommitInfo{
			SHA:     hc.GetID(),
			Message: hc.Message,
		}
		if a := hc.Author; a != nil {
			commit.AuthorName = a.Name
			commit.AuthorEmail = a.Email
		}
		view.HeadCommit = commit
	}
	if actor := runActor(run); actor != nil {
		view.Actor = actor
	}
	return view, nil
}

// runActor picks the run's actor, falling back to the triggering actor.
func runActor(run *github.WorkflowRun) *models.ActorInfo {
	for _, u := range []*github.User{run.Actor, run.TriggeringActor} {
		if u != nil && u.GetLogin() != "" {
			return &models.ActorInfo{
				Login:     u.GetLogin(),
				AvatarURL: u.GetAvatarURL(),
				HTMLURL:   u.GetHTMLURL(),
			}
		}
	}
	return nil
}

// NormalizeCommit maps a commit fetched by SHA into CommitInfo for the
// commit-message fallback chain.
func NormalizeCommit(rc *github.RepositoryCommit) *models.CommitInfo {
	if rc == nil || rc.Commit == nil {
		return nil
	}
	info := &models.CommitInfo{
		SHA:     rc.GetSHA(),
		Message: rc.Commit.Message,
	}
	if a := rc.Commit.Author; a != nil {
		info.AuthorName = a.Name
		info.AuthorEmail = a.Email
	}
	return info
}

// SyntheticActor derives an actor from a commit author name. It carries no
// login and links to a user search instead of a canonical profile.
func SyntheticActor(name string) *models.ActorInfo {
	if name == "" {
		return nil
	}
	return &models.ActorInfo{
		Login:   "",
		HTMLURL: "https://github.com/search?q=" + url.QueryEscape(name) + "&type=users",
	}
}

// fullName prefers the upstream full_name and falls back to deriving it,
// since list payloads occasionally omit the field.
func fullName(r *github.Repository, owner string) string {
	if fn := r.GetFullName(); fn != "" {
		return fn
	}
	return owner + "/" + r.GetName()
}

func timeString(ts *github.Timestamp) *string {
	if ts == nil || ts.Time.IsZero() {
		return nil
	}
	s := ts.Time.UTC().Format(time.RFC3339)
	return &s
}
