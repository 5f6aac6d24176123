// Package githubsvc wraps the GitHub REST API for repository, pull-request,
// and issue management, and provisions git credentials inside containers.
package githubsvc

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/builder6/builder6/internal/sandbox"
)

// Service talks to GitHub on behalf of a single authenticated user.
type Service struct {
	client *github.Client
	logger *slog.Logger
}

// Option customises the service.
type Option func(*Service)

// WithBaseURL points the client at a different API root, typically a test
// server or a GitHub Enterprise instance.
func WithBaseURL(baseURL string) Option {
	return func(s *Service) {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := s.client.BaseURL.Parse(baseURL)
		if err == nil {
			s.client.BaseURL = u
		}
	}
}

// New creates a GitHub service authenticated with a personal access token.
func New(token string, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	var httpClient *http.Client
	if token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), src)
	}
	s := &Service{
		client: github.NewClient(httpClient),
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repository is the subset of repository metadata callers need.
type Repository struct {
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	Description   string `json:"description"`
	Private       bool   `json:"private"`
	CloneURL      string `json:"clone_url"`
	HTMLURL       string `json:"html_url"`
	DefaultBranch string `json:"default_branch"`
}

func repositoryFrom(r *github.Repository) *Repository {
	if r == nil {
		return nil
	}
	repo := &Repository{
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		Description:   r.GetDescription(),
		Private:       r.GetPrivate(),
		CloneURL:      r.GetCloneURL(),
		HTMLURL:       r.GetHTMLURL(),
		DefaultBranch: r.GetDefaultBranch(),
	}
	if owner := r.GetOwner(); owner != nil {
		repo.Owner = owner.GetLogin()
	}
	return repo
}

// CreateRepository creates a repository for the authenticated user.
func (s *Service) CreateRepository(ctx context.Context, name, description string, private bool) (*Repository, error) {
	repo, _, err := s.client.Repositories.Create(ctx, "", &github.Repository{
		Name:        github.Ptr(name),
		Description: github.Ptr(description),
		Private:     github.Ptr(private),
		AutoInit:    github.Ptr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("create repository %s: %w", name, err)
	}
	s.logger.Info("repository created", "repo", repo.GetFullName())
	return repositoryFrom(repo), nil
}

// GetRepository fetches a repository by owner and name. A missing repository
// returns (nil, nil) so callers can distinguish absence from API failure.
func (s *Service) GetRepository(ctx context.Context, owner, name string) (*Repository, error) {
	repo, resp, err := s.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("get repository %s/%s: %w", owner, name, err)
	}
	return repositoryFrom(repo), nil
}

// ListRepositories lists repositories visible to the authenticated user,
// most recently updated first.
func (s *Service) ListRepositories(ctx context.Context, limit int) ([]*Repository, error) {
	if limit <= 0 {
		limit = 30
	}
	repos, _, err := s.client.Repositories.ListByAuthenticatedUser(ctx, &github.RepositoryListByAuthenticatedUserOptions{
		Sort:        "updated",
		ListOptions: github.ListOptions{PerPage: limit},
	})
	if err != nil {
		return nil, fmt.Errorf("list repositories: %w", err)
	}
	out := make([]*Repository, 0, len(repos))
	for _, r := range repos {
		out = append(out, repositoryFrom(r))
	}
	return out, nil
}

// PullRequest is the subset of pull-request metadata callers need.
type PullRequest struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	State   string `json:"state"`
	Head    string `json:"head"`
	Base    string `json:"base"`
	HTMLURL string `json:"html_url"`
}

func pullRequestFrom(pr *github.PullRequest) *PullRequest {
	if pr == nil {
		return nil
	}
	out := &PullRequest{
		Number:  pr.GetNumber(),
		Title:   pr.GetTitle(),
		Body:    pr.GetBody(),
		State:   pr.GetState(),
		HTMLURL: pr.GetHTMLURL(),
	}
	if pr.Head != nil {
		out.Head = pr.Head.GetRef()
	}
	if pr.Base != nil {
		out.Base = pr.Base.GetRef()
	}
	return out
}

// CreatePullRequest opens a pull request from head into base.
func (s *Service) CreatePullRequest(ctx context.Context, owner, repo, title, body, head, base string) (*PullRequest, error) {
	pr, _, err := s.client.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title: github.Ptr(title),
		Body:  github.Ptr(body),
		Head:  github.Ptr(head),
		Base:  github.Ptr(base),
	})
	if err != nil {
		return nil, fmt.Errorf("create pull request in %s/%s: %w", owner, repo, err)
	}
	s.logger.Info("pull request created", "repo", owner+"/"+repo, "number", pr.GetNumber())
	return pullRequestFrom(pr), nil
}

// GetPullRequest fetches a pull request by number.
func (s *Service) GetPullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	pr, _, err := s.client.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("get pull request %s/%s#%d: %w", owner, repo, number, err)
	}
	return pullRequestFrom(pr), nil
}

// UpdatePullRequest edits the title and body of a pull request. Empty fields
// are left unchanged.
func (s *Service) UpdatePullRequest(ctx context.Context, owner, repo string, number int, title, body string) (*PullRequest, error) {
	patch := &github.PullRequest{}
	if title != "" {
		patch.Title = github.Ptr(title)
	}
	if body != "" {
		patch.Body = github.Ptr(body)
	}
	pr, _, err := s.client.PullRequests.Edit(ctx, owner, repo, number, patch)
	if err != nil {
		return nil, fmt.Errorf("update pull request %s/%s#%d: %w", owner, repo, number, err)
	}
	return pullRequestFrom(pr), nil
}

// ClosePullRequest closes a pull request without merging it.
func (s *Service) ClosePullRequest(ctx context.Context, owner, repo string, number int) (*PullRequest, error) {
	pr, _, err := s.client.PullRequests.Edit(ctx, owner, repo, number, &github.PullRequest{
		State: github.Ptr("closed"),
	})
	if err != nil {
		return nil, fmt.Errorf("close pull request %s/%s#%d: %w", owner, repo, number, err)
	}
	return pullRequestFrom(pr), nil
}

// Issue is the subset of issue metadata callers need.
type Issue struct {
	Number  int      `json:"number"`
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	State   string   `json:"state"`
	Labels  []string `json:"labels"`
	HTMLURL string   `json:"html_url"`
}

func issueFrom(issue *github.Issue) *Issue {
	if issue == nil {
		return nil
	}
	out := &Issue{
		Number:  issue.GetNumber(),
		Title:   issue.GetTitle(),
		Body:    issue.GetBody(),
		State:   issue.GetState(),
		HTMLURL: issue.GetHTMLURL(),
	}
	for _, label := range issue.Labels {
		out.Labels = append(out.Labels, label.GetName())
	}
	return out
}

// CreateIssue opens an issue.
func (s *Service) CreateIssue(ctx context.Context, owner, repo, title, body string, labels []string) (*Issue, error) {
	req := &github.IssueRequest{
		Title: github.Ptr(title),
		Body:  github.Ptr(body),
	}
	if len(labels) > 0 {
		req.Labels = &labels
	}
	issue, _, err := s.client.Issues.Create(ctx, owner, repo, req)
	if err != nil {
		return nil, fmt.Errorf("create issue in %s/%s: %w", owner, repo, err)
	}
	s.logger.Info("issue created", "repo", owner+"/"+repo, "number", issue.GetNumber())
	return issueFrom(issue), nil
}

// GetIssue fetches an issue by number.
func (s *Service) GetIssue(ctx context.Context, owner, repo string, number int) (*Issue, error) {
	issue, _, err := s.client.Issues.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("get issue %s/%s#%d: %w", owner, repo, number, err)
	}
	return issueFrom(issue), nil
}

// UpdateIssue edits the title and body of an issue. Empty fields are left
// unchanged.
func (s *Service) UpdateIssue(ctx context.Context, owner, repo string, number int, title, body string) (*Issue, error) {
	patch := &github.IssueRequest{}
	if title != "" {
		patch.Title = github.Ptr(title)
	}
	if body != "" {
		patch.Body = github.Ptr(body)
	}
	issue, _, err := s.client.Issues.Edit(ctx, owner, repo, number, patch)
	if err != nil {
		return nil, fmt.Errorf("update issue %s/%s#%d: %w", owner, repo, number, err)
	}
	return issueFrom(issue), nil
}

// CloseIssue closes an issue.
func (s *Service) CloseIssue(ctx context.Context, owner, repo string, number int) (*Issue, error) {
	issue, _, err := s.client.Issues.Edit(ctx, owner, repo, number, &github.IssueRequest{
		State: github.Ptr("closed"),
	})
	if err != nil {
		return nil, fmt.Errorf("close issue %s/%s#%d: %w", owner, repo, number, err)
	}
	return issueFrom(issue), nil
}

// ConfigureGitClientInContainer writes a git identity and a stored credential
// into a supervised container so scripts can clone and push over HTTPS.
func ConfigureGitClientInContainer(ctx context.Context, supervisor *sandbox.Supervisor, containerID, username, token string) error {
	script := strings.Join([]string{
		fmt.Sprintf("git config --global user.name %q", username),
		fmt.Sprintf("git config --global user.email %q", username+"@users.noreply.github.com"),
		"git config --global credential.helper store",
		fmt.Sprintf("printf 'https://%s:%s@github.com\\n' > ~/.git-credentials", username, token),
		"chmod 600 ~/.git-credentials",
	}, " && ")

	if _, err := supervisor.ExecuteScript(ctx, sandbox.ExecOptions{
		ContainerID: containerID,
		Script:      script,
	}); err != nil {
		return fmt.Errorf("configure git client in %s: %w", containerID, err)
	}
	return nil
}
