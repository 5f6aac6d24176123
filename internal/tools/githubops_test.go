package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/builder6/builder6/internal/githubsvc"
	"github.com/builder6/builder6/pkg/errkind"
)

// fakeGitHub implements githubAPI in memory.
type fakeGitHub struct {
	repos   map[string]*githubsvc.Repository
	failErr error
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{repos: map[string]*githubsvc.Repository{}}
}

func (f *fakeGitHub) CreateRepository(ctx context.Context, name, description string, private bool) (*githubsvc.Repository, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	repo := &githubsvc.Repository{
		Owner:    "alice",
		Name:     name,
		FullName: "alice/" + name,
		Private:  private,
	}
	f.repos[repo.FullName] = repo
	return repo, nil
}

func (f *fakeGitHub) GetRepository(ctx context.Context, owner, name string) (*githubsvc.Repository, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	return f.repos[owner+"/"+name], nil
}

func (f *fakeGitHub) ListRepositories(ctx context.Context, limit int) ([]*githubsvc.Repository, error) {
	var out []*githubsvc.Repository
	for _, r := range f.repos {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeGitHub) CreatePullRequest(ctx context.Context, owner, repo, title, body, head, base string) (*githubsvc.PullRequest, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	return &githubsvc.PullRequest{Number: 1, Title: title, Head: head, Base: base, State: "open"}, nil
}

func (f *fakeGitHub) GetPullRequest(ctx context.Context, owner, repo string, number int) (*githubsvc.PullRequest, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	return &githubsvc.PullRequest{Number: number, State: "open"}, nil
}

func (f *fakeGitHub) UpdatePullRequest(ctx context.Context, owner, repo string, number int, title, body string) (*githubsvc.PullRequest, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	return &githubsvc.PullRequest{Number: number, Title: title, Body: body, State: "open"}, nil
}

func (f *fakeGitHub) ClosePullRequest(ctx context.Context, owner, repo string, number int) (*githubsvc.PullRequest, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	return &githubsvc.PullRequest{Number: number, State: "closed"}, nil
}

func (f *fakeGitHub) CreateIssue(ctx context.Context, owner, repo, title, body string, labels []string) (*githubsvc.Issue, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	return &githubsvc.Issue{Number: 1, Title: title, Labels: labels, State: "open"}, nil
}

func (f *fakeGitHub) GetIssue(ctx context.Context, owner, repo string, number int) (*githubsvc.Issue, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	return &githubsvc.Issue{Number: number, State: "open"}, nil
}

func (f *fakeGitHub) UpdateIssue(ctx context.Context, owner, repo string, number int, title, body string) (*githubsvc.Issue, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	return &githubsvc.Issue{Number: number, Title: title, Body: body, State: "open"}, nil
}

func (f *fakeGitHub) CloseIssue(ctx context.Context, owner, repo string, number int) (*githubsvc.Issue, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	return &githubsvc.Issue{Number: number, State: "closed"}, nil
}

func githubRegistry(api githubAPI) *Registry {
	r := NewRegistry()
	for _, tool := range GitHubTools(api, nil) {
		r.Register(tool)
	}
	return r
}

func TestCreateRepositoryTool(t *testing.T) {
	api := newFakeGitHub()
	r := githubRegistry(api)

	result, err := r.Execute(context.Background(), "githubService.createRepository",
		json.RawMessage(`{"name":"demo","private":true}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var repo githubsvc.Repository
	if err := json.Unmarshal([]byte(result.Content), &repo); err != nil {
		t.Fatalf("result is not a repository: %v", err)
	}
	if repo.FullName != "alice/demo" || !repo.Private {
		t.Fatalf("unexpected repository: %+v", repo)
	}
}

func TestGetRepositoryToolMissing(t *testing.T) {
	r := githubRegistry(newFakeGitHub())

	result, err := r.Execute(context.Background(), "githubService.getRepository",
		json.RawMessage(`{"owner":"alice","name":"missing"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.IsError || !strings.Contains(result.Content, "not found") {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestCreatePullRequestToolValidation(t *testing.T) {
	r := githubRegistry(newFakeGitHub())

	// head and base are required.
	_, err := r.Execute(context.Background(), "githubService.createPullRequest",
		json.RawMessage(`{"owner":"alice","repo":"demo","title":"x"}`))
	if !errkind.Is(err, errkind.ToolArgumentInvalid) {
		t.Fatalf("expected ToolArgumentInvalid, got %v", err)
	}
}

func TestCreateIssueToolAPIFailure(t *testing.T) {
	api := newFakeGitHub()
	api.failErr = errors.New("rate limited")
	r := githubRegistry(api)

	result, err := r.Execute(context.Background(), "githubService.createIssue",
		json.RawMessage(`{"owner":"alice","repo":"demo","title":"Bug"}`))
	if err != nil {
		t.Fatalf("API failure must surface as a tool error result, got %v", err)
	}
	if !result.IsError || !strings.Contains(result.Content, "rate limited") {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestClosePullRequestTool(t *testing.T) {
	r := githubRegistry(newFakeGitHub())

	result, err := r.Execute(context.Background(), "githubService.closePullRequest",
		json.RawMessage(`{"owner":"alice","repo":"demo","number":7}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	var pr githubsvc.PullRequest
	if err := json.Unmarshal([]byte(result.Content), &pr); err != nil {
		t.Fatalf("result is not a pull request: %v", err)
	}
	if pr.Number != 7 || pr.State != "closed" {
		t.Fatalf("unexpected pull request: %+v", pr)
	}
}

func TestConfigureGitTool(t *testing.T) {
	var configured string
	provision := func(ctx context.Context, containerID string) error {
		configured = containerID
		return nil
	}

	r := NewRegistry()
	for _, tool := range GitHubTools(newFakeGitHub(), provision) {
		r.Register(tool)
	}

	result, err := r.Execute(context.Background(), "githubService.configureGitClientInContainer",
		json.RawMessage(`{"container_id":"builder6-container-1"}`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %q", result.Content)
	}
	if configured != "builder6-container-1" {
		t.Fatalf("configured = %q", configured)
	}
}
