package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/builder6/builder6/internal/githubsvc"
)

// githubAPI is the GitHub service surface the github tools need.
// *githubsvc.Service satisfies it; tests substitute a fake.
type githubAPI interface {
	CreateRepository(ctx context.Context, name, description string, private bool) (*githubsvc.Repository, error)
	GetRepository(ctx context.Context, owner, name string) (*githubsvc.Repository, error)
	ListRepositories(ctx context.Context, limit int) ([]*githubsvc.Repository, error)
	CreatePullRequest(ctx context.Context, owner, repo, title, body, head, base string) (*githubsvc.PullRequest, error)
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*githubsvc.PullRequest, error)
	UpdatePullRequest(ctx context.Context, owner, repo string, number int, title, body string) (*githubsvc.PullRequest, error)
	ClosePullRequest(ctx context.Context, owner, repo string, number int) (*githubsvc.PullRequest, error)
	CreateIssue(ctx context.Context, owner, repo, title, body string, labels []string) (*githubsvc.Issue, error)
	GetIssue(ctx context.Context, owner, repo string, number int) (*githubsvc.Issue, error)
	UpdateIssue(ctx context.Context, owner, repo string, number int, title, body string) (*githubsvc.Issue, error)
	CloseIssue(ctx context.Context, owner, repo string, number int) (*githubsvc.Issue, error)
}

// GitProvisioner installs git identity and credentials inside a container.
// githubsvc.ConfigureGitClientInContainer is the production implementation,
// bound to the supervisor and credentials by the caller.
type GitProvisioner func(ctx context.Context, containerID string) error

// GitHubTools returns the GitHub tool set backed by the service. provisionGit
// may be nil when no container runtime is available.
func GitHubTools(api githubAPI, provisionGit GitProvisioner) []Tool {
	tools := []Tool{
		&createRepoTool{api: api},
		&getRepoTool{api: api},
		&listReposTool{api: api},
		&createPullRequestTool{api: api},
		&getPullRequestTool{api: api},
		&updatePullRequestTool{api: api},
		&closePullRequestTool{api: api},
		&createIssueTool{api: api},
		&getIssueTool{api: api},
		&updateIssueTool{api: api},
		&closeIssueTool{api: api},
	}
	if provisionGit != nil {
		tools = append(tools, &configureGitTool{provision: provisionGit})
	}
	return tools
}

type createRepoTool struct {
	api githubAPI
}

func (t *createRepoTool) Name() string { return "githubService.createRepository" }

func (t *createRepoTool) Description() string {
	return "Create a GitHub repository for the authenticated user."
}

func (t *createRepoTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{
				"type":        "string",
				"description": "Repository name.",
			},
			"description": map[string]any{
				"type":        "string",
				"description": "Short repository description (optional).",
			},
			"private": map[string]any{
				"type":        "boolean",
				"description": "Create the repository as private (default: false).",
			},
		},
		"required": []string{"name"},
	})
}

func (t *createRepoTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Private     bool   `json:"private"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	repo, err := t.api.CreateRepository(ctx, input.Name, input.Description, input.Private)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	payload, _ := json.Marshal(repo)
	return &Result{Content: string(payload)}, nil
}

type getRepoTool struct {
	api githubAPI
}

func (t *getRepoTool) Name() string { return "githubService.getRepository" }

func (t *getRepoTool) Description() string {
	return "Fetch metadata for a GitHub repository by owner and name."
}

func (t *getRepoTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"owner": map[string]any{"type": "string", "description": "Repository owner."},
			"name":  map[string]any{"type": "string", "description": "Repository name."},
		},
		"required": []string{"owner", "name"},
	})
}

func (t *getRepoTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		Owner string `json:"owner"`
		Name  string `json:"name"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	repo, err := t.api.GetRepository(ctx, input.Owner, input.Name)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	if repo == nil {
		return errorResult(fmt.Sprintf("repository %s/%s not found", input.Owner, input.Name)), nil
	}
	payload, _ := json.Marshal(repo)
	return &Result{Content: string(payload)}, nil
}

type listReposTool struct {
	api githubAPI
}

func (t *listReposTool) Name() string { return "githubService.listRepositories" }

func (t *listReposTool) Description() string {
	return "List the authenticated user's GitHub repositories, most recently updated first."
}

func (t *listReposTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum number of repositories to return (default: 30).",
				"minimum":     1,
			},
		},
	})
}

func (t *listReposTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		Limit int `json:"limit"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	repos, err := t.api.ListRepositories(ctx, input.Limit)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	payload, err := json.MarshalIndent(repos, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("encode repositories: %v", err)), nil
	}
	return &Result{Content: string(payload)}, nil
}

type createPullRequestTool struct {
	api githubAPI
}

func (t *createPullRequestTool) Name() string { return "githubService.createPullRequest" }

func (t *createPullRequestTool) Description() string {
	return "Open a pull request from a head branch into a base branch."
}

func (t *createPullRequestTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"owner": map[string]any{"type": "string", "description": "Repository owner."},
			"repo":  map[string]any{"type": "string", "description": "Repository name."},
			"title": map[string]any{"type": "string", "description": "Pull request title."},
			"body":  map[string]any{"type": "string", "description": "Pull request description (optional)."},
			"head":  map[string]any{"type": "string", "description": "Branch containing the changes."},
			"base":  map[string]any{"type": "string", "description": "Branch to merge into."},
		},
		"required": []string{"owner", "repo", "title", "head", "base"},
	})
}

func (t *createPullRequestTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		Owner string `json:"owner"`
		Repo  string `json:"repo"`
		Title string `json:"title"`
		Body  string `json:"body"`
		Head  string `json:"head"`
		Base  string `json:"base"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	pr, err := t.api.CreatePullRequest(ctx, input.Owner, input.Repo, input.Title, input.Body, input.Head, input.Base)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	payload, _ := json.Marshal(pr)
	return &Result{Content: string(payload)}, nil
}

type createIssueTool struct {
	api githubAPI
}

func (t *createIssueTool) Name() string { return "githubService.createIssue" }

func (t *createIssueTool) Description() string {
	return "Open an issue in a GitHub repository."
}

func (t *createIssueTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"owner": map[string]any{"type": "string", "description": "Repository owner."},
			"repo":  map[string]any{"type": "string", "description": "Repository name."},
			"title": map[string]any{"type": "string", "description": "Issue title."},
			"body":  map[string]any{"type": "string", "description": "Issue body (optional)."},
			"labels": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Labels to apply (optional).",
			},
		},
		"required": []string{"owner", "repo", "title"},
	})
}

func (t *createIssueTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		Owner  string   `json:"owner"`
		Repo   string   `json:"repo"`
		Title  string   `json:"title"`
		Body   string   `json:"body"`
		Labels []string `json:"labels"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	issue, err := t.api.CreateIssue(ctx, input.Owner, input.Repo, input.Title, input.Body, input.Labels)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	payload, _ := json.Marshal(issue)
	return &Result{Content: string(payload)}, nil
}

// prNumberSchema is shared by the pull-request and issue tools that address a
// single item by number.
func prNumberSchema(extra map[string]any) json.RawMessage {
	props := map[string]any{
		"owner":  map[string]any{"type": "string", "description": "Repository owner."},
		"repo":   map[string]any{"type": "string", "description": "Repository name."},
		"number": map[string]any{"type": "integer", "description": "Item number.", "minimum": 1},
	}
	for k, v := range extra {
		props[k] = v
	}
	return mustSchema(map[string]any{
		"type":       "object",
		"properties": props,
		"required":   []string{"owner", "repo", "number"},
	})
}

type numberedInput struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

type getPullRequestTool struct {
	api githubAPI
}

func (t *getPullRequestTool) Name() string { return "githubService.getPullRequest" }

func (t *getPullRequestTool) Description() string {
	return "Fetch a pull request by number."
}

func (t *getPullRequestTool) Schema() json.RawMessage { return prNumberSchema(nil) }

func (t *getPullRequestTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input numberedInput
	if err := json.Unmarshal(params, &input); err != nil {
		return errorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	pr, err := t.api.GetPullRequest(ctx, input.Owner, input.Repo, input.Number)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	payload, _ := json.Marshal(pr)
	return &Result{Content: string(payload)}, nil
}

type updatePullRequestTool struct {
	api githubAPI
}

func (t *updatePullRequestTool) Name() string { return "githubService.updatePullRequest" }

func (t *updatePullRequestTool) Description() string {
	return "Update the title or body of an open pull request."
}

func (t *updatePullRequestTool) Schema() json.RawMessage {
	return prNumberSchema(map[string]any{
		"title": map[string]any{"type": "string", "description": "New title (optional)."},
		"body":  map[string]any{"type": "string", "description": "New body (optional)."},
	})
}

func (t *updatePullRequestTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input numberedInput
	if err := json.Unmarshal(params, &input); err != nil {
		return errorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	pr, err := t.api.UpdatePullRequest(ctx, input.Owner, input.Repo, input.Number, input.Title, input.Body)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	payload, _ := json.Marshal(pr)
	return &Result{Content: string(payload)}, nil
}

type closePullRequestTool struct {
	api githubAPI
}

func (t *closePullRequestTool) Name() string { return "githubService.closePullRequest" }

func (t *closePullRequestTool) Description() string {
	return "Close a pull request without merging it."
}

func (t *closePullRequestTool) Schema() json.RawMessage { return prNumberSchema(nil) }

func (t *closePullRequestTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input numberedInput
	if err := json.Unmarshal(params, &input); err != nil {
		return errorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	pr, err := t.api.ClosePullRequest(ctx, input.Owner, input.Repo, input.Number)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	payload, _ := json.Marshal(pr)
	return &Result{Content: string(payload)}, nil
}

type getIssueTool struct {
	api githubAPI
}

func (t *getIssueTool) Name() string { return "githubService.getIssue" }

func (t *getIssueTool) Description() string {
	return "Fetch an issue by number."
}

func (t *getIssueTool) Schema() json.RawMessage { return prNumberSchema(nil) }

func (t *getIssueTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input numberedInput
	if err := json.Unmarshal(params, &input); err != nil {
		return errorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	issue, err := t.api.GetIssue(ctx, input.Owner, input.Repo, input.Number)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	payload, _ := json.Marshal(issue)
	return &Result{Content: string(payload)}, nil
}

type updateIssueTool struct {
	api githubAPI
}

func (t *updateIssueTool) Name() string { return "githubService.updateIssue" }

func (t *updateIssueTool) Description() string {
	return "Update the title or body of an open issue."
}

func (t *updateIssueTool) Schema() json.RawMessage {
	return prNumberSchema(map[string]any{
		"title": map[string]any{"type": "string", "description": "New title (optional)."},
		"body":  map[string]any{"type": "string", "description": "New body (optional)."},
	})
}

func (t *updateIssueTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input numberedInput
	if err := json.Unmarshal(params, &input); err != nil {
		return errorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	issue, err := t.api.UpdateIssue(ctx, input.Owner, input.Repo, input.Number, input.Title, input.Body)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	payload, _ := json.Marshal(issue)
	return &Result{Content: string(payload)}, nil
}

type closeIssueTool struct {
	api githubAPI
}

func (t *closeIssueTool) Name() string { return "githubService.closeIssue" }

func (t *closeIssueTool) Description() string {
	return "Close an issue."
}

func (t *closeIssueTool) Schema() json.RawMessage { return prNumberSchema(nil) }

func (t *closeIssueTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input numberedInput
	if err := json.Unmarshal(params, &input); err != nil {
		return errorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	issue, err := t.api.CloseIssue(ctx, input.Owner, input.Repo, input.Number)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	payload, _ := json.Marshal(issue)
	return &Result{Content: string(payload)}, nil
}

type configureGitTool struct {
	provision GitProvisioner
}

func (t *configureGitTool) Name() string { return "githubService.configureGitClientInContainer" }

func (t *configureGitTool) Description() string {
	return "Install git identity and stored GitHub credentials inside a container so scripts can clone and push."
}

func (t *configureGitTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"container_id": map[string]any{
				"type":        "string",
				"description": "Id of the container to configure.",
			},
		},
		"required": []string{"container_id"},
	})
}

func (t *configureGitTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		ContainerID string `json:"container_id"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if err := t.provision(ctx, input.ContainerID); err != nil {
		return errorResult(err.Error()), nil
	}
	return &Result{Content: fmt.Sprintf("git client configured in %s", input.ContainerID)}, nil
}
