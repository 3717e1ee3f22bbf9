// Package githubclient is a thin, read-only client against an external
// code-hosting service, backing the `/api/github/...` routes.
package githubclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/google/go-github/v33/github"
	"golang.org/x/oauth2"

	"github.com/standardbeagle/cratedocs/internal/cerrors"
	"github.com/standardbeagle/cratedocs/internal/cratetypes"
)

// Repository identifies an owner/repo pair on the external service.
type Repository struct {
	Owner string
	Repo  string
}

// ParseRepository splits an "owner/repo" path, trimming surrounding slashes.
func ParseRepository(path string) (Repository, error) {
	path = strings.Trim(path, "/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Repository{}, cerrors.BadRequest("githubclient.ParseRepository", fmt.Errorf("expected \"owner/repo\", got %q", path))
	}
	return Repository{Owner: parts[0], Repo: parts[1]}, nil
}

// Client wraps a go-github client authenticated with a personal access
// token over oauth2.
type Client struct {
	gh *github.Client
}

// New builds a Client from an access token. An empty token yields an
// unauthenticated client, subject to the external service's lower
// unauthenticated rate limit.
func New(ctx context.Context, token string) *Client {
	var httpClient *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(ctx, ts)
	}
	return &Client{gh: github.NewClient(httpClient)}
}

// GetFile fetches a single file's raw content from a repository path. A
// missing path is reported as NotFound, a directory as BadRequest.
func (c *Client) GetFile(ctx context.Context, repo Repository, path string) ([]byte, error) {
	file, dir, _, err := c.gh.Repositories.GetContents(ctx, repo.Owner, repo.Repo, path, nil)
	if err != nil {
		if isNotFound(err) {
			return nil, cerrors.NotFound("githubclient.GetFile", err)
		}
		return nil, cerrors.Upstream("githubclient.GetFile", err)
	}
	if file == nil || dir != nil {
		return nil, cerrors.BadRequest("githubclient.GetFile", fmt.Errorf("path is not a regular file: %s", path))
	}

	content, err := file.GetContent()
	if err == nil {
		return []byte(content), nil
	}

	// GetContent only decodes small base64-inline payloads; larger files
	// come back with a download URL instead.
	downloadURL := file.GetDownloadURL()
	if downloadURL == "" {
		return nil, cerrors.Upstream("githubclient.GetFile", fmt.Errorf("no inline content or download url for %s", path))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, cerrors.Internal("githubclient.GetFile: build request", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, cerrors.Upstream("githubclient.GetFile: fetch blob", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, cerrors.Upstream("githubclient.GetFile", fmt.Errorf("blob fetch status %d", resp.StatusCode))
	}
	return io.ReadAll(resp.Body)
}

// ReadDirectory lists a repository directory's immediate file and
// subdirectory names.
func (c *Client) ReadDirectory(ctx context.Context, repo Repository, path string) (cratetypes.DirectoryListing, error) {
	file, dir, _, err := c.gh.Repositories.GetContents(ctx, repo.Owner, repo.Repo, path, nil)
	if err != nil {
		if isNotFound(err) {
			return cratetypes.DirectoryListing{}, cerrors.NotFound("githubclient.ReadDirectory", err)
		}
		return cratetypes.DirectoryListing{}, cerrors.Upstream("githubclient.ReadDirectory", err)
	}
	if file != nil {
		return cratetypes.DirectoryListing{}, cerrors.BadRequest("githubclient.ReadDirectory", fmt.Errorf("path is not a directory: %s", path))
	}

	var listing cratetypes.DirectoryListing
	for _, item := range dir {
		switch item.GetType() {
		case "file":
			listing.Files = append(listing.Files, item.GetName())
		case "dir":
			listing.Subdirectories = append(listing.Subdirectories, item.GetName())
		}
	}
	sort.Strings(listing.Files)
	sort.Strings(listing.Subdirectories)
	return listing, nil
}

// Issue is the trimmed projection of an external-service issue returned to
// API callers.
type Issue struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	State  string `json:"state"`
	Author string `json:"author"`
}

// SearchIssues lists a repository's issues, optionally filtered by state
// ("open", "closed", "all"). Pull requests are excluded from the results.
func (c *Client) SearchIssues(ctx context.Context, repo Repository, state string) ([]Issue, error) {
	if state == "" {
		state = "open"
	}
	opts := &github.IssueListByRepoOptions{State: state}

	var out []Issue
	for {
		issues, resp, err := c.gh.Issues.ListByRepo(ctx, repo.Owner, repo.Repo, opts)
		if err != nil {
			return nil, cerrors.Upstream("githubclient.SearchIssues", err)
		}
		for _, iss := range issues {
			if iss.IsPullRequest() {
				continue
			}
			out = append(out, Issue{
				Number: iss.GetNumber(),
				Title:  iss.GetTitle(),
				State:  iss.GetState(),
				Author: iss.GetUser().GetLogin(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	if out == nil {
		out = []Issue{}
	}
	return out, nil
}

// TimelineEvent is the trimmed projection of one issue timeline entry.
type TimelineEvent struct {
	Event string `json:"event"`
	Actor string `json:"actor"`
}

// IssueTimeline lists the timeline events for a single issue.
func (c *Client) IssueTimeline(ctx context.Context, repo Repository, number int) ([]TimelineEvent, error) {
	var out []TimelineEvent
	opts := &github.ListOptions{}
	for {
		events, resp, err := c.gh.Issues.ListIssueTimeline(ctx, repo.Owner, repo.Repo, number, opts)
		if err != nil {
			if isNotFound(err) {
				return nil, cerrors.NotFound("githubclient.IssueTimeline", err)
			}
			return nil, cerrors.Upstream("githubclient.IssueTimeline", err)
		}
		for _, ev := range events {
			out = append(out, TimelineEvent{
				Event: ev.GetEvent(),
				Actor: ev.GetActor().GetLogin(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	if out == nil {
		out = []TimelineEvent{}
	}
	return out, nil
}

func isNotFound(err error) bool {
	if ghErr, ok := err.(*github.ErrorResponse); ok {
		return ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
	}
	return false
}
