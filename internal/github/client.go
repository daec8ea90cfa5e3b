package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
)

// NewClient creates a new GitHub client.
func NewClient(token, owner, repo string) *Client {
	return &Client{
		Token:      token,
		Owner:      owner,
		Repo:       repo,
		BaseURL:    DefaultAPIEndpoint,
		GraphQLURL: DefaultGraphQLEndpoint,
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithHTTPClient returns a copy of the client using a custom HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	clone := *c
	clone.HTTPClient = httpClient
	return &clone
}

// WithBaseURL returns a copy of the client with custom endpoints
// (for testing or GitHub Enterprise). GraphQL moves to baseURL/graphql.
func (c *Client) WithBaseURL(baseURL string) *Client {
	clone := *c
	clone.BaseURL = baseURL
	clone.GraphQLURL = baseURL + "/graphql"
	return &clone
}

// repoPath returns the "owner/repo" path segment.
func (c *Client) repoPath() string {
	return c.Owner + "/" + c.Repo
}

// buildURL constructs a full API URL.
func (c *Client) buildURL(path string, params map[string]string) string {
	u := c.BaseURL + path

	if len(params) > 0 {
		values := url.Values{}
		for k, v := range params {
			values.Set(k, v)
		}
		u += "?" + values.Encode()
	}

	return u
}

// doRequest performs a single authenticated HTTP request. It does not
// retry: rate-limit and server errors come back as classified APIErrors
// and the shared retry wrapper decides what to do with them.
func (c *Client) doRequest(ctx context.Context, method, urlStr string, body interface{}) ([]byte, http.Header, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("request failed: %w", err)
	}

	const maxResponseSize = 50 * 1024 * 1024
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	_ = resp.Body.Close()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.Header, classifyResponse(resp.StatusCode, string(respBody), resp.Header)
	}

	return respBody, resp.Header, nil
}

// linkNextPattern matches the "next" relation in GitHub Link headers.
var linkNextPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// hasNextPage checks the Link header for a next page URL.
func hasNextPage(headers http.Header) (string, bool) {
	link := headers.Get("Link")
	if link == "" {
		return "", false
	}
	matches := linkNextPattern.FindStringSubmatch(link)
	if len(matches) < 2 {
		return "", false
	}
	return matches[1], true
}

// CreateIssue creates a new issue.
func (c *Client) CreateIssue(ctx context.Context, title, body string, labels []string) (*Issue, error) {
	reqBody := map[string]interface{}{
		"title": title,
		"body":  body,
	}
	if len(labels) > 0 {
		reqBody["labels"] = labels
	}

	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues", nil)
	var issue Issue
	err := c.withRetry(ctx, "create issue", func() error {
		respBody, _, err := c.doRequest(ctx, http.MethodPost, urlStr, reqBody)
		if err != nil {
			return err
		}
		return json.Unmarshal(respBody, &issue)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}
	return &issue, nil
}

// UpdateIssue updates an existing issue. GitHub uses PATCH for updates;
// updates carries only the fields to change (title, body, state, labels).
func (c *Client) UpdateIssue(ctx context.Context, number int, updates map[string]interface{}) (*Issue, error) {
	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues/"+strconv.Itoa(number), nil)
	var issue Issue
	err := c.withRetry(ctx, fmt.Sprintf("update issue #%d", number), func() error {
		respBody, _, err := c.doRequest(ctx, http.MethodPatch, urlStr, updates)
		if err != nil {
			return err
		}
		return json.Unmarshal(respBody, &issue)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update issue #%d: %w", number, err)
	}
	return &issue, nil
}

// SetIssueState opens or closes an issue.
func (c *Client) SetIssueState(ctx context.Context, number int, state string) (*Issue, error) {
	if !IsValidState(state) {
		return nil, fmt.Errorf("invalid issue state: %q", state)
	}
	return c.UpdateIssue(ctx, number, map[string]interface{}{"state": state})
}

// FetchIssue retrieves a single issue by its number.
func (c *Client) FetchIssue(ctx context.Context, number int) (*Issue, error) {
	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues/"+strconv.Itoa(number), nil)
	var issue Issue
	err := c.withRetry(ctx, fmt.Sprintf("fetch issue #%d", number), func() error {
		respBody, _, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
		if err != nil {
			return err
		}
		return json.Unmarshal(respBody, &issue)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch issue #%d: %w", number, err)
	}
	return &issue, nil
}

// ListIssues retrieves issues with optional state filtering ("open",
// "closed", or "all"), following Link-header pagination. Pull requests
// are filtered out (GitHub returns PRs in the issues endpoint).
func (c *Client) ListIssues(ctx context.Context, state string) ([]Issue, error) {
	var allIssues []Issue
	page := 1

	for {
		select {
		case <-ctx.Done():
			return allIssues, ctx.Err()
		default:
		}

		params := map[string]string{
			"per_page": strconv.Itoa(MaxPageSize),
			"page":     strconv.Itoa(page),
		}
		if state != "" && state != "all" {
			params["state"] = state
		} else {
			params["state"] = "all"
		}

		urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues", params)
		var issues []Issue
		var headers http.Header
		err := c.withRetry(ctx, fmt.Sprintf("list issues page %d", page), func() error {
			respBody, h, err := c.doRequest(ctx, http.MethodGet, urlStr, nil)
			if err != nil {
				return err
			}
			headers = h
			issues = issues[:0]
			return json.Unmarshal(respBody, &issues)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list issues: %w", err)
		}

		for i := range issues {
			if issues[i].PullRequest == nil {
				allIssues = append(allIssues, issues[i])
			}
		}

		if _, ok := hasNextPage(headers); !ok {
			break
		}
		page++

		if page > MaxPages {
			return nil, fmt.Errorf("pagination limit exceeded: stopped after %d pages", MaxPages)
		}
	}

	return allIssues, nil
}

// AddComment appends a comment to an issue.
func (c *Client) AddComment(ctx context.Context, number int, body string) (*Comment, error) {
	urlStr := c.buildURL("/repos/"+c.repoPath()+"/issues/"+strconv.Itoa(number)+"/comments", nil)
	var comment Comment
	err := c.withRetry(ctx, fmt.Sprintf("comment on issue #%d", number), func() error {
		respBody, _, err := c.doRequest(ctx, http.MethodPost, urlStr, map[string]interface{}{"body": body})
		if err != nil {
			return err
		}
		return json.Unmarshal(respBody, &comment)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to comment on issue #%d: %w", number, err)
	}
	return &comment, nil
}
