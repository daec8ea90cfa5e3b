// Package github provides clients for the GitHub REST and GraphQL APIs.
//
// The REST client handles issue CRUD, comments, and paginated listing.
// The GraphQL client handles what REST cannot: sub-issue linking and
// Projects v2 field queries and updates. Every remote call is expected
// to go through the retry wrapper in retry.go.
package github

import (
	"net/http"
	"time"
)

// API configuration constants.
const (
	// DefaultAPIEndpoint is the GitHub REST API base URL.
	DefaultAPIEndpoint = "https://api.github.com"

	// DefaultGraphQLEndpoint is the GitHub GraphQL API URL.
	DefaultGraphQLEndpoint = "https://api.github.com/graphql"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxRetries is the maximum number of retries for rate-limited or
	// server-errored requests.
	MaxRetries = 3

	// RetryDelay is the base delay between retries (doubles per attempt).
	RetryDelay = time.Second

	// MaxPageSize is the maximum number of issues to fetch per page.
	MaxPageSize = 100

	// MaxPages caps pagination to guard against malformed Link headers.
	MaxPages = 1000
)

// Client provides methods to interact with the GitHub REST and GraphQL APIs.
type Client struct {
	Token       string       // Personal access token
	Owner       string       // Repository owner (user or org)
	Repo        string       // Repository name
	BaseURL     string       // REST base URL (default: https://api.github.com)
	GraphQLURL  string       // GraphQL URL (default: https://api.github.com/graphql)
	HTTPClient  *http.Client // Optional custom HTTP client
	sleep       func(d time.Duration)
}

// Issue represents an issue from the GitHub API.
type Issue struct {
	ID        int        `json:"id"`     // Global unique ID
	Number    int        `json:"number"` // Repository-scoped issue number
	NodeID    string     `json:"node_id"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	State     string     `json:"state"` // "open" or "closed"
	CreatedAt *time.Time `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	Labels    []Label    `json:"labels"`
	User      *User      `json:"user,omitempty"`
	HTMLURL   string     `json:"html_url"`
	PullRequest *PullRef `json:"pull_request,omitempty"` // Non-nil if this is a PR
}

// PullRef marks an issue that is actually a pull request. The issues
// endpoint returns PRs alongside issues; this field distinguishes them.
type PullRef struct {
	URL string `json:"url,omitempty"`
}

// User represents a GitHub user.
type User struct {
	ID    int    `json:"id"`
	Login string `json:"login"`
}

// Label represents a GitHub label.
type Label struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Color       string `json:"color,omitempty"`
	Description string `json:"description,omitempty"`
}

// Comment represents an issue comment.
type Comment struct {
	ID        int        `json:"id"`
	Body      string     `json:"body"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	User      *User      `json:"user,omitempty"`
}

// Issue states.
const (
	StateOpen   = "open"
	StateClosed = "closed"
)

// validStates for GitHub issues.
var validStates = map[string]bool{
	StateOpen:   true,
	StateClosed: true,
}

// IsValidState checks if a GitHub state string is valid.
func IsValidState(state string) bool {
	return validStates[state]
}

// LabelNames extracts label name strings from a slice of Label structs.
func LabelNames(labels []Label) []string {
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = l.Name
	}
	return names
}
