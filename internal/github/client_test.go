package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// newTestClient returns a client pointed at a test server, with sleeps
// recorded instead of slept.
func newTestClient(serverURL string, slept *[]time.Duration) *Client {
	client := NewClient("test-token", "owner", "repo").WithBaseURL(serverURL)
	client.sleep = func(d time.Duration) {
		if slept != nil {
			*slept = append(*slept, d)
		}
	}
	return client
}

func TestNewClient(t *testing.T) {
	client := NewClient("test-token", "owner", "repo")

	if client.Token != "test-token" {
		t.Errorf("Token = %q, want %q", client.Token, "test-token")
	}
	if client.BaseURL != DefaultAPIEndpoint {
		t.Errorf("BaseURL = %q, want %q", client.BaseURL, DefaultAPIEndpoint)
	}
	if client.GraphQLURL != DefaultGraphQLEndpoint {
		t.Errorf("GraphQLURL = %q, want %q", client.GraphQLURL, DefaultGraphQLEndpoint)
	}
	if client.HTTPClient == nil {
		t.Error("HTTPClient is nil, want non-nil default client")
	}
}

func TestClientWithBaseURL(t *testing.T) {
	client := NewClient("token", "owner", "repo").WithBaseURL("https://github.example.com/api/v3")

	if client.BaseURL != "https://github.example.com/api/v3" {
		t.Errorf("BaseURL = %q", client.BaseURL)
	}
	if client.GraphQLURL != "https://github.example.com/api/v3/graphql" {
		t.Errorf("GraphQLURL = %q", client.GraphQLURL)
	}
}

func TestCreateIssue(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = fmt.Fprint(w, `{"id": 9001, "number": 7, "node_id": "I_abc", "title": "t", "state": "open"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil)
	issue, err := client.CreateIssue(context.Background(), "t", "body", []string{"phase:design"})
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}
	if issue.Number != 7 || issue.NodeID != "I_abc" {
		t.Errorf("issue = %+v", issue)
	}
	if gotPath != "/repos/owner/repo/issues" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotBody["title"] != "t" {
		t.Errorf("request body = %v", gotBody)
	}
	labels, _ := gotBody["labels"].([]interface{})
	if len(labels) != 1 || labels[0] != "phase:design" {
		t.Errorf("labels = %v", labels)
	}
}

func TestUpdateIssueUsesPatch(t *testing.T) {
	var gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		_, _ = fmt.Fprint(w, `{"id": 1, "number": 7, "state": "closed"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil)
	issue, err := client.UpdateIssue(context.Background(), 7, map[string]interface{}{"state": "closed"})
	if err != nil {
		t.Fatalf("UpdateIssue: %v", err)
	}
	if gotMethod != http.MethodPatch {
		t.Errorf("method = %q, want PATCH", gotMethod)
	}
	if issue.State != "closed" {
		t.Errorf("state = %q", issue.State)
	}
}

func TestSetIssueStateRejectsInvalid(t *testing.T) {
	client := NewClient("t", "o", "r")
	if _, err := client.SetIssueState(context.Background(), 7, "archived"); err == nil {
		t.Error("invalid state accepted")
	}
}

func TestRateLimitHonorsRetryAfter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = fmt.Fprint(w, `{"message": "rate limited"}`)
			return
		}
		_, _ = fmt.Fprint(w, `{"id": 1, "number": 7}`)
	}))
	defer server.Close()

	var slept []time.Duration
	client := newTestClient(server.URL, &slept)

	issue, err := client.FetchIssue(context.Background(), 7)
	if err != nil {
		t.Fatalf("FetchIssue: %v", err)
	}
	if issue.Number != 7 {
		t.Errorf("issue = %+v", issue)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	if len(slept) != 1 || slept[0] != 7*time.Second {
		t.Errorf("slept = %v, want [7s]", slept)
	}
}

func TestRateLimitExponentialBackoffWithoutRetryAfter(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.WriteHeader(http.StatusForbidden)
			_, _ = fmt.Fprint(w, `{"message": "rate limited"}`)
			return
		}
		_, _ = fmt.Fprint(w, `{"id": 1, "number": 7}`)
	}))
	defer server.Close()

	var slept []time.Duration
	client := newTestClient(server.URL, &slept)

	if _, err := client.FetchIssue(context.Background(), 7); err != nil {
		t.Fatalf("FetchIssue: %v", err)
	}
	if len(slept) != 2 {
		t.Fatalf("slept %d times, want 2", len(slept))
	}
	if slept[1] != 2*slept[0] {
		t.Errorf("delays %v do not double", slept)
	}
}

func TestRateLimitMaxRetriesExceeded(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = fmt.Fprint(w, `{"message": "rate limited"}`)
	}))
	defer server.Close()

	var slept []time.Duration
	client := newTestClient(server.URL, &slept)

	_, err := client.FetchIssue(context.Background(), 7)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !errors.Is(err, ErrMaxRetries) {
		t.Errorf("err = %v, want ErrMaxRetries", err)
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("err = %v, should also wrap ErrRateLimited", err)
	}
	if calls.Load() != MaxRetries+1 {
		t.Errorf("calls = %d, want %d", calls.Load(), MaxRetries+1)
	}
}

func TestAuthFailureNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = fmt.Fprint(w, `{"message": "bad credentials"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil)
	_, err := client.FetchIssue(context.Background(), 7)
	if !errors.Is(err, ErrAuth) {
		t.Errorf("err = %v, want ErrAuth", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1 (no retry)", calls.Load())
	}
}

func TestNotFoundClassified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprint(w, `{"message": "Not Found"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil)
	if _, err := client.FetchIssue(context.Background(), 404); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestServerErrorRetriedThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = fmt.Fprint(w, `{"id": 1, "number": 7}`)
	}))
	defer server.Close()

	var slept []time.Duration
	client := newTestClient(server.URL, &slept)
	if _, err := client.FetchIssue(context.Background(), 7); err != nil {
		t.Fatalf("FetchIssue: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestListIssuesPaginationAndPRFiltering(t *testing.T) {
	var page2URL string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "", "1":
			w.Header().Set("Link", fmt.Sprintf(`<%s>; rel="next"`, page2URL))
			_, _ = fmt.Fprint(w, `[{"id": 1, "number": 1, "title": "issue"},
				{"id": 2, "number": 2, "title": "pr", "pull_request": {"url": "x"}}]`)
		default:
			_, _ = fmt.Fprint(w, `[{"id": 3, "number": 3, "title": "issue2"}]`)
		}
	}))
	defer server.Close()
	page2URL = server.URL + "/repos/owner/repo/issues?page=2"

	client := newTestClient(server.URL, nil)
	issues, err := client.ListIssues(context.Background(), "all")
	if err != nil {
		t.Fatalf("ListIssues: %v", err)
	}
	if len(issues) != 2 {
		t.Fatalf("issues = %d, want 2 (PR filtered, both pages)", len(issues))
	}
	if issues[0].Number != 1 || issues[1].Number != 3 {
		t.Errorf("issues = %+v", issues)
	}
}

func TestAddComment(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusCreated)
		_, _ = fmt.Fprint(w, `{"id": 55, "body": "synced"}`)
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil)
	comment, err := client.AddComment(context.Background(), 7, "synced")
	if err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if comment.ID != 55 {
		t.Errorf("comment = %+v", comment)
	}
	if gotPath != "/repos/owner/repo/issues/7/comments" {
		t.Errorf("path = %q", gotPath)
	}
}
