package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sddlab/specd/internal/github"
	"github.com/sddlab/specd/internal/types"
)

const fieldResponse = `{"data": {"node": {"field": {"id": "F1", "name": "Status",
	"options": [{"id": "o1", "name": "Todo"}, {"id": "o2", "name": "In Progress"}, {"id": "o3", "name": "Done"}]}}}}`

// stubServer answers GraphQL POSTs keyed by a substring of the query.
// Values are functions so tests can vary responses across calls.
func stubServer(t *testing.T, responses map[string]func() string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"query"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		for key, resp := range responses {
			if strings.Contains(req.Query, key) {
				_, _ = fmt.Fprint(w, resp())
				return
			}
		}
		t.Errorf("no stub for query: %s", req.Query)
		w.WriteHeader(http.StatusInternalServerError)
	}))
}

func static(body string) func() string {
	return func() string { return body }
}

func newTestResolver(serverURL string, cfg Config) *Resolver {
	client := github.NewClient("test-token", "acme", "specs").WithBaseURL(serverURL)
	r := NewResolver(client, "PVT_1", cfg)
	r.sleep = func(time.Duration) {}
	return r
}

func TestMapPhaseToStatus(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		phase types.Phase
		want  string
	}{
		{"three stage requirements", ThreeStageConfig(), types.PhaseRequirements, "Todo"},
		{"three stage implementation", ThreeStageConfig(), types.PhaseImplementation, "In Progress"},
		{"three stage completed", ThreeStageConfig(), types.PhaseCompleted, "Done"},
		{"four stage implementation", FourStageConfig(), types.PhaseImplementation, "In Review"},
		{"unmapped falls back", Config{Fallback: "Backlog"}, types.PhaseDesign, "Backlog"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapPhaseToStatus(tt.phase, tt.cfg); got != tt.want {
				t.Errorf("MapPhaseToStatus(%s) = %q, want %q", tt.phase, got, tt.want)
			}
		})
	}
}

func TestResolveStatusDirect(t *testing.T) {
	server := stubServer(t, map[string]func() string{
		"field(name:": static(fieldResponse),
	})
	defer server.Close()

	r := newTestResolver(server.URL, ThreeStageConfig())
	res, err := r.ResolveStatus(context.Background(), types.PhaseCompleted)
	if err != nil {
		t.Fatalf("ResolveStatus: %v", err)
	}
	if res.Option.ID != "o3" || res.Fallback {
		t.Errorf("resolution = %+v", res)
	}
}

func TestResolveStatusFallback(t *testing.T) {
	server := stubServer(t, map[string]func() string{
		"field(name:": static(fieldResponse),
	})
	defer server.Close()

	cfg := ThreeStageConfig()
	cfg.Mapping[types.PhaseCompleted] = "Shipped" // not a project option
	r := newTestResolver(server.URL, cfg)

	res, err := r.ResolveStatus(context.Background(), types.PhaseCompleted)
	if err != nil {
		t.Fatalf("ResolveStatus: %v", err)
	}
	if !res.Fallback || res.Option.Name != "In Progress" {
		t.Errorf("resolution = %+v", res)
	}
	if res.Warning == "" {
		t.Error("expected a fallback warning")
	}
}

func TestResolveStatusUnavailable(t *testing.T) {
	server := stubServer(t, map[string]func() string{
		"field(name:": static(fieldResponse),
	})
	defer server.Close()

	cfg := Config{
		Mapping:  map[types.Phase]string{types.PhaseDesign: "Shipped"},
		Fallback: "Backlog", // also not a project option
	}
	r := newTestResolver(server.URL, cfg)

	_, err := r.ResolveStatus(context.Background(), types.PhaseDesign)
	if !errors.Is(err, ErrStatusUnavailable) {
		t.Errorf("err = %v, want ErrStatusUnavailable", err)
	}
}

func TestUpdateAndVerifyEventualMatch(t *testing.T) {
	reads := 0
	server := stubServer(t, map[string]func() string{
		"field(name:":                    static(fieldResponse),
		"updateProjectV2ItemFieldValue": static(`{"data": {"updateProjectV2ItemFieldValue": {"projectV2Item": {"id": "PVTI_1"}}}}`),
		"fieldValueByName": func() string {
			reads++
			if reads < 2 {
				return `{"data": {"node": {"fieldValueByName": {"name": "Todo"}}}}`
			}
			return `{"data": {"node": {"fieldValueByName": {"name": "Done"}}}}`
		},
	})
	defer server.Close()

	r := newTestResolver(server.URL, ThreeStageConfig())
	result, err := r.UpdateAndVerify(context.Background(), "PVTI_1", github.StatusOption{ID: "o3", Name: "Done"}, 3)
	if err != nil {
		t.Fatalf("UpdateAndVerify: %v", err)
	}
	if !result.Verified || result.Attempts != 2 {
		t.Errorf("result = %+v", result)
	}
}

func TestUpdateAndVerifyExhausted(t *testing.T) {
	server := stubServer(t, map[string]func() string{
		"field(name:":                    static(fieldResponse),
		"updateProjectV2ItemFieldValue": static(`{"data": {"updateProjectV2ItemFieldValue": {"projectV2Item": {"id": "PVTI_1"}}}}`),
		"fieldValueByName":              static(`{"data": {"node": {"fieldValueByName": {"name": "Todo"}}}}`),
	})
	defer server.Close()

	r := newTestResolver(server.URL, ThreeStageConfig())
	result, err := r.UpdateAndVerify(context.Background(), "PVTI_1", github.StatusOption{ID: "o3", Name: "Done"}, 3)
	if err != nil {
		t.Fatalf("UpdateAndVerify: %v", err)
	}
	if result.Verified {
		t.Error("expected verification failure")
	}
	if result.Attempts != 3 || result.Observed != "Todo" {
		t.Errorf("result = %+v", result)
	}
}
