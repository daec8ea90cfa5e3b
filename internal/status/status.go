// Package status maps local lifecycle phases onto a remote project's
// configurable status field. Deployments can override the field name,
// the phase mapping, and the fallback; the resolver refuses to guess
// when neither the mapped status nor the fallback exists remotely.
package status

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sddlab/specd/internal/github"
	"github.com/sddlab/specd/internal/types"
)

// ErrStatusUnavailable indicates neither the mapped status nor the
// configured fallback exists among the project's status options.
var ErrStatusUnavailable = errors.New("status option not found, fallback also unavailable")

// DefaultFieldName is the project field queried when no override is set.
const DefaultFieldName = "Status"

// DefaultVerifyRetries bounds the read-back loop in UpdateAndVerify.
const DefaultVerifyRetries = 3

// verifyDelay is the pause between verification reads; project field
// writes are eventually consistent.
const verifyDelay = 500 * time.Millisecond

// Config describes how phases map to a project's status field.
type Config struct {
	FieldName string                `yaml:"field_name"`
	Mapping   map[types.Phase]string `yaml:"mapping"`
	Fallback  string                `yaml:"fallback"`
}

// ThreeStageConfig maps the five phases onto Todo/In Progress/Done.
func ThreeStageConfig() Config {
	return Config{
		FieldName: DefaultFieldName,
		Mapping: map[types.Phase]string{
			types.PhaseRequirements:   "Todo",
			types.PhaseDesign:         "In Progress",
			types.PhaseTasks:          "In Progress",
			types.PhaseImplementation: "In Progress",
			types.PhaseCompleted:      "Done",
		},
		Fallback: "In Progress",
	}
}

// FourStageConfig maps the five phases onto Todo/In Progress/In Review/Done.
func FourStageConfig() Config {
	return Config{
		FieldName: DefaultFieldName,
		Mapping: map[types.Phase]string{
			types.PhaseRequirements:   "Todo",
			types.PhaseDesign:         "In Progress",
			types.PhaseTasks:          "In Progress",
			types.PhaseImplementation: "In Review",
			types.PhaseCompleted:      "Done",
		},
		Fallback: "In Progress",
	}
}

// MapPhaseToStatus returns the configured status name for a phase,
// falling back to the config's fallback for unmapped phases.
func MapPhaseToStatus(phase types.Phase, cfg Config) string {
	if name, ok := cfg.Mapping[phase]; ok {
		return name
	}
	return cfg.Fallback
}

// Resolution is the outcome of resolving a phase against the project's
// discovered status options.
type Resolution struct {
	Option   github.StatusOption
	Fallback bool   // True when the fallback was used
	Warning  string // Set when Fallback is true
}

// Resolver resolves phases to concrete status options of one project.
type Resolver struct {
	client    *github.Client
	projectID string
	cfg       Config

	field *github.ProjectField
	sleep func(time.Duration) // test hook
}

// NewResolver creates a resolver for a project. The status field is
// discovered lazily on first resolution.
func NewResolver(client *github.Client, projectID string, cfg Config) *Resolver {
	if cfg.FieldName == "" {
		cfg.FieldName = DefaultFieldName
	}
	return &Resolver{client: client, projectID: projectID, cfg: cfg}
}

// Field returns the project's discovered status field, fetching it on
// first use.
func (r *Resolver) Field(ctx context.Context) (*github.ProjectField, error) {
	if r.field != nil {
		return r.field, nil
	}
	field, err := r.client.FetchProjectField(ctx, r.projectID, r.cfg.FieldName)
	if err != nil {
		return nil, fmt.Errorf("discover status field: %w", err)
	}
	r.field = field
	return field, nil
}

// ResolveStatus looks up the status option for a phase. When the mapped
// status is absent from the project, it falls back to the configured
// fallback and records a warning; when the fallback is also absent it
// fails with ErrStatusUnavailable rather than picking arbitrarily.
func (r *Resolver) ResolveStatus(ctx context.Context, phase types.Phase) (*Resolution, error) {
	field, err := r.Field(ctx)
	if err != nil {
		return nil, err
	}

	want := MapPhaseToStatus(phase, r.cfg)
	if option, ok := findOption(field.Options, want); ok {
		return &Resolution{Option: option}, nil
	}

	if option, ok := findOption(field.Options, r.cfg.Fallback); ok {
		return &Resolution{
			Option:   option,
			Fallback: true,
			Warning:  fmt.Sprintf("status %q not found in project, using fallback %q", want, r.cfg.Fallback),
		}, nil
	}

	return nil, fmt.Errorf("phase %s wants status %q (fallback %q): %w",
		phase, want, r.cfg.Fallback, ErrStatusUnavailable)
}

// VerifyResult reports an update-and-verify outcome.
type VerifyResult struct {
	Verified bool
	Attempts int
	Observed string // Last status read back (when not verified)
}

// UpdateAndVerify applies a status update then re-reads the item until
// the observed status matches, up to maxRetries reads. A verification
// failure is reported, not an error: the update itself already applied
// and is not reversed.
func (r *Resolver) UpdateAndVerify(ctx context.Context, itemID string, option github.StatusOption, maxRetries int) (*VerifyResult, error) {
	field, err := r.Field(ctx)
	if err != nil {
		return nil, err
	}
	if maxRetries <= 0 {
		maxRetries = DefaultVerifyRetries
	}

	if err := r.client.UpdateProjectItemField(ctx, r.projectID, itemID, field.ID, option.ID); err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}

	result := &VerifyResult{}
	for attempt := 1; attempt <= maxRetries; attempt++ {
		result.Attempts = attempt

		observed, err := r.client.FetchProjectItemStatus(ctx, itemID, r.cfg.FieldName)
		if err != nil {
			return nil, fmt.Errorf("verify status: %w", err)
		}
		result.Observed = observed
		if observed == option.Name {
			result.Verified = true
			return result, nil
		}

		if attempt < maxRetries {
			if r.sleep != nil {
				r.sleep(verifyDelay)
				continue
			}
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(verifyDelay):
			}
		}
	}
	return result, nil
}

func findOption(options []github.StatusOption, name string) (github.StatusOption, bool) {
	for _, option := range options {
		if option.Name == name {
			return option, true
		}
	}
	return github.StatusOption{}, false
}
