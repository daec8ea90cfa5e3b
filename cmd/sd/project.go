package main

import (
	"context"
	"fmt"

	"github.com/sddlab/specd/internal/config"
	"github.com/sddlab/specd/internal/eventbus"
	"github.com/sddlab/specd/internal/github"
	"github.com/sddlab/specd/internal/storage/sqlite"
	"github.com/sddlab/specd/internal/sync"
)

// project bundles everything a command needs: the discovered project
// directory, its config, and an open store.
type project struct {
	specdDir string
	specsDir string
	cfg      *config.Config
	store    *sqlite.SQLiteStore
}

// openProject discovers the project and opens its store. Callers must
// Close when done.
func openProject(ctx context.Context) (*project, error) {
	specdDir := config.FindSpecdDir()
	if specdDir == "" {
		return nil, fmt.Errorf("no %s directory found (run 'sd init' first)", config.DirName)
	}

	cfg, err := config.Load(specdDir)
	if err != nil {
		return nil, err
	}
	store, err := sqlite.New(ctx, config.DatabasePath(specdDir))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &project{
		specdDir: specdDir,
		specsDir: config.SpecsDir(specdDir),
		cfg:      cfg,
		store:    store,
	}, nil
}

func (p *project) Close() {
	_ = p.store.Close()
}

// githubClient builds a client from config. Fails when the repository
// or token is not configured.
func (p *project) githubClient() (*github.Client, error) {
	if p.cfg.GitHub.Owner == "" || p.cfg.GitHub.Repo == "" {
		return nil, fmt.Errorf("github.owner and github.repo not configured (edit %s)", config.ConfigPath(p.specdDir))
	}
	token := p.cfg.Token()
	if token == "" {
		return nil, fmt.Errorf("%s not set", config.EnvToken)
	}
	return github.NewClient(token, p.cfg.GitHub.Owner, p.cfg.GitHub.Repo), nil
}

// syncService builds the sync service for this project.
func (p *project) syncService() (*sync.Service, error) {
	client, err := p.githubClient()
	if err != nil {
		return nil, err
	}
	return sync.NewService(p.store, client, p.specsDir), nil
}

// bus builds the event bus. The GitHub sync listener is registered only
// when a repository is configured; transitions work offline without it.
func (p *project) bus() *eventbus.Bus {
	b := eventbus.New()
	if service, err := p.syncService(); err == nil {
		b.Register(sync.NewHandler(service))
	}
	return b
}
