package main

import (
	"context"

	"github.com/openmined/fabsync/internal/auth"
	"github.com/openmined/fabsync/internal/config"
	"github.com/openmined/fabsync/internal/fabricsdk"
	"github.com/openmined/fabsync/internal/gitrev"
	"github.com/openmined/fabsync/internal/sync"
)

func newClient(cfg *config.Config) *fabricsdk.Client {
	return fabricsdk.New(&fabricsdk.Config{
		FabricURL:         cfg.FabricURL,
		PowerBIURL:        cfg.PowerBIURL,
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
}

// connect acquires a credential and builds a client for the direct listing commands
func connect(ctx context.Context, cfg *config.Config) (*auth.Credential, *fabricsdk.Client, error) {
	source, err := cfg.CredentialSource()
	if err != nil {
		return nil, nil, err
	}

	cred, err := source.Acquire(ctx, fabricsdk.Scope)
	if err != nil {
		return nil, nil, err
	}

	return cred, newClient(cfg), nil
}

func newEngine(cfg *config.Config, client *fabricsdk.Client) (*sync.Engine, error) {
	source, err := cfg.CredentialSource()
	if err != nil {
		return nil, err
	}

	return sync.NewEngine(&sync.EngineConfig{
		Client:      client,
		Credentials: source,
		Revisions:   gitrev.New(),
		Root:        cfg.Root,
		Workers:     cfg.Workers,
		Export: sync.ExportDriverConfig{
			PollInterval:    cfg.PollInterval,
			MaxPollAttempts: cfg.MaxPollAttempts,
			PollTimeout:     cfg.PollTimeout,
		},
	})
}
