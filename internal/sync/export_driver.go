package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openmined/fabsync/internal/fabricsdk"
)

const (
	DefaultPollInterval    = 2 * time.Second
	DefaultMaxPollAttempts = 150
	DefaultPollTimeout     = 10 * time.Minute
)

// Exporter is the part of the remote client that drives definition exports
type Exporter interface {
	SubmitDefinitionExport(ctx context.Context, token, workspaceID, itemID string, opts *fabricsdk.ExportOpts) (*fabricsdk.ExportSubmission, error)
	GetOperationState(ctx context.Context, token, location string) (*fabricsdk.OperationState, error)
	GetOperationResult(ctx context.Context, token, location string) (*fabricsdk.ItemDefinition, error)
}

// ExportDriverConfig bounds the polling of accepted exports
type ExportDriverConfig struct {
	PollInterval    time.Duration
	MaxPollAttempts int
	PollTimeout     time.Duration
	Format          string
}

func (c *ExportDriverConfig) withDefaults() ExportDriverConfig {
	out := ExportDriverConfig{}
	if c != nil {
		out = *c
	}
	if out.PollInterval <= 0 {
		out.PollInterval = DefaultPollInterval
	}
	if out.MaxPollAttempts <= 0 {
		out.MaxPollAttempts = DefaultMaxPollAttempts
	}
	if out.PollTimeout <= 0 {
		out.PollTimeout = DefaultPollTimeout
	}
	return out
}

// ExportDriver takes one item from submission to a definition.
// Submission, polling and the result fetch of an item are strictly sequential.
type ExportDriver struct {
	client Exporter
	config ExportDriverConfig
	logger *slog.Logger
}

func NewExportDriver(client Exporter, config *ExportDriverConfig, logger *slog.Logger) *ExportDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportDriver{
		client: client,
		config: config.withDefaults(),
		logger: logger,
	}
}

// Export returns the definition of an item, waiting on the export job if the service queued one
func (d *ExportDriver) Export(ctx context.Context, token, workspaceID, itemID string) (*fabricsdk.ItemDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}

	var opts *fabricsdk.ExportOpts
	if d.config.Format != "" {
		opts = &fabricsdk.ExportOpts{Format: d.config.Format}
	}

	sub, err := d.client.SubmitDefinitionExport(ctx, token, workspaceID, itemID, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx.Err())
		}
		return nil, err
	}

	if !sub.Accepted() {
		d.logger.Debug("export completed inline", "item", itemID, "parts", len(sub.Definition.Parts))
		return sub.Definition, nil
	}

	d.logger.Debug("export accepted", "item", itemID, "operation", sub.OperationID)
	if err := d.wait(ctx, token, itemID, sub.Location, sub.RetryAfter); err != nil {
		return nil, err
	}

	def, err := d.client.GetOperationResult(ctx, token, sub.Location)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx.Err())
		}
		return nil, err
	}

	return def, nil
}

// wait polls the operation monitor with a fixed delay until it succeeds or fails.
// The first poll honours the Retry-After of the submission when the service sent one.
func (d *ExportDriver) wait(ctx context.Context, token, itemID, location string, retryAfter time.Duration) error {
	pollCtx, cancel := context.WithTimeout(ctx, d.config.PollTimeout)
	defer cancel()

	first := d.config.PollInterval
	if retryAfter > 0 {
		first = retryAfter
	}

	start := time.Now()
	timer := time.NewTimer(first)
	defer timer.Stop()

	timeout := func(attempts int) error {
		return &TimeoutError{ItemID: itemID, Attempts: attempts, Elapsed: time.Since(start)}
	}

	for attempt := 1; attempt <= d.config.MaxPollAttempts; attempt++ {
		select {
		case <-pollCtx.Done():
		case <-timer.C:
		}

		if pollCtx.Err() != nil {
			if ctx.Err() != nil {
				return cancelled(ctx.Err())
			}
			return timeout(attempt - 1)
		}

		state, err := d.client.GetOperationState(pollCtx, token, location)
		if err != nil {
			if ctx.Err() != nil {
				return cancelled(ctx.Err())
			}
			if errors.Is(err, context.DeadlineExceeded) || pollCtx.Err() != nil {
				return timeout(attempt)
			}
			var remoteErr *fabricsdk.RemoteError
			if errors.As(err, &remoteErr) && remoteErr.IsThrottled() {
				d.logger.Debug("export poll throttled", "item", itemID, "poll", attempt)
				timer.Reset(d.config.PollInterval)
				continue
			}
			return err
		}

		switch state.Status {
		case fabricsdk.OperationSucceeded:
			d.logger.Debug("export succeeded", "item", itemID, "polls", attempt)
			return nil
		case fabricsdk.OperationFailed:
			jobErr := &JobFailedError{ItemID: itemID}
			if state.Error != nil {
				jobErr.Code = state.Error.ErrorCode
				jobErr.Message = state.Error.Message
			}
			return jobErr
		}

		d.logger.Debug("export pending", "item", itemID, "status", state.Status, "percent", state.PercentComplete, "poll", attempt)
		timer.Reset(d.config.PollInterval)
	}

	return timeout(d.config.MaxPollAttempts)
}

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}
