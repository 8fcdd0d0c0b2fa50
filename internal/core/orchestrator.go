package core

// orchestrator.go drives an upload from "file selected" to "preview of the
// new table is visible".
//
// The flow:
//  1. Submit the file and display name; an empty job id is UploadRejected
//  2. Step the JobPoller on a fixed interval, reporting every Polling
//     observation through OnProgress
//  3. On success, refresh the table list and fetch the default preview
//  4. On failure, return JobFailed carrying the backend message verbatim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Defaults for PollConfig.
const (
	DefaultPollInterval         = 500 * time.Millisecond
	DefaultMaxTransientFailures = 5
	DefaultMaxPollWait          = 10 * time.Minute
	DefaultPreviewRows          = 50
)

// PollConfig bounds the polling loop.
type PollConfig struct {
	Interval             time.Duration // wait between steps (default: 500ms)
	MaxTransientFailures int           // consecutive retryable failures tolerated (default: 5)
	MaxWait              time.Duration // wall-clock bound, 0 disables it
	PreviewRows          int           // rows fetched for the post-upload preview (default: 50)
}

func (c *PollConfig) defaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultPollInterval
	}
	if c.MaxTransientFailures <= 0 {
		c.MaxTransientFailures = DefaultMaxTransientFailures
	}
	if c.PreviewRows <= 0 {
		c.PreviewRows = DefaultPreviewRows
	}
}

// UploadForm is the caller-owned form state of an upload.
type UploadForm struct {
	File *UploadFile
	Name string
}

// Reset clears the selected file and display name.
func (f *UploadForm) Reset() {
	f.File = nil
	f.Name = ""
}

// DisplayName returns the requested name, or the file name without its
// extension when none was given.
func (f *UploadForm) DisplayName() string {
	if name := strings.TrimSpace(f.Name); name != "" {
		return name
	}
	if f.File == nil {
		return ""
	}
	base := filepath.Base(f.File.Name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// UploadOutcome is the terminal result of an orchestrated upload.
type UploadOutcome struct {
	JobID    string        `json:"job_id"`
	State    PollState     `json:"state"`
	TableID  string        `json:"table_id,omitempty"`
	Message  string        `json:"message,omitempty"`
	Tables   []Table       `json:"tables,omitempty"`
	Preview  *Slice        `json:"preview,omitempty"`
	Steps    int           `json:"steps"`
	Duration time.Duration `json:"duration"`
}

// ProgressFunc receives every non-terminal observation.
type ProgressFunc func(Observation)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// OrchestratorBackend is what the orchestrator needs from the backend.
type OrchestratorBackend interface {
	Uploader
	JobSource
	SliceReader
}

// Orchestrator composes the JobPoller and the slice client.
type Orchestrator struct {
	backend OrchestratorBackend
	cfg     PollConfig
	sleep   SleepFunc
}

// NewOrchestrator creates an orchestrator with the given polling bounds.
func NewOrchestrator(backend OrchestratorBackend, cfg PollConfig) *Orchestrator {
	cfg.defaults()
	return &Orchestrator{backend: backend, cfg: cfg, sleep: sleepContext}
}

// WithSleep replaces the wait between steps. Used by tests.
func (o *Orchestrator) WithSleep(fn SleepFunc) *Orchestrator {
	o.sleep = fn
	return o
}

// Config returns the effective polling bounds.
func (o *Orchestrator) Config() PollConfig {
	return o.cfg
}

// Upload submits the form's file and drives the job to completion.
// On success the form is reset so a new upload can start immediately.
// On failure the form is left untouched and the returned error carries the
// user-visible message.
func (o *Orchestrator) Upload(ctx context.Context, form *UploadForm, onProgress ProgressFunc) (*UploadOutcome, error) {
	if form == nil || form.File == nil {
		return nil, errorf(KindInvalid, "upload", "no file provided")
	}
	if len(form.File.Data) == 0 {
		return nil, errorf(KindInvalid, "upload", "empty file")
	}
	name := form.DisplayName()

	jobID, err := o.backend.SubmitUpload(ctx, form.File, name)
	if err != nil {
		return nil, fmt.Errorf("submit upload: %w", err)
	}
	if strings.TrimSpace(jobID) == "" {
		return nil, errorf(KindUploadRejected, "submit upload", "no job id returned")
	}

	slog.Debug("upload submitted", "job_id", jobID, "file", form.File.Name, "name", name)

	outcome, err := o.Follow(ctx, jobID, onProgress)
	if err != nil {
		return outcome, err
	}
	form.Reset()
	return outcome, nil
}

// Follow drives an already submitted job (an upload or a reindex) to a
// terminal state and loads the post-success views.
func (o *Orchestrator) Follow(ctx context.Context, jobID string, onProgress ProgressFunc) (*UploadOutcome, error) {
	start := time.Now()
	poller := NewJobPoller(o.backend)
	if _, err := poller.Start(jobID); err != nil {
		return nil, err
	}
	defer poller.Abandon()

	if o.cfg.MaxWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.MaxWait)
		defer cancel()
	}

	outcome := &UploadOutcome{JobID: jobID, State: PollSubmitted}
	for {
		obs, err := poller.Step(ctx)
		outcome.Steps = poller.Steps()
		outcome.State = poller.State()
		if err != nil {
			if stepErr := o.stepFailed(ctx, poller, obs, err); stepErr != nil {
				outcome.Message = MapError(stepErr).Message
				outcome.Duration = time.Since(start)
				return outcome, stepErr
			}
		} else {
			switch obs.State {
			case PollSucceeded:
				outcome.TableID = obs.TableID
				outcome.Message = obs.Message
				o.loadViews(ctx, outcome)
				outcome.Duration = time.Since(start)
				return outcome, nil
			case PollFailed:
				outcome.Message = obs.Message
				outcome.Duration = time.Since(start)
				return outcome, JobFailedError(jobID, obs.Message)
			default:
				if onProgress != nil {
					onProgress(obs)
				}
			}
		}

		if err := o.sleep(ctx, o.cfg.Interval); err != nil {
			outcome.Duration = time.Since(start)
			return outcome, o.contextError(ctx, err)
		}
	}
}

// stepFailed decides whether a failed step ends the loop. It returns nil to
// keep polling.
func (o *Orchestrator) stepFailed(ctx context.Context, p *JobPoller, obs Observation, err error) error {
	if ctx.Err() != nil {
		return o.contextError(ctx, err)
	}
	if obs.State.Terminal() {
		return err
	}
	if !IsRetryable(err) {
		return err
	}
	n := p.ConsecutiveFailures()
	slog.Warn("job status fetch failed",
		"job_id", p.JobID(),
		"attempt", n,
		"max", o.cfg.MaxTransientFailures,
		"error", err,
	)
	if n >= o.cfg.MaxTransientFailures {
		return fmt.Errorf("poll job %s: giving up after %d consecutive failures: %w", p.JobID(), n, err)
	}
	return nil
}

// contextError maps the loop's wall-clock bound to a Timeout error and
// passes caller cancellation through.
func (o *Orchestrator) contextError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewError(KindTimeout, "poll job", "job did not finish in time", ctx.Err())
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// loadViews refreshes the table list and fetches the default preview.
// Failures here do not undo the upload; they are logged and leave the
// corresponding field empty.
func (o *Orchestrator) loadViews(ctx context.Context, outcome *UploadOutcome) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		tables, err := o.backend.ListTables(gctx)
		if err != nil {
			slog.Warn("refresh tables after upload failed", "job_id", outcome.JobID, "error", err)
			return nil
		}
		outcome.Tables = tables
		return nil
	})

	if outcome.TableID != "" {
		g.Go(func() error {
			preview, err := o.backend.FetchSlice(gctx, outcome.TableID, 0, o.cfg.PreviewRows)
			if err != nil {
				slog.Warn("preview fetch after upload failed", "table_id", outcome.TableID, "error", err)
				return nil
			}
			outcome.Preview = preview
			return nil
		})
	}

	_ = g.Wait()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
