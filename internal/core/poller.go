package core

// poller.go implements the job polling state machine.
//
// The poller owns no timer: each Step is invoked by the caller, which keeps
// control of pacing and cancellation. States only move forward:
//
//	Submitted -> Polling -> Succeeded
//	                     -> Failed
//
// A poller follows exactly one job. Once a terminal state is reached,
// further steps and restarts fail with ErrPollerFinished.

import (
	"context"
	"errors"
	"sync"
)

// DefaultFailureMessage is surfaced when a job fails without a message.
const DefaultFailureMessage = "Ingestion failed."

// ErrPollerAbandoned is returned by Step after Abandon.
var ErrPollerAbandoned = errors.New("job poller abandoned")

// PollState is the state of a JobPoller.
type PollState int

const (
	PollIdle PollState = iota
	PollSubmitted
	PollPolling
	PollSucceeded
	PollFailed
)

func (s PollState) String() string {
	switch s {
	case PollIdle:
		return "idle"
	case PollSubmitted:
		return "submitted"
	case PollPolling:
		return "polling"
	case PollSucceeded:
		return "succeeded"
	case PollFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s PollState) Terminal() bool {
	return s == PollSucceeded || s == PollFailed
}

// MarshalText renders the state name in JSON.
func (s PollState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Observation is what a single Step saw.
type Observation struct {
	JobID    string    `json:"job_id"`
	State    PollState `json:"state"`
	Status   JobStatus `json:"status,omitempty"`
	Progress int       `json:"progress"`
	Message  string    `json:"message,omitempty"`
	TableID  string    `json:"table_id,omitempty"`

	// Seq orders the observations of one upload session. The poller leaves
	// it zero.
	Seq uint64 `json:"seq,omitempty"`

	// Stale is set when the response arrived after Abandon; the poller's
	// state was not touched.
	Stale bool `json:"-"`
}

// JobPoller drives one job from submission to a terminal state.
// Steps are strictly sequential.
type JobPoller struct {
	source JobSource

	mu        sync.Mutex
	gen       Generation
	jobID     string
	state     PollState
	inFlight  bool
	abandoned bool
	transient int
	steps     int
	last      Observation
}

// NewJobPoller creates a poller that reads job state from source.
func NewJobPoller(source JobSource) *JobPoller {
	return &JobPoller{source: source}
}

// Start binds an idle poller to jobID and moves it to Submitted. A poller
// that already has a job is left untouched.
func (p *JobPoller) Start(jobID string) (PollState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.state.Terminal():
		return p.state, ErrPollerFinished
	case p.state != PollIdle:
		return p.state, ErrPollerStarted
	}

	p.gen.Advance()
	p.jobID = jobID
	p.state = PollSubmitted
	p.inFlight = false
	p.abandoned = false
	p.transient = 0
	p.steps = 0
	p.last = Observation{JobID: jobID, State: PollSubmitted}
	return p.state, nil
}

// Step fetches the job status once and applies the transition.
//
// A retryable fetch failure (transient or timeout) is returned as the error
// while the state stays Polling; the caller decides whether to keep going.
// A job that no longer exists moves the poller to Failed.
func (p *JobPoller) Step(ctx context.Context) (Observation, error) {
	p.mu.Lock()
	switch {
	case p.abandoned:
		p.mu.Unlock()
		return Observation{}, ErrPollerAbandoned
	case p.state == PollIdle:
		p.mu.Unlock()
		return Observation{}, ErrPollerNotStarted
	case p.state.Terminal():
		last := p.last
		p.mu.Unlock()
		return last, ErrPollerFinished
	case p.inFlight:
		p.mu.Unlock()
		return Observation{}, ErrStepInFlight
	}
	p.inFlight = true
	tok := p.gen.Current()
	jobID := p.jobID
	p.mu.Unlock()

	job, err := p.source.GetJob(ctx, jobID)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.inFlight = false

	if !p.gen.IsCurrent(tok) {
		return Observation{JobID: jobID, State: p.state, Stale: true}, nil
	}
	p.steps++
	if p.state == PollSubmitted {
		p.state = PollPolling
	}

	if err != nil {
		if ctx.Err() != nil {
			// Caller gave up on this step; state is unchanged.
			p.last.State = p.state
			return p.last, err
		}
		if IsRetryable(err) {
			p.transient++
			p.last.State = p.state
			return p.last, err
		}
		p.state = PollFailed
		p.last = Observation{
			JobID:   jobID,
			State:   PollFailed,
			Status:  JobError,
			Message: MapError(err).Message,
		}
		return p.last, err
	}

	p.transient = 0
	obs := Observation{
		JobID:    jobID,
		Status:   job.Status,
		Progress: job.Progress,
		Message:  job.Message,
		TableID:  job.TableID,
	}
	switch {
	case job.Status.Succeeded():
		p.state = PollSucceeded
	case job.Status.Failed():
		p.state = PollFailed
		if obs.Message == "" {
			obs.Message = DefaultFailureMessage
		}
	default:
		p.state = PollPolling
	}
	obs.State = p.state
	p.last = obs
	return obs, nil
}

// Abandon detaches the caller. A step already in flight is discarded when
// it returns, and further steps fail with ErrPollerAbandoned.
func (p *JobPoller) Abandon() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.abandoned = true
	p.gen.Advance()
}

// State returns the current state.
func (p *JobPoller) State() PollState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Last returns the most recent applied observation.
func (p *JobPoller) Last() Observation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// JobID returns the job being polled.
func (p *JobPoller) JobID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jobID
}

// ConsecutiveFailures returns the number of retryable fetch failures since
// the last successful fetch.
func (p *JobPoller) ConsecutiveFailures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transient
}

// Steps returns the number of applied steps.
func (p *JobPoller) Steps() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.steps
}
