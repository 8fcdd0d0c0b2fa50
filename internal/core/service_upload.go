package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/tablerag/internal/tabular"
	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("upload session not found")

// Session kinds.
const (
	SessionUpload  = "upload"
	SessionReindex = "reindex"
)

// SessionResult is the externally visible state of a session.
type SessionResult struct {
	SessionID   string         `json:"session_id"`
	Kind        string         `json:"kind"`
	FileName    string         `json:"file_name,omitempty"`
	DisplayName string         `json:"display_name,omitempty"`
	Progress    Observation    `json:"progress"`
	Outcome     *UploadOutcome `json:"outcome,omitempty"`
	Done        bool           `json:"done"`
	Error       string         `json:"error,omitempty"`
	Action      string         `json:"action,omitempty"`
	Code        string         `json:"code,omitempty"`
}

type uploadSession struct {
	id          string
	kind        string
	fileName    string
	displayName string
	startedAt   time.Time
	cancel      context.CancelFunc
	done        chan struct{}

	// gen guards against progress arriving after the session was cancelled.
	gen   Generation
	token Token

	mu        sync.Mutex
	seq       uint64
	progress  Observation
	outcome   *UploadOutcome
	err       error
	listeners []chan Observation
}

// StartUpload prepares the file, takes a session slot and follows the
// upload in the background. It returns the session id immediately.
func (s *Service) StartUpload(ctx context.Context, fileName string, data []byte, name string) (string, error) {
	prepared, err := tabular.Prepare(fileName, data)
	if err != nil {
		return "", NewError(KindInvalid, "prepare upload", err.Error(), err)
	}
	form := &UploadForm{File: &UploadFile{Name: prepared.Name, Data: prepared.Data}, Name: name}
	displayName := form.DisplayName()
	form.Name = displayName

	return s.startSession(ctx, SessionUpload, fileName, displayName, func(sctx context.Context, onProgress ProgressFunc) (*UploadOutcome, error) {
		return s.orchestrator.Upload(sctx, form, onProgress)
	})
}

// StartReindex asks the backend to rebuild a table's index and follows the
// resulting job like an upload.
func (s *Service) StartReindex(ctx context.Context, tableID string) (string, error) {
	jobID, err := s.backend.ReindexTable(ctx, tableID)
	if err != nil {
		return "", fmt.Errorf("reindex %s: %w", tableID, err)
	}
	return s.startSession(ctx, SessionReindex, "", tableID, func(sctx context.Context, onProgress ProgressFunc) (*UploadOutcome, error) {
		return s.orchestrator.Follow(sctx, jobID, onProgress)
	})
}

type sessionFunc func(ctx context.Context, onProgress ProgressFunc) (*UploadOutcome, error)

func (s *Service) startSession(ctx context.Context, kind, fileName, displayName string, run sessionFunc) (string, error) {
	release, err := s.limiter.Acquire(ctx)
	if err != nil {
		return "", err
	}

	// Sessions outlive the request that started them but keep its values.
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sess := &uploadSession{
		id:          uuid.New().String(),
		kind:        kind,
		fileName:    fileName,
		displayName: displayName,
		startedAt:   time.Now(),
		cancel:      cancel,
		done:        make(chan struct{}),
		seq:         1,
		progress:    Observation{State: PollSubmitted, Seq: 1},
	}
	sess.token = sess.gen.Current()

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	slog.Info("session started", "session_id", sess.id, "kind", kind, "file", fileName, "name", displayName)

	go func() {
		defer release()
		defer cancel()
		outcome, err := run(sctx, sess.notify)
		sess.finish(outcome, err)
		s.record(sctx, sess)
		s.cleanup(sess.id, s.sessionTTL)
	}()

	return sess.id, nil
}

// SubscribeProgress returns a channel of progress observations. The current
// observation is sent first; the channel is closed when the session ends.
func (s *Service) SubscribeProgress(sessionID string) (<-chan Observation, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	ch := make(chan Observation, 10)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	ch <- sess.progress
	select {
	case <-sess.done:
		close(ch)
	default:
		sess.listeners = append(sess.listeners, ch)
	}
	return ch, nil
}

// CancelUpload stops following a session. Late observations from the
// in-flight status call are dropped.
func (s *Service) CancelUpload(sessionID string) error {
	sess, err := s.session(sessionID)
	if err != nil {
		return err
	}
	sess.gen.Advance()
	sess.cancel()
	return nil
}

// GetUploadResult returns the session state without blocking.
func (s *Service) GetUploadResult(sessionID string) (*SessionResult, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.result(), nil
}

// WaitUploadResult blocks until the session ends or ctx is done.
func (s *Service) WaitUploadResult(ctx context.Context, sessionID string) (*SessionResult, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	select {
	case <-sess.done:
		return sess.result(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Service) session(id string) (*uploadSession, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// record writes the finished session to history, if configured.
func (s *Service) record(ctx context.Context, sess *uploadSession) {
	if s.history == nil {
		return
	}
	res := sess.result()
	entry := HistoryEntry{
		SessionID:   sess.id,
		Kind:        sess.kind,
		FileName:    sess.fileName,
		DisplayName: sess.displayName,
		State:       res.Progress.State.String(),
		Message:     res.Error,
		IPAddress:   IPAddressFromContext(ctx),
		UserAgent:   UserAgentFromContext(ctx),
		StartedAt:   sess.startedAt,
		FinishedAt:  time.Now(),
	}
	if res.Outcome != nil {
		entry.JobID = res.Outcome.JobID
		entry.TableID = res.Outcome.TableID
		entry.State = res.Outcome.State.String()
		if entry.Message == "" {
			entry.Message = res.Outcome.Message
		}
	}

	// The session context may already be cancelled.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.history.Record(rctx, entry); err != nil {
		slog.Warn("record upload history failed", "session_id", sess.id, "error", err)
	}
}

// cleanup forgets the session after a delay.
func (s *Service) cleanup(sessionID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.sessions, sessionID)
		s.mu.Unlock()
	})
}

// notify applies a progress observation and fans it out to listeners.
func (u *uploadSession) notify(obs Observation) {
	if !u.gen.IsCurrent(u.token) {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.seq++
	obs.Seq = u.seq
	u.progress = obs
	for _, ch := range u.listeners {
		select {
		case ch <- obs:
		default:
			// Listener is slow, skip this update
		}
	}
}

// finish stores the outcome and closes all listeners.
func (u *uploadSession) finish(outcome *UploadOutcome, err error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.outcome = outcome
	u.err = err
	if outcome != nil {
		u.progress = Observation{
			JobID:   outcome.JobID,
			State:   outcome.State,
			Message: outcome.Message,
			TableID: outcome.TableID,
		}
		if outcome.State == PollSucceeded {
			u.progress.Progress = 100
		}
	}
	if err != nil && !u.progress.State.Terminal() {
		u.progress.State = PollFailed
		u.progress.Message = MapError(err).Message
	}
	u.seq++
	u.progress.Seq = u.seq

	for _, ch := range u.listeners {
		select {
		case ch <- u.progress:
		default:
		}
		close(ch)
	}
	u.listeners = nil
	close(u.done)

	if err != nil {
		slog.Warn("session failed", "session_id", u.id, "error", err)
	} else {
		slog.Info("session finished", "session_id", u.id, "table_id", outcome.TableID, "steps", outcome.Steps)
	}
}

func (u *uploadSession) result() *SessionResult {
	u.mu.Lock()
	defer u.mu.Unlock()

	res := &SessionResult{
		SessionID:   u.id,
		Kind:        u.kind,
		FileName:    u.fileName,
		DisplayName: u.displayName,
		Progress:    u.progress,
		Outcome:     u.outcome,
	}
	select {
	case <-u.done:
		res.Done = true
	default:
	}
	if u.err != nil {
		msg := MapError(u.err)
		res.Error = msg.Message
		res.Action = msg.Action
		res.Code = msg.Code
	}
	return res
}
