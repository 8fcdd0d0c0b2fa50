package core

import (
	"context"
	"sync"
	"time"
)

// DefaultSessionTTL is how long a finished session stays queryable.
const DefaultSessionTTL = 5 * time.Minute

// ServiceConfig holds the tunables of a Service.
type ServiceConfig struct {
	Poll          PollConfig
	ContextRows   int           // rows of context around cited rows (default: 5)
	MaxConcurrent int           // upload sessions followed at once (default: 5)
	MaxWait       time.Duration // wait for a free session slot (default: 30s)
	SessionTTL    time.Duration // retention of finished sessions (default: 5m)
}

// Service is the entry point used by the viewer server and the terminal
// client. It wraps the backend with the projector, the orchestrator and
// background upload sessions.
type Service struct {
	backend      Backend
	orchestrator *Orchestrator
	projector    *Projector
	limiter      *UploadLimiter
	history      HistoryStore
	sessionTTL   time.Duration

	mu       sync.RWMutex
	sessions map[string]*uploadSession
}

// NewService creates a Service. history may be nil.
func NewService(backend Backend, cfg ServiceConfig, history HistoryStore) *Service {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}
	if cfg.ContextRows <= 0 {
		cfg.ContextRows = DefaultContextRows
	}
	return &Service{
		backend:      backend,
		orchestrator: NewOrchestrator(backend, cfg.Poll),
		projector:    NewProjector(backend, cfg.ContextRows),
		limiter:      NewUploadLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		history:      history,
		sessionTTL:   cfg.SessionTTL,
		sessions:     make(map[string]*uploadSession),
	}
}

// Orchestrator returns the orchestrator used for sessions.
func (s *Service) Orchestrator() *Orchestrator {
	return s.orchestrator
}

// Projector returns the highlight projector.
func (s *Service) Projector() *Projector {
	return s.projector
}

// UploadLimiterStatus returns the session slot usage.
func (s *Service) UploadLimiterStatus() UploadLimiterStatus {
	return s.limiter.Status()
}

// WaitForUploads blocks until every running session finishes or ctx is done.
func (s *Service) WaitForUploads(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// History returns the most recent session outcomes, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.List(ctx, limit)
}
