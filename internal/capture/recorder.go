package capture

import (
	"context"
	"log/slog"
	"sync"
)

// Recorder enforces the process-wide invariant that at most one capture
// session is active at any time.
type Recorder struct {
	deps Deps
	cfg  Config

	mu     sync.Mutex
	active *Session
}

// NewRecorder creates a recorder around the given collaborators.
func NewRecorder(deps Deps, cfg Config) *Recorder {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Recorder{deps: deps, cfg: cfg}
}

// Start begins a new session. A start request while a session is still
// live is rejected with ErrSessionActive and leaves the live session
// untouched.
func (r *Recorder) Start(ctx context.Context) (*Session, error) {
	r.mu.Lock()
	if r.active != nil && r.active.State() != StateTerminated {
		r.mu.Unlock()
		return nil, ErrSessionActive
	}
	r.mu.Unlock()

	session, err := Start(ctx, r.deps, r.cfg)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	// Re-check under lock: a concurrent Start may have won.
	if r.active != nil && r.active.State() != StateTerminated {
		r.mu.Unlock()
		session.Cancel()
		return nil, ErrSessionActive
	}
	r.active = session
	r.mu.Unlock()

	return session, nil
}

// Active returns the live session, or nil.
func (r *Recorder) Active() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil || r.active.State() == StateTerminated {
		return nil
	}
	return r.active
}
