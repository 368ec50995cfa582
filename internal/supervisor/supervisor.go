// File: internal/supervisor/supervisor.go
// Description: Wraps the backend session behind a mutually-exclusive handle,
// runs the periodic health probe, and escalates to a full reconnect after a
// threshold of consecutive failures. The supervisor is the sole owner of the
// session; everything else gets short-lived, serialized access through
// WithSession.
package supervisor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/wraith/api/brainrpc"
)

// Session is the backend-session surface the supervisor guards.
// *brain.Session satisfies it.
type Session interface {
	ProcessVision(ctx context.Context, req *brainrpc.VisionRequest) (*brainrpc.VisionResponse, error)
	QueryMemory(ctx context.Context, req *brainrpc.MemoryRequest) (*brainrpc.MemoryResponse, error)
	HealthCheck(ctx context.Context) error
	Reconnect(ctx context.Context) error
	Endpoint() string
	Close() error
}

// Supervisor owns the shared backend session and its health state.
type Supervisor struct {
	interval  time.Duration
	threshold int
	logger    *zap.Logger

	// mu guards both the session handle and the health state. It is held
	// only for the duration of one call, probe or reconnect attempt, never
	// across the probe interval.
	mu      sync.Mutex
	session Session
	state   HealthState
}

// New creates a Supervisor for an already-connected session. interval is the
// probe period; threshold the consecutive-failure count that triggers a
// reconnect.
func New(session Session, interval time.Duration, threshold int, logger *zap.Logger) *Supervisor {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	if threshold <= 0 {
		threshold = 3
	}
	return &Supervisor{
		interval:  interval,
		threshold: threshold,
		logger:    logger.With(zap.String("component", "supervisor")),
		session:   session,
	}
}

// WithSession runs fn with exclusive access to the session. Access is
// short-lived by contract: fn performs one logical backend interaction and
// returns. A concurrent probe and a mission call serialize here in either
// order.
func (s *Supervisor) WithSession(ctx context.Context, fn func(context.Context, Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, s.session)
}

// State returns a snapshot of the current health state. For logging and
// metrics only; decisions stay inside the supervisor.
func (s *Supervisor) State() HealthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run drives the periodic probe until the context is cancelled. Cancellation
// is abrupt by design: a probe is a single RPC with no partial state to
// clean up.
func (s *Supervisor) Run(ctx context.Context) error {
	s.logger.Info("Health supervisor started",
		zap.Duration("interval", s.interval),
		zap.Int("failure_threshold", s.threshold),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Health supervisor stopping", zap.String("state", s.State().String()))
			return ctx.Err()
		case <-ticker.C:
			s.probe(ctx)
		}
	}
}

// probe performs one health check and advances the state machine. Holding
// the lock for the whole probe keeps the mission task from racing a
// reconnect mid-call.
func (s *Supervisor) probe(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.session.HealthCheck(ctx)
	prev := s.state
	next := prev.observe(err == nil, s.threshold)

	if next != prev {
		s.logger.Info("Health state transition",
			zap.String("from", prev.String()),
			zap.String("to", next.String()),
			zap.Error(err),
		)
	}

	if next.Phase != PhaseReconnecting {
		s.state = next
		return
	}

	// Threshold crossed: attempt full re-establishment under the session's
	// own retry policy. Failure is not fatal; we fall back to degraded and
	// try again on the next tick rather than blocking here forever.
	s.state = next
	s.logger.Warn("Failure threshold reached, reconnecting backend session",
		zap.Int("consecutive_failures", next.Failures),
		zap.String("endpoint", s.session.Endpoint()),
	)

	if rerr := s.session.Reconnect(ctx); rerr != nil {
		s.state = HealthState{Phase: PhaseDegraded, Failures: next.Failures}
		s.logger.Error("Reconnect failed, will retry on next probe",
			zap.String("state", s.state.String()),
			zap.Error(rerr),
		)
		return
	}

	s.state = HealthState{Phase: PhaseHealthy}
	s.logger.Info("Backend session re-established", zap.String("state", s.state.String()))
}
