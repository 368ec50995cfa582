// File: internal/worker/worker.go
// Description: The mission orchestrator. A Worker owns the automation-driver
// session, borrows serialized access to the backend session from the
// supervisor, and sequences observe -> recall -> decide -> act until the
// mission completes, the step budget runs out, or the context is cancelled.
package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/wraith/api/brainrpc"
	"github.com/xkilldash9x/wraith/internal/config"
	"github.com/xkilldash9x/wraith/internal/driver"
	"github.com/xkilldash9x/wraith/internal/humanoid"
	"github.com/xkilldash9x/wraith/internal/supervisor"
)

// Broker grants short-lived, mutually-exclusive access to the backend
// session. *supervisor.Supervisor satisfies it.
type Broker interface {
	WithSession(ctx context.Context, fn func(context.Context, supervisor.Session) error) error
}

// Validator scores a finished session 0-100. Implementations inspect the
// driver session (fingerprint surface, challenge pages) and are free to make
// their own backend calls.
type Validator interface {
	Score(ctx context.Context, sess driver.Session) (float64, error)
}

// ErrValidationFailed marks a mission that ran to completion but scored below
// the configured trust threshold. It is a reported outcome, not a crash.
var ErrValidationFailed = errors.New("session validation failed")

// ValidationError carries the numeric score against the required threshold.
type ValidationError struct {
	Score     float64
	Threshold float64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("session validation failed: score %.1f below required %.1f", e.Score, e.Threshold)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidationFailed }

// Mission describes one unit of work.
type Mission struct {
	URL       string
	Objective string
	// MaxSteps bounds the decide/act loop; 0 falls back to the configured
	// default.
	MaxSteps int
}

// Result summarizes a finished mission.
type Result struct {
	Completed  bool
	StepsTaken int
	// TrustScore is the validator's verdict, or zero when no validator is
	// installed.
	TrustScore float64
}

// Worker sequences a mission over one driver session.
type Worker struct {
	id        string
	driver    driver.Session
	broker    Broker
	paths     *humanoid.PathGenerator
	jitter    *humanoid.Jitter
	validator Validator
	cfg       config.WorkerConfig
	logger    *zap.Logger

	// pos tracks the pointer so consecutive trajectories chain naturally
	// instead of teleporting back to the origin.
	pos humanoid.Vector2D

	closeOnce sync.Once
	closeErr  error
}

// New assembles a Worker. validator may be nil, in which case missions skip
// the trust check.
func New(drv driver.Session, broker Broker, paths *humanoid.PathGenerator, jitter *humanoid.Jitter, validator Validator, cfg config.WorkerConfig, logger *zap.Logger) *Worker {
	id := uuid.NewString()
	return &Worker{
		id:        id,
		driver:    drv,
		broker:    broker,
		paths:     paths,
		jitter:    jitter,
		validator: validator,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "worker"), zap.String("worker_id", id)),
	}
}

// ID returns the worker's stable identifier.
func (w *Worker) ID() string { return w.id }

// Close releases the driver session. Safe to call on every exit path; only
// the first call reaches the driver.
func (w *Worker) Close() error {
	w.closeOnce.Do(func() {
		w.logger.Info("Worker shutting down, releasing driver session")
		w.closeErr = w.driver.Close()
	})
	return w.closeErr
}

// Run executes the mission to completion. The driver session is released
// before returning no matter how the mission ends.
func (w *Worker) Run(ctx context.Context, m Mission) (*Result, error) {
	defer w.Close()

	maxSteps := m.MaxSteps
	if maxSteps <= 0 {
		maxSteps = w.cfg.MaxSteps
	}
	if maxSteps <= 0 {
		maxSteps = 25
	}

	w.logger.Info("Mission starting",
		zap.String("url", m.URL),
		zap.String("objective", m.Objective),
		zap.Int("max_steps", maxSteps),
	)

	if err := w.driver.Navigate(ctx, m.URL); err != nil {
		return nil, fmt.Errorf("mission navigation failed: %w", err)
	}

	// A human skims the page before doing anything.
	if text, err := w.driver.PageText(ctx); err == nil {
		if err := w.driver.Sleep(ctx, w.jitter.ReadingPause(len(text))); err != nil {
			return nil, err
		}
	}

	res := &Result{}
	acted := false

	for step := 1; step <= maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.StepsTaken = step

		shot, err := w.driver.Screenshot(ctx)
		if err != nil {
			return res, fmt.Errorf("observation failed at step %d: %w", step, err)
		}

		replay, err := w.recall(ctx, m.Objective, shot)
		if err != nil {
			return res, err
		}

		decision, err := w.decide(ctx, m.Objective, shot, replay)
		if err != nil {
			return res, err
		}

		if !decision.Found {
			if acted {
				// The backend sees nothing left to do after at least one
				// successful action: the objective is complete.
				res.Completed = true
				w.logger.Info("Mission complete", zap.Int("steps", step))
				break
			}
			// Nothing actionable yet; give the page a beat and look again.
			w.logger.Debug("No actionable target, re-observing", zap.Int("step", step))
			if err := w.driver.Sleep(ctx, w.jitter.ThinkingPause()); err != nil {
				return res, err
			}
			continue
		}

		if err := w.actOn(ctx, decision); err != nil {
			return res, fmt.Errorf("action failed at step %d: %w", step, err)
		}
		acted = true

		if w.jitter.ShouldAddMicroAction() {
			if err := w.microAction(ctx); err != nil {
				return res, err
			}
		}
	}

	if w.validator != nil {
		score, err := w.validator.Score(ctx, w.driver)
		if err != nil {
			return res, fmt.Errorf("validation could not run: %w", err)
		}
		res.TrustScore = score
		if score < w.cfg.TrustThreshold {
			w.logger.Warn("Mission failed validation",
				zap.Float64("score", score),
				zap.Float64("threshold", w.cfg.TrustThreshold),
			)
			return res, &ValidationError{Score: score, Threshold: w.cfg.TrustThreshold}
		}
		w.logger.Info("Session validated", zap.Float64("score", score))
	}

	return res, nil
}

// recall asks the backend memory for prior experiences resembling the current
// screen and returns the payload of the strongest exact-replay candidate, or
// empty when nothing clears the replay threshold.
func (w *Worker) recall(ctx context.Context, objective string, screenshot []byte) (string, error) {
	req := &brainrpc.MemoryRequest{
		Query:          objective,
		TopK:           int32(w.cfg.MemoryTopK),
		ScreenshotHash: hashScreenshot(screenshot),
	}

	var resp *brainrpc.MemoryResponse
	err := w.broker.WithSession(ctx, func(ctx context.Context, s supervisor.Session) error {
		r, err := s.QueryMemory(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("memory recall failed: %w", err)
	}

	replays := ExactReplayCandidates(resp.Results, w.cfg.ReplayThreshold)
	if len(replays) == 0 {
		return "", nil
	}
	w.logger.Debug("Exact-replay candidate available",
		zap.Int("candidates", len(replays)),
		zap.Float64("similarity", replays[0].Similarity),
	)
	return replays[0].Payload, nil
}

// decide grounds the objective against the screenshot, feeding any replay
// payload through as additional context.
func (w *Worker) decide(ctx context.Context, objective string, screenshot []byte, replayContext string) (*brainrpc.VisionResponse, error) {
	req := &brainrpc.VisionRequest{
		Screenshot:  screenshot,
		Context:     replayContext,
		TextCommand: objective,
	}

	var resp *brainrpc.VisionResponse
	err := w.broker.WithSession(ctx, func(ctx context.Context, s supervisor.Session) error {
		r, err := s.ProcessVision(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vision decision failed: %w", err)
	}
	return resp, nil
}

// actOn walks a synthesized trajectory to the target and clicks it with
// human click timing.
func (w *Worker) actOn(ctx context.Context, decision *brainrpc.VisionResponse) error {
	target := humanoid.Vector2D{X: decision.X, Y: decision.Y}
	steps := stepsForDistance(w.pos.Dist(target))

	for _, pt := range w.paths.Generate(w.pos, target, steps) {
		if err := w.driver.Sleep(ctx, pt.Delay); err != nil {
			return err
		}
		if err := w.driver.MoveMouse(ctx, pt.Pos.X, pt.Pos.Y); err != nil {
			return err
		}
	}
	w.pos = target

	press, hold, release := w.jitter.ClickTiming()
	if err := w.driver.Sleep(ctx, press); err != nil {
		return err
	}
	if err := w.driver.MousePress(ctx, target.X, target.Y); err != nil {
		return err
	}
	if err := w.driver.Sleep(ctx, hold); err != nil {
		return err
	}
	if err := w.driver.MouseRelease(ctx, target.X, target.Y); err != nil {
		return err
	}
	return w.driver.Sleep(ctx, release)
}

// TypeText types a string one character at a time with human keystroke gaps.
// The caller is responsible for having focused an input first.
func (w *Worker) TypeText(ctx context.Context, text string) error {
	for _, ch := range text {
		if err := w.driver.Sleep(ctx, w.jitter.KeystrokeDelay()); err != nil {
			return err
		}
		if err := w.driver.TypeChar(ctx, ch); err != nil {
			return err
		}
	}
	return nil
}

// microAction interleaves an incidental scroll, the kind of aimless input a
// person produces between deliberate actions.
func (w *Worker) microAction(ctx context.Context) error {
	if err := w.driver.Scroll(ctx, 120); err != nil {
		return err
	}
	return w.driver.Sleep(ctx, w.jitter.ThinkingPause())
}

// ExactReplayCandidates returns the results whose similarity strictly exceeds
// threshold, preserving the backend's ranking order.
func ExactReplayCandidates(results []brainrpc.MemoryResult, threshold float64) []brainrpc.MemoryResult {
	var out []brainrpc.MemoryResult
	for _, r := range results {
		if r.Similarity > threshold {
			out = append(out, r)
		}
	}
	return out
}

func hashScreenshot(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// stepsForDistance picks a trajectory resolution proportional to travel
// distance, bounded so short hops still curve and long sweeps stay cheap.
func stepsForDistance(dist float64) int {
	steps := int(dist / 10)
	if steps < 10 {
		return 10
	}
	if steps > 60 {
		return 60
	}
	return steps
}
