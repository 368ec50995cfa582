// File: internal/worker/worker_test.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/wraith/api/brainrpc"
	"github.com/xkilldash9x/wraith/internal/config"
	"github.com/xkilldash9x/wraith/internal/driver"
	"github.com/xkilldash9x/wraith/internal/humanoid"
	"github.com/xkilldash9x/wraith/internal/supervisor"
)

// fakeDriver records every driver call in order.
type fakeDriver struct {
	mu        sync.Mutex
	events    []string
	closes    int
	pageText  string
	visionErr error
}

func (d *fakeDriver) record(ev string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
}

func (d *fakeDriver) Navigate(ctx context.Context, url string) error {
	d.record("navigate " + url)
	return nil
}

func (d *fakeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	d.record("screenshot")
	return []byte("png-bytes"), nil
}

func (d *fakeDriver) PageText(ctx context.Context) (string, error) {
	d.record("pagetext")
	return d.pageText, nil
}

func (d *fakeDriver) MoveMouse(ctx context.Context, x, y float64) error {
	d.record("move")
	return nil
}

func (d *fakeDriver) MousePress(ctx context.Context, x, y float64) error {
	d.record(fmt.Sprintf("press %.0f,%.0f", x, y))
	return nil
}

func (d *fakeDriver) MouseRelease(ctx context.Context, x, y float64) error {
	d.record(fmt.Sprintf("release %.0f,%.0f", x, y))
	return nil
}

func (d *fakeDriver) TypeChar(ctx context.Context, ch rune) error {
	d.record("type " + string(ch))
	return nil
}

func (d *fakeDriver) Scroll(ctx context.Context, deltaY float64) error {
	d.record("scroll")
	return nil
}

func (d *fakeDriver) Sleep(ctx context.Context, dur time.Duration) error {
	return ctx.Err()
}

func (d *fakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	return nil
}

func (d *fakeDriver) snapshot() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.events))
	copy(out, d.events)
	return out
}

func (d *fakeDriver) closeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

// scriptedSession pops one vision response per call and serves a fixed
// memory response.
type scriptedSession struct {
	mu         sync.Mutex
	vision     []*brainrpc.VisionResponse
	visionErr  error
	visionReqs []*brainrpc.VisionRequest
	memory     brainrpc.MemoryResponse
	memoryReqs []*brainrpc.MemoryRequest
}

func (s *scriptedSession) ProcessVision(ctx context.Context, req *brainrpc.VisionRequest) (*brainrpc.VisionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visionReqs = append(s.visionReqs, req)
	if s.visionErr != nil {
		return nil, s.visionErr
	}
	if len(s.vision) == 0 {
		return &brainrpc.VisionResponse{Found: false}, nil
	}
	resp := s.vision[0]
	s.vision = s.vision[1:]
	return resp, nil
}

func (s *scriptedSession) QueryMemory(ctx context.Context, req *brainrpc.MemoryRequest) (*brainrpc.MemoryResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memoryReqs = append(s.memoryReqs, req)
	resp := s.memory
	return &resp, nil
}

func (s *scriptedSession) HealthCheck(ctx context.Context) error { return nil }
func (s *scriptedSession) Reconnect(ctx context.Context) error   { return nil }
func (s *scriptedSession) Endpoint() string                      { return "http://fake:50051" }
func (s *scriptedSession) Close() error                          { return nil }

// fakeBroker hands the scripted session straight through.
type fakeBroker struct {
	sess *scriptedSession
}

func (b *fakeBroker) WithSession(ctx context.Context, fn func(context.Context, supervisor.Session) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, b.sess)
}

type fixedValidator struct {
	score float64
	err   error
}

func (v fixedValidator) Score(ctx context.Context, _ driver.Session) (float64, error) {
	return v.score, v.err
}

func testWorkerConfig() config.WorkerConfig {
	return config.WorkerConfig{
		MaxSteps:        25,
		TrustThreshold:  80.0,
		ReplayThreshold: 0.95,
		MemoryTopK:      5,
	}
}

func newTestWorker(t *testing.T, drv *fakeDriver, sess *scriptedSession, v Validator) *Worker {
	t.Helper()
	logger := zaptest.NewLogger(t)
	paths := humanoid.NewSeededPathGenerator(humanoid.DefaultPathConfig(), 42, logger)
	jitter := humanoid.NewSeededJitter(42)
	return New(drv, &fakeBroker{sess: sess}, paths, jitter, v, testWorkerConfig(), logger)
}

func TestRunCompletesWhenNoTargetsRemain(t *testing.T) {
	t.Parallel()
	drv := &fakeDriver{pageText: "Welcome to the portal"}
	sess := &scriptedSession{
		vision: []*brainrpc.VisionResponse{
			{Found: true, X: 200, Y: 150, Confidence: 0.92},
		},
	}
	w := newTestWorker(t, drv, sess, nil)

	res, err := w.Run(context.Background(), Mission{URL: "https://example.test", Objective: "log in"})
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Equal(t, 2, res.StepsTaken, "one action step plus the completing observation")

	events := drv.snapshot()
	require.NotEmpty(t, events)
	assert.Equal(t, "navigate https://example.test", events[0])

	pressIdx := indexOf(events, "press 200,150")
	releaseIdx := indexOf(events, "release 200,150")
	require.GreaterOrEqual(t, pressIdx, 0, "the found target must be clicked")
	require.Greater(t, releaseIdx, pressIdx, "release follows press")

	lastMove := lastIndexWhere(events[:pressIdx], "move")
	assert.GreaterOrEqual(t, lastMove, 0, "the pointer travels a trajectory before the click")

	assert.Equal(t, 1, drv.closeCount(), "the driver is released when the mission ends")
}

func TestRunStepBudgetExhaustion(t *testing.T) {
	t.Parallel()
	drv := &fakeDriver{}
	// Every step finds a target, so the loop only stops at the budget.
	var responses []*brainrpc.VisionResponse
	for i := 0; i < 10; i++ {
		responses = append(responses, &brainrpc.VisionResponse{Found: true, X: 50, Y: 50})
	}
	sess := &scriptedSession{vision: responses}

	w := newTestWorker(t, drv, sess, nil)
	res, err := w.Run(context.Background(), Mission{URL: "https://example.test", MaxSteps: 3})
	require.NoError(t, err)
	assert.False(t, res.Completed)
	assert.Equal(t, 3, res.StepsTaken)
}

func TestRunPassesReplayPayloadAsContext(t *testing.T) {
	t.Parallel()
	drv := &fakeDriver{}
	sess := &scriptedSession{
		memory: brainrpc.MemoryResponse{Results: []brainrpc.MemoryResult{
			{Similarity: 0.97, Payload: "recorded-plan"},
			{Similarity: 0.91, Payload: "too-weak"},
		}},
	}
	w := newTestWorker(t, drv, sess, nil)

	_, err := w.Run(context.Background(), Mission{URL: "https://example.test", Objective: "checkout", MaxSteps: 1})
	require.NoError(t, err)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	require.NotEmpty(t, sess.visionReqs)
	assert.Equal(t, "recorded-plan", sess.visionReqs[0].Context,
		"the strongest exact-replay payload feeds the vision call")
	assert.Equal(t, "checkout", sess.visionReqs[0].TextCommand)

	require.NotEmpty(t, sess.memoryReqs)
	assert.Equal(t, int32(5), sess.memoryReqs[0].TopK)
	assert.NotEmpty(t, sess.memoryReqs[0].ScreenshotHash)
}

func TestRunValidationFailureIsReportedNotPanicked(t *testing.T) {
	t.Parallel()
	drv := &fakeDriver{}
	sess := &scriptedSession{
		vision: []*brainrpc.VisionResponse{{Found: true, X: 10, Y: 10}},
	}
	w := newTestWorker(t, drv, sess, fixedValidator{score: 52.5})

	res, err := w.Run(context.Background(), Mission{URL: "https://example.test"})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrValidationFailed)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 52.5, verr.Score)
	assert.Equal(t, 80.0, verr.Threshold)
	assert.Contains(t, verr.Error(), "52.5")
	assert.Contains(t, verr.Error(), "80.0")

	assert.Equal(t, 52.5, res.TrustScore)
	assert.Equal(t, 1, drv.closeCount(), "driver released after a failed validation too")
}

func TestRunValidationPassAboveThreshold(t *testing.T) {
	t.Parallel()
	drv := &fakeDriver{}
	sess := &scriptedSession{
		vision: []*brainrpc.VisionResponse{{Found: true, X: 10, Y: 10}},
	}
	w := newTestWorker(t, drv, sess, fixedValidator{score: 95})

	res, err := w.Run(context.Background(), Mission{URL: "https://example.test"})
	require.NoError(t, err)
	assert.Equal(t, 95.0, res.TrustScore)
}

func TestRunReleasesDriverOnBackendError(t *testing.T) {
	t.Parallel()
	drv := &fakeDriver{}
	sess := &scriptedSession{visionErr: errors.New("backend exploded")}
	w := newTestWorker(t, drv, sess, nil)

	_, err := w.Run(context.Background(), Mission{URL: "https://example.test"})
	require.Error(t, err)
	assert.Equal(t, 1, drv.closeCount())
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	t.Parallel()
	drv := &fakeDriver{}
	sess := &scriptedSession{}
	w := newTestWorker(t, drv, sess, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Run(ctx, Mission{URL: "https://example.test"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, drv.closeCount())
}

func TestCloseIsIdempotent(t *testing.T) {
	t.Parallel()
	drv := &fakeDriver{}
	w := newTestWorker(t, drv, &scriptedSession{}, nil)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	assert.Equal(t, 1, drv.closeCount(), "only the first Close reaches the driver")
}

func TestTypeTextTypesEveryCharacter(t *testing.T) {
	t.Parallel()
	drv := &fakeDriver{}
	w := newTestWorker(t, drv, &scriptedSession{}, nil)

	require.NoError(t, w.TypeText(context.Background(), "hi!"))

	events := drv.snapshot()
	assert.Equal(t, []string{"type h", "type i", "type !"}, events)
}

func TestExactReplayCandidates(t *testing.T) {
	t.Parallel()
	results := []brainrpc.MemoryResult{
		{Similarity: 0.97, Payload: "a"},
		{Similarity: 0.95, Payload: "boundary"},
		{Similarity: 0.951, Payload: "b"},
		{Similarity: 0.30, Payload: "c"},
	}

	out := ExactReplayCandidates(results, 0.95)
	require.Len(t, out, 2, "strictly-above-threshold only; the boundary value is excluded")
	assert.Equal(t, "a", out[0].Payload)
	assert.Equal(t, "b", out[1].Payload)

	assert.Empty(t, ExactReplayCandidates(nil, 0.95))
	assert.Empty(t, ExactReplayCandidates(results, 1.0))
}

func indexOf(events []string, want string) int {
	for i, ev := range events {
		if ev == want {
			return i
		}
	}
	return -1
}

func lastIndexWhere(events []string, prefix string) int {
	for i := len(events) - 1; i >= 0; i-- {
		if strings.HasPrefix(events[i], prefix) {
			return i
		}
	}
	return -1
}
