// File: internal/humanoid/path_test.go
package humanoid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestGenerateLengthAndEndpoints(t *testing.T) {
	t.Parallel()
	gen := NewSeededPathGenerator(DefaultPathConfig(), 42, zaptest.NewLogger(t))

	start := Vector2D{X: 100, Y: 100}
	end := Vector2D{X: 700, Y: 450}
	const steps = 40

	path := gen.Generate(start, end, steps)
	require.Len(t, path, steps+1)

	// Noise amplitude is 5% of distance and micro-jitter adds up to 1.5px per
	// axis, so both endpoints land within that tolerance of their anchors.
	dist := start.Dist(end)
	tolerance := dist*DefaultPathConfig().NoiseAmplitude + 2*DefaultPathConfig().MicroJitterPx

	assert.InDelta(t, start.X, path[0].Pos.X, tolerance)
	assert.InDelta(t, start.Y, path[0].Pos.Y, tolerance)
	assert.InDelta(t, end.X, path[len(path)-1].Pos.X, tolerance)
	assert.InDelta(t, end.Y, path[len(path)-1].Pos.Y, tolerance)
}

func TestGenerateDelayBounds(t *testing.T) {
	t.Parallel()
	cfg := DefaultPathConfig()
	gen := NewSeededPathGenerator(cfg, 7, zaptest.NewLogger(t))

	start := Vector2D{X: 0, Y: 0}
	end := Vector2D{X: 400, Y: 300} // distance 500 -> base delay clamps to 100ms

	path := gen.Generate(start, end, 30)
	minDelay := time.Duration(float64(cfg.MaxStepDelay) * cfg.SpeedJitterMin)
	maxDelay := time.Duration(float64(cfg.MaxStepDelay)*cfg.SpeedJitterMax) + cfg.HesitationMax

	for i, pt := range path {
		assert.GreaterOrEqual(t, pt.Delay, minDelay, "point %d", i)
		assert.LessOrEqual(t, pt.Delay, maxDelay, "point %d", i)
	}
}

func TestGenerateShortMoveClampsToMinimumDelay(t *testing.T) {
	t.Parallel()
	cfg := DefaultPathConfig()
	gen := NewSeededPathGenerator(cfg, 7, zaptest.NewLogger(t))

	// Distance 4px -> raw base delay 2ms, clamped up to MinStepDelay.
	path := gen.Generate(Vector2D{X: 10, Y: 10}, Vector2D{X: 14, Y: 10}, 10)

	minDelay := time.Duration(float64(cfg.MinStepDelay) * cfg.SpeedJitterMin)
	for i, pt := range path {
		assert.GreaterOrEqual(t, pt.Delay, minDelay, "point %d", i)
	}
}

func TestGenerateDegenerateStepCount(t *testing.T) {
	t.Parallel()
	gen := NewSeededPathGenerator(DefaultPathConfig(), 1, zaptest.NewLogger(t))

	start := Vector2D{X: 50, Y: 60}
	path := gen.Generate(start, Vector2D{X: 500, Y: 600}, 0)

	require.Len(t, path, 1)
	assert.Equal(t, start, path[0].Pos)
	assert.Equal(t, DefaultPathConfig().MinStepDelay, path[0].Delay)
}

func TestGenerateZeroDistance(t *testing.T) {
	t.Parallel()
	gen := NewSeededPathGenerator(DefaultPathConfig(), 9, zaptest.NewLogger(t))

	p := Vector2D{X: 333, Y: 444}
	path := gen.Generate(p, p, 20)
	require.Len(t, path, 21)

	// With zero distance the noise amplitude collapses to zero, leaving only
	// micro-jitter around the anchor point.
	for i, pt := range path {
		assert.InDelta(t, p.X, pt.Pos.X, DefaultPathConfig().MicroJitterPx, "point %d", i)
		assert.InDelta(t, p.Y, pt.Pos.Y, DefaultPathConfig().MicroJitterPx, "point %d", i)
	}
}

func TestGenerateSeededDeterminism(t *testing.T) {
	t.Parallel()
	logger := zaptest.NewLogger(t)
	a := NewSeededPathGenerator(DefaultPathConfig(), 1234, logger)
	b := NewSeededPathGenerator(DefaultPathConfig(), 1234, logger)

	start, end := Vector2D{X: 10, Y: 20}, Vector2D{X: 800, Y: 600}
	assert.Equal(t, a.Generate(start, end, 25), b.Generate(start, end, 25))

	c := NewSeededPathGenerator(DefaultPathConfig(), 5678, logger)
	assert.NotEqual(t, a.Generate(start, end, 25), c.Generate(start, end, 25),
		"different seeds should diverge")
}

func TestGenerateZeroConfigFallsBackToDefaults(t *testing.T) {
	t.Parallel()
	gen := NewSeededPathGenerator(PathConfig{}, 3, zaptest.NewLogger(t))

	path := gen.Generate(Vector2D{}, Vector2D{X: 100, Y: 100}, 5)
	require.Len(t, path, 6)
	for _, pt := range path {
		assert.Greater(t, pt.Delay, time.Duration(0))
	}
}

func TestEaseInOutQuad(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0.0, easeInOutQuad(0))
	assert.Equal(t, 0.5, easeInOutQuad(0.5))
	assert.Equal(t, 1.0, easeInOutQuad(1))

	// Slow start, fast middle: the first quarter covers less ground than the
	// second.
	firstQuarter := easeInOutQuad(0.25) - easeInOutQuad(0)
	secondQuarter := easeInOutQuad(0.5) - easeInOutQuad(0.25)
	assert.Less(t, firstQuarter, secondQuarter)
}
