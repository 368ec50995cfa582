// File: internal/humanoid/path.go
// Description: Pointer-trajectory synthesis. A path is a deterministic
// function of its endpoints, the step count and the injected random source;
// coherent Perlin noise supplies the natural curvature, independent uniform
// micro-jitter keeps the noise curve itself from being perfectly smooth.
package humanoid

import (
	"math"
	"math/rand"
	"time"

	"github.com/aquilax/go-perlin"
	"go.uber.org/zap"
)

// TrajectoryPoint is one step of a synthesized pointer path. Delay is the
// wait before moving to this point, not after.
type TrajectoryPoint struct {
	Pos   Vector2D
	Delay time.Duration
}

// PathConfig holds the tunable parameters of the synthesizer.
type PathConfig struct {
	// NoiseScale controls the waviness of the path: how far along the noise
	// field one unit of progress travels.
	NoiseScale float64
	// NoiseAmplitude is the coherent-noise displacement as a fraction of the
	// total move distance.
	NoiseAmplitude float64
	// MicroJitterPx bounds the per-step uniform jitter on each axis.
	MicroJitterPx float64
	// DelayPerPixel converts move distance into the base per-step delay,
	// clamped to [MinStepDelay, MaxStepDelay].
	DelayPerPixel float64
	MinStepDelay  time.Duration
	MaxStepDelay  time.Duration
	// SpeedJitterMin/Max bound the uniform multiplier applied to each step
	// delay.
	SpeedJitterMin float64
	SpeedJitterMax float64
	// HesitationChance is the probability of injecting an extra pause of
	// [HesitationMin, HesitationMax] on a step.
	HesitationChance float64
	HesitationMin    time.Duration
	HesitationMax    time.Duration
}

// DefaultPathConfig returns the tuning the motion model was validated with.
func DefaultPathConfig() PathConfig {
	return PathConfig{
		NoiseScale:       10.0,
		NoiseAmplitude:   0.05,
		MicroJitterPx:    1.5,
		DelayPerPixel:    0.5,
		MinStepDelay:     5 * time.Millisecond,
		MaxStepDelay:     100 * time.Millisecond,
		SpeedJitterMin:   0.7,
		SpeedJitterMax:   1.3,
		HesitationChance: 0.05,
		HesitationMin:    20 * time.Millisecond,
		HesitationMax:    80 * time.Millisecond,
	}
}

// Standard Perlin parameters shared by both noise channels.
const (
	perlinAlpha = 2.0
	perlinBeta  = 2.0
	perlinN     = int32(3)
)

// PathGenerator synthesizes pointer trajectories. Not safe for concurrent
// use; the mission task is the only caller.
type PathGenerator struct {
	cfg    PathConfig
	rng    *rand.Rand
	noiseX *perlin.Perlin
	noiseY *perlin.Perlin
	logger *zap.Logger
}

// NewPathGenerator creates a generator with a time-derived seed.
func NewPathGenerator(cfg PathConfig, logger *zap.Logger) *PathGenerator {
	return NewSeededPathGenerator(cfg, time.Now().UnixNano(), logger)
}

// NewSeededPathGenerator creates a generator whose output is fully
// determined by the seed. Tests use this for reproducible paths.
func NewSeededPathGenerator(cfg PathConfig, seed int64, logger *zap.Logger) *PathGenerator {
	if cfg == (PathConfig{}) {
		cfg = DefaultPathConfig()
	}
	return &PathGenerator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
		// Offset seed for the Y channel so the axes decorrelate.
		noiseX: perlin.NewPerlin(perlinAlpha, perlinBeta, perlinN, seed),
		noiseY: perlin.NewPerlin(perlinAlpha, perlinBeta, perlinN, seed+1),
		logger: logger.With(zap.String("component", "humanoid")),
	}
}

// Generate produces a trajectory of steps+1 points from start to end. The
// first point lands within noise tolerance of start and the last within
// noise tolerance of end. steps < 1 degenerates to the start point alone;
// start == end yields a cluster at start with zero noise amplitude.
func (g *PathGenerator) Generate(start, end Vector2D, steps int) []TrajectoryPoint {
	if steps < 1 {
		return []TrajectoryPoint{{Pos: start, Delay: g.cfg.MinStepDelay}}
	}

	dist := start.Dist(end)
	span := end.Sub(start)

	// Humans move slower over longer distances, but not unboundedly.
	baseDelay := time.Duration(dist*g.cfg.DelayPerPixel) * time.Millisecond
	baseDelay = clampDuration(baseDelay, g.cfg.MinStepDelay, g.cfg.MaxStepDelay)

	// Noise displacement scales with distance; a zero-length move gets none,
	// which also keeps the degenerate case division-free.
	amplitude := dist * g.cfg.NoiseAmplitude

	path := make([]TrajectoryPoint, 0, steps+1)
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		eased := easeInOutQuad(t)

		pos := start.Add(span.Mul(eased))
		pos = pos.Add(Vector2D{
			X: g.noiseX.Noise1D(t*g.cfg.NoiseScale) * amplitude,
			Y: g.noiseY.Noise1D(t*g.cfg.NoiseScale) * amplitude,
		})
		pos = pos.Add(Vector2D{
			X: g.uniform(-g.cfg.MicroJitterPx, g.cfg.MicroJitterPx),
			Y: g.uniform(-g.cfg.MicroJitterPx, g.cfg.MicroJitterPx),
		})

		delay := time.Duration(float64(baseDelay) * g.uniform(g.cfg.SpeedJitterMin, g.cfg.SpeedJitterMax))
		if g.rng.Float64() < g.cfg.HesitationChance {
			delay += g.uniformDuration(g.cfg.HesitationMin, g.cfg.HesitationMax)
		}

		path = append(path, TrajectoryPoint{Pos: pos, Delay: delay})
	}

	g.logger.Debug("Synthesized pointer trajectory",
		zap.Int("points", len(path)),
		zap.Float64("distance_px", dist),
		zap.Duration("base_step_delay", baseDelay),
	)
	return path
}

// easeInOutQuad accelerates for t < 0.5 and decelerates afterwards,
// mirroring how humans approach a target.
func easeInOutQuad(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return 1 - math.Pow(-2*t+2, 2)/2
}

func (g *PathGenerator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

func (g *PathGenerator) uniformDuration(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(g.rng.Int63n(int64(hi-lo)))
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}
