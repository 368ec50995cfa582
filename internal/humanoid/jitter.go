// File: internal/humanoid/jitter.go
// Description: Human-plausible timing for discrete actions. Every
// distribution here is bounded and overlapping on purpose: constant delays
// and unbounded tails are both detectable signatures.
package humanoid

import (
	"math"
	"math/rand"
	"time"
)

// Jitter samples action timings. Stateless between calls apart from the
// random source; not safe for concurrent use.
type Jitter struct {
	rng *rand.Rand
}

// NewJitter creates a sampler with a time-derived seed.
func NewJitter() *Jitter {
	return NewSeededJitter(time.Now().UnixNano())
}

// NewSeededJitter creates a deterministic sampler for tests.
func NewSeededJitter(seed int64) *Jitter {
	return &Jitter{rng: rand.New(rand.NewSource(seed))}
}

// HumanDelay returns a uniform sample in [0.7*base, 1.3*base], with integer
// millisecond bounds taken via floor and ceiling of the scaled values.
func (j *Jitter) HumanDelay(base time.Duration) time.Duration {
	baseMs := float64(base) / float64(time.Millisecond)
	lo := int64(math.Floor(baseMs * 0.7))
	hi := int64(math.Ceil(baseMs * 1.3))
	if hi <= lo {
		return base
	}
	return time.Duration(lo+j.rng.Int63n(hi-lo+1)) * time.Millisecond
}

// ClickTiming returns the delay before pressing, the press-hold duration,
// and the delay after releasing.
func (j *Jitter) ClickTiming() (press, hold, release time.Duration) {
	press = j.HumanDelay(50 * time.Millisecond)
	hold = j.uniformMs(80, 180)
	release = j.HumanDelay(30 * time.Millisecond)
	return press, hold, release
}

// KeystrokeDelay returns the gap between typed characters; 80-180ms tracks
// ordinary 40-60 WPM typing.
func (j *Jitter) KeystrokeDelay() time.Duration {
	return j.uniformMs(80, 180)
}

// ThinkingPause returns a short hesitation of 200-800ms.
func (j *Jitter) ThinkingPause() time.Duration {
	return j.uniformMs(200, 800)
}

// ReadingPause returns a pause proportional to the amount of visible content,
// clamped to 300ms-3s and then jittered. The scaling approximates a 250
// words-per-minute reading speed over ~5-character words.
func (j *Jitter) ReadingPause(contentLength int) time.Duration {
	baseMs := float64(contentLength) / 5.0 * 200.0
	baseMs = math.Min(3000, math.Max(300, baseMs))
	return j.HumanDelay(time.Duration(baseMs) * time.Millisecond)
}

// ShouldAddMicroAction reports whether to interleave an incidental action
// (a small scroll or cursor wiggle); true with 10% probability.
func (j *Jitter) ShouldAddMicroAction() bool {
	return j.rng.Float64() < 0.10
}

// uniformMs samples an integer millisecond count in [lo, hi].
func (j *Jitter) uniformMs(lo, hi int64) time.Duration {
	return time.Duration(lo+j.rng.Int63n(hi-lo+1)) * time.Millisecond
}
