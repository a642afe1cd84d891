package corruption

import (
	"time"

	"navidrive/internal/domain/drive"
)

const (
	// ChancePerLevel is the per-tick probability, per level, that a corrupted
	// item is actively glitching.
	ChancePerLevel = 0.2
	// GlitchChance is the per-tick probability of a page-wide glitch flash.
	GlitchChance = 0.1
)

// Timing holds the tick intervals of the effect schedulers.
type Timing struct {
	CorruptionInterval time.Duration
	GlitchInterval     time.Duration
	GlitchFlash        time.Duration
}

// DefaultTiming returns the reference tick intervals.
func DefaultTiming() Timing {
	return Timing{
		CorruptionInterval: 500 * time.Millisecond,
		GlitchInterval:     3 * time.Second,
		GlitchFlash:        150 * time.Millisecond,
	}
}

// ActiveMap records which visible items are glitching during the current tick.
type ActiveMap map[drive.Ref]bool

// Active reports whether ref is glitching. A nil map has nothing active.
func (m ActiveMap) Active(ref drive.Ref) bool {
	return m[ref]
}

// Scheduler re-rolls item activity independently per item.
type Scheduler struct {
	rng RandomSource
}

// NewScheduler creates a scheduler drawing from rng.
func NewScheduler(rng RandomSource) *Scheduler {
	return &Scheduler{rng: rng}
}

// Tick computes a fresh ActiveMap for items. Items that are not corrupted are
// never active and draw no randomness.
func (s *Scheduler) Tick(items []drive.Item) ActiveMap {
	active := make(ActiveMap, len(items))
	for _, item := range items {
		if !item.Corrupted || item.CorruptionLevel <= 0 {
			continue
		}
		active[item.Ref()] = s.rng.Float64() < float64(item.CorruptionLevel)*ChancePerLevel
	}
	return active
}

// Glitch decides when the page-wide glitch flash fires.
type Glitch struct {
	rng    RandomSource
	chance float64
}

// NewGlitch creates a glitch roller with the reference chance.
func NewGlitch(rng RandomSource) *Glitch {
	return &Glitch{rng: rng, chance: GlitchChance}
}

// Roll reports whether the flash fires on this tick.
func (g *Glitch) Roll() bool {
	return g.rng.Float64() < g.chance
}
