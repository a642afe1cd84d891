// Package corruption implements the glitch effects applied to corrupted drive
// items: text mutation, style classes, the per-item activity scheduler and the
// ingestion policy that decides which uploads are corrupted.
package corruption

import "unicode"

// RatePerLevel is the fraction of characters touched per corruption level.
const RatePerLevel = 0.15

var blockGlyphs = []rune{
	'█', '▓', '▒', '░', '◆', '◇', '◈', '◉', '●', '○', '▪',
	'▫', '■', '□', '▲', '△', '▼', '▽', '◀', '▷', '◁', '▶',
}

var glitchGlyphs = []rune{
	'!', '@', '#', '$', '%', '^', '&', '*', '?', '<', '>', '|', '~', '`',
}

var leet = map[rune]rune{
	'a': '@',
	'e': '3',
	'i': '1',
	'o': '0',
	's': '$',
	't': '7',
	'l': '1',
}

// Engine mutates display text of actively glitching items.
type Engine struct {
	rng RandomSource
}

// NewEngine creates an engine drawing from rng.
func NewEngine(rng RandomSource) *Engine {
	return &Engine{rng: rng}
}

// CorruptText returns text with characters substituted according to level.
// Inactive items are returned unchanged. Every call draws fresh randomness,
// so two calls on the same input generally differ.
func (e *Engine) CorruptText(text string, level int, active bool) string {
	if !active || level <= 0 || text == "" {
		return text
	}
	if level > 3 {
		level = 3
	}
	rate := float64(level) * RatePerLevel

	runes := []rune(text)
	for i, r := range runes {
		if e.rng.Float64() >= rate {
			continue
		}
		switch {
		case level >= 3:
			runes[i] = blockGlyphs[e.rng.IntN(len(blockGlyphs))]
		case level == 2:
			runes[i] = glitchGlyphs[e.rng.IntN(len(glitchGlyphs))]
		default:
			if sub, ok := leet[unicode.ToLower(r)]; ok {
				runes[i] = sub
			}
		}
	}
	return string(runes)
}

// Style is a space separated list of presentation classes.
type Style string

const (
	StyleNone   Style = ""
	styleBase   Style = "transition-all duration-100"
	StyleLevel1 Style = styleBase + " text-red-400/80"
	StyleLevel2 Style = styleBase + " text-red-400 animate-pulse"
	StyleLevel3 Style = styleBase + " text-red-500 animate-pulse bg-red-500/10 px-1 -mx-1 rounded"
)

// Classes returns the style of an item. Intensity strictly increases from
// level 1 to 3; inactive items and level 0 get StyleNone.
func Classes(level int, active bool) Style {
	if !active {
		return StyleNone
	}
	switch {
	case level <= 0:
		return StyleNone
	case level == 1:
		return StyleLevel1
	case level == 2:
		return StyleLevel2
	default:
		return StyleLevel3
	}
}
