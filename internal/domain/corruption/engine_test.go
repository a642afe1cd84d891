package corruption

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSource replays fixed draws and fails the test when it runs dry.
type scriptedSource struct {
	t      *testing.T
	floats []float64
	ints   []int
}

func (s *scriptedSource) Float64() float64 {
	s.t.Helper()
	require.NotEmpty(s.t, s.floats, "scripted source out of floats")
	f := s.floats[0]
	s.floats = s.floats[1:]
	return f
}

func (s *scriptedSource) IntN(n int) int {
	s.t.Helper()
	require.NotEmpty(s.t, s.ints, "scripted source out of ints")
	i := s.ints[0]
	s.ints = s.ints[1:]
	require.Less(s.t, i, n)
	return i
}

func TestCorruptTextInactiveIsIdentity(t *testing.T) {
	e := NewEngine(NewSource(1))
	for level := 0; level <= 3; level++ {
		for _, text := range []string{"", "navi.exe", "close_the_world.wav", "日本語"} {
			assert.Equal(t, text, e.CorruptText(text, level, false))
		}
	}
}

func TestCorruptTextLevelZeroAndEmpty(t *testing.T) {
	e := NewEngine(&scriptedSource{t: t})
	assert.Equal(t, "wired", e.CorruptText("wired", 0, true))
	assert.Equal(t, "", e.CorruptText("", 3, true))
}

func TestCorruptTextLevelOneUsesLeetTable(t *testing.T) {
	// Rate is 0.15; every draw below it selects the character.
	src := &scriptedSource{t: t, floats: []float64{0.1, 0.1, 0.9, 0.1, 0.1}}
	e := NewEngine(src)

	// S -> $, a -> @, l skipped, x has no mapping, T -> 7
	assert.Equal(t, "$@lx7", e.CorruptText("SalxT", 1, true))
}

func TestCorruptTextLevelTwoUsesGlitchPalette(t *testing.T) {
	src := &scriptedSource{
		t:      t,
		floats: []float64{0.29, 0.31, 0.0},
		ints:   []int{0, 13},
	}
	e := NewEngine(src)
	assert.Equal(t, "!b`", e.CorruptText("abc", 2, true))
}

func TestCorruptTextLevelThreeUsesBlockPalette(t *testing.T) {
	src := &scriptedSource{
		t:      t,
		floats: []float64{0.44, 0.45, 0.2},
		ints:   []int{0, 21},
	}
	e := NewEngine(src)
	assert.Equal(t, "█y▶", e.CorruptText("xyz", 3, true))
}

func TestCorruptTextKeepsRuneCount(t *testing.T) {
	e := NewEngine(NewSource(7))
	in := "psyche_processor.dll"
	for i := 0; i < 100; i++ {
		out := e.CorruptText(in, 3, true)
		assert.Equal(t, utf8.RuneCountInString(in), utf8.RuneCountInString(out))
	}
}

func TestCorruptTextIsNotDeterministic(t *testing.T) {
	e := NewEngine(NewSource(99))
	in := strings.Repeat("knights_of_eastern_calculus", 2)
	seen := make(map[string]struct{})
	for i := 0; i < 20; i++ {
		seen[e.CorruptText(in, 3, true)] = struct{}{}
	}
	assert.Greater(t, len(seen), 1, "active corruption should vary between calls")
}

func TestCorruptTextRateConverges(t *testing.T) {
	const (
		trials = 2000
		length = 100
	)
	in := strings.Repeat("x", length)
	e := NewEngine(NewSource(2024))

	for _, level := range []int{2, 3} {
		altered := 0
		for i := 0; i < trials; i++ {
			out := []rune(e.CorruptText(in, level, true))
			for _, r := range out {
				if r != 'x' {
					altered++
				}
			}
		}
		rate := float64(altered) / float64(trials*length)
		assert.InDelta(t, float64(level)*RatePerLevel, rate, 0.05, "level %d", level)
	}
}

func TestClassesIntensityOrdering(t *testing.T) {
	inactive := Classes(3, false)
	l1 := Classes(1, true)
	l2 := Classes(2, true)
	l3 := Classes(3, true)

	assert.Equal(t, StyleNone, inactive)
	assert.Equal(t, StyleNone, Classes(0, true))
	assert.NotEqual(t, inactive, l1)
	assert.NotEqual(t, l1, l2)
	assert.NotEqual(t, l2, l3)

	// Each level adds to the previous level's emphasis.
	assert.NotContains(t, string(l1), "animate-pulse")
	assert.Contains(t, string(l2), "animate-pulse")
	assert.Contains(t, string(l3), "animate-pulse")
	assert.Contains(t, string(l3), "bg-red-500/10")
}
