package narrative

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRandom struct{ n int }

func (f *fixedRandom) IntN(n int) int {
	v := f.n % n
	f.n++
	return v
}

func fire(s State, kinds ...EventKind) State {
	for _, k := range kinds {
		s = Next(s, Event{Kind: k})
	}
	return s
}

func TestNextClicks(t *testing.T) {
	two := fire(Initial(), EventCorruptedClick, EventCorruptedClick)
	assert.Equal(t, Level1, two.Level)
	assert.Equal(t, 2, two.CorruptedClicks)

	three := fire(two, EventCorruptedClick)
	assert.Equal(t, Level2, three.Level)

	// Clicks keep counting but never move past level2 on their own.
	more := fire(three, EventCorruptedClick, EventCorruptedClick, EventCorruptedClick)
	assert.Equal(t, Level2, more.Level)
	assert.Equal(t, 6, more.CorruptedClicks)
}

func TestNextSecretOnlyFromLevel2(t *testing.T) {
	assert.Equal(t, Level1, fire(Initial(), EventSecretMatched).Level)

	s := State{Level: Level2, SecretCode: []string{"KeyQ"}}
	assert.Equal(t, Level3, fire(s, EventSecretMatched).Level)
	assert.Equal(t, Level3, fire(State{Level: Level3}, EventSecretMatched).Level)
}

func TestNextRepairs(t *testing.T) {
	early := fire(Initial(), EventRepair, EventRepair, EventRepair)
	assert.Equal(t, Level1, early.Level)
	assert.Zero(t, early.RepairAttempts)

	s := fire(State{Level: Level3}, EventRepair, EventRepair)
	assert.Equal(t, Level3, s.Level)

	s = fire(s, EventRepair)
	assert.Equal(t, Level4, s.Level)
	assert.Equal(t, 3, s.RepairAttempts)
}

func TestNextIsPure(t *testing.T) {
	s := State{Level: Level2, SecretCode: []string{"KeyQ", "KeyW"}}
	next := Next(s, Event{Kind: EventSecretMatched})
	next.SecretCode[0] = "KeyP"

	assert.Equal(t, Level2, s.Level)
	assert.Equal(t, "KeyQ", s.SecretCode[0])
}

func TestLevel4IsTerminal(t *testing.T) {
	s := State{Level: Level4, CorruptedClicks: 3, RepairAttempts: 3}
	for _, k := range []EventKind{EventCorruptedClick, EventSecretMatched, EventRepair} {
		s = fire(s, k)
		assert.Equal(t, Level4, s.Level)
	}
	assert.Equal(t, 4, s.CorruptedClicks)
	assert.Equal(t, 4, s.RepairAttempts)
}

func TestWithSecretGeneratesOnce(t *testing.T) {
	s := State{Level: Level2}
	require.True(t, s.NeedsSecret())

	s = WithSecret(s, []string{"KeyQ", "KeyW", "KeyE", "KeyR", "KeyT", "KeyY"})
	assert.False(t, s.NeedsSecret())

	again := WithSecret(s, []string{"KeyP", "KeyP", "KeyP", "KeyP", "KeyP", "KeyP"})
	assert.Equal(t, s.SecretCode, again.SecretCode)

	assert.False(t, Initial().NeedsSecret())
	assert.Empty(t, WithSecret(Initial(), []string{"KeyQ"}).SecretCode)
}

func TestGenerateSecret(t *testing.T) {
	code := GenerateSecret(&fixedRandom{})
	assert.Equal(t, []string{"KeyQ", "KeyW", "KeyE", "KeyR", "KeyT", "KeyY"}, code)
	assert.Equal(t, "Q + W + E + R + T + Y", SecretHint(code))
}

func TestLevelText(t *testing.T) {
	for _, l := range []Level{Level1, Level2, Level3, Level4} {
		text, err := l.MarshalText()
		require.NoError(t, err)

		var parsed Level
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, l, parsed)
	}
	_, err := ParseLevel("level9")
	assert.Error(t, err)
}

func TestPresentationEscalates(t *testing.T) {
	assert.False(t, Level1.Presentation().ShowCorruption)
	assert.True(t, Level2.Presentation().ShowCorruption)
	assert.Equal(t, VariantDrive, Level2.Presentation().Variant)
	assert.Equal(t, VariantTerminal, Level3.Presentation().Variant)
	assert.True(t, Level3.Presentation().TitleGlitch)
	assert.False(t, Level3.Presentation().HeavyCorruption)
	assert.True(t, Level4.Presentation().HeavyCorruption)
	assert.True(t, Level4.Presentation().LainArt)
}
