package narrative

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineEndToEnd(t *testing.T) {
	m := NewMachine(Initial(), &fixedRandom{n: 3})
	require.Equal(t, Level1, m.Level())
	assert.Empty(t, m.State().SecretCode)

	m.Fire(Event{Kind: EventCorruptedClick})
	m.Fire(Event{Kind: EventCorruptedClick})
	tr := m.Fire(Event{Kind: EventCorruptedClick})
	require.True(t, tr.Changed())
	assert.Equal(t, Level2, tr.To)

	code := m.State().SecretCode
	require.Len(t, code, SecretLength)
	for _, k := range code {
		assert.Contains(t, SecretAlphabet, k)
	}
	assert.Contains(t, tr.Notices[len(tr.Notices)-1], SecretHint(code))

	// More clicks at level2 do not regenerate the secret.
	m.Fire(Event{Kind: EventCorruptedClick})
	assert.Equal(t, code, m.State().SecretCode)

	tr = m.Fire(Event{Kind: EventSecretMatched})
	assert.Equal(t, Level3, tr.To)
	require.Len(t, tr.Notices, 1)
	assert.Contains(t, level3Messages, tr.Notices[0])

	m.Fire(Event{Kind: EventRepair})
	tr = m.Fire(Event{Kind: EventRepair})
	assert.Equal(t, []string{RepairNotice(2)}, tr.Notices)
	tr = m.Fire(Event{Kind: EventRepair})
	assert.Equal(t, Level4, tr.To)
	assert.Equal(t, RepairNotice(3), tr.Notices[0])
	assert.Len(t, tr.Notices, 1+len(level4Messages))

	for _, k := range []EventKind{EventCorruptedClick, EventSecretMatched, EventRepair} {
		tr = m.Fire(Event{Kind: k})
		assert.False(t, tr.Changed())
		assert.Equal(t, Level4, m.Level())
	}
	assert.Equal(t, code, m.State().SecretCode)
}

func TestMachineRestoresSecret(t *testing.T) {
	saved := State{Level: Level2, CorruptedClicks: 3, SecretCode: []string{"KeyP", "KeyO", "KeyI", "KeyU", "KeyY", "KeyT"}}
	m := NewMachine(saved, &fixedRandom{})
	assert.Equal(t, saved.SecretCode, m.State().SecretCode)

	// A level2 snapshot without a secret gets one on restore.
	m = NewMachine(State{Level: Level2, CorruptedClicks: 3}, &fixedRandom{})
	assert.Len(t, m.State().SecretCode, SecretLength)
}

func TestMachineRepairBeforeLevel3HasNoNotice(t *testing.T) {
	m := NewMachine(Initial(), &fixedRandom{})
	tr := m.Fire(Event{Kind: EventRepair})
	assert.Empty(t, tr.Notices)
	assert.Zero(t, m.State().RepairAttempts)
}

func TestMachineStateIsCopy(t *testing.T) {
	m := NewMachine(State{Level: Level2}, &fixedRandom{})
	s := m.State()
	s.SecretCode[0] = "changed"
	assert.NotEqual(t, "changed", m.State().SecretCode[0])
}
