package narrative

// Machine is the stateful wrapper around Next that also generates the
// per-session secret on entering level2 and collects transition notices.
type Machine struct {
	state State
	rng   Random
}

// NewMachine creates a machine starting at s. Restored states that already
// reached level2 keep their secret; one is generated if it is missing.
func NewMachine(s State, rng Random) *Machine {
	m := &Machine{state: s, rng: rng}
	if m.state.Level < Level1 {
		m.state.Level = Level1
	}
	m.ensureSecret()
	return m
}

// State returns a copy of the current state.
func (m *Machine) State() State {
	s := m.state
	s.SecretCode = append([]string(nil), m.state.SecretCode...)
	return s
}

// Level returns the current level.
func (m *Machine) Level() Level {
	return m.state.Level
}

// Transition describes the effect of one Fire call.
type Transition struct {
	From    Level
	To      Level
	Notices []string
}

// Changed reports whether the level moved.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Fire applies e and returns what changed.
func (m *Machine) Fire(e Event) Transition {
	prev := m.state
	m.state = Next(m.state, e)
	m.ensureSecret()

	tr := Transition{From: prev.Level, To: m.state.Level}
	if e.Kind == EventRepair && m.state.RepairAttempts > prev.RepairAttempts {
		tr.Notices = append(tr.Notices, RepairNotice(m.state.RepairAttempts))
	}
	if tr.Changed() {
		tr.Notices = append(tr.Notices, TransitionNotices(tr.To, m.state, m.rng)...)
	}
	return tr
}

func (m *Machine) ensureSecret() {
	if m.state.NeedsSecret() {
		m.state = WithSecret(m.state, GenerateSecret(m.rng))
	}
}
