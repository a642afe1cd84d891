// Package narrative holds the four-level unlock progression of a drive
// session. Transitions are pure functions of (state, event).
package narrative

import (
	"fmt"
	"slices"
	"strings"
)

// Level is a stage of the progression. Levels only move forward.
type Level int

const (
	Level1 Level = iota + 1
	Level2
	Level3
	Level4
)

func (l Level) String() string {
	if l < Level1 || l > Level4 {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return fmt.Sprintf("level%d", int(l))
}

// MarshalText encodes the level as "levelN".
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes "levelN".
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel parses "level1".."level4".
func ParseLevel(s string) (Level, error) {
	var n int
	if _, err := fmt.Sscanf(s, "level%d", &n); err != nil || n < int(Level1) || n > int(Level4) {
		return 0, fmt.Errorf("invalid level %q", s)
	}
	return Level(n), nil
}

const (
	// ClickThreshold corrupted-item clicks move level1 to level2.
	ClickThreshold = 3
	// RepairThreshold repair attempts move level3 to level4.
	RepairThreshold = 3
	// SecretLength is the number of tokens in the per-session secret.
	SecretLength = 6
)

// SecretAlphabet is the set of key codes the per-session secret is drawn from.
var SecretAlphabet = []string{"KeyQ", "KeyW", "KeyE", "KeyR", "KeyT", "KeyY", "KeyU", "KeyI", "KeyO", "KeyP"}

// State is the progression of one session.
type State struct {
	Level           Level    `json:"level"`
	CorruptedClicks int      `json:"corruptedFileClicks"`
	RepairAttempts  int      `json:"repairAttempts"`
	SecretCode      []string `json:"secretCode,omitempty"`
}

// Initial returns the state a new session starts in.
func Initial() State {
	return State{Level: Level1}
}

// EventKind enumerates the inputs that drive the progression.
type EventKind int

const (
	// EventCorruptedClick is a click on an item flagged corrupted.
	EventCorruptedClick EventKind = iota + 1
	// EventSecretMatched is the per-session secret being entered.
	EventSecretMatched
	// EventRepair is the repair action invoked on a corrupted item.
	EventRepair
)

func (k EventKind) String() string {
	switch k {
	case EventCorruptedClick:
		return "corrupted_click"
	case EventSecretMatched:
		return "secret_matched"
	case EventRepair:
		return "repair"
	default:
		return "unknown"
	}
}

// Event is an input to Next.
type Event struct {
	Kind EventKind
}

// Next returns the state after e. It never moves to an earlier level and
// never lowers a counter. Repairs only count once the repair action exists,
// from level3 on.
func Next(s State, e Event) State {
	next := s
	next.SecretCode = slices.Clone(s.SecretCode)

	switch e.Kind {
	case EventCorruptedClick:
		next.CorruptedClicks++
		if next.Level == Level1 && next.CorruptedClicks >= ClickThreshold {
			next.Level = Level2
		}
	case EventSecretMatched:
		if next.Level == Level2 {
			next.Level = Level3
		}
	case EventRepair:
		if next.Level < Level3 {
			return next
		}
		next.RepairAttempts++
		if next.Level == Level3 && next.RepairAttempts >= RepairThreshold {
			next.Level = Level4
		}
	}
	return next
}

// NeedsSecret reports whether the session has reached level2 without a
// secret being generated yet.
func (s State) NeedsSecret() bool {
	return s.Level >= Level2 && len(s.SecretCode) == 0
}

// WithSecret returns s carrying code. A secret is generated once per
// session; if s already has one it is returned unchanged.
func WithSecret(s State, code []string) State {
	if !s.NeedsSecret() {
		return s
	}
	s.SecretCode = slices.Clone(code)
	return s
}

// Random is the randomness needed to generate secrets and pick messages.
type Random interface {
	IntN(n int) int
}

// GenerateSecret draws SecretLength tokens uniformly from SecretAlphabet.
func GenerateSecret(rng Random) []string {
	code := make([]string, SecretLength)
	for i := range code {
		code[i] = SecretAlphabet[rng.IntN(len(SecretAlphabet))]
	}
	return code
}

// SecretHint formats a secret the way the diagnostic notice shows it,
// e.g. "Q + W + E + R + T + Y".
func SecretHint(code []string) string {
	keys := make([]string, len(code))
	for i, k := range code {
		keys[i] = strings.TrimPrefix(k, "Key")
	}
	return strings.Join(keys, " + ")
}
