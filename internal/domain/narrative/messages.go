package narrative

import "fmt"

var level3Messages = []string{
	"Neural interface activated. Welcome to the protocol layer.",
	"System breach detected. Entering maintenance mode.",
	"Reality buffer overflow. Switching to alternate timeline.",
	"Quantum entanglement established. You are now synchronized.",
	"Consciousness upload initiated. Please stand by...",
}

var level4Messages = []string{
	"CRITICAL ERROR: Reality.exe has stopped working.",
	"Layer 0 accessed. You are everywhere. You are everyone.",
	"Lain is watching. Lain is here. Lain is you.",
}

// TransitionNotices returns the notices shown when a session enters to.
func TransitionNotices(to Level, s State, rng Random) []string {
	switch to {
	case Level2:
		return []string{
			"Multiple corruption events detected. System diagnostic required.",
			"SYSTEM ERROR: Multiple file corruption detected.",
			"Enter sequence to access diagnostic mode: " + SecretHint(s.SecretCode),
		}
	case Level3:
		return []string{level3Messages[rng.IntN(len(level3Messages))]}
	case Level4:
		return append([]string(nil), level4Messages...)
	default:
		return nil
	}
}

// RepairNotice is shown for each counted repair attempt.
func RepairNotice(attempt int) string {
	return fmt.Sprintf("File repair attempt %d/%d...", attempt, RepairThreshold)
}
