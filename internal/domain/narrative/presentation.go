package narrative

// Variant is the rendering variant shown to the session.
type Variant string

const (
	VariantDrive    Variant = "drive"
	VariantTerminal Variant = "terminal"
)

// Presentation holds the visual toggles derived from a level.
type Presentation struct {
	Variant         Variant `json:"variant"`
	ShowCorruption  bool    `json:"showCorruption"`
	TitleGlitch     bool    `json:"titleGlitch"`
	Flashes         bool    `json:"flashes"`
	HeavyCorruption bool    `json:"heavyCorruption"`
	LainArt         bool    `json:"lainArt"`
}

// Presentation returns the toggles for l.
func (l Level) Presentation() Presentation {
	switch l {
	case Level2:
		return Presentation{Variant: VariantDrive, ShowCorruption: true}
	case Level3:
		return Presentation{Variant: VariantTerminal, ShowCorruption: true, TitleGlitch: true, Flashes: true}
	case Level4:
		return Presentation{
			Variant:         VariantTerminal,
			ShowCorruption:  true,
			TitleGlitch:     true,
			Flashes:         true,
			HeavyCorruption: true,
			LainArt:         true,
		}
	default:
		return Presentation{Variant: VariantDrive}
	}
}
