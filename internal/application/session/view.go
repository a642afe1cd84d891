package session

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"navidrive/internal/domain/corruption"
	"navidrive/internal/domain/drive"
	"navidrive/internal/domain/narrative"
)

const (
	TitleClean    = "lain_drive://"
	TitleGlitched = "l@in_driv3://"

	titleGlitchChance = 0.3
	rowPulseChance    = 0.3
)

// fileNotices are shown when particular clean files are opened.
var fileNotices = map[string]string{
	"navi.exe":                     "Navi activated. I am here.",
	"present_day_present_time.txt": `"Present day... Present time... Ahahahaha!"`,
}

// OverlayKind names a full screen overlay.
type OverlayKind string

const (
	OverlayNeuralLink OverlayKind = "neural_link"
	OverlayLayer14    OverlayKind = "layer_14"
)

var overlayText = map[OverlayKind][2]string{
	OverlayNeuralLink: {"NEURAL LINK ESTABLISHED", "Synchronizing consciousness..."},
	OverlayLayer14:    {"LAYER 14 ACCESSED", "You are everywhere"},
}

// Overlay is a short lived full screen message.
type Overlay struct {
	Kind     OverlayKind `json:"kind"`
	Title    string      `json:"title"`
	Subtitle string      `json:"subtitle"`
}

// Notice is a line in the session's message log.
type Notice struct {
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Crumb is one breadcrumb segment.
type Crumb struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ItemView is an item as the session currently sees it. Name, Size and
// Modified carry the corrupted text while the item is glitching.
type ItemView struct {
	Ref             drive.Ref        `json:"ref"`
	Kind            drive.ItemKind   `json:"kind"`
	Name            string           `json:"name"`
	Size            string           `json:"size"`
	Modified        string           `json:"modified"`
	FileType        string           `json:"fileType,omitempty"`
	URL             string           `json:"url,omitempty"`
	Corrupted       bool             `json:"corrupted"`
	CorruptionLevel int              `json:"corruptionLevel"`
	Active          bool             `json:"active"`
	Style           corruption.Style `json:"style"`
	Pulse           bool             `json:"pulse"`
	Selected        bool             `json:"selected"`
}

// View is the rendered state of a session.
type View struct {
	SessionID       string                 `json:"sessionId"`
	Title           string                 `json:"title"`
	Level           narrative.Level        `json:"level"`
	CorruptedClicks int                    `json:"corruptedFileClicks"`
	RepairAttempts  int                    `json:"repairAttempts"`
	Presentation    narrative.Presentation `json:"presentation"`
	NaviMode        bool                   `json:"naviMode"`
	Glitch          bool                   `json:"glitch"`
	Overlays        []Overlay              `json:"overlays"`
	Loading         bool                   `json:"loading"`
	Missing         bool                   `json:"missing"`
	FolderID        int64                  `json:"folderId"`
	FolderName      string                 `json:"folderName,omitempty"`
	Breadcrumbs     []Crumb                `json:"breadcrumbs"`
	Items           []ItemView             `json:"items"`
	Filter          string                 `json:"filter,omitempty"`
	Selected        int                    `json:"selected"`
	Notices         []Notice               `json:"notices"`
	Generation      uint64                 `json:"generation"`
}

func (c *core) view(filter string) View {
	state := c.machine.State()
	pres := state.Level.Presentation()
	filter = strings.TrimSpace(filter)

	v := View{
		SessionID:       c.rt.id,
		Title:           c.title(pres),
		Level:           state.Level,
		CorruptedClicks: state.CorruptedClicks,
		RepairAttempts:  state.RepairAttempts,
		Presentation:    pres,
		NaviMode:        c.naviMode,
		Glitch:          c.glitch,
		Overlays:        c.liveOverlays(),
		Loading:         !c.nav.Resolved(),
		FolderID:        c.nav.Current(),
		Breadcrumbs:     []Crumb{},
		Items:           []ItemView{},
		Filter:          filter,
		Selected:        c.nav.SelectionSize(),
		Notices:         append([]Notice{}, c.notices...),
		Generation:      c.nav.Generation(),
	}

	folder := c.nav.Folder()
	v.Missing = c.nav.Resolved() && folder == nil
	if folder != nil {
		v.FolderName = folder.Name
	}
	for _, f := range c.nav.Breadcrumbs() {
		v.Breadcrumbs = append(v.Breadcrumbs, Crumb{ID: f.ID, Name: f.Name})
	}

	needle := strings.ToLower(filter)
	for _, item := range c.visibleItems() {
		if needle != "" && !strings.Contains(strings.ToLower(item.Name), needle) {
			continue
		}
		v.Items = append(v.Items, c.itemView(item, pres))
	}
	return v
}

func (c *core) title(p narrative.Presentation) string {
	if p.TitleGlitch && c.rng.Float64() < titleGlitchChance {
		return TitleGlitched
	}
	return TitleClean
}

func (c *core) liveOverlays() []Overlay {
	now := c.now()
	out := []Overlay{}
	for _, kind := range []OverlayKind{OverlayNeuralLink, OverlayLayer14} {
		until, ok := c.overlays[kind]
		if !ok {
			continue
		}
		if !now.Before(until) {
			delete(c.overlays, kind)
			continue
		}
		text := overlayText[kind]
		out = append(out, Overlay{Kind: kind, Title: text[0], Subtitle: text[1]})
	}
	return out
}

// displayLevel is the level an item is animated and rendered at. Heavy
// corruption shows every item one level worse.
func displayLevel(item drive.Item, p narrative.Presentation) int {
	if p.HeavyCorruption {
		return min(item.CorruptionLevel+1, drive.MaxCorruptionLevel)
	}
	return item.CorruptionLevel
}

func (c *core) itemView(item drive.Item, p narrative.Presentation) ItemView {
	iv := ItemView{
		Ref:      item.Ref(),
		Kind:     item.Kind,
		Name:     item.Name,
		Size:     "-",
		Modified: item.Modified,
		FileType: item.FileType,
		URL:      item.URL,
		Selected: c.nav.IsSelected(item.Ref()),
		Pulse:    c.glitch && c.rng.Float64() < rowPulseChance,
	}
	if !item.IsFolder() {
		iv.Size = humanize.Bytes(uint64(max(item.Size, 0)))
	}

	// The clean drive shows no trace of corruption.
	if !p.ShowCorruption || !item.Corrupted {
		return iv
	}

	level := displayLevel(item, p)
	active := c.active.Active(item.Ref())

	iv.Corrupted = true
	iv.CorruptionLevel = level
	iv.Active = active
	iv.Style = corruption.Classes(level, active)
	iv.Name = c.engine.CorruptText(item.Name, level, active)
	iv.Size = c.engine.CorruptText(iv.Size, level, active)
	iv.Modified = c.engine.CorruptText(item.Modified, level, active)
	return iv
}
