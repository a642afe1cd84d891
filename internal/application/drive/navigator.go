package drive

import (
	domain "navidrive/internal/domain/drive"
)

// Listing is the result of resolving one folder for display.
type Listing struct {
	FolderID    int64
	Folder      *domain.Folder
	Contents    domain.Contents
	Breadcrumbs []domain.Folder
	// Missing is set when FolderID does not exist. The listing is then empty.
	Missing bool
	Err     error
}

func emptyContents() domain.Contents {
	return domain.Contents{Folders: []domain.Folder{}, Files: []domain.File{}}
}

// Navigator tracks the folder a session is looking at. It does no I/O: the
// owner fetches a Listing for the generation NavigateTo returns and hands it
// back through Apply, which drops results that a later navigation has
// superseded. Navigator is not safe for concurrent use.
type Navigator struct {
	current     int64
	generation  uint64
	resolved    bool
	folder      *domain.Folder
	contents    domain.Contents
	breadcrumbs []domain.Folder
	selected    map[domain.Ref]bool
}

// NewNavigator starts at folderID with nothing loaded.
func NewNavigator(folderID int64) *Navigator {
	n := &Navigator{selected: make(map[domain.Ref]bool)}
	n.NavigateTo(folderID)
	return n
}

// NavigateTo makes folderID current, clears the selection and the loaded
// contents, and returns the generation the next Apply must carry.
func (n *Navigator) NavigateTo(folderID int64) uint64 {
	n.current = folderID
	n.generation++
	n.resolved = false
	n.folder = nil
	n.contents = emptyContents()
	n.breadcrumbs = nil
	clear(n.selected)
	return n.generation
}

// Refresh re-requests the current folder without clearing the selection.
func (n *Navigator) Refresh() uint64 {
	n.generation++
	return n.generation
}

// GoUp navigates to the parent of the current folder. It reports false and
// changes nothing when the folder is the root or not resolved yet.
func (n *Navigator) GoUp() (uint64, bool) {
	if n.folder == nil || n.folder.IsRoot() {
		return 0, false
	}
	return n.NavigateTo(*n.folder.ParentID), true
}

// Apply installs l if gen is still the latest generation and reports
// whether it did.
func (n *Navigator) Apply(gen uint64, l Listing) bool {
	if gen != n.generation || l.FolderID != n.current {
		return false
	}
	if l.Err != nil {
		// Keep what is shown; the caller surfaces the error.
		return true
	}
	n.resolved = true
	n.folder = l.Folder
	n.contents = l.Contents
	n.breadcrumbs = l.Breadcrumbs
	for ref := range n.selected {
		if !n.contains(ref) {
			delete(n.selected, ref)
		}
	}
	return true
}

func (n *Navigator) contains(ref domain.Ref) bool {
	_, ok := n.Find(ref)
	return ok
}

// Generation returns the latest generation handed out.
func (n *Navigator) Generation() uint64 { return n.generation }

// Current returns the current folder id.
func (n *Navigator) Current() int64 { return n.current }

// Resolved reports whether a listing for the current folder has arrived.
func (n *Navigator) Resolved() bool { return n.resolved }

// Folder returns the current folder, or nil while unresolved or missing.
func (n *Navigator) Folder() *domain.Folder { return n.folder }

// Contents returns the loaded children of the current folder.
func (n *Navigator) Contents() domain.Contents { return n.contents }

// Breadcrumbs returns the root-first chain to the current folder.
func (n *Navigator) Breadcrumbs() []domain.Folder { return n.breadcrumbs }

// Find looks ref up among the loaded children.
func (n *Navigator) Find(ref domain.Ref) (domain.Item, bool) {
	switch ref.Kind {
	case domain.KindFolder:
		for _, f := range n.contents.Folders {
			if f.ID == ref.ID {
				return f.Item(), true
			}
		}
	case domain.KindFile:
		for _, f := range n.contents.Files {
			if f.ID == ref.ID {
				return f.Item(), true
			}
		}
	}
	return domain.Item{}, false
}

// ToggleSelect flips the selection of ref and reports whether it is now
// selected.
func (n *Navigator) ToggleSelect(ref domain.Ref) bool {
	if n.selected[ref] {
		delete(n.selected, ref)
		return false
	}
	n.selected[ref] = true
	return true
}

// IsSelected reports whether ref is selected.
func (n *Navigator) IsSelected(ref domain.Ref) bool { return n.selected[ref] }

// SelectionSize returns how many items are selected.
func (n *Navigator) SelectionSize() int { return len(n.selected) }
