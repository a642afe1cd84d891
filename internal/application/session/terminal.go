package session

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"navidrive/internal/domain/drive"
)

const (
	nameWidth     = 40
	sizeWidth     = 10
	modifiedWidth = 12
)

const lainArt = `
⠀⠀⠀⠀⠀⠀⣠⣴⣶⣶⣶⣤⡀⠀⠀⠀
⠀⠀⠀⠀⢀⣾⣿⣿⣿⣿⣿⣿⣿⣷⡀⠀
⠀⠀⠀⠀⣾⣿⣿⣿⣿⣿⣿⣿⣿⣿⣿⡄
⠀⠀⠀⢸⣿⣿⣿⣿⣿⣿⣿⣿⣿⣿⣿⣿⡀
⠀⠀⠀⢸⣿⣿⣿⣿⣿⣿⣿⣿⣿⣿⣿⣿⣇
⠀⠀⠀⠈⣿⣿⣿⣿⣿⣿⣿⣿⣿⣿⣿⣿⣿
⠀⠀⠀⠀⢹⣿⣿⣿⣿⣿⣿⣿⣿⣿⣿⣿⡿

          L A I N   I S   E V E R Y W H E R E
          Y O U   A R E   L A I N . . .
          L A I N   I S   Y O U . . .
`

// RenderTerminal renders v as the fixed width listing of the terminal
// variant. Columns are padded by display width, so glitch glyphs and wide
// characters keep the table aligned.
func RenderTerminal(v View) string {
	var b strings.Builder

	status := "connected"
	if v.NaviMode {
		status += " [navi]"
	}
	fmt.Fprintf(&b, "%s  %s\n", v.Title, status)

	for _, o := range v.Overlays {
		fmt.Fprintf(&b, "\n  >>> %s <<<\n  %s\n", o.Title, o.Subtitle)
	}
	if v.Presentation.LainArt {
		b.WriteString(lainArt)
	}

	b.WriteString("\n" + terminalPath(v) + "\n")
	b.WriteString(strings.Repeat("-", nameWidth+sizeWidth+modifiedWidth+4) + "\n")
	b.WriteString(row("name", "size", "modified", ""))

	switch {
	case v.Loading:
		b.WriteString("  loading...\n")
	case v.Missing:
		b.WriteString("  no such directory\n")
	case len(v.Items) == 0:
		b.WriteString("  (empty)\n")
	}
	for _, it := range v.Items {
		name := it.Name
		if it.Kind == drive.KindFolder {
			name += "/"
		}
		mark := ""
		if it.Corrupted {
			mark = "⚠"
		}
		if it.Selected {
			mark += "*"
		}
		b.WriteString(row(name, it.Size, it.Modified, mark))
	}

	if len(v.Notices) > 0 {
		b.WriteString("\n")
		for _, n := range v.Notices {
			fmt.Fprintf(&b, "> %s\n", n.Text)
		}
	}
	return b.String()
}

func terminalPath(v View) string {
	if len(v.Breadcrumbs) == 0 {
		return fmt.Sprintf("~/%d", v.FolderID)
	}
	parts := make([]string, len(v.Breadcrumbs))
	for i, c := range v.Breadcrumbs {
		parts[i] = c.Name
	}
	return "~/" + strings.Join(parts, "/")
}

func row(name, size, modified, mark string) string {
	return fmt.Sprintf("%s  %s  %s  %s\n",
		cell(name, nameWidth),
		cell(size, sizeWidth),
		cell(modified, modifiedWidth),
		mark,
	)
}

func cell(s string, width int) string {
	return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
}
