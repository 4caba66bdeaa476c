package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Brand colors
var (
	Brand  = color.New(color.FgHiMagenta, color.Bold)
	Subtle = color.New(color.FgHiBlack)
	Warn   = color.New(color.FgYellow)
	Info   = color.New(color.FgCyan)
	Good   = color.New(color.FgGreen)
	Bad    = color.New(color.FgRed)
)

const Mark = "\u25C9" // ◉

// Role styles. Roles without an entry use the default style.
var (
	roleStyles = map[string]*color.Color{
		"assistant":  color.New(color.FgBlue),
		"researcher": color.New(color.FgCyan),
		"critic":     color.New(color.FgRed),
		"moderator":  color.New(color.FgYellow),
	}
	defaultRoleStyle = color.New(color.FgWhite)
)

// SetColor turns colour output on or off.
func SetColor(enabled bool) {
	if !enabled {
		color.NoColor = true
	}
}

// Banner prints the society banner.
func Banner(subtitle string) {
	fmt.Printf("%s %s · %s\n\n", Mark, Brand.Sprint("society"), subtitle)
}

// Role renders a role name in its style.
func Role(role string) string {
	if c, ok := roleStyles[role]; ok {
		return c.Sprint(role)
	}
	return defaultRoleStyle.Sprint(role)
}

// Weight renders a relation weight coloured by polarity.
func Weight(w float64) string {
	s := fmt.Sprintf("%+.2f", w)
	switch {
	case w > 0.2:
		return Good.Sprint(s)
	case w < -0.2:
		return Bad.Sprint(s)
	}
	return Subtle.Sprint(s)
}

// Session renders the clean/dirty flag.
func Session(dirty bool) string {
	if dirty {
		return Warn.Sprint("● unsaved changes")
	}
	return Good.Sprint("✓ clean")
}

// Table prints a simple aligned table.
func Table(headers []string, rows [][]string) {
	if len(rows) == 0 {
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := visibleLen(cell); i < len(widths) && w > widths[i] {
				widths[i] = w
			}
		}
	}

	headerLine := "  "
	sepLine := "  "
	for i, h := range headers {
		headerLine += pad(h, widths[i]) + "  "
		sepLine += strings.Repeat("─", widths[i]) + "  "
	}
	Subtle.Println(headerLine)
	Subtle.Println(sepLine)

	for _, row := range rows {
		line := "  "
		for i, cell := range row {
			if i < len(widths) {
				line += pad(cell, widths[i]) + "  "
			}
		}
		fmt.Println(strings.TrimRight(line, " "))
	}
}

// pad right-pads s to width, ignoring ANSI escapes.
func pad(s string, width int) string {
	if n := width - visibleLen(s); n > 0 {
		return s + strings.Repeat(" ", n)
	}
	return s
}

func visibleLen(s string) int {
	n := 0
	inEscape := false
	for _, r := range s {
		switch {
		case r == '\x1b':
			inEscape = true
		case inEscape:
			if r == 'm' {
				inEscape = false
			}
		default:
			n++
		}
	}
	return n
}

// StatusIcon returns a status icon string.
func StatusIcon(ok bool) string {
	if ok {
		return Good.Sprint("✓")
	}
	return Bad.Sprint("✗")
}

// WarnIcon returns a warning icon.
func WarnIcon() string {
	return Warn.Sprint("⚠")
}
