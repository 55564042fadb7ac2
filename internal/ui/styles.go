package ui

import "fmt"

// ansiStyle wraps text in an SGR color code, or passes it through
// unchanged when color is disabled.
type ansiStyle struct {
	code    string
	noColor bool
}

// Render applies the style's color code to s.
func (a ansiStyle) Render(s string) string {
	if a.noColor || a.code == "" {
		return s
	}
	return fmt.Sprintf("\x1b[%sm%s\x1b[0m", a.code, s)
}

// Styles holds the named text styles used by status output.
type Styles struct {
	Header  ansiStyle
	Success ansiStyle
	Warning ansiStyle
	Error   ansiStyle
	Dim     ansiStyle
}

// GetStyles returns color styles, or no-op styles when noColor is set.
func GetStyles(noColor bool) Styles {
	return Styles{
		Header:  ansiStyle{code: "1;32", noColor: noColor},
		Success: ansiStyle{code: "32", noColor: noColor},
		Warning: ansiStyle{code: "33", noColor: noColor},
		Error:   ansiStyle{code: "31", noColor: noColor},
		Dim:     ansiStyle{code: "90", noColor: noColor},
	}
}
