package status

import (
	"fmt"
	"io"
	"strings"
)

// Screen widths of the operator display.
const (
	routeNameWidth  = 15
	demandNameWidth = 8
	demandRows      = 4
)

// Lines formats a snapshot as the operator screen lines.
func Lines(s Snapshot) []string {
	if !s.Connected {
		return []string{
			fmt.Sprintf("Connected: FAIL (%s)", s.Host),
			"STATUS: Error",
		}
	}

	lines := []string{
		fmt.Sprintf("Connected: OK (%s)", s.Host),
		"STATUS: " + s.Label,
	}
	if s.Label == "Waiting" {
		lines = append(lines, fmt.Sprintf("Threshold: %d", s.Threshold), "Routes:")
		for i, d := range s.Demand {
			if i >= demandRows {
				break
			}
			mark := " "
			if i == s.Leader {
				mark = ">"
			}
			lines = append(lines, fmt.Sprintf("%s %s - %d", mark, truncate(d.Name, demandNameWidth), d.Count))
		}
		return lines
	}
	if s.Intersections > 0 || s.Total > 0 {
		lines = append(lines, fmt.Sprintf("Intersections: %d/%d", s.Intersections, s.Total))
	}
	if s.Route != "" {
		lines = append(lines, "Route: "+truncate(s.Route, routeNameWidth))
	}
	return lines
}

// TextRenderer writes the screen lines to w, one block per render.
type TextRenderer struct {
	w io.Writer
}

func NewTextRenderer(w io.Writer) *TextRenderer {
	return &TextRenderer{w: w}
}

func (t *TextRenderer) Render(s Snapshot) error {
	_, err := io.WriteString(t.w, strings.Join(Lines(s), "\n")+"\n\n")
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
