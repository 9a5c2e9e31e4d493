// Package summary parses the bulleted visit summary returned by the backend
// and holds the editable outline used to structure summaries of special visits.
package summary

import "strings"

// Point is one retained bullet of a summary.
type Point struct {
	Label string `json:"label"`
	Body  string `json:"body"`
}

// String rejoins the point into its bullet-line form.
func (p Point) String() string {
	if p.Body == "" {
		return "- " + p.Label + ":"
	}
	return "- " + p.Label + ": " + p.Body
}

// Parse keeps the lines of text that start with "-" and splits each on its
// first ":" into label and body. Lines without ":" have an empty body.
func Parse(text string) []Point {
	var points []Point
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "-") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "-"))
		label, body, _ := strings.Cut(line, ":")
		points = append(points, Point{
			Label: strings.TrimSpace(label),
			Body:  strings.TrimSpace(body),
		})
	}
	return points
}

// Join renders points back into bullet text, one per line.
func Join(points []Point) string {
	lines := make([]string, len(points))
	for i, p := range points {
		lines[i] = p.String()
	}
	return strings.Join(lines, "\n")
}
