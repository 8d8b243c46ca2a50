package memory

import (
	"regexp"
	"strings"

	"github.com/unvios/memory-service/internal/models"
)

// Annotation is one well-formed [MEMORY: content | tags] marker extracted
// from model output.
type Annotation struct {
	Content string
	Tags    []string
}

// annotationRegex matches the marker micro-format. Non-greedy groups keep
// multiple markers on one line separate; malformed markers (missing pipe,
// unterminated bracket) simply never match.
var annotationRegex = regexp.MustCompile(`\[MEMORY:\s*(.*?)\s*\|\s*(.*?)\]`)

// stripRegex removes every marker, well-formed or not, so the user never
// sees the bracketed directive.
var stripRegex = regexp.MustCompile(`\[MEMORY:[^\]]*\]`)

// ParseMemories extracts all well-formed annotations from output. Content and
// tags are whitespace-trimmed, empty tags dropped, and tags capped at
// models.MaxTags.
func ParseMemories(output string) []Annotation {
	matches := annotationRegex.FindAllStringSubmatch(output, -1)
	results := make([]Annotation, 0, len(matches))
	for _, match := range matches {
		content := strings.TrimSpace(match[1])
		tags := models.ClampTags(strings.Split(match[2], ","))
		results = append(results, Annotation{Content: content, Tags: tags})
	}
	return results
}

// StripAnnotations removes all memory markers from output and trims the
// result.
func StripAnnotations(output string) string {
	return strings.TrimSpace(stripRegex.ReplaceAllString(output, ""))
}
