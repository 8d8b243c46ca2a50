package memory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/unvios/memory-service/internal/models"
)

// BuildPrompt assembles the text sent to the LLM. With no retrieved memories
// the user message passes through unchanged; otherwise a context block is
// prepended, one memory per line, in exactly the order retrieval returned.
func BuildPrompt(memories []*models.Memory, userQuestion string) string {
	if len(memories) == 0 {
		return userQuestion
	}

	chunks := make([]string, len(memories))
	for i, m := range memories {
		chunks[i] = m.Content
	}

	return fmt.Sprintf(
		"\n\nRelevant memories:\n%s\n\nUser question: %s\n\nAnswer naturally based on the memories above. Don't mention memory IDs, tags, or repeat the question back.",
		strings.Join(chunks, "\n"), userQuestion)
}

// GroupByCategory buckets memories under their category label.
func GroupByCategory(memories []*models.Memory) map[string][]*models.Memory {
	grouped := make(map[string][]*models.Memory)
	for _, m := range memories {
		cat := m.Category
		if cat == "" {
			cat = models.DefaultCategory
		}
		grouped[cat] = append(grouped[cat], m)
	}
	return grouped
}

// FlattenGrouped walks categories in sorted order and concatenates their
// memories, preserving per-category ordering.
func FlattenGrouped(grouped map[string][]*models.Memory) []*models.Memory {
	cats := make([]string, 0, len(grouped))
	for cat := range grouped {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	var flat []*models.Memory
	for _, cat := range cats {
		flat = append(flat, grouped[cat]...)
	}
	return flat
}
