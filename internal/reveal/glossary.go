package reveal

import (
	"fmt"
	"strings"

	"paperreel/internal/models"
)

// ExpandGlossary splits a glossary preview into intro, one chunk per term and
// outro so each part can be revealed and replaced on its own. Chunk ids are
// derived from the step, the source timestamp and a sequence number. A payload
// without any of those parts is returned as nil.
func ExpandGlossary(b models.InfoBlock) []models.InfoBlock {
	intro := stringField(b.Payload, "intro")
	outro := stringField(b.Payload, "outro")
	items := listField(b.Payload, "items")
	if items == nil {
		items = listField(b.Payload, "terms")
	}
	if intro == "" && outro == "" && len(items) == 0 {
		return nil
	}

	out := make([]models.InfoBlock, 0, len(items)+2)
	seq := 0
	add := func(payload map[string]any) {
		out = append(out, models.InfoBlock{
			ID:        fmt.Sprintf("%s:%d:%d", b.Step, b.Timestamp.UnixMilli(), seq),
			Step:      b.Step,
			Timestamp: b.Timestamp,
			Payload:   payload,
			SourceURI: b.SourceURI,
		})
		seq++
	}
	if intro != "" {
		add(map[string]any{"part": "intro", "text": intro})
	}
	for i, item := range items {
		add(map[string]any{"part": "item", "index": i, "item": item})
	}
	if outro != "" {
		add(map[string]any{"part": "outro", "text": outro})
	}
	return out
}

func stringField(m map[string]any, key string) string {
	v, ok := m[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

func listField(m map[string]any, key string) []any {
	switch v := m[key].(type) {
	case []any:
		return v
	case []string:
		out := make([]any, 0, len(v))
		for _, s := range v {
			out = append(out, s)
		}
		return out
	case []map[string]any:
		out := make([]any, 0, len(v))
		for _, s := range v {
			out = append(out, s)
		}
		return out
	default:
		return nil
	}
}
