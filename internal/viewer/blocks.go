package viewer

import (
	"encoding/json"
	"fmt"
	"strings"

	"paperreel/internal/models"
	"paperreel/internal/steps"
	"paperreel/internal/util"
)

const snippetRunes = 360

// renderBlock turns one info block into plain lines. A few steps get a
// dedicated layout; everything else falls back to compact JSON.
func renderBlock(b models.InfoBlock) (title string, lines []string) {
	data := b.Payload
	switch {
	case b.Step == string(steps.DocIR):
		title = "Document parsed"
		if t, ok := data["title"].(string); ok && t != "" {
			lines = append(lines, "Title: "+util.DisplaySnippet(t, 120))
		}
		if n, ok := data["page_count"].(float64); ok {
			lines = append(lines, fmt.Sprintf("Pages: %d", int(n)))
		}
	case b.Step == string(steps.Sketch):
		title = "Abstract summary"
		if abs, ok := data["abstract_summary"].(string); ok && strings.TrimSpace(abs) != "" {
			lines = append(lines, util.DisplaySnippet(abs, snippetRunes))
		} else {
			lines = append(lines, "(pending)")
		}
	case b.Step == string(steps.Glossary) && b.ID != "":
		title = "Glossary"
		lines = append(lines, glossaryLine(data))
	default:
		title = steps.Label(steps.Step(b.Step))
		if title == "" {
			title = b.Step
		}
		lines = append(lines, compactJSON(data))
	}
	if b.SourceURI != "" {
		lines = append(lines, "source: "+b.SourceURI)
	}
	return title, lines
}

func glossaryLine(data map[string]any) string {
	switch data["part"] {
	case "intro", "outro":
		s, _ := data["text"].(string)
		return util.DisplaySnippet(s, snippetRunes)
	case "item":
		switch it := data["item"].(type) {
		case string:
			return "• " + util.DisplaySnippet(it, snippetRunes)
		case map[string]any:
			term, _ := it["term"].(string)
			def, _ := it["definition"].(string)
			if term != "" {
				return "• " + util.DisplaySnippet(term+": "+def, snippetRunes)
			}
			return "• " + compactJSON(it)
		}
	}
	return compactJSON(data)
}

func compactJSON(v any) string {
	if v == nil {
		return "{}"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	s := string(b)
	r := []rune(s)
	if len(r) > snippetRunes {
		return string(r[:snippetRunes]) + "..."
	}
	return s
}
