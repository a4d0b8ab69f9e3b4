// Package steps names the stages of the backend pipeline.
package steps

import "strings"

type Step string

const (
	DocIR        Step = "doc_ir"
	Sketch       Step = "sketch"
	World        Step = "world"
	Glossary     Step = "glossary"
	Claim        Step = "claim"
	VisualAssets Step = "visual_assets"
	Storyboard   Step = "storyboard"
	Video        Step = "video"
	MergedVideo  Step = "merged_video"
)

var ordered = []Step{DocIR, Sketch, World, Glossary, Claim, VisualAssets, Storyboard, Video, MergedVideo}

// Parse maps a backend step name to a Step. Names are matched exactly after
// trimming and lower-casing; anything else is reported as unknown.
func Parse(raw string) (Step, bool) {
	s := Step(strings.ToLower(strings.TrimSpace(raw)))
	for _, k := range ordered {
		if k == s {
			return k, true
		}
	}
	return "", false
}

func (s Step) String() string { return string(s) }

// IsVideo reports whether the step belongs to the reserved video block.
func (s Step) IsVideo() bool {
	return s == Video || s == MergedVideo
}

func Label(s Step) string {
	switch s {
	case DocIR:
		return "Parsing paper"
	case Sketch:
		return "Sketching"
	case World:
		return "Building world"
	case Glossary:
		return "Extracting glossary"
	case Claim:
		return "Extracting claims"
	case VisualAssets:
		return "Generating visual assets"
	case Storyboard:
		return "Building storyboard"
	case Video:
		return "Generating video"
	case MergedVideo:
		return "Finalizing"
	default:
		return string(s)
	}
}
