package providers

import "context"

type ProviderInfo struct {
	Name  string `json:"name"`
	Model string `json:"model"`
	Key   string `json:"key"`
}

// ChatPrompt is one user question plus the little context the viewer has:
// which clip is selected and where playback is.
type ChatPrompt struct {
	Message     string  `json:"message"`
	VideoID     string  `json:"videoId,omitempty"`
	VideoTitle  string  `json:"videoTitle,omitempty"`
	CurrentTime float64 `json:"currentTime,omitempty"`
}

type ChatResponse struct {
	Text string `json:"text"`
}

type ChatProvider interface {
	Reply(ctx context.Context, req ChatPrompt) (ChatResponse, ProviderInfo, error)
}
