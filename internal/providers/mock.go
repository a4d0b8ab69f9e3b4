package providers

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
)

// MockProvider answers with canned text so the chat box works before a
// real model is wired in.
type MockProvider struct{}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (m *MockProvider) Reply(ctx context.Context, req ChatPrompt) (ChatResponse, ProviderInfo, error) {
	_ = ctx
	title := req.VideoTitle
	if title == "" {
		title = "this video"
	}
	replies := []string{
		fmt.Sprintf("Based on the PDF content, I can help you understand %q. This is a placeholder - configure a chat provider to get real answers.", req.Message),
		fmt.Sprintf("Great question about the video! Once a chat provider is configured I can answer in detail about the content at timestamp %ds.", int(math.Floor(req.CurrentTime))),
		"I'd be happy to explain that concept from the PDF. This is a demo response - set PAPERREEL_CHAT_PROVIDERS for actual assistance.",
		fmt.Sprintf("That's an interesting question about %q. A configured chat provider will give context-aware answers about your specific content.", title),
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(req.Message))
	text := replies[int(h.Sum32()%uint32(len(replies)))]
	return ChatResponse{Text: text}, ProviderInfo{Name: "mock", Model: "mock-chat-v1", Key: "mock"}, nil
}
