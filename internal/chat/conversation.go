package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"paperreel/internal/models"
)

const WelcomeMessage = "Hello! I'm your AI assistant. Ask me anything about the videos or the original PDF content. " +
	"I can help explain concepts, summarize sections, or answer specific questions."

// Sender is the gateway call a conversation makes. *backend.Client satisfies it.
type Sender interface {
	Chat(ctx context.Context, req models.ChatRequest) (models.ChatReply, error)
}

// PlaceholderReply is what the assistant says when the chat call fails.
func PlaceholderReply(message string) string {
	return fmt.Sprintf("I understand you're asking about %q. This is a placeholder response - "+
		"connect the backend API at /api/chat to enable real AI responses about your PDF and videos.", message)
}

// Conversation is the client-side, append-only chat log.
type Conversation struct {
	mu       sync.Mutex
	messages []models.ChatMessage
	inFlight bool
	now      func() time.Time
}

func NewConversation() *Conversation {
	c := &Conversation{now: time.Now}
	c.messages = append(c.messages, models.ChatMessage{
		ID:        "welcome",
		Role:      models.RoleAssistant,
		Content:   WelcomeMessage,
		Timestamp: c.now(),
	})
	return c
}

func (c *Conversation) Messages() []models.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Begin records the user's message and returns the request to send. It
// reports false for blank input or while another send is outstanding.
func (c *Conversation) Begin(text string, clip *models.VideoClip, currentTime float64) (models.ChatRequest, bool) {
	text = strings.TrimSpace(text)
	c.mu.Lock()
	defer c.mu.Unlock()
	if text == "" || c.inFlight {
		return models.ChatRequest{}, false
	}
	c.inFlight = true
	c.messages = append(c.messages, models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Content:   text,
		Timestamp: c.now(),
	})
	req := models.ChatRequest{Message: text, CurrentTime: currentTime}
	if clip != nil {
		req.VideoID = clip.ID
		req.VideoTitle = clip.Title
	}
	return req, true
}

// Finish appends the assistant's answer, or the placeholder when err is set.
func (c *Conversation) Finish(req models.ChatRequest, reply models.ChatReply, err error) models.ChatMessage {
	content := reply.Message
	if err != nil || strings.TrimSpace(content) == "" {
		content = PlaceholderReply(req.Message)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	msg := models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      models.RoleAssistant,
		Content:   content,
		Timestamp: c.now(),
	}
	c.messages = append(c.messages, msg)
	c.inFlight = false
	return msg
}

// Send runs Begin, the gateway call and Finish in one go.
func (c *Conversation) Send(ctx context.Context, s Sender, text string, clip *models.VideoClip, currentTime float64) (models.ChatMessage, bool) {
	req, ok := c.Begin(text, clip, currentTime)
	if !ok {
		return models.ChatMessage{}, false
	}
	reply, err := s.Chat(ctx, req)
	return c.Finish(req, reply, err), true
}
