package providers

import (
	"context"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const chatSystemPrompt = "You answer questions about a research paper and the short explainer videos generated from it. " +
	"Be concise. When the user mentions a clip or a timestamp, relate the answer to that part of the video."

// OpenAIProvider talks to any OpenAI-compatible chat endpoint. Groq and
// Ollama are reached through the same client with a different base URL.
type OpenAIProvider struct {
	name    string
	keyName string
	apiKey  string
	model   string
	client  *openai.Client
}

type openAIFlavor struct {
	baseURL      string
	defaultModel string
	modelEnv     string
	keyEnvPrefix string
	fallbackKey  string
	keyOptional  bool
}

var flavors = map[string]openAIFlavor{
	"openai": {
		defaultModel: "gpt-4o-mini",
		modelEnv:     "PAPERREEL_OPENAI_MODEL",
		keyEnvPrefix: "PAPERREEL_OPENAI_KEY_",
		fallbackKey:  "OPENAI_API_KEY",
	},
	"groq": {
		baseURL:      "https://api.groq.com/openai/v1",
		defaultModel: "llama-3.1-8b-instant",
		modelEnv:     "PAPERREEL_GROQ_MODEL",
		keyEnvPrefix: "PAPERREEL_GROQ_KEY_",
		fallbackKey:  "GROQ_API_KEY",
	},
	"ollama": {
		baseURL:      "http://localhost:11434/v1",
		defaultModel: "llama3.1",
		modelEnv:     "PAPERREEL_OLLAMA_MODEL",
		keyOptional:  true,
	},
}

func NewOpenAIProvider(name, keyName string) (*OpenAIProvider, error) {
	fl, ok := flavors[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unsupported openai-compatible provider: %s", name)
	}
	apiKey := resolveKey(fl, keyName)
	model := strings.TrimSpace(os.Getenv(fl.modelEnv))
	if model == "" {
		model = fl.defaultModel
	}
	cc := openai.DefaultConfig(apiKey)
	if fl.baseURL != "" {
		cc.BaseURL = fl.baseURL
	}
	if v := strings.TrimSpace(os.Getenv("PAPERREEL_" + strings.ToUpper(name) + "_BASE_URL")); v != "" {
		cc.BaseURL = v
	}
	if fl.keyOptional && apiKey == "" {
		apiKey = "ollama"
	}
	return &OpenAIProvider{
		name:    strings.ToLower(name),
		keyName: keyName,
		apiKey:  apiKey,
		model:   model,
		client:  openai.NewClientWithConfig(cc),
	}, nil
}

func (o *OpenAIProvider) Reply(ctx context.Context, req ChatPrompt) (ChatResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: o.name, Model: o.model, Key: o.keyName}
	if o.apiKey == "" {
		return ChatResponse{}, info, fmt.Errorf("%s key missing for alias %q", o.name, o.keyName)
	}
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: chatSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userContent(req)},
		},
	})
	if err != nil {
		return ChatResponse{}, info, fmt.Errorf("%s chat request failed: %w", o.name, err)
	}
	if len(resp.Choices) == 0 {
		return ChatResponse{}, info, fmt.Errorf("%s returned empty choices", o.name)
	}
	return ChatResponse{Text: resp.Choices[0].Message.Content}, info, nil
}

func userContent(req ChatPrompt) string {
	var b strings.Builder
	b.WriteString(req.Message)
	if req.VideoTitle != "" || req.VideoID != "" {
		b.WriteString("\n\nSelected clip: ")
		if req.VideoTitle != "" {
			b.WriteString(req.VideoTitle)
		} else {
			b.WriteString(req.VideoID)
		}
		fmt.Fprintf(&b, " (playback at %.0fs)", req.CurrentTime)
	}
	return b.String()
}

func resolveKey(fl openAIFlavor, alias string) string {
	if alias != "" && fl.keyEnvPrefix != "" {
		if k := os.Getenv(fl.keyEnvPrefix + strings.ToUpper(alias)); k != "" {
			return k
		}
	}
	if fl.fallbackKey == "" {
		return ""
	}
	return os.Getenv(fl.fallbackKey)
}
