package providers

import (
	"fmt"
	"strings"

	"paperreel/internal/config"
)

type NamedChatProvider struct {
	Ref      ProviderRef
	Provider ChatProvider
}

type Manager struct {
	chatProviders []NamedChatProvider
}

func NewManager(cfg config.Config) (*Manager, error) {
	m := &Manager{}
	for _, ref := range ParseProviderList(cfg.ChatProviders) {
		p, err := buildProvider(ref, cfg)
		if err != nil {
			return nil, err
		}
		m.chatProviders = append(m.chatProviders, NamedChatProvider{Ref: ref, Provider: p})
	}
	if len(m.chatProviders) == 0 {
		m.chatProviders = []NamedChatProvider{{Ref: ProviderRef{Raw: "mock", Name: "mock"}, Provider: NewMockProvider()}}
	}
	return m, nil
}

// NewManagerWith is used by tests and callers that assemble providers by hand.
func NewManagerWith(named ...NamedChatProvider) *Manager {
	return &Manager{chatProviders: named}
}

func (m *Manager) Count() int {
	return len(m.chatProviders)
}

func (m *Manager) ProviderByIndex(i int) (ChatProvider, ProviderRef) {
	if len(m.chatProviders) == 0 {
		return NewMockProvider(), ProviderRef{Raw: "mock", Name: "mock"}
	}
	if i < 0 || i >= len(m.chatProviders) {
		i = 0
	}
	return m.chatProviders[i].Provider, m.chatProviders[i].Ref
}

// PreferredOrder lists real providers before the mock one.
func (m *Manager) PreferredOrder() []int {
	return preferredOrder(len(m.chatProviders), func(i int) string { return strings.ToLower(m.chatProviders[i].Ref.Name) })
}

func preferredOrder(n int, nameAt func(i int) string) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if nameAt(i) != "mock" {
			out = append(out, i)
		}
	}
	for i := 0; i < n; i++ {
		if nameAt(i) == "mock" {
			out = append(out, i)
		}
	}
	return out
}

func buildProvider(ref ProviderRef, cfg config.Config) (ChatProvider, error) {
	switch name := strings.ToLower(ref.Name); name {
	case "mock":
		return NewMockProvider(), nil
	case "openai", "groq", "ollama":
		return NewOpenAIProvider(name, ref.KeyAlias)
	case "remote":
		target := ref.KeyAlias
		if target == "" {
			target = cfg.ChatBackendURL
		}
		if strings.TrimSpace(target) == "" {
			return nil, fmt.Errorf("remote chat provider needs PAPERREEL_CHAT_BACKEND_URL")
		}
		return NewRemoteProvider(target), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", ref.Name)
	}
}
