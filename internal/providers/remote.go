package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteProvider forwards the chat request as-is to an external chat backend
// that answers with {"message": "..."}.
type RemoteProvider struct {
	url    string
	client *http.Client
}

func NewRemoteProvider(url string) *RemoteProvider {
	return &RemoteProvider{url: url, client: &http.Client{Timeout: 60 * time.Second}}
}

func (p *RemoteProvider) Reply(ctx context.Context, req ChatPrompt) (ChatResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "remote", Model: p.url}
	payload, err := json.Marshal(req)
	if err != nil {
		return ChatResponse{}, info, fmt.Errorf("encode chat request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return ChatResponse{}, info, fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return ChatResponse{}, info, fmt.Errorf("remote chat request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return ChatResponse{}, info, fmt.Errorf("remote chat error %d: %s", resp.StatusCode, string(body))
	}
	var parsed struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ChatResponse{}, info, fmt.Errorf("decode chat response: %w", err)
	}
	return ChatResponse{Text: parsed.Message}, info, nil
}
