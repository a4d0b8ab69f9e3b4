package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"paperreel/internal/models"
	"paperreel/internal/providers"
)

var ErrEmptyMessage = errors.New("message is required")

// Service answers chat requests with the first provider that produces a
// non-empty reply. It keeps no conversation state between calls.
type Service struct {
	mgr *providers.Manager
	log *slog.Logger
}

func NewService(mgr *providers.Manager, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{mgr: mgr, log: log}
}

func (s *Service) Reply(ctx context.Context, req models.ChatRequest) (models.ChatReply, error) {
	if strings.TrimSpace(req.Message) == "" {
		return models.ChatReply{}, ErrEmptyMessage
	}
	prompt := providers.ChatPrompt{
		Message:     req.Message,
		VideoID:     req.VideoID,
		VideoTitle:  req.VideoTitle,
		CurrentTime: req.CurrentTime,
	}
	var lastErr error
	for _, idx := range s.mgr.PreferredOrder() {
		p, ref := s.mgr.ProviderByIndex(idx)
		resp, info, err := p.Reply(ctx, prompt)
		if err != nil {
			lastErr = err
			s.log.Warn("chat provider failed", "provider", ref.Raw, "model", info.Model, "class", providers.ClassifyError(err), "err", err)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if strings.TrimSpace(resp.Text) == "" {
			lastErr = fmt.Errorf("%s returned an empty reply", ref.Name)
			continue
		}
		s.log.Debug("chat reply", "provider", info.Name, "model", info.Model, "video_id", req.VideoID)
		return models.ChatReply{Message: resp.Text}, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no chat providers configured")
	}
	return models.ChatReply{}, fmt.Errorf("chat reply: %w", lastErr)
}
