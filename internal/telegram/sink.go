package telegram

import (
	"context"

	"recipebot/internal/pipeline"
)

// Sink delivers pipeline results to the chat a request came from.
type Sink struct {
	client *Client
}

// NewSink wraps client as a pipeline.Sink.
func NewSink(client *Client) *Sink {
	return &Sink{client: client}
}

// Notify sends plain text.
func (s *Sink) Notify(ctx context.Context, req pipeline.Request, text string) error {
	_, err := s.client.SendMessage(ctx, SendMessageParams{
		ChatID: req.ChatID,
		Text:   text,
	})
	return err
}

// SendVideo uploads the normalized video as a reply to the request message.
func (s *Sink) SendVideo(ctx context.Context, req pipeline.Request, videoPath string) (int64, error) {
	msg, err := s.client.SendVideo(ctx, SendVideoParams{
		ChatID:            req.ChatID,
		Path:              videoPath,
		ReplyToMessageID:  req.MessageID,
		SupportsStreaming: true,
	})
	if err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// SendRecipe sends MarkdownV2 text as a reply to the delivered video.
func (s *Sink) SendRecipe(ctx context.Context, req pipeline.Request, replyTo int64, markdown string) error {
	_, err := s.client.SendMessage(ctx, SendMessageParams{
		ChatID:             req.ChatID,
		Text:               markdown,
		ParseMode:          ParseModeMarkdownV2,
		ReplyToMessageID:   replyTo,
		DisableLinkPreview: true,
	})
	return err
}
