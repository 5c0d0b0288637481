package recipe

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"recipebot/internal/logging"
	"recipebot/internal/services"
	"recipebot/internal/services/llm"
)

// minTranscriptChars is the non-space length below which a transcript is
// treated as absent.
const minTranscriptChars = 20

const systemPrompt = "Ты кулинарный помощник. Верни JSON " +
	"{title, ingredients[], steps[], extra?}. " +
	"ingredients — массив объектов name+quantity. " +
	"Если в тексте нет рецепта, верни пустые поля."

const noAudioPlaceholder = "[аудио нет]"

// Completer is the language-model call the synthesizer needs.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Synthesizer asks the model for a recipe.
type Synthesizer struct {
	completer Completer
	logger    *slog.Logger
}

// NewSynthesizer wraps completer.
func NewSynthesizer(completer Completer, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{completer: completer, logger: logging.NewComponentLogger(logger, "synthesize")}
}

// NonTrivialTranscript reports whether transcript carries enough text to be
// worth sending.
func NonTrivialTranscript(transcript string) bool {
	count := 0
	for _, r := range transcript {
		if !unicode.IsSpace(r) {
			count++
			if count >= minTranscriptChars {
				return true
			}
		}
	}
	return false
}

// BuildPrompt returns the system and user prompts.
func BuildPrompt(caption, transcript string) (string, string) {
	spoken := strings.TrimSpace(transcript)
	if !NonTrivialTranscript(spoken) {
		spoken = noAudioPlaceholder
	}
	user := "Подпись:\n" + strings.TrimSpace(caption) + "\n---\nТранскрипт:\n" + spoken
	return systemPrompt, user
}

// Synthesize returns the model's raw output. A service failure yields "" and
// an error; a blank answer yields "" and nil, which parses to empty Blocks.
// When neither caption nor transcript has content the model is not called.
func (s *Synthesizer) Synthesize(ctx context.Context, caption, transcript string) (string, error) {
	if strings.TrimSpace(caption) == "" && !NonTrivialTranscript(transcript) {
		s.logger.Info("nothing to synthesize from",
			logging.String(logging.FieldEventType, "synthesis_skipped"),
		)
		return "", nil
	}
	system, user := BuildPrompt(caption, transcript)
	started := time.Now()
	raw, err := s.completer.CompleteJSON(ctx, system, user)
	if err != nil {
		if llm.IsEmptyContent(err) {
			return "", nil
		}
		return "", services.WrapCall(ctx, services.ErrExternalTool, "synthesize", "complete", "language model call failed", err)
	}
	logging.WithContext(ctx, s.logger).Debug("recipe synthesized",
		logging.String(logging.FieldEventType, "synthesis_complete"),
		logging.Int("raw_len", len(raw)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return raw, nil
}
