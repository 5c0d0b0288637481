package recipe

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// DefaultMaxRunes is Telegram's message length limit.
const DefaultMaxRunes = 4096

const (
	defaultTitle       = "Рецепт"
	defaultQuantity    = "по вкусу"
	headingIngredients = "Ингредиенты"
	headingSteps       = "Шаги приготовления"
	headingExtra       = "Дополнительно"
	sectionDivider     = "⸻"
	truncationMarker   = "…"
)

// Renderer formats Blocks for the chat transport.
type Renderer struct {
	MaxRunes int
}

// NewRenderer returns a renderer with the given limit; non-positive means
// DefaultMaxRunes.
func NewRenderer(maxRunes int) Renderer {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxRunes
	}
	return Renderer{MaxRunes: maxRunes}
}

// DurationLabel formats a duration as m:ss. Zero or negative yields "".
func DurationLabel(seconds float64) string {
	if seconds <= 0 || math.IsNaN(seconds) {
		return ""
	}
	total := int(math.Round(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// RenderMarkdown produces MarkdownV2. Every model- or user-supplied fragment
// is escaped; the renderer's own bold markers, bullets and link syntax are
// not. The attribution line is always kept; body lines are dropped from the
// end until the message fits.
func (r Renderer) RenderMarkdown(blocks Blocks, sourceURL, durationLabel string) string {
	body := r.markdownBody(blocks)
	footer := markdownFooter(sourceURL, durationLabel)
	return fitLines(body, footer, r.limit())
}

func (r Renderer) limit() int {
	if r.MaxRunes <= 0 {
		return DefaultMaxRunes
	}
	return r.MaxRunes
}

func (r Renderer) markdownBody(blocks Blocks) []string {
	title := strings.TrimSpace(blocks.Title)
	if title == "" {
		title = defaultTitle
	}
	lines := []string{fmt.Sprintf("*%s %s*", DishIcon(title), EscapeMarkdownV2(title))}

	if len(blocks.Ingredients) > 0 {
		lines = append(lines, "", "🛒 *"+headingIngredients+"*")
		for _, item := range blocks.Ingredients {
			lines = append(lines, renderIngredient(item))
		}
	}
	if len(blocks.Steps) > 0 {
		lines = append(lines, "", sectionDivider, "", "👩‍🍳 *"+headingSteps+"*")
		for i, step := range blocks.Steps {
			lines = append(lines, fmt.Sprintf("%d\\. %s", i+1, EscapeMarkdownV2(strings.TrimSpace(step))))
		}
	}
	if extra := strings.TrimSpace(blocks.Extra); extra != "" {
		lines = append(lines, "", sectionDivider, "", "💡 *"+headingExtra+"*")
		for _, line := range strings.Split(extra, "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				lines = append(lines, EscapeMarkdownV2(trimmed))
			}
		}
	}
	return lines
}

func renderIngredient(item string) string {
	indent := leadingIndent(item)
	body := strings.TrimSpace(item)
	bullet := "•"
	if indent != "" {
		bullet = "  ◦"
	}
	if isGroupLabel(body) {
		return fmt.Sprintf("%s *%s*", strings.TrimSpace(bullet), EscapeMarkdownV2(body))
	}
	name, quantity, ok := SplitIngredient(body)
	if !ok {
		quantity = defaultQuantity
	}
	return fmt.Sprintf("%s %s — %s", bullet, EscapeMarkdownV2(name), EscapeMarkdownV2(quantity))
}

func markdownFooter(sourceURL, durationLabel string) []string {
	line := fmt.Sprintf("🔗 [Оригинал](%s)", EscapeLinkURL(strings.TrimSpace(sourceURL)))
	if sourceURL == "" {
		line = ""
	}
	if durationLabel != "" {
		label := "⏱ " + EscapeMarkdownV2(durationLabel)
		if line == "" {
			line = label
		} else {
			line += " · " + label
		}
	}
	if line == "" {
		return nil
	}
	return []string{"", sectionDivider, "", line}
}

// fitLines joins body and footer, dropping trailing body lines until the
// result is within limit runes.
func fitLines(body, footer []string, limit int) string {
	full := strings.Join(append(append([]string{}, body...), footer...), "\n")
	if utf8.RuneCountInString(full) <= limit {
		return full
	}
	footerText := strings.Join(footer, "\n")
	budget := limit - utf8.RuneCountInString(footerText) - utf8.RuneCountInString("\n"+truncationMarker+"\n")
	kept := body
	for len(kept) > 0 {
		candidate := strings.TrimRight(strings.Join(kept, "\n"), "\n"+sectionDivider)
		if utf8.RuneCountInString(candidate) <= budget {
			parts := []string{candidate, truncationMarker}
			if footerText != "" {
				parts = append(parts, footerText)
			}
			return strings.Join(parts, "\n")
		}
		kept = kept[:len(kept)-1]
	}
	return strings.TrimLeft(footerText, "\n")
}

// RenderPlain produces the unescaped heading-delimited form of blocks that
// Parse reads back to the same record.
func RenderPlain(blocks Blocks) string {
	var lines []string
	if title := strings.TrimSpace(blocks.Title); title != "" {
		lines = append(lines, "Название: "+title, "")
	}
	if len(blocks.Ingredients) > 0 {
		lines = append(lines, headingIngredients+":")
		for _, item := range blocks.Ingredients {
			lines = append(lines, leadingIndent(item)+"- "+strings.TrimSpace(item))
		}
		lines = append(lines, "")
	}
	if len(blocks.Steps) > 0 {
		lines = append(lines, headingSteps+":")
		for i, step := range blocks.Steps {
			lines = append(lines, fmt.Sprintf("%s%d. %s", leadingIndent(step), i+1, strings.TrimSpace(step)))
		}
		lines = append(lines, "")
	}
	if extra := strings.TrimSpace(blocks.Extra); extra != "" {
		lines = append(lines, headingExtra+":", extra)
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}
