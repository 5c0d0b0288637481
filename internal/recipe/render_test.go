package recipe

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMarkdownLayout(t *testing.T) {
	blocks := Blocks{
		Title:       "Паста карбонара",
		Ingredients: []string{"спагетти — 200 г", "соль", "Для соуса:", "  желтки — 3 шт"},
		Steps:       []string{"Сварить пасту", "Смешать с соусом"},
		Extra:       "Подавать сразу",
	}
	out := NewRenderer(0).RenderMarkdown(blocks, "https://youtu.be/abc", DurationLabel(65))

	lines := strings.Split(out, "\n")
	assert.Equal(t, "*🍝 Паста карбонара*", lines[0])
	for _, want := range []string{
		"🛒 *Ингредиенты*",
		"• спагетти — 200 г",
		"• соль — по вкусу",
		"• *Для соуса:*",
		"  ◦ желтки — 3 шт",
		"👩‍🍳 *Шаги приготовления*",
		"1\\. Сварить пасту",
		"2\\. Смешать с соусом",
		"💡 *Дополнительно*",
		"Подавать сразу",
	} {
		assert.Contains(t, lines, want)
	}
	assert.Equal(t, "🔗 [Оригинал](https://youtu.be/abc) · ⏱ 1:05", lines[len(lines)-1])
}

func TestRenderMarkdownEscapesContentOnly(t *testing.T) {
	blocks := Blocks{
		Title:       "Торт *Наполеон* [v2]",
		Ingredients: []string{"масло (82.5%) — 200 г"},
		Steps:       []string{"Нагреть до 180 (духовка)!", "a_b~c`d>e#f+g-h=i|j{k}l.m\\n"},
	}
	out := NewRenderer(0).RenderMarkdown(blocks, "https://www.instagram.com/reel/a_(b)/", "")

	assert.Contains(t, out, "*🍰 Торт \\*Наполеон\\* \\[v2\\]*")
	assert.Contains(t, out, "• масло \\(82\\.5%\\) — 200 г")
	assert.Contains(t, out, "1\\. Нагреть до 180 \\(духовка\\)\\!")
	assert.Contains(t, out, "2\\. a\\_b\\~c\\`d\\>e\\#f\\+g\\-h\\=i\\|j\\{k\\}l\\.m\\\\n")
	assert.Contains(t, out, "🔗 [Оригинал](https://www.instagram.com/reel/a_(b\\)/)")
	assert.NotContains(t, out, "\\[Оригинал")
	assert.NotContains(t, out, "⏱")
}

func TestEscapeMarkdownV2EscapesEveryReservedCharacter(t *testing.T) {
	for _, r := range markdownV2Reserved {
		escaped := EscapeMarkdownV2("x" + string(r) + "y")
		assert.Equal(t, "x\\"+string(r)+"y", escaped)
	}
	assert.Equal(t, "обычный текст", EscapeMarkdownV2("обычный текст"))
}

func TestRenderMarkdownTruncatesWholeLines(t *testing.T) {
	var steps []string
	for i := 1; i <= 60; i++ {
		steps = append(steps, fmt.Sprintf("Шаг номер %d с подробным описанием", i))
	}
	blocks := Blocks{Title: "Суп", Ingredients: []string{"вода — 1 л"}, Steps: steps}
	const limit = 400

	out := NewRenderer(limit).RenderMarkdown(blocks, "https://youtu.be/abc", "0:59")
	require.LessOrEqual(t, utf8.RuneCountInString(out), limit)

	lines := strings.Split(out, "\n")
	assert.Equal(t, "*🍲 Суп*", lines[0])
	assert.Equal(t, "🔗 [Оригинал](https://youtu.be/abc) · ⏱ 0:59", lines[len(lines)-1])
	assert.Contains(t, lines, truncationMarker)
	for _, line := range lines {
		if strings.Contains(line, "Шаг номер") {
			assert.True(t, strings.HasSuffix(line, "описанием"), "line cut mid-way: %q", line)
		}
	}
	assert.NotContains(t, lines, "60\\. Шаг номер 60 с подробным описанием")
}

func TestRenderMarkdownFitsWithoutTruncation(t *testing.T) {
	blocks := Blocks{Title: "Чай", Steps: []string{"Заварить"}}
	out := NewRenderer(0).RenderMarkdown(blocks, "https://youtu.be/x", "")
	assert.NotContains(t, out, truncationMarker)
	assert.True(t, strings.HasPrefix(out, "*🍽 Чай*"))
}

func TestRenderPlain(t *testing.T) {
	blocks := Blocks{
		Title:       "Омлет",
		Ingredients: []string{"яйца — 2 шт", "  молоко"},
		Steps:       []string{"Взбить", "Жарить"},
		Extra:       "С зеленью",
	}
	want := strings.Join([]string{
		"Название: Омлет",
		"",
		"Ингредиенты:",
		"- яйца — 2 шт",
		"  - молоко",
		"",
		"Шаги приготовления:",
		"1. Взбить",
		"2. Жарить",
		"",
		"Дополнительно:",
		"С зеленью",
	}, "\n")
	assert.Equal(t, want, RenderPlain(blocks))
}

func TestDurationLabel(t *testing.T) {
	assert.Equal(t, "1:05", DurationLabel(65))
	assert.Equal(t, "0:07", DurationLabel(6.6))
	assert.Equal(t, "2:00", DurationLabel(120))
	assert.Equal(t, "", DurationLabel(0))
}

func TestDishIcon(t *testing.T) {
	assert.Equal(t, "🍲", DishIcon("Борщ украинский"))
	assert.Equal(t, "🥞", DishIcon("Оладьи из кабачков"))
	assert.Equal(t, "🍽", DishIcon("Что-то новое"))
}
