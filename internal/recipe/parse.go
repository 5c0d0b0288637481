package recipe

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"recipebot/internal/services/llm"
)

type section int

const (
	sectionNone section = iota
	sectionTitle
	sectionIngredients
	sectionSteps
	sectionExtra
)

func (s section) isList() bool {
	return s == sectionIngredients || s == sectionSteps
}

type headerPhrase struct {
	folded  string
	runes   int
	section section
}

var headerVocabulary = buildVocabulary(map[section][]string{
	sectionTitle:       {"рецепт", "название", "title", "name", "recipe"},
	sectionIngredients: {"ингредиенты", "продукты", "ingredients"},
	sectionSteps: {
		"приготовление", "шаги приготовления", "способ приготовления", "шаги",
		"steps", "preparation", "instructions", "method", "directions",
	},
	sectionExtra: {"дополнительно", "советы", "примечания", "заметки", "extra", "notes", "tips"},
})

// buildVocabulary folds every phrase and orders longest first so
// "шаги приготовления" wins over "шаги".
func buildVocabulary(raw map[section][]string) []headerPhrase {
	var out []headerPhrase
	for sec, phrases := range raw {
		for _, phrase := range phrases {
			folded := foldString(phrase)
			out = append(out, headerPhrase{folded: folded, runes: utf8.RuneCountInString(folded), section: sec})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].runes != out[j].runes {
			return out[i].runes > out[j].runes
		}
		return out[i].folded < out[j].folded
	})
	return out
}

var itemMarker = regexp.MustCompile(`^(?:[-*–—·▪]\s+|•\s*|\d{1,3}[.)]\s+)`)

// Parse converts model output into Blocks. JSON is tried first; anything
// else, or JSON that yields nothing, goes through the line scanner.
func Parse(raw string) Blocks {
	if strings.TrimSpace(raw) == "" {
		return Blocks{}
	}
	if llm.LooksLikeJSON(raw) {
		if blocks, err := parseJSON(raw); err == nil && !blocks.IsEmpty() {
			return blocks
		}
	}
	return scanLines(raw)
}

func scanLines(raw string) Blocks {
	var (
		blocks  Blocks
		current = sectionNone
		extra   []string
	)
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if sec, inline, ok := matchHeader(trimmed, current); ok {
			current = sec
			if inline == "" {
				continue
			}
			line, trimmed = inline, inline
		}

		switch current {
		case sectionTitle:
			if blocks.Title == "" {
				blocks.Title = cleanTitle(trimmed)
			}
		case sectionIngredients:
			if item := cleanItem(line); item != "" {
				blocks.Ingredients = append(blocks.Ingredients, item)
			}
		case sectionSteps:
			if item := cleanItem(line); item != "" {
				blocks.Steps = append(blocks.Steps, item)
			}
		case sectionExtra:
			extra = append(extra, trimmed)
		}
	}
	blocks.Extra = strings.Join(extra, "\n")
	return blocks
}

// matchHeader recognizes a section header. The phrase must start the line
// (after markdown emphasis, '#' and emoji) at a word boundary and be followed
// by nothing, by ':' with optional inline content, or by text when the whole
// line ends in ':'. Inside a list section that last form is a group label
// such as "Продукты для соуса:" and stays with the current section.
func matchHeader(trimmed string, current section) (section, string, bool) {
	startsWithMarker := itemMarker.MatchString(trimmed)
	text := strings.TrimRightFunc(stripDecoration(trimmed), isDecoration)
	if text == "" {
		return sectionNone, "", false
	}
	for _, phrase := range headerVocabulary {
		rest, ok := cutFoldedPrefix(text, phrase)
		if !ok {
			continue
		}
		if r, _ := utf8.DecodeRuneInString(rest); rest != "" && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			continue
		}
		rest = strings.TrimLeftFunc(rest, isDecoration)
		switch {
		case rest == "":
			return phrase.section, "", true
		case strings.HasPrefix(rest, ":"):
			inline := strings.TrimFunc(rest[1:], isDecoration)
			return phrase.section, inline, true
		case strings.HasSuffix(text, ":") && !startsWithMarker && !current.isList():
			return phrase.section, "", true
		}
		return sectionNone, "", false
	}
	return sectionNone, "", false
}

func cutFoldedPrefix(text string, phrase headerPhrase) (string, bool) {
	end, count := 0, 0
	for end < len(text) && count < phrase.runes {
		_, size := utf8.DecodeRuneInString(text[end:])
		end += size
		count++
	}
	if count < phrase.runes || foldString(text[:end]) != phrase.folded {
		return "", false
	}
	return text[end:], true
}

// foldString case-folds s. Casers carry state, so one is made per call.
func foldString(s string) string {
	return cases.Fold().String(s)
}

func stripDecoration(text string) string {
	return strings.TrimLeftFunc(text, isDecoration)
}

func isDecoration(r rune) bool {
	switch r {
	case '#', '*', '_', '\u200d', '\ufe0f':
		return true
	}
	return unicode.IsSpace(r) || unicode.Is(unicode.So, r) || unicode.Is(unicode.Sk, r)
}

// cleanItem strips list markers and trailing punctuation but keeps leading
// indentation so nested sub-lists survive.
func cleanItem(line string) string {
	indent := leadingIndent(line)
	body := strings.TrimSpace(line)
	body = itemMarker.ReplaceAllString(body, "")
	body = strings.TrimRight(body, ".;, \t")
	body = strings.TrimSpace(body)
	if body == "" {
		return ""
	}
	return indent + body
}

func cleanTitle(text string) string {
	text = itemMarker.ReplaceAllString(strings.TrimSpace(text), "")
	text = strings.TrimFunc(text, func(r rune) bool { return r == '*' || r == '_' || r == '#' || unicode.IsSpace(r) })
	return strings.TrimRight(text, ".")
}
