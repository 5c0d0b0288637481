package recipe

import (
	"slices"
	"strings"
)

// Blocks is the canonical recipe record. All fields may be empty; a value
// with no title, ingredients or steps means nothing usable was extracted.
type Blocks struct {
	Title       string   `json:"title"`
	Ingredients []string `json:"ingredients"`
	Steps       []string `json:"steps"`
	Extra       string   `json:"extra"`
}

// IsEmpty reports the "no recipe" outcome.
func (b Blocks) IsEmpty() bool {
	return strings.TrimSpace(b.Title) == "" && len(b.Ingredients) == 0 && len(b.Steps) == 0
}

// Equal compares two records field by field, treating nil and empty slices
// as the same.
func (b Blocks) Equal(other Blocks) bool {
	return b.Title == other.Title &&
		b.Extra == other.Extra &&
		slices.Equal(b.Ingredients, other.Ingredients) &&
		slices.Equal(b.Steps, other.Steps)
}

// ingredientSeparators are tried in order; a bare hyphen only counts when
// surrounded by spaces so compound words survive.
var ingredientSeparators = []string{"—", "–", " - "}

// SplitIngredient splits "name — quantity". ok is false when no separator
// is present or either side is empty.
func SplitIngredient(item string) (name, quantity string, ok bool) {
	for _, sep := range ingredientSeparators {
		idx := strings.Index(item, sep)
		if idx < 0 {
			continue
		}
		name = strings.TrimSpace(item[:idx])
		quantity = strings.TrimSpace(item[idx+len(sep):])
		if name == "" || quantity == "" {
			continue
		}
		return name, quantity, true
	}
	return strings.TrimSpace(item), "", false
}

// isGroupLabel reports items such as "Для соуса:" that head a sub-list.
func isGroupLabel(item string) bool {
	return strings.HasSuffix(strings.TrimSpace(item), ":")
}

func leadingIndent(line string) string {
	trimmed := strings.TrimLeft(line, " \t")
	return line[:len(line)-len(trimmed)]
}
