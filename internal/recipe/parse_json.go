package recipe

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"recipebot/internal/services/llm"
)

type jsonRecipe struct {
	Title       flexText  `json:"title"`
	Name        flexText  `json:"name"`
	Ingredients flexItems `json:"ingredients"`
	Steps       flexItems `json:"steps"`
	Extra       flexText  `json:"extra"`
	Notes       flexText  `json:"notes"`
}

// flexText accepts a string, a number, a list of strings or null.
type flexText string

func (f *flexText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexText(strings.TrimSpace(s))
	case '[':
		var items flexItems
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*f = flexText(strings.Join(items, "\n"))
	default:
		*f = flexText(strings.TrimSpace(string(data)))
	}
	return nil
}

// flexItems accepts a list whose entries are strings or objects such as
// {"name": "сахар", "quantity": "200 г"} or {"text": "..."}. A single
// string is split on newlines.
type flexItems []string

func (f *flexItems) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = splitNonEmpty(s)
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make([]string, 0, len(raw))
	for _, entry := range raw {
		if item := decodeItem(entry); item != "" {
			out = append(out, item)
		}
	}
	*f = out
	return nil
}

func decodeItem(entry json.RawMessage) string {
	entry = bytes.TrimSpace(entry)
	if len(entry) == 0 {
		return ""
	}
	switch entry[0] {
	case '"':
		var s string
		if json.Unmarshal(entry, &s) == nil {
			return strings.TrimSpace(s)
		}
	case '{':
		var obj map[string]any
		if json.Unmarshal(entry, &obj) != nil {
			return ""
		}
		name := firstField(obj, "name", "ingredient", "item", "text", "step", "description")
		quantity := firstField(obj, "quantity", "amount", "qty")
		switch {
		case name != "" && quantity != "":
			return name + " — " + quantity
		default:
			return name
		}
	default:
		return strings.TrimSpace(string(entry))
	}
	return ""
}

func firstField(obj map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := obj[key].(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseJSON(raw string) (Blocks, error) {
	var decoded jsonRecipe
	if err := llm.DecodeLLMJSON(raw, &decoded); err != nil {
		return Blocks{}, err
	}
	blocks := Blocks{
		Title: cleanTitle(string(firstText(decoded.Title, decoded.Name))),
		Extra: strings.TrimSpace(string(firstText(decoded.Extra, decoded.Notes))),
	}
	for _, item := range decoded.Ingredients {
		if cleaned := cleanItem(item); cleaned != "" {
			blocks.Ingredients = append(blocks.Ingredients, strings.TrimLeft(cleaned, " \t"))
		}
	}
	for _, item := range decoded.Steps {
		if cleaned := cleanItem(item); cleaned != "" {
			blocks.Steps = append(blocks.Steps, strings.TrimLeft(cleaned, " \t"))
		}
	}
	return blocks, nil
}

func firstText(values ...flexText) flexText {
	for _, v := range values {
		if strings.TrimSpace(string(v)) != "" {
			return v
		}
	}
	return ""
}
