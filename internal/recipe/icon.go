package recipe

import "strings"

const defaultDishIcon = "🍽"

var dishIcons = []struct {
	icon     string
	keywords []string
}{
	{"🍲", []string{"суп", "борщ", "солянк", "бульон", "рагу", "soup", "stew"}},
	{"🍝", []string{"паст", "спагетти", "макарон", "лазань", "pasta", "spaghetti"}},
	{"🥗", []string{"салат", "salad"}},
	{"🍕", []string{"пицц", "pizza"}},
	{"🥞", []string{"блин", "оладь", "олад", "панкейк", "сырник", "pancake"}},
	{"🍰", []string{"торт", "пирог", "кекс", "чизкейк", "десерт", "cake", "pie"}},
	{"🍪", []string{"печенье", "cookie"}},
	{"🍔", []string{"бургер", "burger"}},
	{"🍗", []string{"куриц", "курин", "chicken"}},
	{"🐟", []string{"рыб", "лосос", "семг", "тунец", "fish", "salmon"}},
	{"🍤", []string{"кревет", "shrimp"}},
	{"🥩", []string{"мяс", "говя", "свин", "стейк", "телят", "beef", "steak", "pork"}},
	{"🍚", []string{"плов", "рис", "ризотто", "rice", "risotto"}},
	{"🍳", []string{"яичниц", "омлет", "шакшук", "omelet"}},
	{"🍞", []string{"хлеб", "тост", "бутерброд", "bread", "toast"}},
	{"🥤", []string{"смузи", "коктейл", "лимонад", "smoothie"}},
}

// DishIcon picks an emoji for a recipe title by keyword.
func DishIcon(title string) string {
	lower := strings.ToLower(title)
	for _, entry := range dishIcons {
		for _, keyword := range entry.keywords {
			if strings.Contains(lower, keyword) {
				return entry.icon
			}
		}
	}
	return defaultDishIcon
}
