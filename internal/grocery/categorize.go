// Package grocery guesses a store aisle for a shopping item name.
package grocery

import (
	"sort"
	"strings"
)

// Categorize returns a category for itemName, or "" when nothing matches.
// Matching is case-insensitive and works on whole words, so "pineapple
// juice" is a beverage and "cream cheese" is dairy. Multi-word keywords
// are tried before single words and simple plurals are folded.
func Categorize(itemName string) string {
	words := tokenize(itemName)
	if len(words) == 0 {
		return ""
	}
	for _, k := range keywords {
		if containsPhrase(words, k.words) {
			return k.category
		}
	}
	return ""
}

// Suggest is Categorize biased towards categories already in use: if the
// guess matches one of known case-insensitively, the known spelling wins.
func Suggest(itemName string, known []string) string {
	guess := Categorize(itemName)
	if guess == "" {
		return ""
	}
	for _, k := range known {
		if strings.EqualFold(k, guess) {
			return k
		}
	}
	return guess
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > 127)
	})
}

func containsPhrase(words, phrase []string) bool {
	for i := 0; i+len(phrase) <= len(words); i++ {
		ok := true
		for j, p := range phrase {
			if !wordMatches(words[i+j], p) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// wordMatches reports whether w is p or a regular plural of it.
func wordMatches(w, p string) bool {
	switch {
	case w == p:
		return true
	case w == p+"s" && !strings.HasSuffix(p, "s"):
		return true
	case w == p+"es":
		return true
	case strings.HasSuffix(p, "y") && w == p[:len(p)-1]+"ies":
		return true
	}
	return false
}

type keyword struct {
	words    []string
	category string
}

// keywords is ordered longest phrase first.
var keywords = buildKeywords(map[string][]string{
	"Produce": {
		"apple", "banana", "orange", "lemon", "lime", "avocado", "tomato",
		"potato", "onion", "garlic", "lettuce", "spinach", "kale", "broccoli",
		"carrot", "celery", "cucumber", "pepper", "mushroom", "grape",
		"strawberry", "blueberry", "pear", "peach", "ginger", "herb", "basil",
		"zucchini", "green bean",
	},
	"Dairy": {
		"milk", "cheese", "butter", "yogurt", "yoghurt", "cream", "egg",
		"cream cheese", "sour cream",
	},
	"Meat & Seafood": {
		"chicken", "beef", "pork", "steak", "bacon", "sausage", "ham",
		"turkey", "fish", "salmon", "tuna", "shrimp", "ground beef",
	},
	"Bakery": {
		"bread", "bagel", "bun", "roll", "croissant", "muffin", "tortilla",
		"baguette", "cake",
	},
	"Pantry": {
		"rice", "pasta", "flour", "sugar", "salt", "oil", "olive oil",
		"cereal", "oat", "bean", "lentil", "soup", "sauce", "honey",
		"peanut butter", "spice", "vinegar", "canned",
	},
	"Frozen": {
		"frozen", "ice cream", "ice", "frozen pizza",
	},
	"Beverages": {
		"coffee", "tea", "juice", "soda", "water", "beer", "wine",
		"sparkling water", "orange juice",
	},
	"Snacks": {
		"chip", "cracker", "cookie", "chocolate", "candy", "popcorn", "nut",
	},
	"Household": {
		"soap", "detergent", "paper towel", "toilet paper", "trash bag",
		"sponge", "bleach", "dish soap", "foil", "battery", "light bulb",
	},
	"Personal Care": {
		"shampoo", "conditioner", "toothpaste", "toothbrush", "deodorant",
		"razor", "lotion", "sunscreen",
	},
})

func buildKeywords(table map[string][]string) []keyword {
	var out []keyword
	for category, phrases := range table {
		for _, p := range phrases {
			out = append(out, keyword{words: strings.Fields(p), category: category})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if len(a.words) != len(b.words) {
			return len(a.words) > len(b.words)
		}
		pa, pb := strings.Join(a.words, " "), strings.Join(b.words, " ")
		if len(pa) != len(pb) {
			return len(pa) > len(pb)
		}
		return pa < pb
	})
	return out
}
