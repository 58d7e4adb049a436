package naming

import (
	"strings"

	"github.com/jinzhu/inflection"
)

// Pluralize returns the plural of word. An override for the whole word wins,
// then an override for its last snake_case segment, then the inflection rules.
// "sales_person" with {"person": "persons"} becomes "sales_persons".
func (n *Namer) Pluralize(word string) string {
	return inflectLast(word, n.config.PluralOverrides, inflection.Plural)
}

// Singularize is the inverse of Pluralize and follows the same override order.
func (n *Namer) Singularize(word string) string {
	return inflectLast(word, n.config.SingularOverrides, inflection.Singular)
}

func inflectLast(word string, overrides map[string]string, rule func(string) string) string {
	if override, ok := overrides[strings.ToLower(word)]; ok {
		return override
	}
	idx := strings.LastIndexByte(word, '_')
	if idx < 0 || idx == len(word)-1 {
		return rule(word)
	}
	prefix, last := word[:idx+1], word[idx+1:]
	if override, ok := overrides[strings.ToLower(last)]; ok {
		return prefix + override
	}
	return prefix + rule(last)
}
