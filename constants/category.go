package constants

import (
	"strings"
)

// Category is the closed set of document categories the pipeline knows about.
type Category string

const (
	Medical   Category = "medical"
	Financial Category = "financial"
	Budget    Category = "budget"
	Personal  Category = "personal"
	Legal     Category = "legal"
	Education Category = "education"
	Work      Category = "work"
	Other     Category = "other"
	Unknown   Category = "unknown"
)

var allCategories = []Category{
	Medical,
	Financial,
	Budget,
	Personal,
	Legal,
	Education,
	Work,
	Other,
}

// AsStringSlice returns the assignable categories (Unknown excluded) for
// prompt enums and schema validation.
func AsStringSlice() []string {
	result := make([]string, len(allCategories))
	for i, cat := range allCategories {
		result[i] = string(cat)
	}
	return result
}

// Canonicalize maps free-form category labels (including the pt-BR labels the
// model sometimes emits) onto the closed enum. The second return reports
// whether the input matched anything; unmatched input maps to Other.
func Canonicalize(input string) (Category, bool) {
	if input == "" {
		return Other, false
	}

	normalized := strings.ToLower(strings.TrimSpace(input))

	synonyms := map[string]Category{
		"medico":      Medical,
		"médico":      Medical,
		"saude":       Medical,
		"saúde":       Medical,
		"exame":       Medical,
		"receita":     Medical,
		"financeiro":  Financial,
		"fatura":      Financial,
		"boleto":      Financial,
		"nota fiscal": Financial,
		"invoice":     Financial,
		"orcamento":   Budget,
		"orçamento":   Budget,
		"cotacao":     Budget,
		"cotação":     Budget,
		"quote":       Budget,
		"pessoal":     Personal,
		"juridico":    Legal,
		"jurídico":    Legal,
		"contrato":    Legal,
		"educacao":    Education,
		"educação":    Education,
		"trabalho":    Work,
		"outro":       Other,
		"outros":      Other,
	}

	if cat, ok := synonyms[normalized]; ok {
		return cat, true
	}

	for _, cat := range allCategories {
		if normalized == strings.ToLower(string(cat)) {
			return cat, true
		}
	}
	if normalized == string(Unknown) {
		return Unknown, true
	}

	return Other, false
}
