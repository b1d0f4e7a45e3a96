package category

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Rule maps matching labels to one canonical gallery label. Rules are
// evaluated in slice order and the first match wins, so specific entries
// must stay above the general ones they shadow.
type Rule struct {
	Keywords  []string
	Canonical string
}

// generalizationRules collapse model breed labels into friendly gallery
// names. Ordering constraints: "tiger cat" resolves before "tiger",
// "snow leopard" before "leopard", and the lemur entries before the cat
// terms they would otherwise token-match.
var generalizationRules = []Rule{
	{Keywords: []string{"tiger cat"}, Canonical: "Cat"},
	{Keywords: []string{"snow leopard"}, Canonical: "Snow Leopard"},
	{Keywords: falseCatTerms, Canonical: "Lemur"},
	{Keywords: dogTerms, Canonical: "Dog"},
	{Keywords: catTerms, Canonical: "Cat"},
	{Keywords: []string{"tiger"}, Canonical: "Tiger"},
	{Keywords: []string{"lion"}, Canonical: "Lion"},
	{Keywords: []string{"leopard"}, Canonical: "Leopard"},
	{Keywords: []string{"cheetah"}, Canonical: "Cheetah"},
	{Keywords: []string{"jaguar"}, Canonical: "Jaguar"},
	{Keywords: []string{"cougar"}, Canonical: "Cougar"},
	{Keywords: []string{"lynx"}, Canonical: "Lynx"},
	{Keywords: []string{"elephant", "tusker"}, Canonical: "Elephant"},
	{Keywords: []string{"panda"}, Canonical: "Panda"},
	{Keywords: []string{"fox"}, Canonical: "Fox"},
}

// canonicalLabel maps a matched label through the rules, falling back to a
// title-cased form of the raw label. Casers are stateful, so one is built
// per call rather than shared.
func canonicalLabel(rules []Rule, label string) string {
	lower := strings.ToLower(label)
	tokens := tokenize(lower)
	for _, rule := range rules {
		if matchesAny(lower, tokens, rule.Keywords) {
			return rule.Canonical
		}
	}
	return cases.Title(language.English).String(lower)
}
