package category

import (
	"snapsort/internal/classify"
)

// Resolver turns ranked classifier output into a routing decision. It never
// errors: any classification result, including an empty one, maps to some
// category, so one photo always lands in exactly one bucket.
type Resolver struct {
	vocab       *vocabulary
	rules       []Rule
	animalMin   float64
	humanMin    float64
	fallbackMin float64
}

// NewResolver creates a resolver with the given confidence thresholds:
// animalMin gates animal hits, humanMin gates person hits, and fallbackMin
// is the floor for scanning the full probability vector.
func NewResolver(animalMin, humanMin, fallbackMin float64) *Resolver {
	return &Resolver{
		vocab:       defaultVocabulary(),
		rules:       generalizationRules,
		animalMin:   animalMin,
		humanMin:    humanMin,
		fallbackMin: fallbackMin,
	}
}

type hit struct {
	label      string
	confidence float64
}

// Resolve picks the category, display label and confidence for one result.
//
// The ranked head is scanned first, tracking the best animal and best human
// hit independently. If neither vocabulary matched, the full probability
// vector is scanned in class-index order for the first entry above the
// fallback floor; the first match wins and the scan stops. Threshold gates
// then decide the outcome, preferring animals over humans over "Other".
func (r *Resolver) Resolve(result classify.Result) Resolution {
	if len(result.Top) == 0 {
		return Resolution{Category: Error, Label: "classifier returned no predictions", Confidence: 0}
	}

	var animal, human *hit
	for _, p := range result.Top {
		switch {
		case r.vocab.matchAnimal(p.Label):
			if animal == nil || p.Confidence > animal.confidence {
				animal = &hit{p.Label, p.Confidence}
			}
		case r.vocab.matchHuman(p.Label):
			if human == nil || p.Confidence > human.confidence {
				human = &hit{p.Label, p.Confidence}
			}
		}
	}

	if animal == nil && human == nil {
		for _, p := range result.All {
			if p.Confidence <= r.fallbackMin {
				continue
			}
			if r.vocab.matchAnimal(p.Label) {
				animal = &hit{p.Label, p.Confidence}
				break
			}
			if r.vocab.matchHuman(p.Label) {
				human = &hit{p.Label, p.Confidence}
				break
			}
		}
	}

	switch {
	case animal != nil && animal.confidence >= r.animalMin:
		return Resolution{
			Category:   r.vocab.categoryFor(animal.label),
			Label:      canonicalLabel(r.rules, animal.label),
			Confidence: animal.confidence,
		}
	case human != nil && human.confidence >= r.humanMin:
		return Resolution{Category: NonAnimal, Label: "Human", Confidence: human.confidence}
	default:
		return Resolution{Category: NonAnimal, Label: "Other", Confidence: result.Top[0].Confidence}
	}
}

// Fault routes a failed classification to the error category, keeping the
// failure description as the display label.
func Fault(err error) Resolution {
	label := "classification failed"
	if err != nil {
		label = err.Error()
	}
	return Resolution{Category: Error, Label: label, Confidence: 0}
}
