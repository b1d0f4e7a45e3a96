package category

import (
	"strings"
	"unicode"
)

// Keyword lists are curated for ImageNet-style labels. Matching is
// case-insensitive; a keyword that is a single bare word must match a whole
// word token, while keywords with spaces or hyphens match as substrings.
// Token matching keeps "cat" from hitting "catamaran" and "man" from
// hitting "Doberman".

var dogTerms = []string{
	"greyhound", "golden retriever", "labrador retriever", "german shepherd",
	"pug", "chihuahua", "beagle", "bulldog", "husky", "dalmatian",
	"great dane", "boxer", "doberman", "rottweiler", "schnauzer",
	"shetland sheepdog", "whippet", "bloodhound", "malamute", "papillon",
	"shih-tzu", "afghan hound", "basset", "cocker spaniel", "collie",
}

// Domestic cats only. Big cats route to other_animal so they keep their
// own display names.
var catTerms = []string{
	"tabby", "persian cat", "siamese cat", "egyptian cat", "tiger cat", "cat",
}

// Labels that embed "cat" but are not cats. Checked before the cat list so
// the classifier's "Madagascar cat" (a ring-tailed lemur) stays out of the
// cat gallery.
var falseCatTerms = []string{"madagascar cat", "lemur"}

var birdTerms = []string{
	"robin", "junco", "brambling", "sparrow", "eagle", "vulture",
	"peacock", "flamingo", "ostrich", "penguin", "bald eagle",
	"golden eagle", "black grouse", "ptarmigan", "ruffed grouse",
	"prairie chicken", "quail", "partridge", "african grey",
	"macaw", "sulphur-crested cockatoo", "lorikeet", "coucal", "bee eater",
	"hornbill", "hummingbird", "jacamar", "toucan", "drake",
	"red-breasted merganser", "goose", "black swan", "white stork",
	"black stork", "spoonbill", "little blue heron", "american egret",
	"bittern",
}

var otherAnimalTerms = []string{
	// Mammals
	"giant panda", "red panda", "raccoon", "skunk", "weasel", "mink",
	"polecat", "black-footed ferret", "otter", "badger", "armadillo",
	"three-toed sloth", "orangutan", "gorilla", "chimpanzee", "gibbon",
	"siamang", "guenon", "patas", "baboon", "macaque", "langur",
	"colobus", "proboscis monkey", "marmoset", "capuchin", "howler monkey",
	"titi", "spider monkey", "squirrel monkey", "indri",
	"asian elephant", "african elephant", "tusker",
	"red fox", "kit fox", "arctic fox", "grey fox",

	// Big cats
	"tiger", "cheetah", "lion", "snow leopard", "jaguar", "cougar",
	"lynx", "leopard",

	// Marine animals
	"dugong", "sea lion", "whale", "killer whale", "bottlenose dolphin",
	"seal", "walrus",

	// Farm and hoofed animals
	"ox", "water buffalo", "bison", "ram", "bighorn", "ibex",
	"hartebeest", "impala", "gazelle", "arabian camel", "llama",
	"european polecat",
}

// Generic class terms that mark a label as an animal without pinning it to
// one of the specific buckets.
var genericAnimalTerms = []string{
	"animal", "mammal", "bird", "fish", "reptile", "amphibian",
	"insect", "arachnid", "crustacean", "mollusk", "rodent",
	"carnivore", "herbivore", "omnivore", "vertebrate", "invertebrate",
}

var humanTerms = []string{
	"person", "man", "woman", "boy", "girl", "human", "people",
	"bride", "groom", "scuba diver", "ballplayer", "baseball player",
}

type vocabulary struct {
	dog      []string
	cat      []string
	falseCat []string
	bird     []string
	other    []string
	generic  []string
	human    []string
}

func defaultVocabulary() *vocabulary {
	return &vocabulary{
		dog:      dogTerms,
		cat:      catTerms,
		falseCat: falseCatTerms,
		bird:     birdTerms,
		other:    otherAnimalTerms,
		generic:  genericAnimalTerms,
		human:    humanTerms,
	}
}

// matchAnimal reports whether the label names any animal.
func (v *vocabulary) matchAnimal(label string) bool {
	lower := strings.ToLower(label)
	tokens := tokenize(lower)
	for _, list := range [][]string{v.dog, v.cat, v.falseCat, v.bird, v.other, v.generic} {
		if matchesAny(lower, tokens, list) {
			return true
		}
	}
	return false
}

// matchHuman reports whether the label names a person.
func (v *vocabulary) matchHuman(label string) bool {
	lower := strings.ToLower(label)
	return matchesAny(lower, tokenize(lower), v.human)
}

// categoryFor picks the gallery bucket for a label that already matched the
// animal vocabulary, checking the specific lists in display order.
func (v *vocabulary) categoryFor(label string) Category {
	lower := strings.ToLower(label)
	tokens := tokenize(lower)
	switch {
	case matchesAny(lower, tokens, v.falseCat):
		return OtherAnimal
	case matchesAny(lower, tokens, v.dog):
		return Dog
	case matchesAny(lower, tokens, v.cat):
		return Cat
	case matchesAny(lower, tokens, v.bird):
		return Bird
	default:
		return OtherAnimal
	}
}

// tokenize splits an already-lowercased label into letter runs.
func tokenize(lower string) []string {
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

// matchesAny applies the keyword convention: bare words match whole tokens,
// longer keywords match as substrings.
func matchesAny(lower string, tokens []string, keywords []string) bool {
	for _, kw := range keywords {
		if isBareWord(kw) {
			for _, tok := range tokens {
				if tok == kw {
					return true
				}
			}
			continue
		}
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func isBareWord(kw string) bool {
	for _, r := range kw {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
