package category

// Category identifies one gallery bucket. The set is closed: every stored
// photo lands in exactly one of these directories.
type Category string

const (
	Dog         Category = "dog"
	Cat         Category = "cat"
	Bird        Category = "bird"
	OtherAnimal Category = "other_animal"
	NonAnimal   Category = "non_animal"
	Error       Category = "error"
)

// All returns every category in gallery display order.
func All() []Category {
	return []Category{Dog, Cat, Bird, OtherAnimal, NonAnimal, Error}
}

// Valid reports whether s names a known category.
func Valid(s string) bool {
	switch Category(s) {
	case Dog, Cat, Bird, OtherAnimal, NonAnimal, Error:
		return true
	}
	return false
}

// IsAnimal reports whether the category holds animal photos.
func (c Category) IsAnimal() bool {
	switch c {
	case Dog, Cat, Bird, OtherAnimal:
		return true
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

// Resolution is the final routing decision for one photo: where it goes,
// what the gallery calls it, and how sure the model was.
type Resolution struct {
	Category   Category
	Label      string
	Confidence float64
}
