package models

// PhotoMetadata is the JSON sidecar written next to every stored image.
// Confidence is pre-formatted as a percentage string ("87.23%") so the
// gallery can render it without knowing how it was produced.
type PhotoMetadata struct {
	Filename   string `json:"filename"`
	Category   string `json:"category"`
	AILabel    string `json:"ai_label"`
	Confidence string `json:"confidence"`
	Filter     string `json:"filter"`
	Timestamp  string `json:"timestamp"`
	IsAnimal   bool   `json:"is_animal"`
}
