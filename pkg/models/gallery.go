package models

// PhotoItem represents one gallery entry as served by the query API.
// Fields missing a sidecar fall back to display defaults at read time.
type PhotoItem struct {
	URL        string `json:"url"`
	Name       string `json:"name"`
	Category   string `json:"category"`
	Time       string `json:"time"`
	Filter     string `json:"filter"`
	AILabel    string `json:"ai_label"`
	Confidence string `json:"confidence"`
}

// GalleryStats summarizes the stored collection for the stats endpoint.
type GalleryStats struct {
	Categories map[string]int `json:"categories"`
	Total      int            `json:"total"`
	Filters    map[string]int `json:"filters"`
}

// PipelineMetrics reports ingestion counters for the metrics endpoint.
type PipelineMetrics struct {
	Received      int64   `json:"received"`
	Stored        int64   `json:"stored"`
	Failed        int64   `json:"failed"`
	AvgProcessSec float64 `json:"avg_process_sec"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
