// Package vision extracts structured day-by-day hour readings from a
// photographed work card, trying an ordered chain of vision models and
// gating each row through semantic plausibility checks before it is
// trusted.
package vision

import "context"

// ExtractedCard is everything the vision pipeline read off one card image.
type ExtractedCard struct {
	EmployeeName       string
	PassportID         string
	PassportCandidates []string
	Days               []DayReading
	ModelUsed          string
	ModelVersion       string

	// Quality is the per-day diagnostic output of Gate, set once the
	// extraction has been run through semantic gating.
	Quality QualityMap
}

// Extractor reads a card image and returns a structured extraction. It
// tries its own model chain internally, returning only once every model in
// the chain has been attempted (or one has succeeded).
type Extractor interface {
	Extract(ctx context.Context, imageBytes []byte, mimeType string) (*ExtractedCard, error)
}
