package models

import (
	"math"
	"strings"
)

// ClassificationRequest is the input of the pipeline.
// PhotoURL is an http(s) URL or a data URI the AI provider can read as an image.
type ClassificationRequest struct {
	PhotoURL string `json:"photoUrl" validate:"required,datauri|http_url"`
}

// ClassificationResult is the output of the classification step.
// Confidence is conventionally in [0,1] but is not clamped.
type ClassificationResult struct {
	Species    string  `json:"species" validate:"required"`
	Confidence float64 `json:"confidence"`
}

// Usable reports whether the result can be fed into the description step.
func (r *ClassificationResult) Usable() bool {
	if r == nil {
		return false
	}
	if strings.TrimSpace(r.Species) == "" {
		return false
	}
	return !math.IsNaN(r.Confidence) && !math.IsInf(r.Confidence, 0)
}

// DescriptionResult is the output of the description step.
type DescriptionResult struct {
	SpeciesName        string `json:"speciesName" validate:"required"`
	Habitat            string `json:"habitat"`
	Diet               string `json:"diet"`
	Behavior           string `json:"behavior"`
	ConservationStatus string `json:"conservationStatus"`
}

// Usable reports whether the description carries at least a species name.
func (d *DescriptionResult) Usable() bool {
	return d != nil && strings.TrimSpace(d.SpeciesName) != ""
}

// CombinedOutput merges both stage results into the object returned to callers.
type CombinedOutput struct {
	Species            string  `json:"species"`
	Confidence         float64 `json:"confidence"`
	SpeciesName        string  `json:"speciesName"`
	Habitat            string  `json:"habitat"`
	Diet               string  `json:"diet"`
	Behavior           string  `json:"behavior"`
	ConservationStatus string  `json:"conservationStatus"`
}

// Combine merges a classification and a description.
func Combine(c *ClassificationResult, d *DescriptionResult) *CombinedOutput {
	return &CombinedOutput{
		Species:            c.Species,
		Confidence:         c.Confidence,
		SpeciesName:        d.SpeciesName,
		Habitat:            d.Habitat,
		Diet:               d.Diet,
		Behavior:           d.Behavior,
		ConservationStatus: d.ConservationStatus,
	}
}

// ConfidencePercent rounds the confidence to a whole percentage for display.
func (o *CombinedOutput) ConfidencePercent() int {
	return int(math.Round(o.Confidence * 100))
}
