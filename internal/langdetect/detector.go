// Package langdetect provides document language detection from a text sample.
package langdetect

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// Result is the outcome of language detection.
type Result struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
}

// Detector detects the language of extracted document text.
type Detector struct{}

// NewDetector returns a new Detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect analyses sample and returns the detected ISO 639-1 language code
// with a confidence in [0,1]. Empty or whitespace-only samples return English
// with zero confidence so callers fall back to their default.
func (d *Detector) Detect(sample string) Result {
	sample = strings.TrimSpace(sample)
	if sample == "" {
		return Result{Language: "en", Confidence: 0, Method: "empty_sample"}
	}

	info := whatlanggo.Detect(sample)
	code := info.Lang.Iso6391()
	if code == "" {
		return Result{Language: "en", Confidence: 0, Method: "trigram"}
	}
	return Result{
		Language:   code,
		Confidence: info.Confidence,
		Method:     "trigram",
	}
}
