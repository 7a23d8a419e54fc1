// Package privacy provides regex-based PII detection and masking.
package privacy

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// PIIType identifies the kind of personal data detected.
type PIIType string

const (
	TypeEmail      PIIType = "EMAIL_ADDRESS"
	TypePhone      PIIType = "PHONE_NUMBER"
	TypeSSN        PIIType = "US_SOCIAL_SECURITY_NUMBER"
	TypeCreditCard PIIType = "CREDIT_CARD_NUMBER"
	TypePersonName PIIType = "PERSON_NAME"
)

// Match is a detected PII span in the input text.
type Match struct {
	Type        PIIType `json:"type"`
	Text        string  `json:"text"`
	Start       int     `json:"start"`
	End         int     `json:"end"`
	Replacement string  `json:"replacement"`
}

type rule struct {
	piiType PIIType
	pattern *regexp.Regexp
}

// Masker detects and masks PII using a fixed regex catalog.
type Masker struct {
	rules []rule
}

// NewMasker returns a Masker with the built-in pattern catalog. Pattern order
// matters: specific numeric formats run before the loose person-name pattern
// so digits are never claimed as names.
func NewMasker() *Masker {
	return &Masker{rules: []rule{
		{TypeEmail, regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)},
		{TypeSSN, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
		{TypeCreditCard, regexp.MustCompile(`\b(?:4[0-9]{12}(?:[0-9]{3})?|5[1-5][0-9]{14}|3[47][0-9]{13})\b`)},
		{TypePhone, regexp.MustCompile(`\(\d{3}\)\s?\d{3}[-.]?\d{4}|\b\d{3}[-.]\d{3}[-.]\d{4}\b`)},
		// Two capitalized words. Loose; over-matching is acceptable since
		// the masked copy lives in metadata only.
		{TypePersonName, regexp.MustCompile(`\b[A-Z][a-z]+\s+[A-Z][a-z]+\b`)},
	}}
}

// Mask returns a copy of text with every detected span replaced by a numbered
// token (for example [EMAIL_ADDRESS_1]) plus the match list. The input text is
// not modified; callers decide whether the masked copy or the original flows
// onward.
func (m *Masker) Mask(text string) (string, []Match) {
	var matches []Match
	counters := make(map[PIIType]int)

	for _, r := range m.rules {
		for _, loc := range r.pattern.FindAllStringIndex(text, -1) {
			if overlaps(matches, loc[0], loc[1]) {
				continue
			}
			counters[r.piiType]++
			matches = append(matches, Match{
				Type:        r.piiType,
				Text:        text[loc[0]:loc[1]],
				Start:       loc[0],
				End:         loc[1],
				Replacement: fmt.Sprintf("[%s_%d]", r.piiType, counters[r.piiType]),
			})
		}
	}
	if len(matches) == 0 {
		return text, nil
	}

	// Rebuild front to back, copying the gaps between matches.
	sort.Slice(matches, func(i, j int) bool { return matches[i].Start < matches[j].Start })
	var b strings.Builder
	last := 0
	for _, match := range matches {
		b.WriteString(text[last:match.Start])
		b.WriteString(match.Replacement)
		last = match.End
	}
	b.WriteString(text[last:])
	return b.String(), matches
}

// Summary returns per-type match counts for storage metadata.
func Summary(matches []Match) map[string]int {
	if len(matches) == 0 {
		return nil
	}
	out := make(map[string]int)
	for _, m := range matches {
		out[string(m.Type)]++
	}
	return out
}

func overlaps(matches []Match, start, end int) bool {
	for _, m := range matches {
		if start < m.End && end > m.Start {
			return true
		}
	}
	return false
}
