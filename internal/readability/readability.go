// Package readability computes readability metrics and compares original
// clause text against its plain-language summary.
package readability

import (
	"strings"
	"unicode"

	"github.com/clauselens/clauselens/pkg/utils"
)

// Metrics holds readability figures for one piece of text.
type Metrics struct {
	FleschReadingEase  float64 `json:"flesch_reading_ease"`
	FleschKincaidGrade float64 `json:"flesch_kincaid_grade"`
	WordCount          int     `json:"word_count"`
	SentenceCount      int     `json:"sentence_count"`
	SyllableCount      int     `json:"syllable_count"`
}

// Comparison is the delta between an original clause and its summary.
type Comparison struct {
	Original         Metrics `json:"original"`
	Summary          Metrics `json:"summary"`
	GradeLevelDelta  float64 `json:"grade_level_delta"`
	ImprovementScore float64 `json:"improvement_score"`
}

// DocumentProfile aggregates comparisons across a whole document.
type DocumentProfile struct {
	ClauseCount            int     `json:"clause_count"`
	AvgOriginalGrade       float64 `json:"avg_original_grade"`
	AvgSummaryGrade        float64 `json:"avg_summary_grade"`
	AvgGradeLevelReduction float64 `json:"avg_grade_level_reduction"`
}

// Analyze computes metrics for text. Empty text yields zero metrics.
func Analyze(text string) Metrics {
	words := strings.Fields(text)
	if len(words) == 0 {
		return Metrics{}
	}
	sentences := countSentences(text)
	syllables := 0
	for _, w := range words {
		syllables += countSyllables(w)
	}

	wordsPerSentence := float64(len(words)) / float64(sentences)
	syllablesPerWord := float64(syllables) / float64(len(words))

	ease := 206.835 - 1.015*wordsPerSentence - 84.6*syllablesPerWord
	grade := 0.39*wordsPerSentence + 11.8*syllablesPerWord - 15.59

	return Metrics{
		FleschReadingEase:  utils.Clamp(ease, 0, 100),
		FleschKincaidGrade: utils.Clamp(grade, 0, 20),
		WordCount:          len(words),
		SentenceCount:      sentences,
		SyllableCount:      syllables,
	}
}

// Compare analyses original and summary and reports how much simpler the
// summary reads. ImprovementScore is normalized to [0,1].
func Compare(original, summary string) Comparison {
	o := Analyze(original)
	s := Analyze(summary)
	delta := o.FleschKincaidGrade - s.FleschKincaidGrade
	// Six grade levels of reduction counts as full improvement.
	score := utils.Clamp(delta/6.0, 0, 1)
	return Comparison{
		Original:         o,
		Summary:          s,
		GradeLevelDelta:  delta,
		ImprovementScore: score,
	}
}

// Profile aggregates per-clause comparisons into a document-level view.
func Profile(comparisons []Comparison) DocumentProfile {
	if len(comparisons) == 0 {
		return DocumentProfile{}
	}
	var origSum, sumSum, deltaSum float64
	for _, c := range comparisons {
		origSum += c.Original.FleschKincaidGrade
		sumSum += c.Summary.FleschKincaidGrade
		deltaSum += c.GradeLevelDelta
	}
	n := float64(len(comparisons))
	return DocumentProfile{
		ClauseCount:            len(comparisons),
		AvgOriginalGrade:       origSum / n,
		AvgSummaryGrade:        sumSum / n,
		AvgGradeLevelReduction: deltaSum / n,
	}
}

func countSentences(text string) int {
	count := 0
	for _, r := range text {
		if r == '.' || r == '!' || r == '?' {
			count++
		}
	}
	if count == 0 {
		return 1
	}
	return count
}

// countSyllables estimates syllables by counting vowel groups; silent trailing
// "e" is discounted. Every word has at least one syllable.
func countSyllables(word string) int {
	word = strings.ToLower(strings.TrimFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r)
	}))
	if word == "" {
		return 1
	}
	count := 0
	prevVowel := false
	for _, r := range word {
		v := strings.ContainsRune("aeiouy", r)
		if v && !prevVowel {
			count++
		}
		prevVowel = v
	}
	if strings.HasSuffix(word, "e") && count > 1 {
		count--
	}
	if count == 0 {
		count = 1
	}
	return count
}
