// Package segment splits extracted contract text into ordered clause
// candidates and assigns each a category.
package segment

import (
	"regexp"
	"strings"

	"github.com/clauselens/clauselens/pkg/utils"
)

// BoundingBox locates a layout block on its page.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// LayoutBlock is a structured text block from a layout-aware extractor.
type LayoutBlock struct {
	Text        string
	PageNumber  int
	Confidence  float64
	BoundingBox *BoundingBox
}

// Candidate is a provisional clause proposed by the segmenter.
type Candidate struct {
	Text              string
	Start             int
	End               int
	Heading           string
	HeadingConfidence float64
	PageNumber        int
	BoundingBox       *BoundingBox
	Order             int
	Category          string
}

// WordCount returns the number of whitespace-separated words in the candidate.
func (c *Candidate) WordCount() int {
	return len(strings.Fields(c.Text))
}

// headingPatterns match common contract section openers. Order matters: the
// most specific forms run first so "ARTICLE 5" is not consumed by the
// all-caps rule.
var headingPatterns = []*regexp.Regexp{
	// ARTICLE/SECTION/CLAUSE keywords
	regexp.MustCompile(`(?i)^((?:ARTICLE|SECTION|CLAUSE)\s+\d+(?:\.\d+)*)\s*[:\-]?\s*(.*)$`),
	// Numbered sections (1., 2.3., 10.1.2.)
	regexp.MustCompile(`^(\d+\.(?:\d+\.?)*)\s+(.+)$`),
	// Roman numerals (I., IV., XII.)
	regexp.MustCompile(`^([IVX]+\.)\s+(.+)$`),
	// Letters ((a), (b) or A., B.)
	regexp.MustCompile(`^(\([a-z]\)|[A-Z]\.)\s+(.+)$`),
}

// legalKeywords is the fixed vocabulary used for confidence scoring.
var legalKeywords = []string{
	"termination", "liability", "indemnity", "confidentiality", "payment",
	"intellectual property", "dispute resolution", "governing law",
	"assignment", "modification", "severability", "entire agreement",
	"force majeure", "warranties", "representations", "damages",
	"breach", "notice", "jurisdiction", "venue", "arbitration",
}

// Segmenter turns extracted text into ordered clause candidates.
type Segmenter struct {
	categorizer *Categorizer
}

// NewSegmenter returns a segmenter with the built-in category rule set.
func NewSegmenter() *Segmenter {
	return &Segmenter{categorizer: NewCategorizer()}
}

// Segment splits text into validated, ordered, categorized candidates.
// When layout blocks are available they drive segmentation; otherwise the
// raw text is processed line by line. The result is deterministic for a
// given input. An empty result means no clause could be identified.
func (s *Segmenter) Segment(text string, blocks []LayoutBlock) []Candidate {
	var raw []Candidate
	if len(blocks) > 0 {
		raw = s.segmentBlocks(text, blocks)
	} else {
		raw = s.segmentLines(text)
	}
	validated := s.validateAndMerge(raw)
	s.categorizer.Categorize(validated)
	return validated
}

// segmentBlocks walks layout blocks: a block matching a heading pattern opens
// a new candidate; otherwise it merges into the previous candidate or opens
// an unheaded one.
func (s *Segmenter) segmentBlocks(text string, blocks []LayoutBlock) []Candidate {
	var out []Candidate
	for _, block := range blocks {
		blockText := strings.TrimSpace(block.Text)
		if blockText == "" {
			continue
		}
		start := strings.Index(text, blockText)
		end := start + len(blockText)

		heading := extractHeading(firstLine(blockText))
		if heading != "" {
			conf := block.Confidence
			if conf == 0 {
				conf = 0.8
			}
			out = append(out, Candidate{
				Text:              blockText,
				Start:             start,
				End:               end,
				Heading:           heading,
				HeadingConfidence: conf,
				PageNumber:        block.PageNumber,
				BoundingBox:       block.BoundingBox,
			})
			continue
		}
		if len(out) > 0 && shouldMerge(blockText, &out[len(out)-1]) {
			prev := &out[len(out)-1]
			prev.Text += "\n" + blockText
			prev.End = end
			continue
		}
		out = append(out, Candidate{
			Text:              blockText,
			Start:             start,
			End:               end,
			HeadingConfidence: confidence(blockText),
			PageNumber:        block.PageNumber,
			BoundingBox:       block.BoundingBox,
		})
	}
	return out
}

// segmentLines applies the heading and continuation rules line by line over
// raw text.
func (s *Segmenter) segmentLines(text string) []Candidate {
	var out []Candidate
	var current []string
	var currentHeading string
	currentStart := 0
	offset := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		clauseText := strings.Join(current, "\n")
		out = append(out, Candidate{
			Text:              clauseText,
			Start:             currentStart,
			End:               currentStart + len(clauseText),
			Heading:           currentHeading,
			HeadingConfidence: confidence(clauseText),
		})
		current = nil
		currentHeading = ""
	}

	for _, rawLine := range strings.Split(text, "\n") {
		lineStart := offset
		offset += len(rawLine) + 1
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}
		if heading := extractHeading(line); heading != "" {
			flush()
			current = []string{line}
			currentHeading = heading
			currentStart = lineStart
			continue
		}
		if len(current) == 0 {
			currentStart = lineStart
		}
		current = append(current, line)
	}
	flush()
	return out
}

// shouldMerge reports whether blockText continues the previous candidate:
// the previous one is still short, the block starts lowercase, or the block
// is short and carries no heading of its own.
func shouldMerge(blockText string, prev *Candidate) bool {
	if extractHeading(firstLine(blockText)) != "" {
		return false
	}
	if prev.WordCount() < 20 {
		return true
	}
	words := strings.Fields(blockText)
	if len(words) > 0 {
		first := []rune(words[0])
		if len(first) > 0 && first[0] >= 'a' && first[0] <= 'z' {
			return true
		}
	}
	return len(blockText) < 1000
}

// extractHeading returns the normalized heading when line matches a heading
// pattern, or "" otherwise. All-caps lines without digits also count.
func extractHeading(line string) string {
	line = strings.TrimSpace(line)
	if line == "" {
		return ""
	}
	for _, p := range headingPatterns {
		if m := p.FindStringSubmatch(line); m != nil {
			if len(m) >= 3 && strings.TrimSpace(m[2]) != "" {
				return strings.TrimSpace(m[1]) + " " + strings.TrimSpace(m[2])
			}
			return strings.TrimSpace(m[1])
		}
	}
	if len(line) > 5 && line == strings.ToUpper(line) && !strings.ContainsAny(line, "0123456789") && strings.ContainsFunc(line, isUpperLetter) {
		return line
	}
	return ""
}

func isUpperLetter(r rune) bool {
	return r >= 'A' && r <= 'Z'
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// confidence scores a candidate's text. Base 0.5; word count in [20,500]
// adds 0.2 while under 10 words subtracts 0.3; legal keyword density adds up
// to 0.3; two or more sentence enders add 0.1. Clamped to [0.1, 1.0].
func confidence(text string) float64 {
	conf := 0.5
	wordCount := len(strings.Fields(text))
	switch {
	case wordCount >= 20 && wordCount <= 500:
		conf += 0.2
	case wordCount < 10:
		conf -= 0.3
	}

	lower := strings.ToLower(text)
	keywordMatches := 0
	for _, kw := range legalKeywords {
		if strings.Contains(lower, kw) {
			keywordMatches++
		}
	}
	if keywordMatches > 0 {
		conf += min(0.3, float64(keywordMatches)*0.1)
	}

	enders := strings.Count(text, ".") + strings.Count(text, "!") + strings.Count(text, "?")
	if enders >= 2 {
		conf += 0.1
	}
	return utils.Clamp(conf, 0.1, 1.0)
}

// validateAndMerge drops sub-5-word low-confidence fragments into the next
// candidate, normalizes text, and assigns contiguous 1-based order.
func (s *Segmenter) validateAndMerge(candidates []Candidate) []Candidate {
	var validated []Candidate
	for i := 0; i < len(candidates); i++ {
		c := candidates[i]
		if c.WordCount() < 5 && c.HeadingConfidence < 0.8 {
			if i < len(candidates)-1 {
				next := &candidates[i+1]
				next.Text = c.Text + "\n" + next.Text
				next.Start = c.Start
			}
			continue
		}
		c.Text = normalizeText(c.Text)
		c.Order = len(validated) + 1
		validated = append(validated, c)
	}
	return validated
}

var (
	multiSpace = regexp.MustCompile(`[ \t]+`)
	pageBreak  = regexp.MustCompile(`Page \d+[^\n]*\n`)
)

// normalizeText collapses runs of whitespace, strips page-break artifacts,
// and normalizes curly quotes.
func normalizeText(text string) string {
	text = pageBreak.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "\f", "")
	text = multiSpace.ReplaceAllString(text, " ")
	replacer := strings.NewReplacer(
		"“", `"`, "”", `"`,
		"‘", "'", "’", "'",
	)
	return strings.TrimSpace(replacer.Replace(text))
}
