package segment

import (
	"regexp"
	"strings"
)

// Category names. "Other" is the fallback when evidence is weak or ambiguous.
const (
	CategoryTermination       = "Termination"
	CategoryLiability         = "Liability"
	CategoryIndemnity         = "Indemnity"
	CategoryConfidentiality   = "Confidentiality"
	CategoryPayment           = "Payment"
	CategoryIPOwnership       = "IP Ownership"
	CategoryDisputeResolution = "Dispute Resolution"
	CategoryGoverningLaw      = "Governing Law"
	CategoryAssignment        = "Assignment"
	CategoryModification      = "Modification"
	CategoryWarranties        = "Warranties"
	CategoryForceMajeure      = "Force Majeure"
	CategoryDefinitions       = "Definitions"
	CategoryOther             = "Other"
)

// Categories lists every category a clause can be assigned, in rule order.
var Categories = []string{
	CategoryTermination, CategoryLiability, CategoryIndemnity,
	CategoryConfidentiality, CategoryPayment, CategoryIPOwnership,
	CategoryDisputeResolution, CategoryGoverningLaw, CategoryAssignment,
	CategoryModification, CategoryWarranties, CategoryForceMajeure,
	CategoryDefinitions, CategoryOther,
}

// categoryRule is one weighted pattern contributing evidence to a category.
type categoryRule struct {
	pattern *regexp.Regexp
	weight  float64
}

// categoryRuleSet holds a category's rules; scores are normalized by rule
// count so large rule sets are not favored.
type categoryRuleSet struct {
	name  string
	rules []categoryRule
}

func rule(weight float64, pattern string) categoryRule {
	return categoryRule{pattern: regexp.MustCompile(`(?i)` + pattern), weight: weight}
}

// buildRuleSets returns the consolidated category rule table. Keeping the
// table in one place makes the heuristics testable apart from the scoring.
func buildRuleSets() []categoryRuleSet {
	return []categoryRuleSet{
		{CategoryTermination, []categoryRule{
			rule(3.0, `\btermi?nat\w*\b`),
			rule(2.5, `\bexpir\w*\b|\bcancel\w*\b|\brescind\b`),
			rule(2.0, `\bmaterial\s+breach\b|\bbreach\b|\bdefault\b`),
			rule(2.0, `\bend\s+(?:this|the|such)\s*(?:agreement|contract)\b`),
			rule(1.5, `\bnotice\s+(?:of|to)\s+termina\w*\b|\bdissolv\w*\b`),
		}},
		{CategoryLiability, []categoryRule{
			rule(3.0, `\bliabilit\w*\b|\bliable\b`),
			rule(2.5, `\b(?:consequential|incidental|punitive|indirect|exemplary)\s+damages?\b`),
			rule(2.5, `\bwithout\s+limit\w*\b|\bno\s+limit\b|\bunlimited\b`),
			rule(2.0, `\bdamages?\b|\blosse?s?\b|\bharm\b`),
			rule(1.5, `\bnegligen\w*\b|\bmisconduct\b|\bwrongful\b|\btort\b`),
		}},
		{CategoryIndemnity, []categoryRule{
			rule(4.0, `\bindemnif\w*\b|\bindemnit\w*\b`),
			rule(4.0, `\bhold\s+(?:\w+\s+)?harmless\b|\bsave\s+harmless\b`),
			rule(2.5, `\bdefend\s+(?:and\s+)?(?:indemnif\w*|hold\s+harmless)\b`),
			rule(2.0, `\bthird\s+part\w*\s+claims?\b|\battorneys?'?s?\s+fees?\b`),
		}},
		{CategoryConfidentiality, []categoryRule{
			rule(3.0, `\bconfidential\w*\b|\bnon.?disclosure\b|\bNDA\b`),
			rule(2.5, `\btrade\s+secrets?\b|\bproprietary\s+information\b`),
			rule(2.0, `\bnot\s+disclos\w*\b|\bkeep\s+(?:confidential|secret)\b`),
			rule(1.5, `\bpublicly\s+available\b|\bpublic\s+domain\b`),
		}},
		{CategoryPayment, []categoryRule{
			rule(3.0, `\bpayments?\b|\bfees?\b|\binvoices?\b`),
			rule(2.5, `\bnet\s+\d+\b|\bdue\s+(?:date|on|within)\b`),
			rule(2.0, `\blate\s+(?:fee|payment|penalty)\b|\boverdue\b|\bdelinquen\w*\b`),
			rule(1.5, `\btaxe?s?\b|\bVAT\b|\bexpenses?\b|\breimburs\w*\b`),
		}},
		{CategoryIPOwnership, []categoryRule{
			rule(3.0, `\bintellectual\s+property\b|\bIP\s+rights?\b`),
			rule(2.5, `\bcopyrights?\b|\btrademarks?\b|\bpatents?\b`),
			rule(2.0, `\bwork\s+(?:product|made\s+for\s+hire|for\s+hire)\b|\bderivative\s+works?\b`),
			rule(1.5, `\bownership\b|\btitle\s+(?:to|in)\b|\bexclusive\s+rights?\b`),
		}},
		{CategoryDisputeResolution, []categoryRule{
			rule(3.0, `\barbitrat\w*\b|\bmediat\w*\b`),
			rule(2.5, `\bdisputes?\b|\bcontrovers\w*\b`),
			rule(2.0, `\blitigation\b|\blawsuits?\b|\btribunal\w*\b`),
			rule(1.5, `\bbinding\s+(?:arbitration|decision)\b|\bfinal\s+and\s+binding\b`),
		}},
		{CategoryGoverningLaw, []categoryRule{
			rule(3.5, `\bgoverning\s+law\b|\bgoverned\s+by\b`),
			rule(2.5, `\bconstrued\s+(?:under|in\s+accordance\s+with)\b|\bapplicable\s+law\b`),
			rule(2.0, `\bchoice\s+of\s+law\b|\blaws?\s+of\s+the\s+state\b`),
			rule(1.5, `\bjurisdiction\b|\bvenue\b`),
		}},
		{CategoryAssignment, []categoryRule{
			rule(3.0, `\bassign\w*\b`),
			rule(2.5, `\bnot\s+(?:assign|transfer)\b|\bprior\s+written\s+consent\b`),
			rule(2.0, `\bsuccessors?\s+(?:and\s+)?assigns?\b|\bnovation\b`),
			rule(1.5, `\bdelegat\w*\b|\bsubcontract\w*\b`),
		}},
		{CategoryModification, []categoryRule{
			rule(3.0, `\bamend\w*\b|\bmodif\w*\b`),
			rule(2.5, `\bentire\s+agreement\b|\bsupersedes?\b`),
			rule(2.0, `\bin\s+writing\b|\bwritten\s+(?:amendment|modification|consent)\b`),
			rule(1.5, `\bwaive?r?s?\b|\baddend\w*\b`),
		}},
		{CategoryWarranties, []categoryRule{
			rule(3.0, `\bwarrant\w*\b|\bguarantee\w*\b`),
			rule(2.5, `\bmerchantabilit\w*\b|\bfitness\s+for\s+(?:a\s+particular\s+)?purpose\b`),
			rule(2.0, `\bas\s+is\b|\bdisclaims?\s+(?:all\s+)?warrant\w*\b`),
			rule(1.5, `\brepresent\w*\b|\bcovenants?\b|\bdefects?\b`),
		}},
		{CategoryForceMajeure, []categoryRule{
			rule(4.0, `\bforce\s+majeure\b`),
			rule(2.5, `\bacts?\s+of\s+god\b|\bbeyond\s+(?:\w+\s+)?reasonable\s+control\b`),
			rule(2.0, `\bearthquakes?\b|\bfloods?\b|\bwar\b|\bterrorism\b|\bstrikes?\b`),
			rule(1.5, `\bexcus\w*\s+(?:performance|delay)\b|\bsuspend\w*\s+performance\b`),
		}},
		{CategoryDefinitions, []categoryRule{
			rule(3.0, `\bdefinitions?\b|\bdefined\s+(?:as|herein|below|above)\b`),
			rule(2.5, `\bshall\s+mean\b|\bmeans\b`),
			rule(2.0, `\bcapitalized\s+terms?\b`),
			rule(1.5, `\bas\s+set\s+forth\s+(?:above|below|herein)\b|\brefers?\s+to\b`),
		}},
	}
}

// Categorizer assigns a category to each candidate from the rule table.
type Categorizer struct {
	ruleSets []categoryRuleSet
}

// NewCategorizer builds the categorizer once; the rule table is immutable.
func NewCategorizer() *Categorizer {
	return &Categorizer{ruleSets: buildRuleSets()}
}

// Thresholds a winning category must clear; below either, the clause is
// assigned "Other".
const (
	marginThreshold   = 0.2
	evidenceThreshold = 1.5
)

// Categorize scores every candidate in place. Scoring is deterministic:
// rule sets are iterated in a fixed order.
func (c *Categorizer) Categorize(candidates []Candidate) {
	for i := range candidates {
		candidates[i].Category = c.categorize(&candidates[i])
	}
}

func (c *Categorizer) categorize(cand *Candidate) string {
	text := strings.ToLower(cand.Text)
	wordCount := cand.WordCount()

	// Longer clauses get a mild boost per match; evidence in a dense clause
	// is worth more than in a fragment.
	lengthFactor := 1.0
	if wordCount > 50 {
		lengthFactor = min(1.5, 1.0+float64(wordCount-50)/200.0)
	}

	best, second := 0.0, 0.0
	bestName := CategoryOther
	for _, set := range c.ruleSets {
		score := 0.0
		for _, r := range set.rules {
			matches := len(r.pattern.FindAllStringIndex(text, -1))
			if matches > 0 {
				score += float64(matches) * r.weight * lengthFactor
			}
		}
		score /= float64(len(set.rules))
		if score > best {
			second = best
			best = score
			bestName = set.name
		} else if score > second {
			second = score
		}
	}

	if best < evidenceThreshold {
		return CategoryOther
	}
	margin := (best - second) / best
	if margin <= marginThreshold {
		return CategoryOther
	}
	return bestName
}
