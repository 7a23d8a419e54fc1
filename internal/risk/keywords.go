package risk

import "regexp"

// keywordRule is a risk-bearing phrase with a weight in [0,1]. Mitigators are
// phrases whose presence halves the weight (a mutual indemnity reads very
// differently from a one-sided one).
type keywordRule struct {
	pattern    *regexp.Regexp
	weight     float64
	mitigators []*regexp.Regexp
}

func kw(weight float64, pattern string, mitigators ...string) keywordRule {
	r := keywordRule{
		pattern: regexp.MustCompile(`(?im)\b(` + pattern + `)\b`),
		weight:  weight,
	}
	for _, m := range mitigators {
		r.mitigators = append(r.mitigators, regexp.MustCompile(`(?i)`+m))
	}
	return r
}

// keywordRules is the risk phrase catalog, ordered roughly by concern.
var keywordRules = []keywordRule{
	// Indemnification.
	kw(0.8, `indemnify|indemnification|indemnities`,
		`mutual indemnification`, `limited indemnification`),
	kw(0.9, `hold harmless`),
	kw(0.7, `defend`, `right to defend`, `option to defend`),

	// Liability exposure.
	kw(0.95, `unlimited`),
	kw(0.9, `without limit|no limit`),
	kw(0.8, `consequential damages`, `excluding consequential`, `no consequential`),
	kw(0.85, `punitive damages`, `excluding punitive`, `no punitive`),

	// Renewal and term.
	kw(0.7, `automatic renewal|auto-renewal|automatically renew`),
	kw(0.9, `perpetual|in perpetuity`),
	kw(0.8, `terminate without cause|terminate for convenience`),

	// Assignment.
	kw(0.7, `assignment without consent|assign without consent`),

	// IP ownership.
	kw(0.8, `work for hire|work made for hire`),
}

// categoryMultipliers scale the fused score up for clause categories that
// historically carry outsized exposure. Unlisted categories multiply by 1.
var categoryMultipliers = map[string]float64{
	"Indemnity":   1.2,
	"Liability":   1.15,
	"Termination": 1.1,
	"Assignment":  1.1,
}
