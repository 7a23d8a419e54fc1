package segment

import "testing"

func categorizeText(t *testing.T, text string) string {
	t.Helper()
	c := NewCategorizer()
	cands := []Candidate{{Text: text}}
	c.Categorize(cands)
	return cands[0].Category
}

func TestCategorizeIndemnity(t *testing.T) {
	got := categorizeText(t, "The Contractor shall indemnify and hold harmless the Company from and against all losses without limit.")
	if got != CategoryIndemnity {
		t.Errorf("category = %q, want Indemnity", got)
	}
}

func TestCategorizeGoverningLaw(t *testing.T) {
	got := categorizeText(t, "This agreement shall be governed by the laws of the state of Delaware, and the governing law shall apply to all disputes hereunder without regard to choice of law rules.")
	if got != CategoryGoverningLaw {
		t.Errorf("category = %q, want Governing Law", got)
	}
}

func TestCategorizeForceMajeure(t *testing.T) {
	got := categorizeText(t, "Neither party shall be liable for delay caused by force majeure events including acts of God, war, strikes, floods or earthquakes beyond its reasonable control.")
	if got == CategoryOther {
		t.Errorf("force majeure clause fell back to Other")
	}
}

func TestCategorizeWeakEvidenceIsOther(t *testing.T) {
	got := categorizeText(t, "The parties met on Tuesday to discuss the schedule for next quarter.")
	if got != CategoryOther {
		t.Errorf("category = %q, want Other for neutral text", got)
	}
}

func TestCategorizeDeterministic(t *testing.T) {
	text := "Each party shall keep confidential all trade secrets and proprietary information and shall not disclose them."
	first := categorizeText(t, text)
	for i := 0; i < 5; i++ {
		if got := categorizeText(t, text); got != first {
			t.Fatalf("categorization not deterministic: %q vs %q", got, first)
		}
	}
}

func TestCategoriesListComplete(t *testing.T) {
	if len(Categories) != 14 {
		t.Errorf("expected 14 categories, got %d", len(Categories))
	}
	sets := buildRuleSets()
	if len(sets) != 13 {
		t.Errorf("expected 13 rule sets (all categories except Other), got %d", len(sets))
	}
}
