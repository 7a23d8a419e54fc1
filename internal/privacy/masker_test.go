package privacy

import (
	"strings"
	"testing"
)

func TestMaskEmail(t *testing.T) {
	m := NewMasker()
	masked, matches := m.Mask("Contact legal@acme.com for notices.")
	if len(matches) != 1 || matches[0].Type != TypeEmail {
		t.Fatalf("expected one email match, got %+v", matches)
	}
	if strings.Contains(masked, "legal@acme.com") {
		t.Errorf("email not masked: %q", masked)
	}
	if !strings.Contains(masked, "[EMAIL_ADDRESS_1]") {
		t.Errorf("replacement token missing: %q", masked)
	}
}

func TestMaskMultipleTypes(t *testing.T) {
	m := NewMasker()
	masked, matches := m.Mask("SSN 123-45-6789, phone (415) 555-0199, mail a@b.io")
	if len(matches) != 3 {
		t.Fatalf("expected 3 matches, got %d: %+v", len(matches), matches)
	}
	for _, frag := range []string{"123-45-6789", "(415) 555-0199", "a@b.io"} {
		if strings.Contains(masked, frag) {
			t.Errorf("%q not masked in %q", frag, masked)
		}
	}
}

func TestMaskPersonName(t *testing.T) {
	m := NewMasker()
	masked, matches := m.Mask("Signed by Jane Doe on behalf of the company.")
	if len(matches) != 1 || matches[0].Type != TypePersonName {
		t.Fatalf("expected one person-name match, got %+v", matches)
	}
	if strings.Contains(masked, "Jane Doe") {
		t.Errorf("name not masked: %q", masked)
	}
	if !strings.Contains(masked, "[PERSON_NAME_1]") {
		t.Errorf("replacement token missing: %q", masked)
	}
}

func TestMaskNumericBeforeName(t *testing.T) {
	m := NewMasker()
	_, matches := m.Mask("John Smith, SSN 123-45-6789")
	types := make(map[PIIType]int)
	for _, match := range matches {
		types[match.Type]++
	}
	if types[TypeSSN] != 1 || types[TypePersonName] != 1 {
		t.Errorf("expected one SSN and one name, got %+v", matches)
	}
}

func TestMaskNoPII(t *testing.T) {
	m := NewMasker()
	in := "The parties agree to the terms herein."
	masked, matches := m.Mask(in)
	if masked != in {
		t.Errorf("text without PII must be unchanged")
	}
	if matches != nil {
		t.Errorf("expected nil matches, got %+v", matches)
	}
}

func TestSummary(t *testing.T) {
	m := NewMasker()
	_, matches := m.Mask("a@b.io and c@d.io")
	sum := Summary(matches)
	if sum["EMAIL_ADDRESS"] != 2 {
		t.Errorf("summary = %v, want 2 emails", sum)
	}
	if Summary(nil) != nil {
		t.Error("empty summary should be nil")
	}
}
