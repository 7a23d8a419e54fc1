package langdetect

import "testing"

func TestDetectEnglish(t *testing.T) {
	d := NewDetector()
	res := d.Detect("This agreement shall be governed by the laws of the State of Delaware and each party shall indemnify the other against all claims.")
	if res.Language != "en" {
		t.Errorf("language = %q, want en", res.Language)
	}
	if res.Confidence <= 0 {
		t.Errorf("confidence = %f, want > 0", res.Confidence)
	}
}

func TestDetectSpanish(t *testing.T) {
	d := NewDetector()
	res := d.Detect("El presente contrato se regirá por las leyes de España y cualquier controversia será sometida a los tribunales de Madrid para su resolución definitiva.")
	if res.Language != "es" {
		t.Errorf("language = %q, want es", res.Language)
	}
}

func TestDetectEmptySample(t *testing.T) {
	d := NewDetector()
	res := d.Detect("   ")
	if res.Language != "en" || res.Confidence != 0 {
		t.Errorf("empty sample should default to en with zero confidence, got %+v", res)
	}
}
