package extract

import (
	"errors"
	"strings"
	"testing"
)

func TestExtractBytesPlain(t *testing.T) {
	e := NewExtractor()
	res, err := e.ExtractBytes([]byte("1. TERMINATION\nEither party may terminate."), "contract.txt")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if !strings.Contains(res.Text, "TERMINATION") {
		t.Errorf("text missing content: %q", res.Text)
	}
	if res.Method != "plain" {
		t.Errorf("method = %q, want plain", res.Method)
	}
	if res.PageCount < 1 {
		t.Errorf("page count = %d, want >= 1", res.PageCount)
	}
}

func TestExtractBytesUnknownExtensionFallsBackToPlain(t *testing.T) {
	e := NewExtractor()
	res, err := e.ExtractBytes([]byte("some clause text"), "notes.dat")
	if err != nil {
		t.Fatalf("ExtractBytes: %v", err)
	}
	if res.Text != "some clause text" {
		t.Errorf("unexpected text: %q", res.Text)
	}
}

func TestExtractBytesBinaryGarbageFails(t *testing.T) {
	e := NewExtractor()
	_, err := e.ExtractBytes([]byte{0x25, 0x50, 0x44, 0x46, 0x00, 0x01, 0x02}, "broken.pdf")
	if err == nil {
		t.Fatal("expected extraction error for corrupt PDF")
	}
	if !errors.Is(err, ErrExtraction) {
		t.Errorf("error should wrap ErrExtraction, got %v", err)
	}
}

func TestExtractBytesEmptyInput(t *testing.T) {
	e := NewExtractor()
	if _, err := e.ExtractBytes([]byte("   \n  "), "empty.txt"); !errors.Is(err, ErrExtraction) {
		t.Errorf("whitespace-only input should fail with ErrExtraction, got %v", err)
	}
}

func TestLooksTextual(t *testing.T) {
	if !looksTextual([]byte("hello")) {
		t.Error("plain ascii should look textual")
	}
	if looksTextual([]byte{'P', 'K', 0x03, 0x04, 0x00}) {
		t.Error("zip header with NUL should not look textual")
	}
}
