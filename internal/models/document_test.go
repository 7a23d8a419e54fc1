package models

import "testing"

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to DocumentStatus
		ok       bool
	}{
		{StatusUploaded, StatusProcessing, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusUploaded, false},
		{StatusCompleted, StatusProcessing, false},
		{StatusFailed, StatusCompleted, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.ok {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.ok)
		}
	}
}

func TestClauseID(t *testing.T) {
	if ClauseID("doc1", 0) != "doc1_clause_0" {
		t.Errorf("unexpected clause id: %s", ClauseID("doc1", 0))
	}
	if ClauseID("doc1", 3) != ClauseID("doc1", 3) {
		t.Error("clause id must be deterministic")
	}
}
