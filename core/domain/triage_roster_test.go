package domain

import (
	"reflect"
	"testing"
)

func TestRosterFromMembers_KeepsFirstSeenOrder(t *testing.T) {
	rows := []*StoredTeamMember{
		{Name: "Bo", Email: "bo@co.com", Department: "Finance"},
		{Name: "Ann", Email: "ann@co.com", Department: "Support"},
		{Name: "Cy", Email: "cy@co.com", Department: "Finance"},
	}
	r := RosterFromMembers(rows)

	if got, want := r.Names(), []string{"Finance", "Support"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
	fin, ok := r.Lookup("Finance")
	if !ok || len(fin.Members) != 2 {
		t.Fatalf("Lookup(Finance) = %+v, %v", fin, ok)
	}
	if _, ok := r.Lookup("finance"); ok {
		t.Errorf("Lookup must be case-sensitive")
	}
}

func TestConfidenceLevel(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{0.95, "High"},
		{0.9, "High"},
		{0.7, "Medium"},
		{0.69, "Low"},
		{0, "Low"},
	}
	for _, tt := range tests {
		if got := ConfidenceLevel(tt.score); got != tt.want {
			t.Errorf("ConfidenceLevel(%v) = %s, want %s", tt.score, got, tt.want)
		}
	}
}

func TestPrimaryCategory(t *testing.T) {
	if got := (ClassificationResult{}).PrimaryCategory(); got != "" {
		t.Errorf("empty PrimaryCategory() = %q", got)
	}
	r := ClassificationResult{Categories: []string{"Finance", "Business"}}
	if got := r.PrimaryCategory(); got != "Finance" {
		t.Errorf("PrimaryCategory() = %q", got)
	}
}
