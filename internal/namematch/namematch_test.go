package namematch

import "testing"

func TestExactMode(t *testing.T) {
	m := New(Exact)
	tests := []struct {
		name       string
		candidates []string
		want       bool
	}{
		{"Chainsaw Man", []string{"chainsaw  man"}, true},
		{"Shingeki no Kyojin", []string{"Attack on Titan", "Shingeki no Kyōjin"}, true},
		{"Chainsaw Man", []string{"Chainsaw Men"}, false},
		{"", []string{""}, false},
	}
	for _, tt := range tests {
		if got := m.Matches(tt.name, tt.candidates); got != tt.want {
			t.Errorf("Exact.Matches(%q, %v) = %v, want %v", tt.name, tt.candidates, got, tt.want)
		}
	}
}

func TestClosestMatchMode(t *testing.T) {
	m := New(ClosestMatch)
	if !m.Matches("Chainsaw Man", []string{"Chainsaw Men"}) {
		t.Error("expected fuzzy match for one-letter difference")
	}
	if !m.Matches("Kaguya-sama: Love is War", []string{"Kaguya-sama - Love is War"}) {
		t.Error("expected fuzzy match for punctuation difference")
	}
	if m.Matches("Berserk", []string{"Vagabond"}) {
		t.Error("unexpected match for unrelated titles")
	}
}

func TestBestPrefersHigherScore(t *testing.T) {
	m := New(ClosestMatch)
	sets := [][]string{
		{"Chainsaw Men"},
		{"Something Else", "Chainsaw Man"},
		{"Chainsaw Man"},
	}
	if got := m.Best("Chainsaw Man", sets); got != 1 {
		t.Fatalf("Best = %d, want 1", got)
	}
	if got := New(Exact).Best("Unknown", sets); got != -1 {
		t.Fatalf("Best = %d, want -1", got)
	}
}

func TestParseMode(t *testing.T) {
	if mode, err := ParseMode("EXACT"); err != nil || mode != Exact {
		t.Fatalf("ParseMode(EXACT) = %v, %v", mode, err)
	}
	if mode, err := ParseMode(""); err != nil || mode != ClosestMatch {
		t.Fatalf("ParseMode(\"\") = %v, %v", mode, err)
	}
	if _, err := ParseMode("fuzzy"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestSimilarity(t *testing.T) {
	if got := Similarity("abc", "abc"); got != 1 {
		t.Errorf("Similarity identical = %v", got)
	}
	if got := Similarity("", ""); got != 1 {
		t.Errorf("Similarity empty = %v", got)
	}
	if got := Similarity("abcd", "abce"); got != 0.75 {
		t.Errorf("Similarity = %v, want 0.75", got)
	}
}
