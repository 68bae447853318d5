package textutil

import (
	"math"
	"testing"
)

func TestSimilarityNil(t *testing.T) {
	tests := []struct {
		name string
		a    *Fingerprint
		b    *Fingerprint
		want float64
	}{
		{"both nil", nil, nil, 0},
		{"a nil", nil, NewFingerprint("hello world"), 0},
		{"b nil", NewFingerprint("hello world"), nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.a.Similarity(tt.b)
			if got != tt.want {
				t.Errorf("Similarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSimilarityIdenticalAfterFolding(t *testing.T) {
	a := NewFingerprint("Pokémon Adventures")
	b := NewFingerprint("POKEMON   adventures")

	got := a.Similarity(b)
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("Similarity(folded identical) = %v, want 1.0", got)
	}
}

func TestSimilarityCompleteDifferent(t *testing.T) {
	a := NewFingerprint("apple banana cherry")
	b := NewFingerprint("dog elephant frog")

	if got := a.Similarity(b); got != 0 {
		t.Errorf("Similarity(different) = %v, want 0", got)
	}
}

func TestSimilarityPartialOverlap(t *testing.T) {
	a := NewFingerprint("the quick brown fox")
	b := NewFingerprint("the slow brown cat")

	got := a.Similarity(b)
	if got <= 0 || got >= 1 {
		t.Errorf("Similarity(partial) = %v, want between 0 and 1", got)
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	a := NewFingerprint("hello world program")
	b := NewFingerprint("world program test")

	if ab, ba := a.Similarity(b), b.Similarity(a); ab != ba {
		t.Errorf("Similarity not symmetric: (%v, %v)", ab, ba)
	}
}

func TestNewFingerprintNormCalculation(t *testing.T) {
	// "hello hello world" -> hello:2, world:1
	fp := NewFingerprint("hello hello world")
	if fp == nil {
		t.Fatal("expected fingerprint")
	}
	if want := math.Sqrt(5); math.Abs(fp.norm-want) > 0.0001 {
		t.Errorf("norm = %v, want %v", fp.norm, want)
	}
	if len(fp.terms) != 2 {
		t.Errorf("terms = %v, want 2 entries", fp.terms)
	}
}

func TestSimilarityOfTitles(t *testing.T) {
	tests := []struct {
		a, b string
		min  float64
		max  float64
	}{
		{"Dr. STONE", "dr stone", 1 - 1e-9, 1 + 1e-9},
		{"Chainsaw Man", "Chainsaw Man Part 2", 0.5, 0.99},
		{"Chainsaw Man", "Berserk", 0, 0},
		{"", "Berserk", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			got := NewFingerprint(tt.a).Similarity(NewFingerprint(tt.b))
			if got < tt.min || got > tt.max {
				t.Errorf("similarity of %q and %q = %v, want in [%v, %v]", tt.a, tt.b, got, tt.min, tt.max)
			}
		})
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"simple words", "Hello World", []string{"hello", "world"}},
		{"drops single runes", "a Dr. Stone", []string{"dr", "stone"}},
		{"accents", "Élan Vital", []string{"elan", "vital"}},
		{"numbers", "20th Century Boys", []string{"20th", "century", "boys"}},
		{"non latin", "進撃の巨人", []string{"進撃の巨人"}},
		{"empty string", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("Tokenize() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
