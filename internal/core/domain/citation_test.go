package domain

import (
	"reflect"
	"testing"
)

func TestAssignIsStableFirstSeen(t *testing.T) {
	reg := NewCitationRegistry()

	if id := reg.Assign("a.pdf", 1); id != 1 {
		t.Fatalf("first assignment = %d, want 1", id)
	}
	if id := reg.Assign("b.pdf", 2); id != 2 {
		t.Fatalf("second assignment = %d, want 2", id)
	}
	// Reassigning an already-known source/page returns its original id.
	if id := reg.Assign("a.pdf", 1); id != 1 {
		t.Fatalf("reassignment = %d, want 1", id)
	}
	// Same source, different page is a distinct citation unit.
	if id := reg.Assign("a.pdf", 2); id != 3 {
		t.Fatalf("new page assignment = %d, want 3", id)
	}
	if reg.Len() != 3 {
		t.Fatalf("Len() = %d", reg.Len())
	}
}

func TestExtractCitationsGrammar(t *testing.T) {
	cases := []struct {
		name string
		text string
		want []int
	}{
		{"single", "Claim [#1].", []int{1}},
		{"distinct sorted", "B [#3] then A [#1] then A again [#1].", []int{1, 3}},
		{"inner whitespace ok", "Claim [# 2 ].", []int{2}},
		{"newline inside marker", "Claim [#\n2].", []int{2}},
		{"mixed whitespace", "Claim [# \t\n 4 \t].", []int{4}},
		{"no markers", "Nothing cited here.", nil},
		{"malformed ignored", "Not markers: [1], #2, [#x], (#3).", nil},
		{"adjacent", "Tight [#1][#2].", []int{1, 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractCitations(tc.text)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ExtractCitations(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestValidateRejectsUnknownIDs(t *testing.T) {
	reg := NewCitationRegistry()
	reg.Assign("a.pdf", 1)

	report := reg.Validate("Fine [#1] but bogus [#5].")
	if report.Valid() {
		t.Fatalf("expected invalid report")
	}
	if !reflect.DeepEqual(report.Unknown, []int{5}) {
		t.Fatalf("Unknown = %v", report.Unknown)
	}
}

func TestValidateRejectsEmptyMarker(t *testing.T) {
	reg := NewCitationRegistry()
	reg.Assign("a.pdf", 1)

	report := reg.Validate("Suspicious [#] marker.")
	if report.Valid() || !report.EmptyMarker {
		t.Fatalf("empty marker must invalidate: %+v", report)
	}

	report = reg.Validate("Whitespace-only [# \n ] marker.")
	if report.Valid() || !report.EmptyMarker {
		t.Fatalf("whitespace-only marker must invalidate: %+v", report)
	}
}

func TestValidateAcceptsUncitedText(t *testing.T) {
	reg := NewCitationRegistry()
	report := reg.Validate("No citations at all.")
	if !report.Valid() {
		t.Fatalf("uncited text must be valid: %+v", report)
	}
}

func TestLookupReturnsKey(t *testing.T) {
	reg := NewCitationRegistry()
	id := reg.Assign("a.pdf", 7)

	key, ok := reg.Lookup(id)
	if !ok || key.Source != "a.pdf" || key.Page != 7 {
		t.Fatalf("Lookup(%d) = %+v, %v", id, key, ok)
	}
	if _, ok := reg.Lookup(99); ok {
		t.Fatalf("unknown id must not resolve")
	}
}
