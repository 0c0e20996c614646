package chunker

import (
	"reflect"
	"testing"
)

func TestSentencesBasicSplit(t *testing.T) {
	tok := NewTokenizer()
	got := tok.Sentences("The lease begins in March. Rent is due monthly. The term is two years.")
	want := []string{
		"The lease begins in March.",
		"Rent is due monthly.",
		"The term is two years.",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSentencesAbbreviationsDoNotSplit(t *testing.T) {
	tok := NewTokenizer()
	cases := []struct {
		text string
		want int
	}{
		{"Mr. Smith signed the agreement.", 1},
		{"Acme Inc. delivered the goods on time.", 1},
		{"See Art. 5 of the contract for details.", 1},
		{"Smith v. Jones settled out of court.", 1},
		{"Fees apply, e.g. late charges and interest.", 1},
		{"The U.S. market differs from the E.U. market.", 1},
	}
	for _, tc := range cases {
		got := tok.Sentences(tc.text)
		if len(got) != tc.want {
			t.Errorf("%q: expected %d sentences, got %d: %v", tc.text, tc.want, len(got), got)
		}
	}
}

func TestSentencesSingleLetterInitials(t *testing.T) {
	tok := NewTokenizer()
	got := tok.Sentences("J. Smith and A. Jones are the signatories.")
	if len(got) != 1 {
		t.Errorf("initials split a sentence: %v", got)
	}
}

func TestSentencesDecimalsAndNumbering(t *testing.T) {
	tok := NewTokenizer()
	cases := []string{
		"The fee is 3.5 percent of the total.",
		"Clause 2.1.4 governs termination rights here.",
	}
	for _, text := range cases {
		got := tok.Sentences(text)
		if len(got) != 1 {
			t.Errorf("%q: expected 1 sentence, got %d: %v", text, len(got), got)
		}
	}
}

func TestSentencesSemicolonsNeverSplit(t *testing.T) {
	tok := NewTokenizer()
	text := "The tenant shall maintain the premises; pay all utilities; and carry insurance."
	got := tok.Sentences(text)
	if len(got) != 1 {
		t.Errorf("semicolons must not split: got %d sentences: %v", len(got), got)
	}
}

func TestSentencesTerminalRuns(t *testing.T) {
	tok := NewTokenizer()
	got := tok.Sentences("Is this enforceable?! Nobody objected... The clause stands.")
	want := []string{
		"Is this enforceable?!",
		"Nobody objected...",
		"The clause stands.",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSentencesClosingQuotes(t *testing.T) {
	tok := NewTokenizer()
	got := tok.Sentences(`He said "the deal is done." The contract confirms it.`)
	if len(got) != 2 {
		t.Fatalf("expected 2 sentences, got %d: %v", len(got), got)
	}
	if got[0] != `He said "the deal is done."` {
		t.Errorf("closing quote should stay with its sentence: %q", got[0])
	}
}

func TestSentencesNonEmptyInputYieldsSentence(t *testing.T) {
	tok := NewTokenizer()
	got := tok.Sentences("no terminal punctuation at all")
	if len(got) != 1 {
		t.Fatalf("expected trailing text as one sentence, got %v", got)
	}
	if got[0] != "no terminal punctuation at all" {
		t.Errorf("unexpected sentence: %q", got[0])
	}
}

func TestSentencesEmptyInput(t *testing.T) {
	tok := NewTokenizer()
	if got := tok.Sentences("   "); len(got) != 0 {
		t.Errorf("expected no sentences for whitespace, got %v", got)
	}
}
