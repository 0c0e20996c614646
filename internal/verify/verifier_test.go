package verify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/veridoc/internal/document"
	"github.com/dgallion1/veridoc/internal/gemini"
)

// fakeGenerator returns queued results/errors in order, recording requests.
type fakeGenerator struct {
	results  []*gemini.GenerateResult
	errs     []error
	requests []gemini.GenerateRequest
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, req gemini.GenerateRequest) (*gemini.GenerateResult, error) {
	f.requests = append(f.requests, req)
	i := len(f.requests) - 1
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var res *gemini.GenerateResult
	if i < len(f.results) {
		res = f.results[i]
	}
	if res == nil && err == nil {
		res = &gemini.GenerateResult{}
	}
	return res, err
}

func testChunk() *document.Chunk {
	return &document.Chunk{PageNumber: 2, ItemNumber: "3", Text: "The rent is 500 euros per month."}
}

func newTestVerifier(gen Generator) *Verifier {
	v := New(gen, Config{ChunkDelay: 0, BatchDelay: 0}, nil)
	v.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return v
}

func TestVerifyChunkParsesVerdict(t *testing.T) {
	gen := &fakeGenerator{results: []*gemini.GenerateResult{{
		Text: `{"verified": true, "confidence_score": 9, "verification_source": "Lease §4", "verification_note": "Matches the rent clause"}`,
	}}}
	v := newTestVerifier(gen)

	chunk := testChunk()
	if err := v.VerifyChunk(context.Background(), chunk, "fileSearchStores/abc", "Rental dispute"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunk.Verified == nil || !*chunk.Verified {
		t.Errorf("expected verified true")
	}
	if chunk.VerificationScore == nil || *chunk.VerificationScore != 9 {
		t.Errorf("expected score 9, got %v", chunk.VerificationScore)
	}
	if chunk.VerificationSource == nil || *chunk.VerificationSource != "Lease §4" {
		t.Errorf("unexpected source: %v", chunk.VerificationSource)
	}
	if chunk.Citations == nil {
		t.Errorf("citations must be non-nil after an attempt")
	}

	req := gen.requests[0]
	if len(req.StoreNames) != 1 || req.StoreNames[0] != "fileSearchStores/abc" {
		t.Errorf("store not scoped: %v", req.StoreNames)
	}
	if req.Temperature != 0.1 {
		t.Errorf("expected temperature 0.1, got %v", req.Temperature)
	}
	if !strings.Contains(req.Prompt, "Page 2, Item 3") {
		t.Errorf("prompt missing chunk address:\n%s", req.Prompt)
	}
	if !strings.Contains(req.Prompt, "Rental dispute") {
		t.Errorf("prompt missing case context")
	}
}

func TestVerifyChunkStripsCodeFence(t *testing.T) {
	gen := &fakeGenerator{results: []*gemini.GenerateResult{{
		Text: "```json\n{\"verified\": true, \"confidence_score\": 7, \"verification_source\": \"doc\", \"verification_note\": \"ok\"}\n```",
	}}}
	v := newTestVerifier(gen)

	chunk := testChunk()
	if err := v.VerifyChunk(context.Background(), chunk, "s", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chunk.Verified == nil || !*chunk.Verified {
		t.Errorf("fenced JSON not parsed: %+v", chunk)
	}
}

func TestVerifyChunkEmptyResponseNotRetried(t *testing.T) {
	gen := &fakeGenerator{results: []*gemini.GenerateResult{{Text: "   "}}}
	v := newTestVerifier(gen)

	chunk := testChunk()
	if err := v.VerifyChunk(context.Background(), chunk, "s", ""); err != nil {
		t.Fatalf("empty response must be absorbed, got error: %v", err)
	}
	if len(gen.requests) != 1 {
		t.Errorf("empty response must not be retried: %d calls", len(gen.requests))
	}
	if *chunk.VerificationSource != "Empty API response" {
		t.Errorf("unexpected source: %q", *chunk.VerificationSource)
	}
	if *chunk.VerificationNote != "API returned empty response" {
		t.Errorf("unexpected note: %q", *chunk.VerificationNote)
	}
	if *chunk.Verified || *chunk.VerificationScore != 1 {
		t.Errorf("expected failed verdict with minimum score: %+v", chunk)
	}
}

func TestVerifyChunkMalformedJSON(t *testing.T) {
	gen := &fakeGenerator{results: []*gemini.GenerateResult{{Text: "the statement seems plausible"}}}
	v := newTestVerifier(gen)

	chunk := testChunk()
	if err := v.VerifyChunk(context.Background(), chunk, "s", ""); err != nil {
		t.Fatalf("malformed response must be absorbed, got error: %v", err)
	}
	if *chunk.VerificationSource != "JSON parse error" {
		t.Errorf("unexpected source: %q", *chunk.VerificationSource)
	}
	if !strings.HasPrefix(*chunk.VerificationNote, "Failed to parse API response:") {
		t.Errorf("unexpected note: %q", *chunk.VerificationNote)
	}
}

func TestVerifyChunkScoreClampAndDefault(t *testing.T) {
	cases := []struct {
		body string
		want int
	}{
		{`{"verified": true, "confidence_score": 15}`, 10},
		{`{"verified": false, "confidence_score": -2}`, 1},
		{`{"verified": true}`, 5},
	}
	for _, tc := range cases {
		gen := &fakeGenerator{results: []*gemini.GenerateResult{{Text: tc.body}}}
		v := newTestVerifier(gen)
		chunk := testChunk()
		if err := v.VerifyChunk(context.Background(), chunk, "s", ""); err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.body, err)
		}
		if *chunk.VerificationScore != tc.want {
			t.Errorf("%s: expected score %d, got %d", tc.body, tc.want, *chunk.VerificationScore)
		}
	}
}

func TestVerifyChunkMissingSourceDefaults(t *testing.T) {
	gen := &fakeGenerator{results: []*gemini.GenerateResult{{Text: `{"verified": false, "confidence_score": 2}`}}}
	v := newTestVerifier(gen)
	chunk := testChunk()
	if err := v.VerifyChunk(context.Background(), chunk, "s", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *chunk.VerificationSource != "No source found" {
		t.Errorf("unexpected source: %q", *chunk.VerificationSource)
	}
}

func TestVerifyChunkGroundingReplacesAssertedCitations(t *testing.T) {
	gen := &fakeGenerator{results: []*gemini.GenerateResult{{
		Text: `{"verified": true, "confidence_score": 8, "verification_source": "doc", "verification_note": "ok", "citations": [{"title": "made up", "excerpt": "fabricated"}]}`,
		Grounding: []gemini.GroundingChunk{
			{Title: "lease.pdf", Text: strings.Repeat("x", 400)},
		},
	}}}
	v := newTestVerifier(gen)

	chunk := testChunk()
	if err := v.VerifyChunk(context.Background(), chunk, "s", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunk.Citations) != 1 {
		t.Fatalf("expected 1 citation, got %d", len(chunk.Citations))
	}
	if chunk.Citations[0].Title != "lease.pdf" {
		t.Errorf("model-asserted citation survived: %+v", chunk.Citations[0])
	}
	if len(chunk.Citations[0].Excerpt) != 300 {
		t.Errorf("excerpt not truncated to 300: %d", len(chunk.Citations[0].Excerpt))
	}
}

func TestVerifyChunkKeepsAssertedCitationsWithoutGrounding(t *testing.T) {
	gen := &fakeGenerator{results: []*gemini.GenerateResult{{
		Text: `{"verified": true, "confidence_score": 8, "citations": [{"title": "asserted", "excerpt": "text"}]}`,
	}}}
	v := newTestVerifier(gen)
	chunk := testChunk()
	if err := v.VerifyChunk(context.Background(), chunk, "s", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunk.Citations) != 1 || chunk.Citations[0].Title != "asserted" {
		t.Errorf("asserted citations dropped: %v", chunk.Citations)
	}
}

func TestVerifyChunkPermanentErrorAbsorbed(t *testing.T) {
	gen := &fakeGenerator{errs: []error{&gemini.APIError{StatusCode: 403, Kind: gemini.KindPermanent, Message: "forbidden"}}}
	v := newTestVerifier(gen)

	chunk := testChunk()
	if err := v.VerifyChunk(context.Background(), chunk, "s", ""); err != nil {
		t.Fatalf("permanent error must be absorbed, got: %v", err)
	}
	if *chunk.VerificationSource != "Error during verification" {
		t.Errorf("unexpected source: %q", *chunk.VerificationSource)
	}
	if !strings.HasPrefix(*chunk.VerificationNote, "Verification failed:") {
		t.Errorf("unexpected note: %q", *chunk.VerificationNote)
	}
	if chunk.Citations == nil || len(chunk.Citations) != 0 {
		t.Errorf("expected empty citations, got %v", chunk.Citations)
	}
}

func TestVerifyChunkRetryableErrorPropagates(t *testing.T) {
	apiErr := &gemini.APIError{StatusCode: 429, Kind: gemini.KindRateLimited, Message: "slow down"}
	gen := &fakeGenerator{errs: []error{apiErr}}
	v := newTestVerifier(gen)

	chunk := testChunk()
	err := v.VerifyChunk(context.Background(), chunk, "s", "")
	if !errors.Is(err, apiErr) {
		t.Fatalf("expected retryable error to propagate, got %v", err)
	}
	if chunk.Verified != nil {
		t.Errorf("chunk must stay untouched on retryable failure: %+v", chunk)
	}
}

func TestStripCodeFence(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```json\n{\"a\":1}", "{\"a\":1}"},
	}
	for _, tc := range cases {
		if got := stripCodeFence(tc.in); got != tc.want {
			t.Errorf("stripCodeFence(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
