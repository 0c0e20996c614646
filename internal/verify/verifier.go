package verify

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/dgallion1/veridoc/internal/document"
	"github.com/dgallion1/veridoc/internal/gemini"
)

// verifyTemperature keeps verdicts deterministic-ish; verification is a
// classification task, not a writing task.
const verifyTemperature = 0.1

// citationExcerptLimit caps the length of a grounding excerpt carried onto
// a chunk.
const citationExcerptLimit = 300

// Generator is the slice of the Gemini client the verifier needs. Tests
// substitute a fake.
type Generator interface {
	GenerateContent(ctx context.Context, req gemini.GenerateRequest) (*gemini.GenerateResult, error)
}

// Config controls model selection, pacing and the retry budget.
type Config struct {
	Model      string
	BatchSize  int
	ChunkDelay time.Duration // minimum spacing between consecutive calls
	BatchDelay time.Duration // extra pause between batches
	MaxRetries int
	ScoreMin   int
	ScoreMax   int
}

// DefaultConfig returns the stock pacing: batches of 3, 1.5s between calls,
// 3s between batches, 3 attempts per chunk, scores clamped to 1..10.
func DefaultConfig() Config {
	return Config{
		Model:      "gemini-2.5-flash",
		BatchSize:  3,
		ChunkDelay: 1500 * time.Millisecond,
		BatchDelay: 3 * time.Second,
		MaxRetries: 3,
		ScoreMin:   1,
		ScoreMax:   10,
	}
}

// Verifier checks chunks against a reference corpus through grounded
// generation calls. Construct once and share; it holds no per-run state.
type Verifier struct {
	client  Generator
	cfg     Config
	log     *slog.Logger
	limiter *rate.Limiter
	sleep   sleepFunc
}

// New creates a Verifier. Zero-valued config fields fall back to
// DefaultConfig.
func New(client Generator, cfg Config, log *slog.Logger) *Verifier {
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.ScoreMax <= cfg.ScoreMin {
		cfg.ScoreMin = def.ScoreMin
		cfg.ScoreMax = def.ScoreMax
	}
	if log == nil {
		log = slog.Default()
	}

	limit := rate.Inf
	if cfg.ChunkDelay > 0 {
		limit = rate.Every(cfg.ChunkDelay)
	}
	return &Verifier{
		client:  client,
		cfg:     cfg,
		log:     log,
		limiter: rate.NewLimiter(limit, 1),
		sleep:   sleepCtx,
	}
}

// verdict is the JSON object the model is instructed to return.
type verdict struct {
	Verified           bool                `json:"verified"`
	ConfidenceScore    *int                `json:"confidence_score"`
	VerificationSource string              `json:"verification_source"`
	VerificationNote   string              `json:"verification_note"`
	Citations          []document.Citation `json:"citations"`
}

// VerifyChunk verifies a single chunk against the store and writes the
// outcome onto it. Response-content problems (empty text, unparseable JSON)
// and permanent call failures are absorbed as failed verification data and
// return nil; only retryable call failures come back as an error, so the
// caller's retry loop sees exactly the failures worth repeating.
func (v *Verifier) VerifyChunk(ctx context.Context, chunk *document.Chunk, storeName, caseContext string) error {
	res, err := v.client.GenerateContent(ctx, gemini.GenerateRequest{
		Model:       v.cfg.Model,
		Prompt:      buildPrompt(caseContext, chunk),
		Temperature: verifyTemperature,
		StoreNames:  []string{storeName},
	})
	if err != nil {
		if retryable(err) {
			return err
		}
		v.log.Warn("chunk verification call failed",
			"item", chunk.ItemNumber, "page", chunk.PageNumber, "error", err)
		chunk.SetVerification(false, v.cfg.ScoreMin,
			"Error during verification", "Verification failed: "+err.Error(), nil)
		return nil
	}

	text := strings.TrimSpace(res.Text)
	if text == "" {
		v.log.Warn("empty verification response",
			"item", chunk.ItemNumber, "page", chunk.PageNumber)
		chunk.SetVerification(false, v.cfg.ScoreMin,
			"Empty API response", "API returned empty response", nil)
		return nil
	}

	var result verdict
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &result); err != nil {
		v.log.Warn("unparseable verification response",
			"item", chunk.ItemNumber, "page", chunk.PageNumber,
			"error", err, "raw", truncateRunes(text, 200))
		chunk.SetVerification(false, v.cfg.ScoreMin,
			"JSON parse error", "Failed to parse API response: "+err.Error(), nil)
		return nil
	}

	score := 5
	if result.ConfidenceScore != nil {
		score = *result.ConfidenceScore
	}
	score = clamp(score, v.cfg.ScoreMin, v.cfg.ScoreMax)

	source := result.VerificationSource
	if source == "" {
		source = "No source found"
	}

	// Structured grounding evidence from the retrieval layer beats whatever
	// citation list the model asserted in its JSON.
	citations := result.Citations
	if len(res.Grounding) > 0 {
		citations = groundingCitations(res.Grounding)
	}

	chunk.SetVerification(result.Verified, score, source, result.VerificationNote, citations)
	return nil
}

// verifyWithRetry is the per-chunk unit the batch scheduler runs: a
// VerifyChunk wrapped in the backoff policy.
func (v *Verifier) verifyWithRetry(ctx context.Context, chunk *document.Chunk, storeName, caseContext string) error {
	return runWithRetry(ctx, v.cfg.MaxRetries, v.sleep, func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return v.VerifyChunk(ctx, chunk, storeName, caseContext)
	})
}

func groundingCitations(grounding []gemini.GroundingChunk) []document.Citation {
	citations := make([]document.Citation, 0, len(grounding))
	for _, g := range grounding {
		citations = append(citations, document.Citation{
			Title:   g.Title,
			Excerpt: truncateRunes(g.Text, citationExcerptLimit),
			URI:     g.URI,
		})
	}
	return citations
}

var fenceRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```")

// stripCodeFence unwraps a response the model wrapped in a Markdown code
// fence despite the JSON-only instruction.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	return strings.TrimSpace(s)
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
