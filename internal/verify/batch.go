package verify

import (
	"context"
	"errors"

	"github.com/dgallion1/veridoc/internal/document"
)

// ErrMissingStore rejects a batch run with no corpus store to ground
// against.
var ErrMissingStore = errors.New("verification requires a corpus store")

// VerifyBatch verifies every chunk against the store, in order, in batches
// of cfg.BatchSize with pacing between calls and between batches. Input
// chunks are not mutated; the returned slice holds the verified copies in
// the same order.
//
// A chunk whose retries are exhausted is recorded as a failed verification
// (source "Error") and the run continues. The only run-level errors are a
// missing store name and context cancellation; on cancellation the chunks
// completed so far are returned alongside the error.
func (v *Verifier) VerifyBatch(ctx context.Context, chunks []document.Chunk, storeName, caseContext string) ([]document.Chunk, error) {
	if storeName == "" {
		return nil, ErrMissingStore
	}

	total := len(chunks)
	v.log.Info("starting batch verification", "chunks", total, "batch_size", v.cfg.BatchSize)

	out := make([]document.Chunk, 0, total)
	for start := 0; start < total; start += v.cfg.BatchSize {
		end := start + v.cfg.BatchSize
		if end > total {
			end = total
		}
		v.log.Info("processing batch",
			"batch", start/v.cfg.BatchSize+1, "from", start+1, "to", end, "total", total)

		for i := start; i < end; i++ {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			if err := v.limiter.Wait(ctx); err != nil {
				return out, err
			}

			chunk := chunks[i]
			if err := v.verifyWithRetry(ctx, &chunk, storeName, caseContext); err != nil {
				if ctx.Err() != nil {
					return out, ctx.Err()
				}
				v.log.Warn("chunk verification exhausted retries",
					"item", chunk.ItemNumber, "page", chunk.PageNumber, "error", err)
				chunk.SetVerification(false, v.cfg.ScoreMin,
					"Error", "Verification failed: "+err.Error(), nil)
			}
			out = append(out, chunk)
		}

		if end < total {
			if err := v.sleep(ctx, v.cfg.BatchDelay); err != nil {
				return out, err
			}
		}
	}

	v.log.Info("batch verification complete",
		"verified", CountVerified(out), "total", total)
	return out, nil
}

// CountVerified counts chunks whose verdict came back true.
func CountVerified(chunks []document.Chunk) int {
	n := 0
	for _, c := range chunks {
		if c.Verified != nil && *c.Verified {
			n++
		}
	}
	return n
}
