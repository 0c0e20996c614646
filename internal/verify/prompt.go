package verify

import (
	"fmt"

	"github.com/dgallion1/veridoc/internal/document"
)

const promptTemplate = `You are a document verification assistant with access to reference documents.

## CONTEXT:

%s

## TASK:

Verify if the following statement is supported by the reference documents.

## STATEMENT:
"Page %d, Item %s: %s"

INSTRUCTIONS:
1. Search the reference documents for information about this statement
2. If you find supporting evidence, mark verified=true with high confidence (7-10)
3. If you find contradicting evidence, mark verified=false and explain
4. If you find no relevant information, mark verified=false with low confidence (1-3)

REQUIRED JSON OUTPUT FORMAT:
{
  "verified": boolean,
  "confidence_score": integer (1-10),
  "verification_source": "citation or 'No match found'",
  "verification_note": "brief explanation"
}

Provide ONLY the JSON object, no other text.`

// buildPrompt renders the verification prompt for one chunk. The statement
// line carries the chunk's page and item address so the model's citations
// can be traced back.
func buildPrompt(caseContext string, chunk *document.Chunk) string {
	return fmt.Sprintf(promptTemplate, caseContext, chunk.PageNumber, chunk.ItemNumber, chunk.Text)
}
