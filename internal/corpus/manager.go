package corpus

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/dgallion1/veridoc/internal/gemini"
)

// summaryMetadataLimit caps the summary attached as store metadata; the
// full summary stays on the DocumentMetadata record.
const summaryMetadataLimit = 500

// keywordMetadataLimit caps the keyword list attached as store metadata.
const keywordMetadataLimit = 10

// Client is the slice of the Gemini client the corpus manager needs. Tests
// substitute a fake.
type Client interface {
	CreateStore(ctx context.Context, displayName string) (*gemini.Store, error)
	DeleteStore(ctx context.Context, name string) error
	UploadFile(ctx context.Context, data []byte, mimeType, displayName string) (*gemini.File, error)
	GetFile(ctx context.Context, name string) (*gemini.File, error)
	DeleteFile(ctx context.Context, name string) error
	ImportFile(ctx context.Context, storeName, fileName string, metadata []gemini.CustomMetadata) (*gemini.Operation, error)
	GetOperation(ctx context.Context, name string) (*gemini.Operation, error)
	GenerateContent(ctx context.Context, req gemini.GenerateRequest) (*gemini.GenerateResult, error)
}

// DocumentMetadata describes one reference document: generated summary and
// classification used both for store metadata and for display.
type DocumentMetadata struct {
	DocumentID        string    `json:"document_id"`
	Filename          string    `json:"filename"`
	Summary           string    `json:"summary"`
	Contextualization string    `json:"contextualization"`
	DocumentType      string    `json:"document_type"`
	Keywords          []string  `json:"keywords"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// Config controls the metadata model and polling behavior.
type Config struct {
	MetadataModel  string
	FilePollEvery  time.Duration // uploaded-file state poll interval
	IndexPollEvery time.Duration
	IndexTimeout   time.Duration // give up waiting for indexing; file may still land
}

// DefaultConfig matches the service defaults: flash-lite metadata, 1s file
// polls, 2s indexing polls, 60s indexing budget.
func DefaultConfig() Config {
	return Config{
		MetadataModel:  "gemini-2.5-flash-lite",
		FilePollEvery:  time.Second,
		IndexPollEvery: 2 * time.Second,
		IndexTimeout:   60 * time.Second,
	}
}

// Manager owns File Search stores for verification cases: creating them,
// feeding them reference documents with generated metadata, and tearing
// them down.
type Manager struct {
	client Client
	cfg    Config
	log    *slog.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a Manager. Zero-valued config fields fall back to
// DefaultConfig.
func New(client Client, cfg Config, log *slog.Logger) *Manager {
	def := DefaultConfig()
	if cfg.MetadataModel == "" {
		cfg.MetadataModel = def.MetadataModel
	}
	if cfg.FilePollEvery <= 0 {
		cfg.FilePollEvery = def.FilePollEvery
	}
	if cfg.IndexPollEvery <= 0 {
		cfg.IndexPollEvery = def.IndexPollEvery
	}
	if cfg.IndexTimeout <= 0 {
		cfg.IndexTimeout = def.IndexTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		client: client,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// CreateStore creates a File Search store for a verification case and
// returns its resource name and display name.
func (m *Manager) CreateStore(ctx context.Context, caseID string) (string, string, error) {
	displayName := fmt.Sprintf("Verification Case %s - %d", caseID, m.now().Unix())
	m.log.Info("creating file search store", "display_name", displayName)

	store, err := m.client.CreateStore(ctx, displayName)
	if err != nil {
		return "", "", fmt.Errorf("create store for case %s: %w", caseID, err)
	}
	m.log.Info("store created", "store", store.Name)
	return store.Name, store.DisplayName, nil
}

// DeleteStore removes a store and its indexed documents.
func (m *Manager) DeleteStore(ctx context.Context, storeName string) error {
	m.log.Info("deleting file search store", "store", storeName)
	return m.client.DeleteStore(ctx, storeName)
}

// UploadReference uploads one reference document, generates its metadata,
// and indexes it into the store. The file is uploaded once and reused for
// both the metadata call and the import, then deleted; the store keeps its
// own indexed copy.
func (m *Manager) UploadReference(ctx context.Context, data []byte, filename, mimeType, storeName, caseContext string) (*DocumentMetadata, error) {
	m.log.Info("uploading reference document", "filename", filename, "store", storeName)

	file, err := m.client.UploadFile(ctx, data, mimeType, filename)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", filename, err)
	}

	file, err = m.waitForFile(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("process %s: %w", filename, err)
	}

	meta, err := m.generateMetadata(ctx, file, filename, caseContext)
	if err != nil {
		return nil, fmt.Errorf("metadata for %s: %w", filename, err)
	}

	op, err := m.client.ImportFile(ctx, storeName, file.Name, storeMetadata(meta))
	if err != nil {
		return nil, fmt.Errorf("import %s into %s: %w", filename, storeName, err)
	}

	if err := m.waitForIndexing(ctx, op); err != nil {
		return nil, fmt.Errorf("index %s: %w", filename, err)
	}

	if err := m.client.DeleteFile(ctx, file.Name); err != nil {
		// The indexed copy survives; leaking the staging file is not fatal.
		m.log.Warn("cleanup of uploaded file failed", "file", file.Name, "error", err)
	}

	m.log.Info("reference document indexed", "filename", filename, "store", storeName)
	return meta, nil
}

// waitForFile polls until the uploaded file leaves PROCESSING.
func (m *Manager) waitForFile(ctx context.Context, file *gemini.File) (*gemini.File, error) {
	for file.State == gemini.FileStateProcessing {
		if err := m.sleep(ctx, m.cfg.FilePollEvery); err != nil {
			return nil, err
		}
		var err error
		file, err = m.client.GetFile(ctx, file.Name)
		if err != nil {
			return nil, err
		}
	}
	if file.State == gemini.FileStateFailed {
		msg := "unknown error"
		if file.Error != nil && file.Error.Message != "" {
			msg = file.Error.Message
		}
		return nil, fmt.Errorf("file processing failed: %s", msg)
	}
	return file, nil
}

// waitForIndexing polls the import operation until done or the timeout
// elapses. A timeout is not an error: indexing often finishes shortly
// after, and the store surfaces the document when it does.
func (m *Manager) waitForIndexing(ctx context.Context, op *gemini.Operation) error {
	deadline := m.now().Add(m.cfg.IndexTimeout)
	for !op.Done && m.now().Before(deadline) {
		if err := m.sleep(ctx, m.cfg.IndexPollEvery); err != nil {
			return err
		}
		var err error
		op, err = m.client.GetOperation(ctx, op.Name)
		if err != nil {
			return err
		}
	}
	if !op.Done {
		m.log.Warn("indexing timed out, file may still be processing", "operation", op.Name)
		return nil
	}
	if op.Error != nil {
		return fmt.Errorf("import operation failed: %s", op.Error.Message)
	}
	return nil
}

const metadataPromptTemplate = `Analyze this document in the context of: %s

Provide a JSON response with the following fields:
- summary: A 2-3 sentence summary of the document
- contextualization: How this document relates to the case context
- document_type: The type of document (e.g., contract, invoice, receipt, report)
- keywords: A list of 5-10 key terms or concepts from the document

Return only valid JSON, no markdown formatting.`

// generateMetadata asks the metadata model to summarize and classify the
// uploaded document.
func (m *Manager) generateMetadata(ctx context.Context, file *gemini.File, filename, caseContext string) (*DocumentMetadata, error) {
	res, err := m.client.GenerateContent(ctx, gemini.GenerateRequest{
		Model:        m.cfg.MetadataModel,
		Prompt:       fmt.Sprintf(metadataPromptTemplate, caseContext),
		FileURI:      file.URI,
		FileMIMEType: file.MIMEType,
		JSONOutput:   true,
	})
	if err != nil {
		return nil, err
	}

	text := stripFence(strings.TrimSpace(res.Text))
	var parsed struct {
		Summary           string   `json:"summary"`
		Contextualization string   `json:"contextualization"`
		DocumentType      string   `json:"document_type"`
		Keywords          []string `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, fmt.Errorf("parse metadata response: %w", err)
	}
	if parsed.DocumentType == "" {
		parsed.DocumentType = "document"
	}

	sum := md5.Sum([]byte(filename))
	return &DocumentMetadata{
		DocumentID:        hex.EncodeToString(sum[:]),
		Filename:          filename,
		Summary:           parsed.Summary,
		Contextualization: parsed.Contextualization,
		DocumentType:      parsed.DocumentType,
		Keywords:          parsed.Keywords,
		GeneratedAt:       m.now(),
	}, nil
}

// storeMetadata builds the custom metadata attached to the indexed file so
// retrieval can filter and rank on it.
func storeMetadata(meta *DocumentMetadata) []gemini.CustomMetadata {
	summary := meta.Summary
	if len(summary) > summaryMetadataLimit {
		summary = summary[:summaryMetadataLimit]
	}
	keywords := meta.Keywords
	if len(keywords) > keywordMetadataLimit {
		keywords = keywords[:keywordMetadataLimit]
	}

	out := []gemini.CustomMetadata{
		{Key: "summary", StringValue: summary},
		{Key: "document_type", StringValue: meta.DocumentType},
	}
	if len(keywords) > 0 {
		out = append(out, gemini.CustomMetadata{
			Key:             "keywords",
			StringListValue: &gemini.StringList{Values: keywords},
		})
	}
	return out
}

var fenceRe = regexp.MustCompile("(?s)^```(?:json)?\\s*(.*?)\\s*```")

func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(s, "```"), "json"))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
