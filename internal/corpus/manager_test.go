package corpus

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/veridoc/internal/gemini"
)

// fakeClient scripts the store/file lifecycle and records what was called.
type fakeClient struct {
	fileStates []string // states returned by successive GetFile calls
	opPolls    int      // GetOperation calls until done
	metaText   string   // GenerateContent response body

	createErr  error
	uploadErr  error
	genErr     error
	importErr  error
	fileError  string // error message on a FAILED file

	getFileCalls   int
	getOpCalls     int
	deletedFiles   []string
	deletedStores  []string
	importedMeta   []gemini.CustomMetadata
	importedStore  string
	importedFile   string
	generateReqs   []gemini.GenerateRequest
}

func (f *fakeClient) CreateStore(ctx context.Context, displayName string) (*gemini.Store, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &gemini.Store{Name: "fileSearchStores/test", DisplayName: displayName}, nil
}

func (f *fakeClient) DeleteStore(ctx context.Context, name string) error {
	f.deletedStores = append(f.deletedStores, name)
	return nil
}

func (f *fakeClient) UploadFile(ctx context.Context, data []byte, mimeType, displayName string) (*gemini.File, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	state := gemini.FileStateActive
	if len(f.fileStates) > 0 {
		state = gemini.FileStateProcessing
	}
	return &gemini.File{Name: "files/ref", URI: "https://files/ref", MIMEType: mimeType, State: state}, nil
}

func (f *fakeClient) GetFile(ctx context.Context, name string) (*gemini.File, error) {
	file := &gemini.File{Name: name, URI: "https://files/ref", MIMEType: "application/pdf"}
	if f.getFileCalls < len(f.fileStates) {
		file.State = f.fileStates[f.getFileCalls]
	} else {
		file.State = gemini.FileStateActive
	}
	f.getFileCalls++
	if file.State == gemini.FileStateFailed && f.fileError != "" {
		file.Error = &struct {
			Message string `json:"message"`
		}{Message: f.fileError}
	}
	return file, nil
}

func (f *fakeClient) DeleteFile(ctx context.Context, name string) error {
	f.deletedFiles = append(f.deletedFiles, name)
	return nil
}

func (f *fakeClient) ImportFile(ctx context.Context, storeName, fileName string, metadata []gemini.CustomMetadata) (*gemini.Operation, error) {
	if f.importErr != nil {
		return nil, f.importErr
	}
	f.importedStore = storeName
	f.importedFile = fileName
	f.importedMeta = metadata
	return &gemini.Operation{Name: "operations/op1", Done: f.opPolls == 0}, nil
}

func (f *fakeClient) GetOperation(ctx context.Context, name string) (*gemini.Operation, error) {
	f.getOpCalls++
	return &gemini.Operation{Name: name, Done: f.getOpCalls >= f.opPolls}, nil
}

func (f *fakeClient) GenerateContent(ctx context.Context, req gemini.GenerateRequest) (*gemini.GenerateResult, error) {
	f.generateReqs = append(f.generateReqs, req)
	if f.genErr != nil {
		return nil, f.genErr
	}
	return &gemini.GenerateResult{Text: f.metaText}, nil
}

const validMetaJSON = `{"summary": "A lease agreement for an apartment.", "contextualization": "Primary evidence for the rent dispute.", "document_type": "contract", "keywords": ["lease", "rent", "deposit"]}`

func newTestManager(c Client) *Manager {
	m := New(c, Config{}, nil)
	m.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return m
}

func TestCreateStoreDisplayName(t *testing.T) {
	fc := &fakeClient{}
	m := newTestManager(fc)
	m.now = func() time.Time { return time.Unix(1700000000, 0) }

	name, display, err := m.CreateStore(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "fileSearchStores/test" {
		t.Errorf("unexpected store name: %q", name)
	}
	if display != "Verification Case abc123 - 1700000000" {
		t.Errorf("unexpected display name: %q", display)
	}
}

func TestUploadReferenceFullFlow(t *testing.T) {
	fc := &fakeClient{
		fileStates: []string{gemini.FileStateProcessing, gemini.FileStateActive},
		metaText:   validMetaJSON,
	}
	m := newTestManager(fc)

	meta, err := m.UploadReference(context.Background(), []byte("%PDF-"), "lease.pdf", "application/pdf", "fileSearchStores/test", "rent dispute")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if meta.Filename != "lease.pdf" || meta.DocumentType != "contract" {
		t.Errorf("unexpected metadata: %+v", meta)
	}
	if meta.Summary != "A lease agreement for an apartment." {
		t.Errorf("summary not carried: %q", meta.Summary)
	}
	if len(meta.Keywords) != 3 {
		t.Errorf("keywords not carried: %v", meta.Keywords)
	}
	if meta.DocumentID == "" {
		t.Error("document id must be derived")
	}

	// The file was polled until ACTIVE before the metadata call.
	if fc.getFileCalls != 2 {
		t.Errorf("expected 2 file polls, got %d", fc.getFileCalls)
	}

	// Metadata generation includes the uploaded file and the case context.
	if len(fc.generateReqs) != 1 {
		t.Fatalf("expected 1 metadata call, got %d", len(fc.generateReqs))
	}
	req := fc.generateReqs[0]
	if req.FileURI != "https://files/ref" || !req.JSONOutput {
		t.Errorf("metadata request malformed: %+v", req)
	}
	if !strings.Contains(req.Prompt, "rent dispute") {
		t.Errorf("case context missing from prompt")
	}

	// Import targeted the right store with custom metadata attached.
	if fc.importedStore != "fileSearchStores/test" || fc.importedFile != "files/ref" {
		t.Errorf("import wiring wrong: %q %q", fc.importedStore, fc.importedFile)
	}
	keys := map[string]bool{}
	for _, md := range fc.importedMeta {
		keys[md.Key] = true
	}
	if !keys["summary"] || !keys["document_type"] || !keys["keywords"] {
		t.Errorf("custom metadata keys missing: %v", fc.importedMeta)
	}

	// Staging file deleted after import.
	if len(fc.deletedFiles) != 1 || fc.deletedFiles[0] != "files/ref" {
		t.Errorf("staging file not cleaned up: %v", fc.deletedFiles)
	}
}

func TestUploadReferenceFencedMetadata(t *testing.T) {
	fc := &fakeClient{metaText: "```json\n" + validMetaJSON + "\n```"}
	m := newTestManager(fc)

	meta, err := m.UploadReference(context.Background(), []byte("x"), "a.txt", "text/plain", "s", "")
	if err != nil {
		t.Fatalf("fenced metadata not parsed: %v", err)
	}
	if meta.DocumentType != "contract" {
		t.Errorf("unexpected metadata: %+v", meta)
	}
}

func TestUploadReferenceDocumentTypeDefault(t *testing.T) {
	fc := &fakeClient{metaText: `{"summary": "s"}`}
	m := newTestManager(fc)

	meta, err := m.UploadReference(context.Background(), []byte("x"), "a.txt", "text/plain", "s", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.DocumentType != "document" {
		t.Errorf("missing type should default to document, got %q", meta.DocumentType)
	}
}

func TestUploadReferenceFailedProcessing(t *testing.T) {
	fc := &fakeClient{
		fileStates: []string{gemini.FileStateFailed},
		fileError:  "unsupported encoding",
	}
	m := newTestManager(fc)

	_, err := m.UploadReference(context.Background(), []byte("x"), "bad.pdf", "application/pdf", "s", "")
	if err == nil || !strings.Contains(err.Error(), "unsupported encoding") {
		t.Fatalf("expected processing failure, got %v", err)
	}
}

func TestUploadReferenceMetadataErrorPropagates(t *testing.T) {
	fc := &fakeClient{genErr: errors.New("model unavailable")}
	m := newTestManager(fc)

	_, err := m.UploadReference(context.Background(), []byte("x"), "a.txt", "text/plain", "s", "")
	if err == nil || !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected metadata error, got %v", err)
	}
}

func TestUploadReferenceIndexingPolls(t *testing.T) {
	fc := &fakeClient{metaText: validMetaJSON, opPolls: 2}
	m := newTestManager(fc)

	if _, err := m.UploadReference(context.Background(), []byte("x"), "a.txt", "text/plain", "s", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fc.getOpCalls != 2 {
		t.Errorf("expected 2 operation polls, got %d", fc.getOpCalls)
	}
}

func TestUploadReferenceIndexingTimeoutNotFatal(t *testing.T) {
	fc := &fakeClient{metaText: validMetaJSON, opPolls: 1000}
	m := newTestManager(fc)

	// Advance the clock past the indexing budget on every check.
	base := time.Unix(1700000000, 0)
	calls := 0
	m.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Minute)
	}

	meta, err := m.UploadReference(context.Background(), []byte("x"), "a.txt", "text/plain", "s", "")
	if err != nil {
		t.Fatalf("indexing timeout must not fail the upload: %v", err)
	}
	if meta == nil {
		t.Fatal("expected metadata despite timeout")
	}
}

func TestStoreMetadataTruncation(t *testing.T) {
	meta := &DocumentMetadata{
		Summary:      strings.Repeat("a", 600),
		DocumentType: "report",
		Keywords:     make([]string, 15),
	}
	for i := range meta.Keywords {
		meta.Keywords[i] = "k"
	}

	out := storeMetadata(meta)
	for _, md := range out {
		switch md.Key {
		case "summary":
			if len(md.StringValue) != summaryMetadataLimit {
				t.Errorf("summary not truncated: %d", len(md.StringValue))
			}
		case "keywords":
			if len(md.StringListValue.Values) != keywordMetadataLimit {
				t.Errorf("keywords not truncated: %d", len(md.StringListValue.Values))
			}
		}
	}
}
