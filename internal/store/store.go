package store

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/veridoc/internal/corpus"
	"github.com/dgallion1/veridoc/internal/document"
)

// Session tracks one uploaded document through the pipeline: the parsed
// form, chunk lists per splitting mode, verification state, and the
// reference corpus attached to it.
type Session struct {
	mu sync.Mutex

	ID        string `json:"document_id"`
	Filename  string `json:"filename"`
	FileSize  int64  `json:"file_size"`
	PageCount int    `json:"page_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	parsed   *document.Parsed
	chunks   map[document.Mode][]document.Chunk
	lastMode document.Mode

	storeName        string
	storeDisplayName string
	caseContext      string
	references       []corpus.DocumentMetadata

	lastExport *Export
}

// Export is the most recent rendered output for a session, held in memory
// for the download endpoint.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Parsed returns the parsed document.
func (s *Session) Parsed() *document.Parsed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parsed
}

// SetChunks caches the chunk list for a splitting mode and marks it as the
// session's active mode.
func (s *Session) SetChunks(mode document.Mode, chunks []document.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[mode] = chunks
	s.lastMode = mode
	s.UpdatedAt = time.Now()
}

// Chunks returns a copy of the cached chunk list for mode. The copy keeps
// callers from mutating the cache without going back through SetChunks.
func (s *Session) Chunks(mode document.Mode) ([]document.Chunk, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chunks, ok := s.chunks[mode]
	if !ok {
		return nil, false
	}
	out := make([]document.Chunk, len(chunks))
	copy(out, chunks)
	return out, true
}

// ActiveChunks returns the chunk list for the most recently chunked mode.
func (s *Session) ActiveChunks() ([]document.Chunk, document.Mode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chunks, ok := s.chunks[s.lastMode]
	if !ok {
		return nil, s.lastMode, false
	}
	out := make([]document.Chunk, len(chunks))
	copy(out, chunks)
	return out, s.lastMode, true
}

// ResetVerification nulls the verification fields on every cached chunk,
// across all modes. Addresses and text are untouched.
func (s *Session) ResetVerification() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for mode, chunks := range s.chunks {
		for i := range chunks {
			chunks[i].ResetVerification()
		}
		s.chunks[mode] = chunks
	}
	s.UpdatedAt = time.Now()
}

// SetCorpus records the File Search store backing this session's
// verification runs.
func (s *Session) SetCorpus(storeName, displayName, caseContext string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storeName = storeName
	s.storeDisplayName = displayName
	s.caseContext = caseContext
	s.references = nil
	s.UpdatedAt = time.Now()
}

// ClearCorpus detaches the store and its reference list.
func (s *Session) ClearCorpus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := s.storeName
	s.storeName = ""
	s.storeDisplayName = ""
	s.caseContext = ""
	s.references = nil
	s.UpdatedAt = time.Now()
	return name
}

// Corpus returns the attached store name, display name and case context.
func (s *Session) Corpus() (storeName, displayName, caseContext string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeName, s.storeDisplayName, s.caseContext
}

// AddReference appends an indexed reference document's metadata.
func (s *Session) AddReference(meta corpus.DocumentMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.references = append(s.references, meta)
	s.UpdatedAt = time.Now()
}

// References returns a copy of the reference metadata list.
func (s *Session) References() []corpus.DocumentMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]corpus.DocumentMetadata, len(s.references))
	copy(out, s.references)
	return out
}

// SetExport records the most recent rendered output.
func (s *Session) SetExport(exp Export) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastExport = &exp
	s.UpdatedAt = time.Now()
}

// Export returns the most recent rendered output, if any.
func (s *Session) Export() (Export, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastExport == nil {
		return Export{}, false
	}
	return *s.lastExport, true
}

// Snapshot is a read-only, JSON-safe copy of session state.
type Snapshot struct {
	ID             string                    `json:"document_id"`
	Filename       string                    `json:"filename"`
	FileSize       int64                     `json:"file_size"`
	PageCount      int                       `json:"page_count"`
	CreatedAt      time.Time                 `json:"created_at"`
	UpdatedAt      time.Time                 `json:"updated_at"`
	ChunkedModes   []string                  `json:"chunked_modes"`
	StoreName      string                    `json:"store_name,omitempty"`
	ReferenceCount int                       `json:"reference_count"`
	References     []corpus.DocumentMetadata `json:"references,omitempty"`
}

// Snapshot returns a JSON-safe copy of the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	modes := make([]string, 0, len(s.chunks))
	for mode := range s.chunks {
		modes = append(modes, string(mode))
	}
	refs := make([]corpus.DocumentMetadata, len(s.references))
	copy(refs, s.references)
	return Snapshot{
		ID:             s.ID,
		Filename:       s.Filename,
		FileSize:       s.FileSize,
		PageCount:      s.PageCount,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
		ChunkedModes:   modes,
		StoreName:      s.storeName,
		ReferenceCount: len(refs),
		References:     refs,
	}
}

// SessionStore is a thread-safe in-memory session registry with TTL
// eviction. Sessions are keyed by document content hash, so re-uploading
// the same bytes resumes the existing session.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}
}

// Put registers a freshly parsed document and returns its session. If a
// session for the same content hash exists it is returned unchanged.
func (s *SessionStore) Put(id, filename string, fileSize int64, parsed *document.Parsed) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[id]; ok {
		return existing
	}
	now := time.Now()
	sess := &Session{
		ID:        id,
		Filename:  filename,
		FileSize:  fileSize,
		PageCount: parsed.PageCount,
		CreatedAt: now,
		UpdatedAt: now,
		parsed:    parsed,
		chunks:    make(map[document.Mode][]document.Chunk),
	}
	s.sessions[id] = sess
	return sess
}

func (s *SessionStore) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// List returns snapshots of all live sessions.
func (s *SessionStore) List() []Snapshot {
	s.mu.Lock()
	live := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		live = append(live, sess)
	}
	s.mu.Unlock()

	out := make([]Snapshot, 0, len(live))
	for _, sess := range live {
		out = append(out, sess.Snapshot())
	}
	return out
}

// Clear drops every session and returns how many were dropped. Attached
// File Search stores are the caller's job to delete first.
func (s *SessionStore) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.sessions)
	s.sessions = make(map[string]*Session)
	return n
}

// Cleanup removes sessions idle longer than the TTL and returns the
// corpus store names they still held, so the caller can delete those too.
func (s *SessionStore) Cleanup() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var orphaned []string
	for id, sess := range s.sessions {
		sess.mu.Lock()
		idle := now.Sub(sess.UpdatedAt)
		storeName := sess.storeName
		sess.mu.Unlock()
		if idle > s.ttl {
			if storeName != "" {
				orphaned = append(orphaned, storeName)
			}
			delete(s.sessions, id)
		}
	}
	return orphaned
}

// ContentHashHex computes SHA-256 of content and returns the hex string.
// It is the session key: identical uploads map to the same session.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
