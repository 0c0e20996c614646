package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/veridoc/internal/document"
	"github.com/dgallion1/veridoc/internal/parser"
	"github.com/dgallion1/veridoc/internal/render"
	"github.com/dgallion1/veridoc/internal/store"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Limit total request size; extra 1MB for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	p, err := parser.ForFile(filename, parser.Options{
		PDFFallbackPdftotext: s.cfg.PDFFallbackPdftotext,
		DOCXViaLibreOffice:   s.cfg.DOCXViaLibreOffice,
	})
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	parsed, err := p.Parse(bytes.NewReader(data), filename)
	if err != nil {
		s.log.Error("parse failed", "filename", filename, "error", err)
		jsonError(w, "error processing document: "+err.Error(), http.StatusInternalServerError)
		return
	}

	docID := store.ContentHashHex(data)
	sess := s.sessions.Put(docID, filename, int64(len(data)), parsed)
	s.log.Info("document stored", "document_id", docID, "filename", filename, "pages", sess.PageCount)

	writeJSON(w, http.StatusOK, map[string]any{
		"document_id": sess.ID,
		"filename":    sess.Filename,
		"page_count":  sess.PageCount,
		"file_size":   sess.FileSize,
		"message":     fmt.Sprintf("Document uploaded and converted successfully (%d pages)", sess.PageCount),
	})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"documents": s.sessions.List()})
}

type chunkRequest struct {
	SplittingMode string `json:"splitting_mode"`
}

func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	var req chunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	mode := document.Mode(req.SplittingMode)
	if !mode.Valid() {
		jsonError(w, fmt.Sprintf("unknown splitting mode: %q", req.SplittingMode), http.StatusBadRequest)
		return
	}

	chunks, err := s.chunksFor(sess, mode)
	if err != nil {
		jsonError(w, "error chunking document: "+err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"document_id":    sess.ID,
		"splitting_mode": mode,
		"chunks":         chunks,
		"total_chunks":   len(chunks),
		"message":        fmt.Sprintf("Document chunked successfully (%d chunks in %s mode)", len(chunks), mode),
	})
}

type exportRequest struct {
	SplittingMode string `json:"splitting_mode"`
	OutputFormat  string `json:"output_format"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	mode := document.Mode(req.SplittingMode)
	if !mode.Valid() {
		jsonError(w, fmt.Sprintf("unknown splitting mode: %q", req.SplittingMode), http.StatusBadRequest)
		return
	}
	format := render.Format(req.OutputFormat)
	if !format.Valid() {
		jsonError(w, fmt.Sprintf("unknown output format: %q", req.OutputFormat), http.StatusBadRequest)
		return
	}

	chunks, err := s.chunksFor(sess, mode)
	if err != nil {
		jsonError(w, "error chunking document: "+err.Error(), http.StatusInternalServerError)
		return
	}

	now := time.Now()
	var buf bytes.Buffer
	switch format {
	case render.FormatCSV:
		err = render.WriteCSV(&buf, chunks)
	case render.FormatJSON:
		err = render.WriteJSON(&buf, chunks, sess.Filename, now)
	}
	if err != nil {
		jsonError(w, "error exporting document: "+err.Error(), http.StatusInternalServerError)
		return
	}

	filename := render.Filename(sess.Filename, format, now)
	sess.SetExport(store.Export{
		Filename:    filename,
		ContentType: format.ContentType(),
		Data:        buf.Bytes(),
	})
	s.log.Info("export complete", "document_id", sess.ID, "format", format, "filename", filename)

	writeJSON(w, http.StatusOK, map[string]any{
		"document_id":   sess.ID,
		"output_format": format,
		"filename":      filename,
		"message":       fmt.Sprintf("Document exported successfully as %s", format),
	})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	exp, ok := sess.Export()
	if !ok {
		jsonError(w, "no export found for this document", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", exp.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exp.Filename))
	w.Write(exp.Data)
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	n := s.sessions.Clear()
	s.log.Info("cache cleared", "documents", n)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":           "Cache cleared successfully",
		"documents_cleared": n,
	})
}

// session resolves the docID route parameter, writing a 404 and returning
// nil when the session is gone.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *store.Session {
	docID := chi.URLParam(r, "docID")
	sess := s.sessions.Get(docID)
	if sess == nil {
		jsonError(w, "document not found", http.StatusNotFound)
		return nil
	}
	return sess
}

// chunksFor returns the cached chunk list for a mode, chunking on first
// use. The cache means a (document, mode) pair is chunked exactly once.
func (s *Server) chunksFor(sess *store.Session, mode document.Mode) ([]document.Chunk, error) {
	if chunks, ok := sess.Chunks(mode); ok {
		return chunks, nil
	}
	chunks, err := s.chunker.ChunkDocument(sess.Parsed(), mode)
	if err != nil {
		return nil, err
	}
	sess.SetChunks(mode, chunks)
	return chunks, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
