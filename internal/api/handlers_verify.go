package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/veridoc/internal/corpus"
	"github.com/dgallion1/veridoc/internal/document"
	"github.com/dgallion1/veridoc/internal/store"
	"github.com/dgallion1/veridoc/internal/verify"
)

// handleUploadReferences creates a File Search store for the case and
// indexes every uploaded reference document into it. A file that fails to
// process is skipped; the store is returned with whatever made it in.
func (s *Server) handleUploadReferences(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	caseContext := r.FormValue("case_context")
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	caseID := store.ContentHashHex([]byte(fmt.Sprintf("%s%d", caseContext, time.Now().UnixNano())))[:8]
	storeName, displayName, err := s.corpus.CreateStore(r.Context(), caseID)
	if err != nil {
		jsonError(w, "error creating store: "+err.Error(), http.StatusInternalServerError)
		return
	}

	var metadata []corpus.DocumentMetadata
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		f, err := fh.Open()
		if err != nil {
			s.log.Warn("reference open failed", "filename", filename, "error", err)
			continue
		}
		data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
		f.Close()
		if err != nil || int64(len(data)) > s.cfg.MaxUploadBytes {
			s.log.Warn("reference too large or unreadable", "filename", filename)
			continue
		}

		meta, err := s.corpus.UploadReference(r.Context(), data, filename, mimeTypeFor(filename), storeName, caseContext)
		if err != nil {
			// Per-file failure: log and keep going with the rest.
			s.log.Warn("reference upload failed", "filename", filename, "error", err)
			continue
		}
		metadata = append(metadata, *meta)
	}

	// Optionally attach the store to a document session so later runs can
	// default to it.
	if docID := r.FormValue("document_id"); docID != "" {
		if sess := s.sessions.Get(docID); sess != nil {
			sess.SetCorpus(storeName, displayName, caseContext)
			for _, meta := range metadata {
				sess.AddReference(meta)
			}
		}
	}

	s.log.Info("reference upload complete", "store", storeName, "documents", len(metadata))
	writeJSON(w, http.StatusOK, map[string]any{
		"store_id":           storeName,
		"store_name":         displayName,
		"documents_uploaded": len(metadata),
		"metadata":           metadata,
	})
}

type verificationRequest struct {
	DocumentID    string `json:"document_id"`
	StoreID       string `json:"store_id"`
	CaseContext   string `json:"case_context"`
	SplittingMode string `json:"splitting_mode"`
}

// handleExecuteVerification runs the full batch verification synchronously
// and returns the verified chunk table with run statistics. Closing the
// request aborts the run between chunks.
func (s *Server) handleExecuteVerification(w http.ResponseWriter, r *http.Request) {
	var req verificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	sess := s.sessions.Get(req.DocumentID)
	if sess == nil {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}

	mode := document.Mode(req.SplittingMode)
	if !mode.Valid() {
		jsonError(w, fmt.Sprintf("unknown splitting mode: %q", req.SplittingMode), http.StatusBadRequest)
		return
	}

	storeID := req.StoreID
	caseContext := req.CaseContext
	if storeID == "" {
		var attachedContext string
		storeID, _, attachedContext = sess.Corpus()
		if caseContext == "" {
			caseContext = attachedContext
		}
	}

	chunks, err := s.chunksFor(sess, mode)
	if err != nil {
		jsonError(w, "error chunking document: "+err.Error(), http.StatusInternalServerError)
		return
	}

	s.log.Info("starting verification",
		"document_id", sess.ID, "store", storeID, "mode", mode, "chunks", len(chunks))
	start := time.Now()

	verified, err := s.verifier.VerifyBatch(r.Context(), chunks, storeID, caseContext)
	if err != nil {
		if errors.Is(err, verify.ErrMissingStore) {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		jsonError(w, "error executing verification: "+err.Error(), http.StatusInternalServerError)
		return
	}

	sess.SetChunks(mode, verified)

	elapsed := time.Since(start)
	totalVerified := verify.CountVerified(verified)
	s.log.Info("verification complete",
		"document_id", sess.ID, "verified", totalVerified, "total", len(verified),
		"duration_s", elapsed.Seconds())

	writeJSON(w, http.StatusOK, map[string]any{
		"document_id":             sess.ID,
		"verified_chunks":         verified,
		"total_verified":          totalVerified,
		"total_chunks":            len(verified),
		"processing_time_seconds": elapsed.Seconds(),
		"store_id":                storeID,
	})
}

// handleResetVerification nulls the verification fields on every cached
// chunk of the document, in every mode.
func (s *Server) handleResetVerification(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	sess := s.sessions.Get(docID)
	if sess == nil {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}

	sess.ResetVerification()
	s.log.Info("verification results cleared", "document_id", docID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Verification results cleared successfully",
	})
}

func (s *Server) handleDeleteCorpus(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "*")
	if storeID == "" {
		jsonError(w, "store id is required", http.StatusBadRequest)
		return
	}

	if err := s.corpus.DeleteStore(r.Context(), storeID); err != nil {
		jsonError(w, "error deleting corpus: "+err.Error(), http.StatusInternalServerError)
		return
	}

	s.log.Info("corpus deleted", "store", storeID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Corpus deleted successfully",
		"store_id": storeID,
	})
}

func mimeTypeFor(filename string) string {
	if t := mime.TypeByExtension(filepath.Ext(filename)); t != "" {
		return t
	}
	return "application/octet-stream"
}
