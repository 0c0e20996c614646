package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Store is a File Search store, the named searchable collection reference
// documents are indexed into.
type Store struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// File is an uploaded file in the Files API, usable as generation content
// and importable into a store.
type File struct {
	Name     string `json:"name"`
	URI      string `json:"uri"`
	MIMEType string `json:"mimeType"`
	State    string `json:"state"`
	Error    *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// File states reported by the Files API.
const (
	FileStateProcessing = "PROCESSING"
	FileStateActive     = "ACTIVE"
	FileStateFailed     = "FAILED"
)

// Operation is a long-running operation handle, polled until Done.
type Operation struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CustomMetadata is a key/value attribute attached to an imported file.
type CustomMetadata struct {
	Key             string      `json:"key"`
	StringValue     string      `json:"stringValue,omitempty"`
	StringListValue *StringList `json:"stringListValue,omitempty"`
}

// StringList holds a multi-valued metadata value.
type StringList struct {
	Values []string `json:"values"`
}

// CreateStore creates a File Search store with the given display name.
func (c *Client) CreateStore(ctx context.Context, displayName string) (*Store, error) {
	var store Store
	url := c.baseURL + "/fileSearchStores"
	body := map[string]string{"displayName": displayName}
	if err := c.doJSON(ctx, http.MethodPost, url, body, &store); err != nil {
		return nil, fmt.Errorf("create store: %w", err)
	}
	return &store, nil
}

// DeleteStore removes a store and everything indexed in it.
func (c *Client) DeleteStore(ctx context.Context, name string) error {
	url := c.baseURL + "/" + name + "?force=true"
	if err := c.doJSON(ctx, http.MethodDelete, url, nil, nil); err != nil {
		return fmt.Errorf("delete store %s: %w", name, err)
	}
	return nil
}

// UploadFile uploads raw bytes to the Files API. The returned file is
// usually still PROCESSING; poll with GetFile until ACTIVE.
func (c *Client) UploadFile(ctx context.Context, data []byte, mimeType, displayName string) (*File, error) {
	url := c.uploadURL + "/files"

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("x-goog-api-key", c.apiKey)
	httpReq.Header.Set("X-Goog-Upload-Protocol", "raw")
	httpReq.Header.Set("X-Goog-File-Name", displayName)
	httpReq.Header.Set("Content-Type", mimeType)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &APIError{Kind: KindTransient, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &APIError{Kind: KindTransient, Message: fmt.Sprintf("read response: %s", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("upload file: %w", newAPIError(resp.StatusCode, respBody))
	}

	var result struct {
		File File `json:"file"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return &result.File, nil
}

// GetFile fetches the current state of an uploaded file.
func (c *Client) GetFile(ctx context.Context, name string) (*File, error) {
	var file File
	url := c.baseURL + "/" + name
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &file); err != nil {
		return nil, fmt.Errorf("get file %s: %w", name, err)
	}
	return &file, nil
}

// DeleteFile removes an uploaded file. Stores keep their own indexed copy,
// so this is safe after import.
func (c *Client) DeleteFile(ctx context.Context, name string) error {
	url := c.baseURL + "/" + name
	if err := c.doJSON(ctx, http.MethodDelete, url, nil, nil); err != nil {
		return fmt.Errorf("delete file %s: %w", name, err)
	}
	return nil
}

// ImportFile starts indexing an already-uploaded file into a store and
// returns the long-running operation handle.
func (c *Client) ImportFile(ctx context.Context, storeName, fileName string, metadata []CustomMetadata) (*Operation, error) {
	var op Operation
	url := c.baseURL + "/" + storeName + ":importFile"
	body := map[string]any{"fileName": fileName}
	if len(metadata) > 0 {
		body["customMetadata"] = metadata
	}
	if err := c.doJSON(ctx, http.MethodPost, url, body, &op); err != nil {
		return nil, fmt.Errorf("import file %s into %s: %w", fileName, storeName, err)
	}
	return &op, nil
}

// GetOperation fetches the current state of a long-running operation.
func (c *Client) GetOperation(ctx context.Context, name string) (*Operation, error) {
	var op Operation
	url := c.baseURL + "/" + name
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &op); err != nil {
		return nil, fmt.Errorf("get operation %s: %w", name, err)
	}
	return &op, nil
}

// uploadBase derives the media-upload base URL from the API base URL:
// .../v1beta -> .../upload/v1beta.
func uploadBase(baseURL string) string {
	if i := strings.LastIndex(baseURL, "/v1"); i >= 0 {
		return baseURL[:i] + "/upload" + baseURL[i:]
	}
	return baseURL + "/upload"
}
