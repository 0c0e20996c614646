package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the Gemini REST API: content generation with File Search
// grounding, file uploads and File Search store management.
type Client struct {
	baseURL    string
	uploadURL  string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client for the given API base URL (".../v1beta") and
// API key.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:   baseURL,
		uploadURL: uploadBase(baseURL),
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// GenerateRequest describes one generateContent call.
type GenerateRequest struct {
	Model       string
	Prompt      string
	Temperature float32
	// StoreNames scopes the File Search tool to these stores. Empty means
	// no grounding tool is attached.
	StoreNames []string
	// FileURI optionally includes an uploaded file as additional content.
	FileURI      string
	FileMIMEType string
	// JSONOutput requests an application/json response via the response
	// schema mechanism instead of prompt-only JSON instructions.
	JSONOutput bool
}

// GroundingChunk is one piece of provider-verified retrieval evidence tied
// to an actual corpus document (or, for web grounding, a source URI).
type GroundingChunk struct {
	Title string
	Text  string
	URI   string
}

// GenerateResult is the parsed outcome of a generateContent call.
type GenerateResult struct {
	Text      string
	Grounding []GroundingChunk
}

type generatePart struct {
	Text     string        `json:"text,omitempty"`
	FileData *fileDataPart `json:"fileData,omitempty"`
}

type fileDataPart struct {
	FileURI  string `json:"fileUri"`
	MIMEType string `json:"mimeType,omitempty"`
}

type generateContent struct {
	Role  string         `json:"role,omitempty"`
	Parts []generatePart `json:"parts"`
}

type generationConfig struct {
	Temperature      float32 `json:"temperature"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type fileSearchTool struct {
	FileSearchStoreNames []string `json:"fileSearchStoreNames"`
}

type generateTool struct {
	FileSearch *fileSearchTool `json:"fileSearch,omitempty"`
}

type generateRequestBody struct {
	Contents         []generateContent `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
	Tools            []generateTool    `json:"tools,omitempty"`
}

type generateResponseBody struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		GroundingMetadata *struct {
			GroundingChunks []struct {
				RetrievedContext *struct {
					Title string `json:"title"`
					Text  string `json:"text"`
					URI   string `json:"uri"`
				} `json:"retrievedContext"`
				Web *struct {
					Title string `json:"title"`
					URI   string `json:"uri"`
				} `json:"web"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
}

// GenerateContent executes one generation call. Transport and API failures
// come back as *APIError classified by kind; an HTTP 200 with no candidate
// text yields a result with an empty Text, which the caller interprets.
func (c *Client) GenerateContent(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	var parts []generatePart
	if req.FileURI != "" {
		parts = append(parts, generatePart{
			FileData: &fileDataPart{FileURI: req.FileURI, MIMEType: req.FileMIMEType},
		})
	}
	parts = append(parts, generatePart{Text: req.Prompt})

	body := generateRequestBody{
		Contents: []generateContent{{Role: "user", Parts: parts}},
		GenerationConfig: &generationConfig{
			Temperature: req.Temperature,
		},
	}
	if req.JSONOutput {
		body.GenerationConfig.ResponseMIMEType = "application/json"
	}
	if len(req.StoreNames) > 0 {
		body.Tools = []generateTool{{FileSearch: &fileSearchTool{FileSearchStoreNames: req.StoreNames}}}
	}

	var resp generateResponseBody
	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, req.Model)
	if err := c.doJSON(ctx, http.MethodPost, url, body, &resp); err != nil {
		return nil, err
	}

	result := &GenerateResult{}
	if len(resp.Candidates) > 0 {
		cand := resp.Candidates[0]
		for _, p := range cand.Content.Parts {
			result.Text += p.Text
		}
		if cand.GroundingMetadata != nil {
			for _, gc := range cand.GroundingMetadata.GroundingChunks {
				switch {
				case gc.RetrievedContext != nil:
					result.Grounding = append(result.Grounding, GroundingChunk{
						Title: orDefault(gc.RetrievedContext.Title, "Document"),
						Text:  gc.RetrievedContext.Text,
						URI:   gc.RetrievedContext.URI,
					})
				case gc.Web != nil:
					result.Grounding = append(result.Grounding, GroundingChunk{
						Title: orDefault(gc.Web.Title, "Web Source"),
						URI:   gc.Web.URI,
					})
				default:
					result.Grounding = append(result.Grounding, GroundingChunk{Title: "Unknown Source"})
				}
			}
		}
	}
	return result, nil
}

// doJSON sends one JSON request and decodes the response into out. Non-2xx
// statuses are converted to *APIError with the body's error message when
// one is present.
func (c *Client) doJSON(ctx context.Context, method, url string, in, out any) error {
	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &APIError{Kind: KindTransient, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return &APIError{Kind: KindTransient, Message: fmt.Sprintf("read response: %s", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, respBody)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
