package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"time"

	"github.com/gearshelf/api/internal/config"
	"github.com/gearshelf/api/internal/model"
)

const (
	audioFieldName = "audio"
	audioFileName  = "recording.webm"
	defaultMime    = "audio/webm"
)

// BackendClient talks to the AI processing and catalog backend
type BackendClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// StatusError is returned when the backend answers with a non-2xx status
type StatusError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend error on %s (status %d): %s", e.Endpoint, e.StatusCode, e.Message)
}

// NewBackendClient creates a new backend client. A zero timeout leaves calls
// unbounded so a slow backend keeps the run at its last stage until cancelled.
func NewBackendClient(cfg *config.BackendConfig) *BackendClient {
	return &BackendClient{
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

// ProcessAudio uploads a recording to /api/process-audio
func (c *BackendClient) ProcessAudio(ctx context.Context, audio []byte, mimeHint string) (*model.ProcessingResult, error) {
	if mimeHint == "" {
		mimeHint = defaultMime
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, audioFieldName, audioFileName))
	header.Set("Content-Type", mimeHint)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart part: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("failed to write audio: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart body: %w", err)
	}

	var result model.ProcessingResult
	if err := c.doRequest(ctx, http.MethodPost, "/api/process-audio", &buf, w.FormDataContentType(), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ProcessSample sends sample text to /api/process-sample
func (c *BackendClient) ProcessSample(ctx context.Context, text string) (*model.ProcessingResult, error) {
	body := map[string]string{"sample_text": text}

	var result model.ProcessingResult
	if err := c.post(ctx, "/api/process-sample", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateSKU creates a type record or links to an existing one with the same brand and model
func (c *BackendClient) CreateSKU(ctx context.Context, req *model.TypeRecordRequest) (*model.TypeRecordResponse, error) {
	var result model.TypeRecordResponse
	if err := c.post(ctx, "/api/skus", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateInventory creates a unit record
func (c *BackendClient) CreateInventory(ctx context.Context, req *model.UnitRecordRequest) (*model.UnitRecordResponse, error) {
	var result model.UnitRecordResponse
	if err := c.post(ctx, "/api/inventory", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListInventory reads units with optional filters
func (c *BackendClient) ListInventory(ctx context.Context, filter model.InventoryFilter) (*model.InventoryListResponse, error) {
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", filter.Status)
	}
	if filter.Condition != "" {
		q.Set("condition", filter.Condition)
	}
	if filter.SKUID != "" {
		q.Set("sku_id", filter.SKUID)
	}

	var result model.InventoryListResponse
	if err := c.get(ctx, "/api/inventory", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListSKUs reads type records, optionally grouped by category
func (c *BackendClient) ListSKUs(ctx context.Context, filter model.SKUFilter) (*model.SKUListResponse, error) {
	q := url.Values{}
	if filter.Category != "" {
		q.Set("category", filter.Category)
	}
	if filter.GroupByCategory {
		q.Set("group_by_category", strconv.FormatBool(true))
	}

	var result model.SKUListResponse
	if err := c.get(ctx, "/api/skus", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// HealthCheck checks if the backend is reachable
func (c *BackendClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// post sends a POST request with JSON body and parses the response
func (c *BackendClient) post(ctx context.Context, endpoint string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.doRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes), "application/json", result)
}

// get sends a GET request with query parameters and parses the response
func (c *BackendClient) get(ctx context.Context, endpoint string, query url.Values, result interface{}) error {
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	return c.doRequest(ctx, http.MethodGet, endpoint, nil, "", result)
}

func (c *BackendClient) doRequest(ctx context.Context, method, endpoint string, body io.Reader, contentType string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody),
		}
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// errorMessage extracts {"error": "..."} from a failure body, falling back to the raw text
func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return string(body)
}

// IsConfigured returns true if the client has valid configuration
func (c *BackendClient) IsConfigured() bool {
	return c.baseURL != ""
}
