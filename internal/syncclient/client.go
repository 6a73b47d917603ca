package syncclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"
)

// Sentinel errors for the auth flow.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
)

// StatusError carries the HTTP status of a failed request so the sync engine
// can classify it. Message is the server's own text, preserved verbatim.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Client is an HTTP client for the fieldwork sync server.
type Client struct {
	BaseURL  string
	APIKey   string
	DeviceID string
	HTTP     *http.Client
}

// New creates a new sync client.
func New(baseURL, apiKey, deviceID string) *Client {
	return &Client{
		BaseURL:  baseURL,
		APIKey:   apiKey,
		DeviceID: deviceID,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
}

// --- Auth types ---

// LoginStartResponse is the response from POST /v1/auth/login/start.
type LoginStartResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

// LoginPollResponse is the response from POST /v1/auth/login/poll.
type LoginPollResponse struct {
	Status    string  `json:"status"`
	APIKey    *string `json:"api_key,omitempty"`
	UserID    *string `json:"user_id,omitempty"`
	Email     *string `json:"email,omitempty"`
	ExpiresAt *string `json:"expires_at,omitempty"`
}

// HealthResponse is the response from GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReviewResponse is a review summary from the server.
type ReviewResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	SiteName   string `json:"site_name"`
	StartsAt   string `json:"starts_at"`
	EndsAt     string `json:"ends_at"`
	ReviewerID string `json:"reviewer_id"`
}

// HealthCheck hits the /healthz endpoint to verify server reachability.
func (c *Client) HealthCheck() (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doNoAuth("GET", "/healthz", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Auth methods ---

// LoginStart initiates the device auth flow. No API key required.
func (c *Client) LoginStart(email string) (*LoginStartResponse, error) {
	body := map[string]string{"email": email}
	var resp LoginStartResponse
	if err := c.doNoAuth("POST", "/v1/auth/login/start", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// LoginPoll checks the status of a device auth request. No API key required.
func (c *Client) LoginPoll(deviceCode string) (*LoginPollResponse, error) {
	body := map[string]string{"device_code": deviceCode}
	var resp LoginPollResponse
	if err := c.doNoAuth("POST", "/v1/auth/login/poll", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Review methods ---

// ListReviews lists the reviews assigned to the authenticated reviewer.
func (c *Client) ListReviews() ([]ReviewResponse, error) {
	var resp []ReviewResponse
	if err := c.do("GET", "/v1/reviews", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// FetchResource hits a read endpoint used for offline caching. The input
// document is JSON-encoded into the "input" query parameter and the raw
// response body is returned untouched for the cache layer to persist.
func (c *Client) FetchResource(path string, input any) (json.RawMessage, error) {
	encoded, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("encode input: %w", err)
	}
	params := url.Values{}
	params.Set("input", string(encoded))

	var resp json.RawMessage
	if err := c.do("GET", path+"?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// --- Push methods ---
//
// Creates POST to the collection, updates PUT to the record, deletes DELETE
// it. The payload is the client-side snapshot; the server answers 409 when
// its copy changed since this device last saw it.

// PushChecklistItem pushes a checklist item create or update.
func (c *Client) PushChecklistItem(action, reviewID, itemID string, payload json.RawMessage) error {
	return c.pushRecord(action, fmt.Sprintf("/v1/reviews/%s/checklist-items", reviewID), itemID, payload)
}

// PushFinding pushes a draft finding create, update, or delete.
func (c *Client) PushFinding(action, reviewID, findingID string, payload json.RawMessage) error {
	return c.pushRecord(action, fmt.Sprintf("/v1/reviews/%s/findings", reviewID), findingID, payload)
}

// PushSession pushes an offline session record.
func (c *Client) PushSession(action, reviewID, sessionID string, payload json.RawMessage) error {
	return c.pushRecord(action, fmt.Sprintf("/v1/reviews/%s/sessions", reviewID), sessionID, payload)
}

// DeleteEvidence asks the server to remove an evidence record this device
// previously uploaded.
func (c *Client) DeleteEvidence(reviewID, evidenceID string) error {
	return c.do("DELETE", fmt.Sprintf("/v1/reviews/%s/evidence/%s", reviewID, evidenceID), nil, nil)
}

func (c *Client) pushRecord(action, collection, id string, payload json.RawMessage) error {
	switch action {
	case "create":
		return c.do("POST", collection, payload, nil)
	case "update":
		return c.do("PUT", collection+"/"+id, payload, nil)
	case "delete":
		return c.do("DELETE", collection+"/"+id, nil, nil)
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

// UploadEvidence uploads an evidence blob with its metadata sidecar as
// multipart form data. The metadata travels in a "metadata" part, the raw
// blob in a "file" part.
func (c *Client) UploadEvidence(reviewID, fileName, mimeType string, metadata json.RawMessage, blob []byte) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	meta, err := w.CreateFormField("metadata")
	if err != nil {
		return fmt.Errorf("create metadata part: %w", err)
	}
	if _, err := meta.Write(metadata); err != nil {
		return fmt.Errorf("write metadata part: %w", err)
	}

	file, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := file.Write(blob); err != nil {
		return fmt.Errorf("write file part: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	path := fmt.Sprintf("/v1/reviews/%s/evidence", reviewID)
	req, err := http.NewRequest("POST", c.BaseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("X-Evidence-Mime", mimeType)
	c.setAuthHeaders(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return statusError(resp.StatusCode, respBody)
	}
	return nil
}

// --- HTTP helpers ---

// apiError is the standard error body from the server.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// do executes an authenticated HTTP request.
func (c *Client) do(method, path string, body, result any) error {
	return c.doRequest(method, path, body, result, true)
}

// doNoAuth executes an unauthenticated HTTP request.
func (c *Client) doNoAuth(method, path string, body, result any) error {
	return c.doRequest(method, path, body, result, false)
}

func (c *Client) setAuthHeaders(req *http.Request) {
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	if c.DeviceID != "" {
		req.Header.Set("X-Device-ID", c.DeviceID)
	}
}

func (c *Client) doRequest(method, path string, body, result any, auth bool) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		c.setAuthHeaders(req)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return statusError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

func statusError(status int, body []byte) error {
	serr := &StatusError{StatusCode: status}
	var apiErr apiError
	if json.Unmarshal(body, &apiErr) == nil && (apiErr.Code != "" || apiErr.Message != "") {
		serr.Code = apiErr.Code
		serr.Message = apiErr.Message
	} else if len(body) > 0 {
		serr.Message = string(body)
	}
	switch status {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrUnauthorized, serr.Message)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrForbidden, serr.Message)
	}
	return serr
}
