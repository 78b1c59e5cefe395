// Package kyc is the client for the remote identity-verification service.
//
// The service issues pre-signed upload destinations for the document, the
// face crop, and the selfie, then compares the face crop against the selfie
// and returns a match decision. Its internals are opaque; this package only
// speaks its HTTP contract.
package kyc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// UploadTargets holds the three pre-signed destinations issued for one
// verification attempt.
type UploadTargets struct {
	OrigURL   string `json:"orig_url"`
	FaceURL   string `json:"face_url"`
	SelfieURL string `json:"selfie_url"`
}

// UploadGrant is the response from /get-urls: an opaque verification
// identifier plus the upload destinations it correlates.
type UploadGrant struct {
	KYCID string         `json:"kyc_id"`
	URLs  *UploadTargets `json:"urls"`
}

// ExtractedData carries identity fields the service pulled off the document.
// All fields are free-form strings; any of them may be absent.
type ExtractedData struct {
	Name     string `json:"name"`
	DOB      string `json:"dob"`
	IDNumber string `json:"id_number"`
}

// VerifyResult is the outcome of a /verify call. A negative FaceMatch is a
// normal result, not an error.
type VerifyResult struct {
	KYCID         string         `json:"kyc_id"`
	FaceMatch     bool           `json:"face_match"`
	Similarity    float64        `json:"similarity"`
	Status        string         `json:"status,omitempty"`
	ExtractedData *ExtractedData `json:"extracted_data,omitempty"`
}

// Client is the verification service API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new client for the given service endpoint.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetUploadTargets requests a fresh verification identifier and its three
// upload destinations. A response missing either is a hard error.
func (c *Client) GetUploadTargets(ctx context.Context) (*UploadGrant, error) {
	data, err := c.postRaw(ctx, "/get-urls", nil)
	if err != nil {
		return nil, fmt.Errorf("kyc.GetUploadTargets: %w", err)
	}
	grant, err := decodeGrant(data)
	if err != nil {
		return nil, fmt.Errorf("kyc.GetUploadTargets: %w", err)
	}
	return grant, nil
}

// decodeGrant parses a /get-urls response body. When the service sits behind
// an API gateway proxy the payload arrives nested one level down as a JSON
// string in a "body" field; unwrap that first, fall back to the outer object.
func decodeGrant(data []byte) (*UploadGrant, error) {
	var envelope struct {
		Body string `json:"body"`
	}
	if json.Unmarshal(data, &envelope) == nil && envelope.Body != "" {
		var inner UploadGrant
		if json.Unmarshal([]byte(envelope.Body), &inner) == nil {
			return validateGrant(&inner)
		}
	}

	var grant UploadGrant
	if err := json.Unmarshal(data, &grant); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return validateGrant(&grant)
}

func validateGrant(g *UploadGrant) (*UploadGrant, error) {
	if g.URLs == nil || g.URLs.OrigURL == "" || g.URLs.FaceURL == "" || g.URLs.SelfieURL == "" {
		return nil, ErrMissingUploadTargets
	}
	if g.KYCID == "" {
		return nil, ErrMissingVerificationID
	}
	return g, nil
}

// Upload transmits raw JPEG bytes to a pre-signed destination. Any non-error
// transport response counts as success.
func (c *Client) Upload(ctx context.Context, dest string, image []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, dest, bytes.NewReader(image))
	if err != nil {
		return fmt.Errorf("kyc.Upload: create request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("kyc.Upload: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode >= 400 {
		return fmt.Errorf("kyc.Upload: %w", readHTTPError(resp))
	}
	return nil
}

// Verify asks the service for the match decision correlated with kycID.
func (c *Client) Verify(ctx context.Context, kycID string) (*VerifyResult, error) {
	data, err := c.postRaw(ctx, "/verify", map[string]string{"kyc_id": kycID})
	if err != nil {
		return nil, fmt.Errorf("kyc.Verify: %w", err)
	}
	var result VerifyResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("kyc.Verify: decode response: %w", err)
	}
	return &result, nil
}

func (c *Client) postRaw(ctx context.Context, path string, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode >= 400 {
		return nil, readHTTPError(resp)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max body
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}

func readHTTPError(resp *http.Response) error {
	respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max error body
	if readErr != nil {
		return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
	}
	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
		return &HTTPError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}
	return &HTTPError{StatusCode: resp.StatusCode, Message: string(respBody)}
}
