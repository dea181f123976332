package collaborator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	ptserrors "github.com/ptts-corpus/ptts/internal/errors"
)

// VisionConfig configures the HTTP vision-language collaborator.
type VisionConfig struct {
	Host       string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
}

// DefaultVisionHost is the vision collaborator's default endpoint.
const DefaultVisionHost = "https://api.datalab.to"

// HTTPVisionClient describes an extracted image by calling an external
// vision-language model over HTTP.
type HTTPVisionClient struct {
	client  *http.Client
	cfg     VisionConfig
	breaker *ptserrors.CircuitBreaker
	retry   ptserrors.RetryConfig
}

var _ VisionClient = (*HTTPVisionClient)(nil)

// NewHTTPVisionClient returns a vision client with ambient defaults applied.
func NewHTTPVisionClient(cfg VisionConfig) *HTTPVisionClient {
	if cfg.Host == "" {
		cfg.Host = DefaultVisionHost
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCallTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	retry := ptserrors.DefaultRetryConfig()
	retry.MaxRetries = cfg.MaxRetries

	return &HTTPVisionClient{
		client:  &http.Client{},
		cfg:     cfg,
		breaker: ptserrors.NewCircuitBreaker("vision"),
		retry:   retry,
	}
}

type visionRequest struct {
	ImageBase64 string `json:"image_base64"`
	Format      string `json:"format"`
}

type visionResponse struct {
	Description    string          `json:"description"`
	StructuredJSON json.RawMessage `json:"structured"`
	Confidence     *float64        `json:"confidence"`
	TokensUsed     *int            `json:"tokens_used"`
}

// Describe returns a text description of imageBytes.
func (c *HTTPVisionClient) Describe(ctx context.Context, imageBytes []byte, format string) (*VisionResult, error) {
	if !c.breaker.Allow() {
		return nil, ptserrors.New(ptserrors.KindCircuitOpen, "vision collaborator circuit open", nil)
	}

	result, err := ptserrors.RetryWithResult(ctx, c.retry, func() (*VisionResult, error) {
		return c.doRequest(ctx, imageBytes, format)
	})
	if err != nil {
		c.breaker.RecordFailure()
		return nil, err
	}
	c.breaker.RecordSuccess()
	return result, nil
}

func (c *HTTPVisionClient) doRequest(ctx context.Context, imageBytes []byte, format string) (*VisionResult, error) {
	reqBody := visionRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(imageBytes),
		Format:      format,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, ptserrors.Internal("marshal vision request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Host+"/v1/vision/describe", bytes.NewReader(body))
	if err != nil {
		return nil, ptserrors.Internal("build vision request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, ptserrors.New(ptserrors.KindExternalTimeout, "vision collaborator request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ptserrors.New(ptserrors.KindExternalUnavailable, "read vision response", err)
	}

	if resp.StatusCode >= 500 {
		return nil, ptserrors.New(ptserrors.KindExternalUnavailable, fmt.Sprintf("vision collaborator returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, ptserrors.Validation(fmt.Sprintf("vision collaborator returned %d: %s", resp.StatusCode, respBody))
	}

	var parsed visionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, ptserrors.New(ptserrors.KindExternalUnavailable, "decode vision response", err)
	}

	out := &VisionResult{
		Description: parsed.Description,
		Confidence:  parsed.Confidence,
		TokensUsed:  parsed.TokensUsed,
	}
	if len(parsed.StructuredJSON) > 0 {
		s := string(parsed.StructuredJSON)
		out.StructuredJSON = &s
	}
	return out, nil
}
