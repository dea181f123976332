package collaborator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	ptserrors "github.com/ptts-corpus/ptts/internal/errors"
	"github.com/ptts-corpus/ptts/internal/store"
)

// DatalabConfig configures the HTTP OCR collaborator.
type DatalabConfig struct {
	Host           string
	APIKey         string
	Timeout        time.Duration
	MaxConcurrent  int
	MaxRetries     int
}

// DefaultDatalabHost is the OCR collaborator's default endpoint.
const DefaultDatalabHost = "https://api.datalab.to"

// DatalabOCRClient submits files to the Datalab OCR API and returns
// extracted text, page offsets, and any figures it segmented out.
type DatalabOCRClient struct {
	client  *http.Client
	cfg     DatalabConfig
	breaker *ptserrors.CircuitBreaker
	retry   ptserrors.RetryConfig
}

var _ OCRClient = (*DatalabOCRClient)(nil)

// NewDatalabOCRClient returns an OCR client with ambient defaults applied.
func NewDatalabOCRClient(cfg DatalabConfig) *DatalabOCRClient {
	if cfg.Host == "" {
		cfg.Host = DefaultDatalabHost
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCallTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	retry := ptserrors.DefaultRetryConfig()
	retry.MaxRetries = cfg.MaxRetries

	return &DatalabOCRClient{
		client: &http.Client{Transport: &http.Transport{MaxIdleConnsPerHost: cfg.MaxConcurrent}},
		cfg:    cfg,
		breaker: ptserrors.NewCircuitBreaker("ocr"),
		retry:   retry,
	}
}

type datalabOCRRequest struct {
	FileBase64 string `json:"file_base64"`
	FileName   string `json:"file_name"`
	Mode       string `json:"mode"`
}

type datalabPageOffset struct {
	Page      int `json:"page"`
	CharStart int `json:"char_start"`
	CharEnd   int `json:"char_end"`
}

type datalabImage struct {
	PageNumber int     `json:"page_number"`
	BBoxX      float64 `json:"bbox_x"`
	BBoxY      float64 `json:"bbox_y"`
	BBoxW      float64 `json:"bbox_w"`
	BBoxH      float64 `json:"bbox_h"`
	ImageIndex int     `json:"image_index"`
	Format     string  `json:"format"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	DataBase64 string  `json:"data_base64"`
}

type datalabOCRResponse struct {
	RequestID      string              `json:"request_id"`
	ExtractedText  string              `json:"extracted_text"`
	PageCount      int                 `json:"page_count"`
	PageOffsets    []datalabPageOffset `json:"page_offsets"`
	Images         []datalabImage      `json:"images"`
	QualityScore   *float64            `json:"quality_score"`
	Cost           *float64            `json:"cost"`
	StructuredJSON json.RawMessage     `json:"structured"`
	Extras         json.RawMessage     `json:"extras"`
}

// Extract submits filePath to the OCR collaborator and parses its
// response into the core's OCRResult shape.
func (c *DatalabOCRClient) Extract(ctx context.Context, filePath string, mode store.OCRMode) (*OCRResult, error) {
	if !c.breaker.Allow() {
		return nil, ptserrors.New(ptserrors.KindCircuitOpen, "ocr collaborator circuit open", nil)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, ptserrors.New(ptserrors.KindFileNotFound, fmt.Sprintf("read %s", filePath), err)
	}

	started := time.Now()
	result, err := ptserrors.RetryWithResult(ctx, c.retry, func() (*OCRResult, error) {
		return c.doRequest(ctx, filePath, data, mode)
	})
	if err != nil {
		c.breaker.RecordFailure()
		return nil, err
	}
	c.breaker.RecordSuccess()
	result.DurationMS = time.Since(started).Milliseconds()
	return result, nil
}

func (c *DatalabOCRClient) doRequest(ctx context.Context, filePath string, data []byte, mode store.OCRMode) (*OCRResult, error) {
	reqBody := datalabOCRRequest{
		FileBase64: base64.StdEncoding.EncodeToString(data),
		FileName:   filePath,
		Mode:       string(mode),
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, ptserrors.Internal("marshal ocr request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Host+"/v1/ocr", bytes.NewReader(body))
	if err != nil {
		return nil, ptserrors.Internal("build ocr request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyHTTPError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ptserrors.New(ptserrors.KindExternalUnavailable, "read ocr response", err)
	}

	if resp.StatusCode >= 500 {
		return nil, ptserrors.New(ptserrors.KindExternalUnavailable, fmt.Sprintf("ocr collaborator returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, ptserrors.Validation(fmt.Sprintf("ocr collaborator returned %d: %s", resp.StatusCode, respBody))
	}

	var parsed datalabOCRResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, ptserrors.New(ptserrors.KindExternalUnavailable, "decode ocr response", err)
	}

	out := &OCRResult{
		ExtractedText: parsed.ExtractedText,
		PageCount:     parsed.PageCount,
		QualityScore:  parsed.QualityScore,
		Cost:          parsed.Cost,
		ExternalReqID: parsed.RequestID,
	}
	for _, po := range parsed.PageOffsets {
		out.PageOffsets = append(out.PageOffsets, PageOffset{Page: po.Page, CharStart: po.CharStart, CharEnd: po.CharEnd})
	}
	for _, img := range parsed.Images {
		imgBytes, err := base64.StdEncoding.DecodeString(img.DataBase64)
		if err != nil {
			return nil, ptserrors.New(ptserrors.KindExternalUnavailable, "decode ocr image payload", err)
		}
		out.Images = append(out.Images, ExtractedImage{
			PageNumber: img.PageNumber,
			BBoxX:      img.BBoxX,
			BBoxY:      img.BBoxY,
			BBoxW:      img.BBoxW,
			BBoxH:      img.BBoxH,
			ImageIndex: img.ImageIndex,
			Format:     img.Format,
			Width:      img.Width,
			Height:     img.Height,
			Bytes:      imgBytes,
		})
	}
	if len(parsed.StructuredJSON) > 0 {
		s := string(parsed.StructuredJSON)
		out.StructuredJSON = &s
	}
	if len(parsed.Extras) > 0 {
		s := string(parsed.Extras)
		out.ExtrasJSON = &s
	}

	return out, nil
}

// classifyHTTPError treats a failed round trip (timeout, connection
// refused, DNS failure) as the transient EXTERNAL_TIMEOUT class so the
// caller's retry policy applies.
func classifyHTTPError(err error) error {
	return ptserrors.New(ptserrors.KindExternalTimeout, "ocr collaborator request failed", err)
}
