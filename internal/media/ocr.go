package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	. "github.com/roelfdiedericks/waclaw/internal/logging"
)

const (
	// ocrTimeout bounds the recognition call; a slow OCR must not
	// stall the whole turn.
	ocrTimeout = 30 * time.Second

	// OCRPlaceholder is substituted whenever recognition fails. The
	// turn proceeds with it rather than aborting.
	OCRPlaceholder = "could not read image"
)

// OCRClient extracts text from a stored image via POST {base}/ocr.
type OCRClient struct {
	base   string
	client *http.Client
}

// NewOCRClient creates an OCR client for the given base URL.
func NewOCRClient(base string) *OCRClient {
	return &OCRClient{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: ocrTimeout},
	}
}

type ocrRequest struct {
	ImagePath string `json:"image_path"`
}

type ocrResponse struct {
	Text string `json:"text"`
}

// Recognize returns the text embedded in the image at path. All
// failures — transport, status, parse, timeout — degrade to the fixed
// placeholder so the message still reaches the agent.
func (c *OCRClient) Recognize(ctx context.Context, path string) string {
	payload, err := json.Marshal(ocrRequest{ImagePath: path})
	if err != nil {
		return OCRPlaceholder
	}

	reqCtx, cancel := context.WithTimeout(ctx, ocrTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.base+"/ocr", bytes.NewReader(payload))
	if err != nil {
		L_warn("media: failed to build ocr request", "error", err)
		return OCRPlaceholder
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		L_warn("media: ocr request failed", "path", path, "error", err)
		return OCRPlaceholder
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		L_warn("media: ocr returned error status", "path", path, "status", resp.StatusCode)
		return OCRPlaceholder
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		L_warn("media: failed to read ocr response", "error", err)
		return OCRPlaceholder
	}

	var parsed ocrResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		L_warn("media: ocr response unparseable", "error", err)
		return OCRPlaceholder
	}

	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		return OCRPlaceholder
	}
	L_debug("media: ocr complete", "path", path, "chars", len(text))
	return text
}

// AppendRecognized merges recognized text into the user-authored body
// with a delimiter the agent can distinguish.
func AppendRecognized(body, recognized string) string {
	if recognized == "" {
		return body
	}
	if body == "" {
		return fmt.Sprintf("[image text]\n%s", recognized)
	}
	return fmt.Sprintf("%s\n\n[image text]\n%s", body, recognized)
}
