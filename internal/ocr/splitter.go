// Package ocr is the boundary to the external splitting/OCR service. The
// service splits an uploaded batch into per-employee pages, scans each for
// identity clues and calls back into the ingest endpoint with one detection
// per item. How it does any of that is not this codebase's business.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Splitter kicks off the external splitting job for an uploaded batch.
// Results arrive asynchronously as ingest callbacks.
type Splitter interface {
	Split(ctx context.Context, req SplitRequest) error
}

type SplitRequest struct {
	BatchID     string `json:"batch_id"`
	Bucket      string `json:"bucket"`
	SourcePath  string `json:"source_path"`
	FileType    string `json:"file_type"`
	CallbackURL string `json:"callback_url"`
}

type HTTPSplitter struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPSplitter(baseURL string) *HTTPSplitter {
	return &HTTPSplitter{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPSplitter) Split(ctx context.Context, req SplitRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal split request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/v1/split", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create split request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("split request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("split request failed (%d)", resp.StatusCode)
	}
	return nil
}
