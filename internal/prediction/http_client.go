// README: HTTP client for the predictor API (POST /predict).
package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUpstream is returned when the predictor answers with a non-2xx status.
var ErrUpstream = errors.New("predictor upstream error")

// HTTPClient calls a remote predictor over HTTP.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// Predict implements Predictor.
func (c *HTTPClient) Predict(ctx context.Context, in Input) (Prediction, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return Prediction{}, fmt.Errorf("predictor: encode input: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return Prediction{}, fmt.Errorf("predictor: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Prediction{}, fmt.Errorf("predictor: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Prediction{}, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var p Prediction
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return Prediction{}, fmt.Errorf("predictor: decode response: %w", err)
	}
	if p.LeaveTime.IsZero() {
		return Prediction{}, fmt.Errorf("%w: response has no leave_time", ErrUpstream)
	}
	p.Source = SourceModel
	return p, nil
}
