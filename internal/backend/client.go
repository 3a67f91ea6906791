// Package backend is the HTTP client for the dataset analysis service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 120 * time.Second

// Client talks to the analysis backend. It never retries: a failed call is
// reported once and the user decides whether to ask again.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient returns a client for baseURL (e.g. http://localhost:8000).
func NewClient(baseURL string, httpTimeout time.Duration) *Client {
	if httpTimeout <= 0 {
		httpTimeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: httpTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// BaseURL returns the configured origin.
func (c *Client) BaseURL() string { return c.baseURL }

// Ask posts a question as multipart form data to /ask.
func (c *Client) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, errors.New("question cannot be empty")
	}
	body, contentType, err := encodeAsk(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ask", body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.transportError(ctx, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp)
	}
	var out AskResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &DecodeError{Err: err}
	}
	out.RequestID = extractRequestID(resp)
	return &out, nil
}

func encodeAsk(req AskRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	dtype := req.DatasetType
	if dtype == "" {
		dtype = DatasetDefault
	}
	if err := mw.WriteField("question", req.Question); err != nil {
		return nil, "", fmt.Errorf("write question: %w", err)
	}
	if err := mw.WriteField("dataset_type", dtype); err != nil {
		return nil, "", fmt.Errorf("write dataset_type: %w", err)
	}
	if dtype == DatasetCustom {
		if req.File == nil {
			return nil, "", errors.New("custom dataset requires a file")
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(req.FileName)))
		h.Set("Content-Type", "text/csv")
		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create file part: %w", err)
		}
		if _, err := part.Write(req.File); err != nil {
			return nil, "", fmt.Errorf("write file part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }

// Health queries /health.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.transportError(ctx, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp)
	}
	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &h, nil
}

// PlotURL resolves a server-relative plot path against the backend origin.
// Absolute URLs and empty paths are returned unchanged.
func (c *Client) PlotURL(path string) string {
	if path == "" {
		return ""
	}
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// FetchPlot downloads the image at plotURL into w and returns the byte count.
func (c *Client) FetchPlot(ctx context.Context, plotURL string, w io.Writer) (int64, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.PlotURL(plotURL), nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, c.transportError(ctx, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return 0, decodeAPIError(resp)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download plot: %w", err)
	}
	return n, nil
}

func (c *Client) transportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var nerr net.Error
	var operr *net.OpError
	if errors.As(err, &operr) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return &UnreachableError{Host: c.baseURL, Err: err}
	}
	return fmt.Errorf("http request: %w", err)
}

// decodeAPIError reads a FastAPI-style error body and classifies it.
func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode, RequestID: extractRequestID(resp)}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err == nil {
		switch d := raw["detail"].(type) {
		case string:
			apiErr.Detail = d
		case nil:
			if msg, ok := raw["message"].(string); ok {
				apiErr.Detail = msg
			}
		default:
			// validation errors arrive as a list of objects
			if b, err := json.Marshal(d); err == nil {
				apiErr.Detail = string(b)
			}
		}
	} else if s := strings.TrimSpace(string(body)); s != "" {
		apiErr.Detail = s
	}
	switch {
	case resp.StatusCode >= 500:
		return &ServerError{APIError: apiErr}
	case resp.StatusCode >= 400:
		return &BadRequestError{APIError: apiErr}
	}
	return apiErr
}

// extractRequestID pulls a best-effort request ID from common headers.
func extractRequestID(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	for _, k := range []string{"X-Request-Id", "X-Correlation-Id", "X-Amzn-Requestid"} {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}

var _ Asker = (*Client)(nil)
