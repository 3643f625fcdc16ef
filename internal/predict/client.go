package predict

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"moodwave/pkg/logger"
	"moodwave/pkg/model"
	"moodwave/pkg/resilience"

	"go.uber.org/zap"
)

const PredictPath = "/predict"

type Client struct {
	endpoint string
	client   *http.Client
	breaker  *resilience.CircuitBreaker
	limiter  *resilience.RateLimiter
}

type Option func(*Client)

// WithTimeout bounds each predict call. Zero keeps calls unbounded.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = timeout
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithCircuitBreaker makes the client fail fast while the API keeps failing.
// Only failures without an API answer count: a 4xx or any response carrying
// a detail is the API working and is always passed through to the caller.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = cb.WithFailurePredicate(countsAsOutage)
	}
}

func countsAsOutage(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return !apiErr.ClientError() && apiErr.Detail == ""
	}
	return true
}

// WithRateLimiter paces outbound calls to the API
func WithRateLimiter(rl *resilience.RateLimiter) Option {
	return func(c *Client) {
		c.limiter = rl
	}
}

// NewClient creates a predict API client for baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		endpoint: strings.TrimRight(baseURL, "/") + PredictPath,
		client:   &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the full predict URL
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Predict uploads file and returns the classification
func (c *Client) Predict(ctx context.Context, file *model.AudioFile) (*model.Result, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("failed to wait for rate limiter: %w", err)
		}
	}

	if c.breaker == nil {
		return c.predict(ctx, file)
	}

	var result *model.Result
	err := c.breaker.Execute(func() error {
		var err error
		result, err = c.predict(ctx, file)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		logger.Warn("Predict API circuit open, failing fast", zap.String("endpoint", c.endpoint))
	}
	return result, err
}

func (c *Client) predict(ctx context.Context, file *model.AudioFile) (*model.Result, error) {
	body, contentType, err := encodeFile(file)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	logger.Debug("Sending predict request",
		zap.String("endpoint", c.endpoint),
		zap.String("file_name", file.Name),
		zap.Int64("file_size", file.Size))

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			Detail:     detailText(respBody),
		}
		logger.Warn("Predict request rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("detail", apiErr.Detail))
		return nil, apiErr
	}

	var result model.Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	logger.Info("Predict request completed",
		zap.String("emotion", result.Emotion),
		zap.Float64("confidence", result.Confidence),
		zap.Duration("elapsed", time.Since(start)))

	return &result, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encodeFile builds a multipart body with file as its only part. The part
// carries the file's declared MIME type.
func encodeFile(file *model.AudioFile) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		FileField, quoteEscaper.Replace(file.Name)))
	h.Set("Content-Type", contentType)

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create form part: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write form part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}
