package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/time/rate"
)

// APIError is returned when the vision service answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("classifier: %d %s", e.StatusCode, e.Message)
}

// IsRateLimited reports whether err is a 429 from the vision service.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// HTTPClassifier sends images to a remote vision endpoint.
//
// The endpoint receives a JPEG body at POST {baseURL}/v1/classify and
// answers with {"labels": [{"identifier": "cat", "confidence": 0.93}]}.
type HTTPClassifier struct {
	baseURL     string
	token       string
	httpClient  *http.Client
	limiter     *rate.Limiter
	jpegQuality int
}

// HTTPOption configures an HTTPClassifier.
type HTTPOption func(*HTTPClassifier)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClassifier) {
		h.httpClient = c
	}
}

// WithToken sets the bearer token sent with each request.
func WithToken(token string) HTTPOption {
	return func(h *HTTPClassifier) {
		h.token = token
	}
}

// WithRateLimit caps requests per second; rps <= 0 disables limiting.
func WithRateLimit(rps float64, burst int) HTTPOption {
	return func(h *HTTPClassifier) {
		if rps <= 0 {
			h.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// NewHTTPClassifier creates a classifier for the service at baseURL.
func NewHTTPClassifier(baseURL string, opts ...HTTPOption) *HTTPClassifier {
	h := &HTTPClassifier{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		jpegQuality: 85,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type classifyResponse struct {
	Labels []Label `json:"labels"`
}

// Classify implements Classifier.
func (h *HTTPClassifier) Classify(ctx context.Context, img image.Image) (Result, error) {
	if img == nil {
		return Result{}, errors.New("classifier: nil image")
	}

	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return Result{}, fmt.Errorf("classifier: rate limit wait: %w", err)
		}
	}

	var body bytes.Buffer
	if err := imaging.Encode(&body, img, imaging.JPEG, imaging.JPEGQuality(h.jpegQuality)); err != nil {
		return Result{}, fmt.Errorf("classifier: encode image: %w", err)
	}

	endpoint, err := url.JoinPath(h.baseURL, "v1", "classify")
	if err != nil {
		return Result{}, fmt.Errorf("classifier: invalid base URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return Result{}, fmt.Errorf("classifier: create request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")
	req.Header.Set("Accept", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("classifier: do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, fmt.Errorf("classifier: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(data)),
		}
	}

	var decoded classifyResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return Result{}, fmt.Errorf("classifier: decode response: %w", err)
	}

	return BestLabel(decoded.Labels), nil
}
