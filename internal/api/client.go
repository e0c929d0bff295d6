package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/medbook/internal/observability/metrics"
	"github.com/wolfman30/medbook/pkg/logging"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseSize = 2 * 1024 * 1024
)

// Config configures Client and TokenClient.
type Config struct {
	// BaseURL is the API root including the version prefix,
	// e.g. https://booking.example.com/api/v1.
	BaseURL string
	Timeout time.Duration
	// Tokens supplies and refreshes bearer tokens. Required by NewClient,
	// ignored by NewTokenClient.
	Tokens TokenSource
	// Transport is the underlying round tripper; defaults to
	// http.DefaultTransport.
	Transport http.RoundTripper
	Logger    *logging.Logger
	Metrics   *metrics.ClientMetrics
	Tracer    trace.Tracer
}

// Client calls authenticated backend endpoints. Every request passes through
// the token refresh pipeline before it is dispatched.
type Client struct {
	requester
}

// NewClient builds an authenticated client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Tokens == nil {
		return nil, errors.New("api: token source is required")
	}
	r, err := newRequester(cfg)
	if err != nil {
		return nil, err
	}
	r.httpClient.Transport = &authTransport{
		base:    r.httpClient.Transport,
		tokens:  cfg.Tokens,
		expired: isTokenExpired,
		logger:  r.logger,
	}
	return &Client{requester: r}, nil
}

// requester holds the plumbing shared by Client and TokenClient.
type requester struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
	metrics    *metrics.ClientMetrics
	tracer     trace.Tracer
}

func newRequester(cfg Config) (requester, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return requester{}, errors.New("api: base url is required")
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return requester{}, fmt.Errorf("api: parse base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return requester{}, fmt.Errorf("api: invalid base url: %s", base)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("medbook.internal.api")
	}

	return requester{
		baseURL: strings.TrimRight(base, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger:  logger,
		metrics: cfg.Metrics,
		tracer:  tracer,
	}, nil
}

// doJSON sends body (if any) as JSON and decodes the response into out.
// route is the path template used for metrics and spans.
func (r *requester) doJSON(ctx context.Context, op, method, route, path string, body, out any) error {
	ctx, span := r.tracer.Start(ctx, "api."+op)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
	)

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("api: %s: marshal request: %w", op, err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, bodyReader)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("api: %s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.metrics.ObserveRequest(method, route, 0, time.Since(start).Seconds())
		span.RecordError(err)
		if errors.Is(err, ErrSessionExpired) {
			return fmt.Errorf("api: %s: %w", op, ErrSessionExpired)
		}
		return fmt.Errorf("api: %s: http request: %w", op, err)
	}
	defer resp.Body.Close()
	r.metrics.ObserveRequest(method, route, resp.StatusCode, time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("api: %s: read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := newAPIError(op, resp.StatusCode, respBody)
		r.logger.Warn("backend API non-2xx response",
			"op", op,
			"status", resp.StatusCode,
			"route", route,
			"request_id", reqID,
			"message", apiErr.Message,
		)
		span.RecordError(apiErr)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := decodeBody(respBody, out); err != nil {
		span.RecordError(err)
		return fmt.Errorf("api: %s: decode response: %w", op, err)
	}
	return nil
}

// decodeBody accepts both bare payloads and {"data": ...} envelopes.
func decodeBody(body []byte, out any) error {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		data := bytes.TrimSpace(envelope.Data)
		if len(data) > 0 && !bytes.Equal(data, []byte("null")) {
			return json.Unmarshal(data, out)
		}
	}
	return json.Unmarshal(body, out)
}

func escape(id string) string {
	return url.PathEscape(strings.TrimSpace(id))
}
