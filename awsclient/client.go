// Package awsclient issues signed requests to AWS service endpoints
// for the three request shapes the collection engine uses: the
// form-encoded Query API, the JSON-RPC style API, and path-based REST.
package awsclient

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rafaesapata/AWS-EVO-sub014/sigv4"
	"github.com/rafaesapata/AWS-EVO-sub014/telemetry"
)

// DefaultTimeout bounds every outbound call. A timed-out unit is a
// transient failure for that unit only, never for the whole run.
const DefaultTimeout = 30 * time.Second

// APIError is a non-2xx AWS response. The raw body is kept for the
// error classifier, which extracts missing IAM actions from it.
type APIError struct {
	Service    string
	Region     string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("aws %s (%s) returned %d: %s", e.Service, e.Region, e.StatusCode, e.Body)
}

// Client signs and sends AWS requests.
type Client struct {
	http    *http.Client
	baseURL string
	logger  *telemetry.Logger
	now     func() time.Time
}

// New creates a client with the default timeout.
func New() *Client {
	return &Client{
		http:   &http.Client{Timeout: DefaultTimeout},
		logger: telemetry.NewLogger("awsclient"),
		now:    time.Now,
	}
}

// WithBaseURL routes every request to a fixed endpoint. Tests point
// this at an httptest server standing in for AWS.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// WithClock fixes the signing clock.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// Endpoint resolves the service endpoint. CloudFront is a global
// service with a regionless host; everything else follows the
// {service}.{region}.amazonaws.com scheme.
func (c *Client) Endpoint(service, region string) string {
	if c.baseURL != "" {
		return c.baseURL
	}
	if service == "cloudfront" {
		return "https://cloudfront.amazonaws.com"
	}
	return fmt.Sprintf("https://%s.%s.amazonaws.com", service, region)
}

// Query issues a form-encoded Query API call and returns the raw XML.
func (c *Client) Query(ctx context.Context, creds sigv4.Credentials, service, region, action, version string, params map[string]any) (string, error) {
	body := []byte(sigv4.BuildQueryBody(action, version, params))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(service, region)+"/", nil)
	if err != nil {
		return "", fmt.Errorf("build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	out, err := c.do(req, creds, service, region, body)
	return string(out), err
}

// JSONTarget issues an x-amz-json-1.1 call addressed by X-Amz-Target.
// A nil payload sends the empty JSON object.
func (c *Client) JSONTarget(ctx context.Context, creds sigv4.Credentials, service, region, target string, payload any) ([]byte, error) {
	body := []byte("{}")
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", target, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint(service, region)+"/", nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", target, err)
	}
	req.Header.Set("Content-Type", "application/x-amz-json-1.1")
	req.Header.Set("X-Amz-Target", target)

	return c.do(req, creds, service, region, body)
}

// REST issues a path-addressed call. The payload hash header is always
// set; S3 rejects requests without it and other services ignore it.
func (c *Client) REST(ctx context.Context, creds sigv4.Credentials, service, region, method, path string, query url.Values) ([]byte, error) {
	endpoint := c.Endpoint(service, region) + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	req.Header.Set("X-Amz-Content-Sha256", hashHex(nil))

	return c.do(req, creds, service, region, nil)
}

func (c *Client) do(req *http.Request, creds sigv4.Credentials, service, region string, body []byte) ([]byte, error) {
	if _, err := sigv4.Sign(creds, service, region, req, body, c.now()); err != nil {
		return nil, err
	}
	if len(body) > 0 {
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.ContentLength = int64(len(body))
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s (%s): %w", service, region, err)
	}
	defer func() { _ = resp.Body.Close() }()

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", service, err)
	}

	c.logger.Debug().
		Str("service", service).
		Str("region", region).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("aws call")

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			Service:    service,
			Region:     region,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(out)),
		}
	}
	return out, nil
}

func hashHex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
