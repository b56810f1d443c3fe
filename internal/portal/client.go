package portal

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/seclytics/sirsync/internal/credential"
	"github.com/seclytics/sirsync/internal/pipeline"
)

// The portal refuses anything below TLS 1.2.
const minTLSVersion = tls.VersionTLS12

const defaultTimeout = 30 * time.Second

// bodyLogLimit caps how much response body ends up in logs and results.
const bodyLogLimit = 2048

type Option func(*Client)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithBundle attaches the mTLS client credential. Without it the client
// connects with no client certificate, which non-mTLS endpoints accept.
func WithBundle(bundle *credential.Bundle) Option {
	return func(c *Client) {
		c.bundle = bundle
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithInsecureSkipVerify disables certificate and hostname verification.
// Meant for lab endpoints with self-signed certificates only.
func WithInsecureSkipVerify(skip bool) Option {
	return func(c *Client) {
		c.skipVerify = skip
	}
}

// WithHTTPClient overrides the session, used by tests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client owns the HTTP session to the incident portal: one token
// authentication endpoint and one item submission endpoint. It is not safe
// for concurrent use; runs are strictly sequential by design.
type Client struct {
	authURL      string
	itemURL      string
	clientID     string
	clientSecret string

	bundle     *credential.Bundle
	skipVerify bool
	timeout    time.Duration

	httpClient *http.Client
	token      string
	logger     *zap.Logger
}

func New(authURL, itemURL, clientID, clientSecret string, opts ...Option) (*Client, error) {
	if itemURL == "" {
		return nil, errors.New("portal: item URL is required")
	}
	if authURL == "" {
		return nil, errors.New("portal: auth URL is required")
	}

	c := &Client{
		authURL:      authURL,
		itemURL:      itemURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		timeout:      defaultTimeout,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		tlsConfig := &tls.Config{
			MinVersion:         minTLSVersion,
			InsecureSkipVerify: c.skipVerify,
		}
		if c.bundle != nil {
			tlsConfig.Certificates = []tls.Certificate{c.bundle.Certificate()}
		}
		c.httpClient = &http.Client{
			Timeout: c.timeout,
			Transport: &http.Transport{
				TLSClientConfig: tlsConfig,
			},
		}
	}

	if c.skipVerify {
		c.logger.Warn("TLS verification disabled for portal session")
	}

	return c, nil
}

// Authenticate exchanges the client credential for a bearer token and
// attaches it to the session. Ordinary HTTP failures are logged and reported
// as false, never raised.
func (c *Client) Authenticate(ctx context.Context) bool {
	body, err := json.Marshal(map[string]string{
		"clientId":     c.clientID,
		"clientSecret": c.clientSecret,
	})
	if err != nil {
		c.logger.Error("marshaling auth request", zap.Error(err))
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, bytes.NewReader(body))
	if err != nil {
		c.logger.Error("building auth request", zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("auth request failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, bodyLogLimit))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("auth rejected",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", respBody),
		)
		return false
	}

	c.token = parseToken(respBody)
	c.logger.Info("authenticated to portal", zap.String("auth_url", c.authURL))
	return true
}

// parseToken interprets a 2xx auth response: a bare string is the token, an
// object with token or access_token uses that field, anything else is used
// whole.
func parseToken(body []byte) string {
	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return s
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err == nil {
		if tok, ok := obj["token"].(string); ok {
			return tok
		}
		if tok, ok := obj["access_token"].(string); ok {
			return tok
		}
	}

	return string(body)
}

// Send submits one record to the item endpoint. A network-level failure is
// reported as status 0 with the error text as the body.
func (c *Client) Send(ctx context.Context, record pipeline.TransformedRecord) Result {
	body, err := json.Marshal(record)
	if err != nil {
		return Result{StatusCode: 0, Body: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.itemURL, bytes.NewReader(body))
	if err != nil {
		return Result{StatusCode: 0, Body: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{StatusCode: 0, Body: err.Error()}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, bodyLogLimit))
	result := Result{StatusCode: resp.StatusCode, Body: string(respBody)}

	c.logger.Debug("record sent",
		zap.String("tenant_item_id", record.TenantItemID),
		zap.Int("status", result.StatusCode),
		zap.String("outcome", string(result.Outcome())),
	)

	return result
}

// SendMany delivers records one at a time, in order, with no batching and no
// retry. The returned map has one entry per distinct tenant item id; a
// duplicate id overwrites the earlier result. A 401 invalidates the session
// token and triggers re-authentication for the records that follow; the 401
// record itself is not resent.
func (c *Client) SendMany(ctx context.Context, records []pipeline.TransformedRecord) (map[string]Result, Summary) {
	results := make(map[string]Result, len(records))
	var summary Summary

	if c.token == "" && !c.Authenticate(ctx) {
		c.logger.Error("no token, cannot deliver this run",
			zap.Int("records", len(records)),
		)
		for _, rec := range records {
			results[rec.TenantItemID] = Result{StatusCode: 0, Body: "authentication failed"}
			summary.Sent++
			summary.Failed++
		}
		return results, summary
	}

	for _, rec := range records {
		result := c.Send(ctx, rec)
		results[rec.TenantItemID] = result

		summary.Sent++
		if result.Delivered() {
			summary.Success++
		} else {
			summary.Failed++
			c.logger.Warn("delivery failed",
				zap.String("tenant_item_id", rec.TenantItemID),
				zap.Int("status", result.StatusCode),
				zap.String("outcome", string(result.Outcome())),
				zap.String("body", truncate(result.Body, 256)),
			)
		}

		if result.StatusCode == http.StatusUnauthorized {
			c.token = ""
			c.Authenticate(ctx)
		}
	}

	c.logger.Info("batch delivered",
		zap.Int("sent", summary.Sent),
		zap.Int("success", summary.Success),
		zap.Int("failed", summary.Failed),
	)

	return results, summary
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s... (%d bytes)", s[:n], len(s))
}
