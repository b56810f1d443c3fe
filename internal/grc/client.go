// Package grc is the thin client for the record-management system the
// incident reports originate from. The syncer only depends on its
// FetchRecordsSince contract; everything interesting happens downstream.
package grc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/seclytics/sirsync/internal/pipeline"
)

const defaultTimeout = 30 * time.Second

const defaultPageSize = 250

type Option func(*Client)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithPageSize(size int) Option {
	return func(c *Client) {
		c.pageSize = size
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client fetches incident reports over the record-management REST API.
type Client struct {
	baseURL  string
	apiToken string
	pageSize int
	timeout  time.Duration

	httpClient *http.Client
	logger     *zap.Logger
}

func New(baseURL, apiToken string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("grc: base URL is required")
	}

	c := &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		pageSize: defaultPageSize,
		timeout:  defaultTimeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}

	return c, nil
}

type searchRequest struct {
	IncidentIDGreaterThan int64 `json:"incidentIdGreaterThan"`
	Page                  int   `json:"page"`
	PageSize              int   `json:"pageSize"`
}

type searchResponse struct {
	Records []pipeline.RawRecord `json:"records"`
}

// FetchRecordsSince returns every report with an incident id strictly
// greater than sinceID, paging through the search endpoint until a short
// page. The result is the authoritative "new since cursor" set for one
// report category; ordering is not re-validated here.
func (c *Client) FetchRecordsSince(ctx context.Context, sinceID int64) ([]pipeline.RawRecord, error) {
	var records []pipeline.RawRecord

	for page := 1; ; page++ {
		batch, err := c.search(ctx, searchRequest{
			IncidentIDGreaterThan: sinceID,
			Page:                  page,
			PageSize:              c.pageSize,
		})
		if err != nil {
			return nil, err
		}

		records = append(records, batch...)
		if len(batch) < c.pageSize {
			break
		}
	}

	c.logger.Info("fetched records",
		zap.Int64("since_incident_id", sinceID),
		zap.Int("count", len(records)),
	)

	return records, nil
}

func (c *Client) search(ctx context.Context, sreq searchRequest) ([]pipeline.RawRecord, error) {
	body, err := json.Marshal(sreq)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/records/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Token "+c.apiToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("grc search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("grc search: status %d", resp.StatusCode)
	}

	var sresp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sresp); err != nil {
		return nil, fmt.Errorf("grc search: decoding response: %w", err)
	}

	return sresp.Records, nil
}
