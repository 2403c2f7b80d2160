package pagerduty

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/oshokin/pager-light/internal/logger"
)

const (
	// DefaultBaseURL is the public PagerDuty REST API endpoint.
	DefaultBaseURL = "https://api.pagerduty.com"

	// acceptHeader selects version 2 of the REST API.
	acceptHeader = "application/vnd.pagerduty+json;version=2"

	incidentsPath  = "/incidents"
	userIDsParam   = "user_ids[]"
	statusTrigger  = "triggered"
	timeZoneFilter = "UTC"
)

var (
	// ErrAPIKeyRequired is returned when the client is built without a key.
	ErrAPIKeyRequired = errors.New("api key must be provided")
	// ErrUnexpectedStatus is returned for non-2xx responses.
	ErrUnexpectedStatus = errors.New("unexpected response status")
)

// Client queries the incidents endpoint.
type Client struct {
	// http is the resty client preconfigured with base URL and auth headers.
	http *resty.Client
}

// Option configures the client.
type Option func(*resty.Client)

// WithBaseURL points the client at another API endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *resty.Client) {
		if baseURL != "" {
			c.SetBaseURL(baseURL)
		}
	}
}

// WithTimeout bounds every request.
func WithTimeout(timeout time.Duration) Option {
	return func(c *resty.Client) {
		if timeout > 0 {
			c.SetTimeout(timeout)
		}
	}
}

// NewClient creates a client authenticating with apiKey.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}

	httpClient := resty.New().
		SetBaseURL(DefaultBaseURL).
		SetHeader("Authorization", "Token token="+apiKey).
		SetHeader("Accept", acceptHeader)

	for _, opt := range opts {
		opt(httpClient)
	}

	return &Client{http: httpClient}, nil
}

// incidentsResponse is the part of the list response the client reads.
type incidentsResponse struct {
	Incidents []incident `json:"incidents"`
	// Total is null unless total=true was requested.
	Total *int `json:"total"`
	More  bool `json:"more"`
}

// incident is the subset of incident fields logged at debug level.
type incident struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
}

// TriggeredCount returns how many triggered incidents match, optionally narrowed to userIDs.
func (c *Client) TriggeredCount(ctx context.Context, userIDs []string) (int, error) {
	query := url.Values{}
	query.Set("time_zone", timeZoneFilter)
	query.Set("statuses[]", statusTrigger)
	query.Set("status", statusTrigger)
	query.Set("total", "true")

	for _, id := range userIDs {
		query.Add(userIDsParam, id)
	}

	logger.DebugKV(ctx, "Fetching PagerDuty incidents", "user_ids", userIDs)

	var body incidentsResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParamsFromValues(query).
		SetResult(&body).
		Get(incidentsPath)
	if err != nil {
		return 0, fmt.Errorf("request incidents: %w", err)
	}

	if resp.IsError() {
		return 0, fmt.Errorf("request incidents: %w: %s: %s", ErrUnexpectedStatus, resp.Status(), resp.String())
	}

	for _, inc := range body.Incidents {
		logger.DebugKV(ctx, "Triggered incident", "id", inc.ID, "title", inc.Title, "status", inc.Status)
	}

	if body.Total != nil {
		return *body.Total, nil
	}

	return len(body.Incidents), nil
}
