package notion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"sjsage522/communitysync/helpers"
	"sjsage522/communitysync/logger"
	"sjsage522/communitysync/pkg/errors"
)

const (
	DefaultBaseURL = "https://api.notion.com/v1"
	DefaultVersion = "2022-06-28"

	queryPageSize = 100
)

// ClientOptions configures a Client
type ClientOptions struct {
	BaseURL string
	Token   string
	Version string
	Timeout time.Duration
	Retry   helpers.RetryPolicy
}

// Client talks to the Notion REST API
type Client struct {
	http  *resty.Client
	retry helpers.RetryPolicy
	log   *logger.Logger
}

// NewClient creates a client authenticated with the integration token
func NewClient(opts ClientOptions) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	version := opts.Version
	if version == "" {
		version = DefaultVersion
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetAuthToken(opts.Token)
	client.SetHeader("Notion-Version", version)
	client.SetHeader("Content-Type", "application/json")
	client.SetTimeout(timeout)

	return &Client{
		http:  client,
		retry: opts.Retry,
		log:   logger.ForUploader().WithField("base_url", baseURL),
	}
}

// CreatePage adds a row with the given properties to a database.
// Only rate-limited calls are sent again: the API has no idempotency key,
// so a create that failed in transit or with a 5xx may already exist.
func (c *Client) CreatePage(ctx context.Context, databaseID string, props Properties) (*Page, error) {
	body := createPageRequest{
		Parent:     parent{DatabaseID: databaseID},
		Properties: props,
	}

	var page Page
	policy := c.retry
	policy.Retryable = errors.IsRateLimit
	if err := c.post(ctx, policy, "CreatePage", "/pages", nil, body, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// QueryDatabase returns every row of a database, following pagination cursors
func (c *Client) QueryDatabase(ctx context.Context, databaseID string) ([]Page, error) {
	var pages []Page
	cursor := ""
	for {
		var res queryResponse
		params := map[string]string{"database_id": databaseID}
		req := queryRequest{StartCursor: cursor, PageSize: queryPageSize}
		if err := c.post(ctx, c.retry, "QueryDatabase", "/databases/{database_id}/query", params, req, &res); err != nil {
			return pages, err
		}
		pages = append(pages, res.Results...)

		if !res.HasMore || res.NextCursor == nil || *res.NextCursor == "" {
			break
		}
		cursor = *res.NextCursor
		c.log.Debug().Str("database", databaseID).Int("rows", len(pages)).Msg("Fetching next result page")
	}
	return pages, nil
}

func (c *Client) post(ctx context.Context, policy helpers.RetryPolicy, source, path string, params map[string]string, body, out any) error {
	return helpers.Retry(ctx, policy, func() error {
		res, err := c.http.R().
			SetContext(ctx).
			SetPathParams(params).
			SetBody(body).
			Post(path)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.NewNetwork(source, "request failed", err)
		}

		if res.IsError() {
			return classify(source, res)
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(res.Body(), out); err != nil {
			return errors.NewParsing(source, "failed to decode response", err)
		}
		return nil
	})
}

// classify turns a non-2xx response into a PipelineError carrying the API's error code
func classify(source string, res *resty.Response) error {
	status := res.StatusCode()
	message := http.StatusText(status)

	var body apiError
	if err := json.Unmarshal(res.Body(), &body); err == nil && body.Message != "" {
		message = fmt.Sprintf("%s: %s", body.Code, body.Message)
	}

	retryAfter := helpers.ParseRetryAfter(res.Header().Get("Retry-After"))
	return errors.FromStatus(source, status, message, retryAfter)
}
