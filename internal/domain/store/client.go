package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/time/rate"

	"github.com/arcadia-launcher/arcadia/backend/internal/infrastructure/resilience"
	"github.com/arcadia-launcher/arcadia/backend/internal/shared/types"
)

var errInvalidBaseURL = errors.New("base URL must be an absolute http(s) URL")

// Catalog is the remote surface of one store source: a paged listing
// endpoint, a details endpoint, and raw fetches for manifests and
// packages. Sources are treated as slow, unavailable, or malicious.
type Catalog interface {
	List(ctx context.Context, source types.StoreSource) ([]types.StoreExtension, error)
	Details(ctx context.Context, source types.StoreSource, extID string) (*types.StoreExtensionDetails, error)
	Fetch(ctx context.Context, sourceID, url string) ([]byte, error)
}

// Client talks to store sources over HTTP with retries, per-source
// circuit breakers, and a shared rate limit.
type Client struct {
	resty    *resty.Client
	limiter  *rate.Limiter
	sanitize *bluemonday.Policy

	mu       sync.Mutex
	breakers map[string]*resilience.Breaker
}

// NewClient builds the catalog client
func NewClient(timeout time.Duration) *Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = nil

	restyClient := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", "Arcadia-Store/1.0").
		SetHeader("Accept", "application/json")
	restyClient.SetTransport(retryClient.HTTPClient.Transport)

	return &Client{
		resty:    restyClient,
		limiter:  rate.NewLimiter(rate.Limit(20), 40),
		sanitize: bluemonday.UGCPolicy(),
		breakers: make(map[string]*resilience.Breaker),
	}
}

// List fetches a source's full catalog listing
func (c *Client) List(ctx context.Context, source types.StoreSource) ([]types.StoreExtension, error) {
	url := source.BaseURL + "/extensions"

	var entries []types.StoreExtension
	resp, err := c.do(ctx, source.ID, func(req *resty.Request) (*resty.Response, error) {
		return req.SetResult(&entries).Get(url)
	})
	if err != nil {
		return nil, &types.NetworkError{SourceID: source.ID, URL: url, Err: err}
	}
	if resp.IsError() {
		return nil, &types.NetworkError{
			SourceID: source.ID,
			URL:      url,
			Err:      fmt.Errorf("status %d", resp.StatusCode()),
		}
	}

	for i := range entries {
		entries[i].SourceID = source.ID
	}
	return entries, nil
}

// Details fetches the extended record for one catalog entry. Readme
// HTML is sanitized before it leaves this package.
func (c *Client) Details(ctx context.Context, source types.StoreSource, extID string) (*types.StoreExtensionDetails, error) {
	url := source.BaseURL + "/extensions/" + extID

	var details types.StoreExtensionDetails
	resp, err := c.do(ctx, source.ID, func(req *resty.Request) (*resty.Response, error) {
		return req.SetResult(&details).Get(url)
	})
	if err != nil {
		return nil, &types.NetworkError{SourceID: source.ID, URL: url, Err: err}
	}
	if resp.StatusCode() == 404 {
		return nil, &types.NotFoundError{Kind: "store_extension", ID: extID}
	}
	if resp.IsError() {
		return nil, &types.NetworkError{
			SourceID: source.ID,
			URL:      url,
			Err:      fmt.Errorf("status %d", resp.StatusCode()),
		}
	}

	details.SourceID = source.ID
	details.Readme = c.sanitize.Sanitize(details.Readme)
	return &details, nil
}

// Fetch downloads raw bytes (a manifest or a package) from a source URL
func (c *Client) Fetch(ctx context.Context, sourceID, url string) ([]byte, error) {
	resp, err := c.do(ctx, sourceID, func(req *resty.Request) (*resty.Response, error) {
		return req.Get(url)
	})
	if err != nil {
		return nil, &types.NetworkError{SourceID: sourceID, URL: url, Err: err}
	}
	if resp.IsError() {
		return nil, &types.NetworkError{
			SourceID: sourceID,
			URL:      url,
			Err:      fmt.Errorf("status %d", resp.StatusCode()),
		}
	}
	return resp.Body(), nil
}

func (c *Client) do(ctx context.Context, sourceID string, fn func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := c.breakerFor(sourceID).Execute(func() (interface{}, error) {
		resp, err := fn(c.resty.R().SetContext(ctx))
		if err != nil {
			return nil, err
		}
		// 5xx counts against the breaker; 4xx is the source answering
		if resp.StatusCode() >= 500 {
			return resp, fmt.Errorf("status %d", resp.StatusCode())
		}
		return resp, nil
	})
	if err != nil {
		if resp, ok := result.(*resty.Response); ok {
			return resp, err
		}
		return nil, err
	}
	return result.(*resty.Response), nil
}

// breakerFor returns the per-source circuit breaker, creating it on
// first use. One flaky source must not open the circuit for the rest.
func (c *Client) breakerFor(sourceID string) *resilience.Breaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.breakers[sourceID]
	if !ok {
		b = resilience.New("store-"+sourceID, resilience.Settings{
			MaxRequests: 3,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts resilience.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		})
		c.breakers[sourceID] = b
	}
	return b
}

// VerifyChecksum compares the sha256 of data against the expected hex
// digest from the details record.
func VerifyChecksum(data []byte, expected string) error {
	sum := sha256.Sum256(data)
	actual := hex.EncodeToString(sum[:])
	// Hex digests compare case-insensitively; sources publish both casings
	if !strings.EqualFold(actual, expected) {
		return &types.ChecksumError{Expected: expected, Actual: actual}
	}
	return nil
}
