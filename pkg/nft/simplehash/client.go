package simplehash

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	xrate "golang.org/x/time/rate"

	"github.com/code-payments/wallet-server/pkg/metrics"
	"github.com/code-payments/wallet-server/pkg/rate"
	"github.com/code-payments/wallet-server/pkg/retry"
	"github.com/code-payments/wallet-server/pkg/retry/backoff"
)

const (
	metricsStructName = "nft.simplehash.client"

	maxResponseSize = 16 << 20
)

var (
	ErrParseFailure                 = errors.New("simplehash: malformed response")
	ErrMutuallyExclusiveSpamFilters = errors.New("simplehash: skip spam and only spam are mutually exclusive")
	ErrUnsupportedCoin              = errors.New("simplehash: unsupported coin type")
	ErrPaginationLimitExceeded      = errors.New("simplehash: pagination limit exceeded")
)

// statusError is returned for non-2xx responses.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return "received non-2xx status code: " + strconv.Itoa(e.code)
}

func (e *statusError) StatusCode() int {
	return e.code
}

// Client talks to a SimpleHash compatible NFT indexer. Fetch failures are
// logged and degrade to empty results.
type Client struct {
	log  *logrus.Entry
	conf *conf

	baseUrl    string
	httpClient *http.Client
	limiter    rate.Limiter
	collectors *metrics.Collectors

	retryBaseDelay time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithCollectors records request metrics on the provided collectors.
func WithCollectors(collectors *metrics.Collectors) Option {
	return func(c *Client) {
		c.collectors = collectors
	}
}

// NewClient returns a new indexer client.
func NewClient(configProvider ConfigProvider, opts ...Option) *Client {
	ctx := context.Background()
	conf := configProvider()

	c := &Client{
		log:        logrus.StandardLogger().WithField("type", "nft/simplehash/client"),
		conf:       conf,
		baseUrl:    conf.baseUrl.Get(ctx),
		limiter:    rate.NewLocalRateLimiter(xrate.Limit(conf.requestsPerSecond.Get(ctx))),
		httpClient: &http.Client{Timeout: conf.requestTimeout.Get(ctx)},

		retryBaseDelay: 250 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// get issues a rate limited GET against the indexer, retrying on rate limit
// and server errors, and returns the body of a 2xx response.
func (c *Client) get(ctx context.Context, endpoint, rawUrl string) ([]byte, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, endpoint)
	defer tracer.End()

	body, err := c.doGet(ctx, rawUrl)
	c.collectors.RecordIndexerRequest(endpoint, err)
	if err != nil {
		tracer.OnError(err)
		return nil, err
	}
	return body, nil
}

func (c *Client) doGet(ctx context.Context, rawUrl string) ([]byte, error) {
	parsed, err := url.Parse(rawUrl)
	if err != nil {
		return nil, errors.Wrap(err, "invalid url")
	}

	if err := c.limiter.Wait(ctx, parsed.Host); err != nil {
		return nil, errors.Wrap(err, "rate limiter")
	}

	body, _, err := retry.Value(
		func() ([]byte, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawUrl, http.NoBody)
			if err != nil {
				return nil, errors.Wrap(err, "failed to create request")
			}
			req.Header.Set("Accept", "application/json")

			resp, err := c.httpClient.Do(req)
			if err != nil {
				return nil, errors.Wrap(err, "failed to make request")
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return nil, &statusError{code: resp.StatusCode}
			}

			body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
			if err != nil {
				return nil, errors.Wrap(err, "failed to read response")
			}
			return body, nil
		},
		retry.RetriableStatusCodes(
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		),
		retry.Limit(3),
		retry.Context(ctx),
		retry.BackoffWithJitter(backoff.BinaryExponential(c.retryBaseDelay), 2*time.Second, 0.1),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}
