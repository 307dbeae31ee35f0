package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

const (
	DefaultFetchTimeout = 5 * time.Second
	DefaultMaxRetries   = 3
)

var ErrServiceNotConfigured = errors.New("analytics: ANALYTICS_SERVICE_URL is not configured")

// HTTPFetcher calls the external analytics service.
type HTTPFetcher struct {
	BaseURL    string
	Client     *http.Client
	Timeout    time.Duration // per attempt
	MaxRetries int
	Log        *zap.Logger

	// backOff overrides the retry schedule in tests.
	backOff func() backoff.BackOff
}

func NewHTTPFetcher(baseURL string, log *zap.Logger) *HTTPFetcher {
	return &HTTPFetcher{
		BaseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Client:     &http.Client{},
		Timeout:    DefaultFetchTimeout,
		MaxRetries: DefaultMaxRetries,
		Log:        log,
	}
}

// retrySchedule waits min(2^attempt * 100ms, 1s) between attempts.
func retrySchedule() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.Multiplier = 2
	b.MaxInterval = time.Second
	b.RandomizationFactor = 0
	b.Reset()
	return b
}

type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("analytics service returned %d: %s", e.Code, e.Body)
}

func (f *HTTPFetcher) FetchSalesAnalytics(ctx context.Context, req FetchRequest) (Dataset, error) {
	if f.BaseURL == "" {
		return Dataset{}, ErrServiceNotConfigured
	}

	params := req.Query.Values()
	if req.Shop != "" {
		params.Set("shop", req.Shop)
	}
	endpoint := f.BaseURL + "/sales-analytics"
	if enc := params.Encode(); enc != "" {
		endpoint += "?" + enc
	}

	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	retries := f.MaxRetries
	if retries < 0 {
		retries = 0
	}
	schedule := retrySchedule
	if f.backOff != nil {
		schedule = f.backOff
	}

	attempt := 0
	op := func() (Dataset, error) {
		attempt++
		ds, err := f.fetchOnce(ctx, endpoint, timeout)
		if err == nil {
			return ds, nil
		}
		var se *statusError
		if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests {
			return Dataset{}, backoff.Permanent(err)
		}
		if f.Log != nil {
			f.Log.Debug("analytics fetch attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		}
		return Dataset{}, err
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(schedule()),
		backoff.WithMaxTries(uint(retries+1)),
	)
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, endpoint string, timeout time.Duration) (Dataset, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Dataset{}, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Dataset{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return Dataset{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return Dataset{}, &statusError{Code: resp.StatusCode, Body: snippet}
	}

	var envelope struct {
		Dataset *Dataset `json:"dataset"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Dataset{}, backoff.Permanent(fmt.Errorf("decode analytics response: %w", err))
	}
	if envelope.Dataset != nil {
		return *envelope.Dataset, nil
	}

	var ds Dataset
	if err := json.Unmarshal(body, &ds); err != nil {
		return Dataset{}, backoff.Permanent(fmt.Errorf("decode analytics response: %w", err))
	}
	return ds, nil
}
