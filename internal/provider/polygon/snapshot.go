package polygon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"optionsdata/internal/contract"
	"optionsdata/internal/httpx"
	"optionsdata/internal/metrics"
	"optionsdata/internal/provider"
)

// Fetch requests a snapshot for every contract concurrently. A 404 or an
// empty payload becomes an inline NOT_FOUND / NO_DATA record; any other
// upstream failure aborts the batch and is returned.
func (c *Client) Fetch(ctx context.Context, contracts []string) (*provider.Batch, error) {
	if IsPlaceholderKey(c.apiKey) {
		return nil, ErrMissingCredential
	}

	quotes := make([]provider.Quote, len(contracts))
	g, gctx := errgroup.WithContext(ctx)
	if c.maxConcurrency > 0 {
		g.SetLimit(c.maxConcurrency)
	}
	for i, id := range contracts {
		g.Go(func() error {
			q, err := c.fetchOne(gctx, id)
			if err != nil {
				return err
			}
			quotes[i] = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return provider.Partition(quotes, Source, c.now().UTC()), nil
}

func (c *Client) snapshotURL(id string) string {
	query := url.Values{}
	query.Set("ticker.any_of", contract.ProviderTicker(id))
	query.Set("apiKey", c.apiKey)
	return fmt.Sprintf("%s/v3/snapshot?%s", c.baseURL, query.Encode())
}

func (c *Client) fetchOne(ctx context.Context, id string) (provider.Quote, error) {
	parsed := contract.Parse(id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.snapshotURL(id), http.NoBody)
	if err != nil {
		return provider.Quote{}, fmt.Errorf("creating request for %s: %w", id, err)
	}
	req.Header = c.header.Clone()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", httpx.DefaultUserAgent)
	}

	logger := log.WithFields(log.Fields{"provider": c.Name(), "contract": id})
	logger.WithField("url", httpx.RedactURL(req.URL)).Debug("requesting option snapshot")

	start := time.Now()
	res, err := c.httpClient.Do(req)
	metrics.ProviderLatency.WithLabelValues(c.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderRequests.WithLabelValues(c.Name(), "error").Inc()
		return provider.Quote{}, fmt.Errorf("polygon: request for %s: %w", id, c.scrub(err))
	}
	defer res.Body.Close()

	logger.WithFields(log.Fields{
		"status":  res.StatusCode,
		"elapsed": time.Since(start),
	}).Debug("option snapshot response")

	now := c.now().UTC()

	switch {
	case res.StatusCode == http.StatusNotFound:
		metrics.ProviderRequests.WithLabelValues(c.Name(), "not_found").Inc()
		return provider.Placeholder(parsed, provider.StatusNotFound, "contract not found", now), nil

	case res.StatusCode < 200 || res.StatusCode >= 300:
		metrics.ProviderRequests.WithLabelValues(c.Name(), "error").Inc()
		b, _ := io.ReadAll(io.LimitReader(res.Body, 2<<10))
		return provider.Quote{}, &StatusError{
			Contract:   id,
			StatusCode: res.StatusCode,
			Body:       httpx.Redact(strings.TrimSpace(string(b)), c.apiKey),
		}
	}

	var body snapshotResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		metrics.ProviderRequests.WithLabelValues(c.Name(), "error").Inc()
		return provider.Quote{}, fmt.Errorf("polygon: decoding %s: %w", id, err)
	}

	if len(body.Results) == 0 {
		metrics.ProviderRequests.WithLabelValues(c.Name(), "no_data").Inc()
		return provider.Placeholder(parsed, provider.StatusNoData, "no data returned", now), nil
	}

	r := body.Results[0]
	if r.Error != "" {
		status, outcome := provider.StatusNoData, "no_data"
		if strings.EqualFold(r.Error, "NOT_FOUND") {
			status, outcome = provider.StatusNotFound, "not_found"
		}
		metrics.ProviderRequests.WithLabelValues(c.Name(), outcome).Inc()
		msg := r.Message
		if msg == "" {
			msg = r.Error
		}
		return provider.Placeholder(parsed, status, msg, now), nil
	}

	metrics.ProviderRequests.WithLabelValues(c.Name(), "success").Inc()
	return r.normalize(parsed, now), nil
}

// scrub drops the request URL, which carries the API key, from transport
// errors while keeping the underlying cause for errors.Is.
func (c *Client) scrub(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		u := httpx.Redact(ue.URL, url.QueryEscape(c.apiKey))
		return &url.Error{Op: ue.Op, URL: httpx.Redact(u, c.apiKey), Err: ue.Err}
	}
	return err
}
