// Package optionsdata serves option-chain quotes to the dashboard:
// validate the contract list, serve a fresh cached batch when there is one,
// otherwise fetch from the provider and cache the result.
package optionsdata

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/schema"
	log "github.com/sirupsen/logrus"

	"optionsdata/internal/aggregate"
	"optionsdata/internal/httpx"
	"optionsdata/internal/provider"
	"optionsdata/internal/provider/cache"
)

// Example is returned with usage errors.
const Example = "/options-data?contracts=SPY240315C00450000,AAPL240315P00180000"

// MaxContracts caps one request.
const MaxContracts = 100

// Response is the success-path payload.
type Response struct {
	Success   bool             `json:"success"`
	Data      []provider.Quote `json:"data"`
	Errors    []provider.Quote `json:"errors"`
	Source    string           `json:"source"`
	Timestamp time.Time        `json:"timestamp"`
	Cached    bool             `json:"cached"`
}

// SummaryResponse wraps a chain summary.
type SummaryResponse struct {
	Success   bool              `json:"success"`
	Summary   aggregate.Summary `json:"summary"`
	Source    string            `json:"source"`
	Timestamp time.Time         `json:"timestamp"`
	Cached    bool              `json:"cached"`
}

// ErrorResponse is the failure payload. It never carries credentials.
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error"`
	Example   string    `json:"example,omitempty"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type query struct {
	Contracts string `schema:"contracts"`
}

type Handler struct {
	provider provider.Provider
	cache    *cache.QuoteCache
	decoder  *schema.Decoder
	now      func() time.Time
}

func NewHandler(p provider.Provider, c *cache.QuoteCache) *Handler {
	dec := schema.NewDecoder()
	dec.IgnoreUnknownKeys(true)
	return &Handler{provider: p, cache: c, decoder: dec, now: time.Now}
}

// SplitContracts splits a comma-separated list, trimming whitespace and
// dropping empty tokens.
func SplitContracts(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ServeHTTP handles GET /options-data.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	batch, cached, ok := h.load(w, r)
	if !ok {
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      batch.Data,
		Errors:    batch.Errors,
		Source:    batch.Source,
		Timestamp: batch.Timestamp,
		Cached:    cached,
	})
}

// ServeSummary handles GET /options-data/summary with the same query.
func (h *Handler) ServeSummary(w http.ResponseWriter, r *http.Request) {
	batch, cached, ok := h.load(w, r)
	if !ok {
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, SummaryResponse{
		Success:   true,
		Summary:   aggregate.Summarize(batch),
		Source:    batch.Source,
		Timestamp: batch.Timestamp,
		Cached:    cached,
	})
}

// load validates the query and resolves the batch, writing the error
// response itself when it returns false.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*provider.Batch, bool, bool) {
	// a repeated key binds its first value
	vals := r.URL.Query()
	for k, v := range vals {
		if len(v) > 1 {
			vals[k] = v[:1]
		}
	}
	var q query
	if err := h.decoder.Decode(&q, vals); err != nil {
		h.usageError(w, "Invalid query parameters", err.Error())
		return nil, false, false
	}
	contracts := SplitContracts(q.Contracts)
	if len(contracts) == 0 {
		h.usageError(w, "Missing required parameter: contracts", "")
		return nil, false, false
	}
	if len(contracts) > MaxContracts {
		h.usageError(w, "Too many contracts", "at most 100 contracts per request")
		return nil, false, false
	}

	key := cache.Key(contracts)
	logger := log.WithFields(log.Fields{"contracts": len(contracts), "request_id": RequestID(r.Context())})

	batch, cached, err := h.cache.GetOrFetch(r.Context(), key, func(ctx context.Context) (*provider.Batch, error) {
		return h.provider.Fetch(ctx, contracts)
	})
	if err != nil {
		logger.WithError(err).Error("fetching options data failed")
		_ = httpx.WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
			Success:   false,
			Error:     "Failed to fetch options data",
			Details:   err.Error(),
			Timestamp: h.now().UTC(),
		})
		return nil, false, false
	}

	logger.WithFields(log.Fields{
		"cached": cached,
		"data":   len(batch.Data),
		"errors": len(batch.Errors),
	}).Info("served options data")
	return batch, cached, true
}

func (h *Handler) usageError(w http.ResponseWriter, msg, details string) {
	_ = httpx.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
		Success:   false,
		Error:     msg,
		Example:   Example,
		Details:   details,
		Timestamp: h.now().UTC(),
	})
}
