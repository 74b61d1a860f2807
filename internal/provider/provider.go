package provider

import (
	"context"
	"time"

	"optionsdata/internal/contract"
)

// Status classifies the outcome for a single contract.
type Status string

const (
	StatusSuccess  Status = "SUCCESS"
	StatusNotFound Status = "NOT_FOUND"
	StatusNoData   Status = "NO_DATA"
)

// Greeks are optional one by one; a nil field means the provider sent nothing,
// which is different from a zero value.
type Greeks struct {
	Delta *float64 `json:"delta"`
	Gamma *float64 `json:"gamma"`
	Theta *float64 `json:"theta"`
	Vega  *float64 `json:"vega"`
}

// Quote is the normalized per-contract snapshot returned by all providers.
type Quote struct {
	Contract     string         `json:"contract"`
	Underlying   string         `json:"underlying"`
	Type         contract.Class `json:"type"`
	Strike       float64        `json:"strike"`
	Expiration   string         `json:"expiration"`
	LastPrice    float64        `json:"lastPrice"`
	Bid          float64        `json:"bid"`
	Ask          float64        `json:"ask"`
	Midpoint     float64        `json:"midpoint"`
	Volume       int64          `json:"volume"`
	OpenInterest int64          `json:"openInterest"`
	Greeks       Greeks         `json:"greeks"`
	Status       Status         `json:"status"`
	Error        string         `json:"error,omitempty"`
	Timestamp    time.Time      `json:"timestamp"`
}

// Batch is the combined outcome of fetching a set of contracts.
// Data holds SUCCESS quotes only; Errors holds everything else.
type Batch struct {
	Data      []Quote   `json:"data"`
	Errors    []Quote   `json:"errors"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// Partition splits quotes by status into a Batch.
func Partition(quotes []Quote, source string, at time.Time) *Batch {
	b := &Batch{
		Data:      make([]Quote, 0, len(quotes)),
		Errors:    make([]Quote, 0),
		Source:    source,
		Timestamp: at,
	}
	for _, q := range quotes {
		if q.Status == StatusSuccess {
			b.Data = append(b.Data, q)
			continue
		}
		b.Errors = append(b.Errors, q)
	}
	return b
}

// Placeholder builds a non-success quote from the parsed identifier.
func Placeholder(p contract.Parsed, status Status, msg string, at time.Time) Quote {
	return Quote{
		Contract:   p.Identifier,
		Underlying: p.Underlying,
		Type:       p.Type,
		Strike:     p.StrikeFloat(),
		Expiration: p.Expiration,
		Status:     status,
		Error:      msg,
		Timestamp:  at,
	}
}

type Provider interface {
	Name() string
	Fetch(ctx context.Context, contracts []string) (*Batch, error)
}
