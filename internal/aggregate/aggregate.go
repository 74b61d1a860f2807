package aggregate

import (
	"sort"
	"strings"

	"optionsdata/internal/contract"
	"optionsdata/internal/provider"
)

// Row is one contract in chain order.
type Row struct {
	Contract     string         `json:"contract"`
	Underlying   string         `json:"underlying"`
	Expiration   string         `json:"expiration"`
	Strike       float64        `json:"strike"`
	Type         contract.Class `json:"type"`
	LastPrice    float64        `json:"lastPrice"`
	Bid          float64        `json:"bid"`
	Ask          float64        `json:"ask"`
	Midpoint     float64        `json:"midpoint"`
	Volume       int64          `json:"volume"`
	OpenInterest int64          `json:"openInterest"`
	Delta        *float64       `json:"delta,omitempty"`
}

// UnderlyingSummary totals calls and puts for one underlying.
type UnderlyingSummary struct {
	Underlying       string   `json:"underlying"`
	Contracts        int      `json:"contracts"`
	CallVolume       int64    `json:"callVolume"`
	PutVolume        int64    `json:"putVolume"`
	CallOpenInterest int64    `json:"callOpenInterest"`
	PutOpenInterest  int64    `json:"putOpenInterest"`
	PutCallVolume    *float64 `json:"putCallVolumeRatio"`
	PutCallOI        *float64 `json:"putCallOpenInterestRatio"`
	Expirations      []string `json:"expirations"`
}

// Summary is a chain view of a batch.
type Summary struct {
	Rows        []Row               `json:"rows"`
	Underlyings []UnderlyingSummary `json:"underlyings"`
	// Missing lists contracts that came back NOT_FOUND or NO_DATA.
	Missing []string `json:"missing"`
}

// Summarize builds the chain view. Only SUCCESS quotes become rows.
// Ratios are nil when the call side is zero.
func Summarize(b *provider.Batch) Summary {
	s := Summary{Rows: []Row{}, Underlyings: []UnderlyingSummary{}, Missing: []string{}}
	if b == nil {
		return s
	}

	byUnderlying := make(map[string]*UnderlyingSummary)
	expSeen := make(map[string]map[string]struct{})
	for _, q := range b.Data {
		s.Rows = append(s.Rows, Row{
			Contract:     q.Contract,
			Underlying:   q.Underlying,
			Expiration:   q.Expiration,
			Strike:       q.Strike,
			Type:         q.Type,
			LastPrice:    q.LastPrice,
			Bid:          q.Bid,
			Ask:          q.Ask,
			Midpoint:     q.Midpoint,
			Volume:       q.Volume,
			OpenInterest: q.OpenInterest,
			Delta:        q.Greeks.Delta,
		})

		key := strings.ToUpper(strings.TrimSpace(q.Underlying))
		u, ok := byUnderlying[key]
		if !ok {
			u = &UnderlyingSummary{Underlying: key}
			byUnderlying[key] = u
			expSeen[key] = make(map[string]struct{})
		}
		u.Contracts++
		switch q.Type {
		case contract.Call:
			u.CallVolume += q.Volume
			u.CallOpenInterest += q.OpenInterest
		case contract.Put:
			u.PutVolume += q.Volume
			u.PutOpenInterest += q.OpenInterest
		}
		if _, dup := expSeen[key][q.Expiration]; !dup {
			expSeen[key][q.Expiration] = struct{}{}
			u.Expirations = append(u.Expirations, q.Expiration)
		}
	}

	for _, q := range b.Errors {
		s.Missing = append(s.Missing, q.Contract)
	}
	sort.Strings(s.Missing)

	SortRows(s.Rows)

	for _, u := range byUnderlying {
		u.PutCallVolume = ratio(u.PutVolume, u.CallVolume)
		u.PutCallOI = ratio(u.PutOpenInterest, u.CallOpenInterest)
		sort.Strings(u.Expirations)
		s.Underlyings = append(s.Underlyings, *u)
	}
	sort.Slice(s.Underlyings, func(i, j int) bool {
		return s.Underlyings[i].Underlying < s.Underlyings[j].Underlying
	})
	return s
}

// SortRows orders rows by underlying, expiration, strike, then calls before puts.
func SortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Underlying != rows[j].Underlying {
			return rows[i].Underlying < rows[j].Underlying
		}
		if rows[i].Expiration != rows[j].Expiration {
			return rows[i].Expiration < rows[j].Expiration
		}
		if rows[i].Strike != rows[j].Strike {
			return rows[i].Strike < rows[j].Strike
		}
		return rows[i].Type < rows[j].Type
	})
}

func ratio(num, den int64) *float64 {
	if den == 0 {
		return nil
	}
	r := float64(num) / float64(den)
	return &r
}
