package polygon

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"optionsdata/internal/contract"
	"optionsdata/internal/provider"
)

// Response model of GET /v3/snapshot for option tickers. Numeric fields are
// pointers so that "absent" survives decoding.
type snapshotResponse struct {
	Status    string           `json:"status"`
	RequestID string           `json:"request_id"`
	Results   []snapshotResult `json:"results"`
}

type snapshotResult struct {
	Ticker          string        `json:"ticker"`
	Error           string        `json:"error"`
	Message         string        `json:"message"`
	MarketStatus    *marketStatus `json:"market_status"`
	OpenInterest    *float64      `json:"open_interest"`
	ImpliedVol      *float64      `json:"implied_volatility"`
	Details         *details      `json:"details"`
	Greeks          *greeks       `json:"greeks"`
	LastQuote       *lastQuote    `json:"last_quote"`
	LastTrade       *lastTrade    `json:"last_trade"`
	Session         *session      `json:"session"`
	UnderlyingAsset *asset        `json:"underlying_asset"`
}

type details struct {
	ContractType   string   `json:"contract_type"`
	ExpirationDate string   `json:"expiration_date"`
	StrikePrice    *float64 `json:"strike_price"`
}

type greeks struct {
	Delta *float64 `json:"delta"`
	Gamma *float64 `json:"gamma"`
	Theta *float64 `json:"theta"`
	Vega  *float64 `json:"vega"`
}

type lastQuote struct {
	Last     *float64 `json:"last"`
	Bid      *float64 `json:"bid"`
	Ask      *float64 `json:"ask"`
	Midpoint *float64 `json:"midpoint"`
}

// marketStatus is either a plain state string ("open") or an object that
// may carry its own last_quote.
type marketStatus struct {
	State     string
	LastQuote *lastQuote
}

func (m *marketStatus) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &m.State)
	}
	var obj struct {
		Status    string     `json:"status"`
		LastQuote *lastQuote `json:"last_quote"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	m.State, m.LastQuote = obj.Status, obj.LastQuote
	return nil
}

type lastTrade struct {
	Price *float64 `json:"price"`
}

type session struct {
	Close  *float64 `json:"close"`
	Volume *float64 `json:"volume"`
}

type asset struct {
	Ticker string `json:"ticker"`
}

// normalize maps a snapshot result onto a SUCCESS quote.
//
// Last price: last_quote.last, then market_status.last_quote.last, then
// last_trade.price, then last_quote.midpoint, then session.close, else 0.
// Bid/ask come from last_quote only; midpoint is (bid+ask)/2 when both are
// present, else 0.
func (r snapshotResult) normalize(p contract.Parsed, now time.Time) provider.Quote {
	if !p.Valid() {
		p = r.fillFromDetails(p)
	}

	q := provider.Quote{
		Contract:   p.Identifier,
		Underlying: p.Underlying,
		Type:       p.Type,
		Strike:     p.StrikeFloat(),
		Expiration: p.Expiration,
		Status:     provider.StatusSuccess,
		Timestamp:  now,
	}

	switch {
	case r.LastQuote != nil && r.LastQuote.Last != nil:
		q.LastPrice = *r.LastQuote.Last
	case r.MarketStatus != nil && r.MarketStatus.LastQuote != nil && r.MarketStatus.LastQuote.Last != nil:
		q.LastPrice = *r.MarketStatus.LastQuote.Last
	case r.LastTrade != nil && r.LastTrade.Price != nil:
		q.LastPrice = *r.LastTrade.Price
	case r.LastQuote != nil && r.LastQuote.Midpoint != nil:
		q.LastPrice = *r.LastQuote.Midpoint
	case r.Session != nil && r.Session.Close != nil:
		q.LastPrice = *r.Session.Close
	}

	if lq := r.LastQuote; lq != nil {
		q.Bid = deref(lq.Bid)
		q.Ask = deref(lq.Ask)
		if lq.Bid != nil && lq.Ask != nil {
			q.Midpoint = (*lq.Bid + *lq.Ask) / 2
		}
	}

	if r.Session != nil {
		q.Volume = int64(deref(r.Session.Volume))
	}
	q.OpenInterest = int64(deref(r.OpenInterest))

	if g := r.Greeks; g != nil {
		q.Greeks = provider.Greeks{Delta: g.Delta, Gamma: g.Gamma, Theta: g.Theta, Vega: g.Vega}
	}
	return q
}

// fillFromDetails recovers contract fields from the payload when the
// identifier itself could not be parsed.
func (r snapshotResult) fillFromDetails(p contract.Parsed) contract.Parsed {
	if r.UnderlyingAsset != nil && r.UnderlyingAsset.Ticker != "" {
		p.Underlying = r.UnderlyingAsset.Ticker
	}
	if d := r.Details; d != nil {
		if d.ExpirationDate != "" {
			p.Expiration = d.ExpirationDate
		}
		switch strings.ToLower(d.ContractType) {
		case "call":
			p.Type = contract.Call
		case "put":
			p.Type = contract.Put
		}
		if d.StrikePrice != nil {
			p.Strike = decimal.NewFromFloat(*d.StrikePrice)
		}
	}
	return p
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
