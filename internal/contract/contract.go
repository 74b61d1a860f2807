// Package contract decodes OCC-style option contract identifiers such as
// SPY240315C00450000 (ticker, yymmdd expiry, C/P flag, strike x 1000).
package contract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Unknown is used for every text field of a contract that could not be parsed.
const Unknown = "UNKNOWN"

// ProviderPrefix is how Polygon prefixes option tickers.
const ProviderPrefix = "O:"

// Class is the option class.
type Class string

const (
	Call         Class = "CALL"
	Put          Class = "PUT"
	UnknownClass Class = Unknown
)

var pattern = regexp.MustCompile(`^([A-Z]+)(\d{2})(\d{2})(\d{2})([CP])(\d{8})$`)

var strikeScale = decimal.NewFromInt(1000)

// Parsed is the decoded form of an identifier. Expiration is kept as the
// ISO date string (YYYY-MM-DD) so that the sentinel can carry UNKNOWN.
type Parsed struct {
	Identifier string          `json:"identifier"`
	Underlying string          `json:"underlying"`
	Expiration string          `json:"expiration"`
	Type       Class           `json:"type"`
	Strike     decimal.Decimal `json:"strike"`
}

// Valid reports whether p came from a well-formed identifier.
func (p Parsed) Valid() bool { return p.Type == Call || p.Type == Put }

// StrikeFloat returns the strike in dollars as a float for JSON records.
func (p Parsed) StrikeFloat() float64 { return p.Strike.InexactFloat64() }

// Parse decodes identifier. It never fails: identifiers that do not match the
// fixed-width layout exactly yield the UNKNOWN sentinel, and callers carry on
// with the raw identifier.
func Parse(identifier string) Parsed {
	raw := strings.TrimPrefix(identifier, ProviderPrefix)
	m := pattern.FindStringSubmatch(raw)
	if m == nil {
		return sentinel(identifier)
	}

	class := Put
	if m[5] == "C" {
		class = Call
	}

	// eight digits always fit in an int64
	milli, err := strconv.ParseInt(m[6], 10, 64)
	if err != nil {
		return sentinel(identifier)
	}

	return Parsed{
		Identifier: raw,
		Underlying: m[1],
		Expiration: fmt.Sprintf("20%s-%s-%s", m[2], m[3], m[4]),
		Type:       class,
		Strike:     decimal.NewFromInt(milli).Div(strikeScale),
	}
}

func sentinel(identifier string) Parsed {
	return Parsed{
		Identifier: identifier,
		Underlying: Unknown,
		Expiration: Unknown,
		Type:       UnknownClass,
		Strike:     decimal.Zero,
	}
}

// Format rebuilds the identifier for a valid contract. It returns an error
// for the sentinel or for expirations outside the 2000s.
func Format(p Parsed) (string, error) {
	if !p.Valid() {
		return "", fmt.Errorf("contract: cannot format %q", p.Identifier)
	}
	var yyyy, mm, dd int
	if _, err := fmt.Sscanf(p.Expiration, "%4d-%2d-%2d", &yyyy, &mm, &dd); err != nil {
		return "", fmt.Errorf("contract: bad expiration %q: %w", p.Expiration, err)
	}
	if yyyy < 2000 || yyyy > 2099 {
		return "", fmt.Errorf("contract: expiration year %d out of range", yyyy)
	}
	flag := "P"
	if p.Type == Call {
		flag = "C"
	}
	milli := p.Strike.Mul(strikeScale).IntPart()
	return fmt.Sprintf("%s%02d%02d%02d%s%08d", p.Underlying, yyyy-2000, mm, dd, flag, milli), nil
}

// ProviderTicker returns the identifier in the provider's O: notation.
func ProviderTicker(identifier string) string {
	if strings.HasPrefix(identifier, ProviderPrefix) {
		return identifier
	}
	return ProviderPrefix + identifier
}
