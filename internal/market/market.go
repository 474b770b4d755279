// Package market holds the tracked instruments and the reading types shared by
// providers, the history store and the aggregator.
package market

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownInstrument is returned for keys outside the tracked set.
var ErrUnknownInstrument = errors.New("unknown instrument")

// Instrument identifies one tracked index.
type Instrument string

const (
	Nifty50   Instrument = "nifty50"
	Sensex    Instrument = "sensex"
	BankNifty Instrument = "bankNifty"
)

// Source labels where a reading came from.
const (
	SourceLive      = "live"
	SourceSynthetic = "synthetic"
)

// All returns the tracked instruments in display order.
func All() []Instrument {
	return []Instrument{Nifty50, Sensex, BankNifty}
}

// ParseInstrument matches s case-insensitively against the tracked set.
func ParseInstrument(s string) (Instrument, error) {
	s = strings.TrimSpace(s)
	for _, inst := range All() {
		if strings.EqualFold(string(inst), s) {
			return inst, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownInstrument, s)
}

// DefaultSymbols maps instruments to the quote provider's ticker symbols.
var DefaultSymbols = map[Instrument]string{
	Nifty50:   "^NSEI",
	Sensex:    "^BSESN",
	BankNifty: "^NSEBANK",
}

// Baseline is the static seed used when no live reading is available.
type Baseline struct {
	Current       float64
	High          float64
	Low           float64
	Open          float64
	PreviousClose float64
}

// Baselines returns a fresh copy of the per-instrument seeds.
func Baselines() map[Instrument]Baseline {
	return map[Instrument]Baseline{
		Nifty50:   {Current: 19450, High: 19520, Low: 19380, Open: 19410, PreviousClose: 19400},
		Sensex:    {Current: 65250, High: 65480, Low: 65010, Open: 65100, PreviousClose: 65080},
		BankNifty: {Current: 44480, High: 44650, Low: 44310, Open: 44400, PreviousClose: 44390},
	}
}

// Quote is a single reading for one instrument as produced by a provider.
// Timestamp is epoch milliseconds.
type Quote struct {
	Current       float64 `json:"current"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Open          float64 `json:"open"`
	PreviousClose float64 `json:"previousClose"`
	Timestamp     int64   `json:"timestamp"`
	Source        string  `json:"source"`
}

// QuotePoint is one entry of an instrument's history.
type QuotePoint struct {
	Timestamp     int64   `json:"timestamp"`
	Value         float64 `json:"value"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
}

// Point derives the history entry for q.
func (q Quote) Point() QuotePoint {
	return QuotePoint{
		Timestamp:     q.Timestamp,
		Value:         q.Current,
		Change:        q.Change,
		ChangePercent: q.ChangePercent,
	}
}
