// Package synthetic generates plausible stand-in readings from static
// baselines. It keeps the ticker populated when the live source is
// unavailable and makes no statistical claims.
package synthetic

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"marketfeed/internal/market"
)

// MaxSwingPercent bounds the random change either side of the baseline.
const MaxSwingPercent = 2.0

// for deterministic values
type Rand interface {
	Float64() float64
}

// for deterministic testing
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// RealRand uses the goroutine-safe top-level generator.
type RealRand struct{}

func (RealRand) Float64() float64 { return rand.Float64() }

type Provider struct {
	baselines map[market.Instrument]market.Baseline
	rand      Rand
	clock     Clock
}

// New returns a provider over baselines. Nil rnd or clock fall back to the
// real implementations.
func New(baselines map[market.Instrument]market.Baseline, rnd Rand, clock Clock) *Provider {
	if baselines == nil {
		baselines = market.Baselines()
	}
	if rnd == nil {
		rnd = RealRand{}
	}
	if clock == nil {
		clock = RealClock{}
	}
	return &Provider{baselines: baselines, rand: rnd, clock: clock}
}

func (p *Provider) Name() string { return "Synthetic" }

// Fetch draws a change percent uniformly in [-2, 2] and shifts current, high,
// low and open by the same absolute offset. Previous close stays put.
func (p *Provider) Fetch(_ context.Context, inst market.Instrument) (market.Quote, error) {
	base, ok := p.baselines[inst]
	if !ok {
		return market.Quote{}, fmt.Errorf("synthetic: %w: %q", market.ErrUnknownInstrument, inst)
	}

	pct := decimal.NewFromFloat((p.rand.Float64()*2 - 1) * MaxSwingPercent).Round(2)
	current := decimal.NewFromFloat(base.Current)
	offset := current.Mul(pct).Div(decimal.NewFromInt(100)).Round(2)

	shift := func(v float64) float64 {
		return decimal.NewFromFloat(v).Add(offset).InexactFloat64()
	}

	return market.Quote{
		Current:       current.Add(offset).InexactFloat64(),
		Change:        offset.InexactFloat64(),
		ChangePercent: pct.InexactFloat64(),
		High:          shift(base.High),
		Low:           shift(base.Low),
		Open:          shift(base.Open),
		PreviousClose: base.PreviousClose,
		Timestamp:     p.clock.Now().UnixMilli(),
		Source:        market.SourceSynthetic,
	}, nil
}
