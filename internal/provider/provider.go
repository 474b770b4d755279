package provider

import (
	"context"
	"errors"

	"marketfeed/internal/market"
)

// ErrNotEntitled marks an upstream reply that reads as "access not permitted"
// rather than a real price.
var ErrNotEntitled = errors.New("quote access not entitled")

// Provider produces one reading per call for a tracked instrument.
//
//go:generate mockgen -package=providermock -destination=providermock/provider.go -source=provider.go Provider
type Provider interface {
	Name() string
	Fetch(ctx context.Context, inst market.Instrument) (market.Quote, error)
}
