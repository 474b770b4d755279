package fallback

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"marketfeed/internal/market"
	"marketfeed/internal/observability"
	"marketfeed/internal/provider"
)

// Fallback reasons reported in logs and metrics.
const (
	ReasonNotEntitled = "not_entitled"
	ReasonTimeout     = "timeout"
	ReasonUpstream    = "upstream"
	ReasonDisabled    = "disabled"
)

// Provider asks P first and answers from Fallback whenever P fails. Errors
// from P never reach the caller. A nil P means the live source is disabled.
type Provider struct {
	P        provider.Provider
	Fallback provider.Provider
	Logger   *zap.Logger
	Metrics  *observability.Metrics
}

func (f *Provider) Name() string {
	if f.P == nil {
		return f.Fallback.Name()
	}
	return f.P.Name() + "+" + f.Fallback.Name()
}

func (f *Provider) Fetch(ctx context.Context, inst market.Instrument) (market.Quote, error) {
	if f.P == nil {
		f.Metrics.RecordFallback(string(inst), ReasonDisabled)
		return f.Fallback.Fetch(ctx, inst)
	}

	q, err := f.P.Fetch(ctx, inst)
	if err == nil {
		return q, nil
	}

	reason := Reason(err)
	f.Metrics.RecordFallback(string(inst), reason)
	if f.Logger != nil {
		f.Logger.Warn("Live quote unavailable, using synthetic data",
			zap.String("instrument", string(inst)),
			zap.String("provider", f.P.Name()),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
	return f.Fallback.Fetch(ctx, inst)
}

// Reason classifies a live-provider failure.
func Reason(err error) string {
	switch {
	case errors.Is(err, provider.ErrNotEntitled):
		return ReasonNotEntitled
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ReasonTimeout
	default:
		return ReasonUpstream
	}
}
