package filter

import (
	"time"

	"listing-cache/internal/domain"
)

// Stage is one step of a filter pipeline.
type Stage func([]domain.Listing) ([]domain.Listing, error)

// Pipeline applies stages in order.
type Pipeline struct {
	stages []Stage
}

// New creates a pipeline from stages.
func New(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Apply runs every stage, stopping at the first error.
func (p *Pipeline) Apply(listings []domain.Listing) ([]domain.Listing, error) {
	out := listings
	for _, s := range p.stages {
		var err error
		out, err = s(out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Intent returns a KeepOnlyIntent stage.
func Intent(intent domain.Intent) Stage {
	return func(l []domain.Listing) ([]domain.Listing, error) {
		return KeepOnlyIntent(l, intent), nil
	}
}

// Agents returns a RejectInactiveAgents stage.
func Agents(now time.Time, window time.Duration, mode AgentMode) Stage {
	return func(l []domain.Listing) ([]domain.Listing, error) {
		return RejectInactiveAgents(l, now, window, mode), nil
	}
}

// Outliers returns a RejectOutliers stage.
func Outliers(tolerance float64) Stage {
	return func(l []domain.Listing) ([]domain.Listing, error) {
		return RejectOutliers(l, tolerance)
	}
}

// Attributes returns a RejectAttributes stage.
func Attributes(attrs ...uint32) Stage {
	return func(l []domain.Listing) ([]domain.Listing, error) {
		return RejectAttributes(l, attrs...), nil
	}
}
