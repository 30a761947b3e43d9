package main

import (
	"context"
	"fmt"
	"time"

	"listing-cache/internal/domain"
	"listing-cache/internal/filter"
	"listing-cache/internal/storage"
)

type summaryOptions struct {
	Intent      domain.Intent
	Agents      string // bots, humans or all
	TTL         time.Duration
	AgentWindow time.Duration
	Tolerance   float64
	Exclude     []uint32
}

func (o summaryOptions) validate() error {
	if !o.Intent.IsValid() {
		return fmt.Errorf("invalid intent %q", o.Intent)
	}
	switch o.Agents {
	case "bots", "humans", "all":
	default:
		return fmt.Errorf("invalid agent selection %q", o.Agents)
	}
	if o.Tolerance < 1 {
		return fmt.Errorf("tolerance must be >= 1, got %v", o.Tolerance)
	}
	return nil
}

func (o summaryOptions) pipeline(now time.Time) *filter.Pipeline {
	stages := []filter.Stage{filter.Intent(o.Intent)}
	switch o.Agents {
	case "bots":
		stages = append(stages, filter.Agents(now, o.AgentWindow, filter.SelectBots))
	case "humans":
		stages = append(stages, filter.Agents(now, o.AgentWindow, filter.SelectHumans))
	}
	if len(o.Exclude) > 0 {
		stages = append(stages, filter.Attributes(o.Exclude...))
	}
	stages = append(stages, filter.Outliers(o.Tolerance))
	return filter.New(stages...)
}

type summary struct {
	Total   int
	Kept    int
	Average float64
	Lowest  domain.Listing
}

// summarize reads the fresh listings of item and reduces them to a price.
func summarize(ctx context.Context, listings storage.ListingStore, defs storage.ItemDefinitionStore, item string, opts summaryOptions, now time.Time) (summary, error) {
	defindex, err := defs.LookupItem(ctx, item)
	if err != nil {
		return summary{}, fmt.Errorf("lookup %s: %w", item, err)
	}

	all, err := listings.ListByItemType(ctx, defindex)
	if err != nil {
		return summary{}, err
	}

	cutoff := now.Add(-opts.TTL)
	fresh := make([]domain.Listing, 0, len(all))
	for _, l := range all {
		if !l.IsStale(cutoff) {
			fresh = append(fresh, l)
		}
	}

	kept, err := opts.pipeline(now).Apply(fresh)
	if err != nil {
		return summary{Total: len(fresh)}, err
	}

	avg, err := filter.Average(kept)
	if err != nil {
		return summary{Total: len(fresh)}, err
	}
	lowest, err := filter.Lowest(kept)
	if err != nil {
		return summary{Total: len(fresh)}, err
	}

	return summary{Total: len(fresh), Kept: len(kept), Average: avg, Lowest: lowest}, nil
}
