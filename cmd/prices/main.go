package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"listing-cache/internal/config"
	"listing-cache/internal/domain"
	"listing-cache/internal/filter"
	"listing-cache/internal/storage/backend"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "Path to YAML config file (empty: environment only)")
	items := flag.String("items", "", "Comma-separated item names (default: configured items)")
	intent := flag.String("intent", "sell", "Listing side: sell or buy")
	agents := flag.String("agents", "bots", "Agent selection: bots, humans, or all")
	ttl := flag.Duration("ttl", 24*time.Hour, "Ignore listings bumped longer ago than this")
	window := flag.Duration("agent-window", filter.DefaultAgentWindow, "Agent liveness window")
	tolerance := flag.Float64("tolerance", filter.DefaultTolerance, "Outlier tolerance around the median")
	exclude := flag.String("exclude-attrs", "", "Comma-separated attribute defindexes to reject")
	flag.Parse()

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	names := cfg.Items
	if *items != "" {
		names = splitList(*items)
	}
	if len(names) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no items given; use --items or configure items")
		os.Exit(1)
	}

	attrs, err := parseAttrs(*exclude)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	opts := summaryOptions{
		Intent:      domain.Intent(*intent),
		Agents:      *agents,
		TTL:         *ttl,
		AgentWindow: *window,
		Tolerance:   *tolerance,
		Exclude:     attrs,
	}
	if err := opts.validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	stores, err := backend.Open(ctx, cfg.Store)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer stores.Close()

	now := time.Now()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ITEM\tLISTINGS\tKEPT\tAVERAGE\tLOWEST\tLOWEST LISTING")
	for _, name := range names {
		s, err := summarize(ctx, stores.Listings, stores.Items, name, opts, now)
		if err != nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t%v\n", name, err)
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%.2f\t%.2f\t%s\n",
			name, s.Total, s.Kept, s.Average, s.Lowest.Price, s.Lowest.Key)
	}
	w.Flush()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseAttrs(s string) ([]uint32, error) {
	var out []uint32
	for _, part := range splitList(s) {
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid attribute defindex %q", part)
		}
		out = append(out, uint32(n))
	}
	return out, nil
}
