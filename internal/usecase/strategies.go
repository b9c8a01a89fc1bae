package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"YieldGuard/internal/domain/models"
	drepo "YieldGuard/internal/domain/repository"
)

// Strategy names in fallback order.
const (
	StrategyChainFilter    = "chain_filter"
	StrategyMirrorEndpoint = "mirror_endpoint"
	StrategyProtocolLookup = "protocol_lookup"
	StrategyFullScan       = "full_scan"
)

const defaultProtocolFetches = 5

// DefaultStrategies returns the ordered retrieval chain over a market
// source: server-side filter, mirror, protocol directory walk, full scan.
func DefaultStrategies(source drepo.MarketSource, maxProtocolFetches int) []drepo.FetchStrategy {
	if maxProtocolFetches <= 0 {
		maxProtocolFetches = defaultProtocolFetches
	}
	return []drepo.FetchStrategy{
		&chainFilterStrategy{source: source},
		&mirrorStrategy{source: source},
		&protocolLookupStrategy{source: source, maxFetches: maxProtocolFetches},
		&fullScanStrategy{source: source},
	}
}

type chainFilterStrategy struct {
	source drepo.MarketSource
}

func (s *chainFilterStrategy) Name() string { return StrategyChainFilter }

func (s *chainFilterStrategy) Fetch(ctx context.Context, q models.PoolQuery) ([]models.PoolRecord, error) {
	return s.source.Pools(ctx, q)
}

type mirrorStrategy struct {
	source drepo.MarketSource
}

func (s *mirrorStrategy) Name() string { return StrategyMirrorEndpoint }

func (s *mirrorStrategy) Fetch(ctx context.Context, q models.PoolQuery) ([]models.PoolRecord, error) {
	return s.source.MirrorPools(ctx, q)
}

// protocolLookupStrategy resolves protocols matching the query, then pulls
// pools per protocol. The walk is capped to the largest protocols by TVL to
// bound the request fan-out.
type protocolLookupStrategy struct {
	source     drepo.MarketSource
	maxFetches int
}

func (s *protocolLookupStrategy) Name() string { return StrategyProtocolLookup }

func (s *protocolLookupStrategy) Fetch(ctx context.Context, q models.PoolQuery) ([]models.PoolRecord, error) {
	if q.Chain == "" && q.Project == "" {
		return nil, fmt.Errorf("protocol lookup needs a chain or project filter")
	}

	refs, err := s.source.Protocols(ctx)
	if err != nil {
		return nil, fmt.Errorf("list protocols: %w", err)
	}

	matches := matchProtocols(refs, q, s.maxFetches)
	if len(matches) == 0 {
		return nil, fmt.Errorf("no protocols match the query")
	}

	var out []models.PoolRecord
	var lastErr error
	for _, ref := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		sub := q
		sub.Project = ref.Slug
		records, err := s.source.Pools(ctx, sub)
		if err != nil {
			lastErr = err
			continue
		}
		out = append(out, records...)
	}
	if len(out) == 0 && lastErr != nil {
		return nil, fmt.Errorf("per-protocol fetch: %w", lastErr)
	}
	return out, nil
}

type fullScanStrategy struct {
	source drepo.MarketSource
}

func (s *fullScanStrategy) Name() string { return StrategyFullScan }

func (s *fullScanStrategy) Fetch(ctx context.Context, q models.PoolQuery) ([]models.PoolRecord, error) {
	records, err := s.source.AllPools(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.PoolRecord, 0, len(records))
	for _, r := range records {
		if q.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func matchProtocols(refs []models.ProtocolRef, q models.PoolQuery, limit int) []models.ProtocolRef {
	matches := make([]models.ProtocolRef, 0, len(refs))
	for _, ref := range refs {
		if q.Project != "" && !strings.EqualFold(ref.Slug, q.Project) && !strings.EqualFold(ref.Name, q.Project) {
			continue
		}
		if q.Chain != "" && !containsFold(ref.Chains, q.Chain) {
			continue
		}
		matches = append(matches, ref)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].TVLUsd > matches[j].TVLUsd
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func containsFold(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.EqualFold(s, needle) {
			return true
		}
	}
	return false
}
