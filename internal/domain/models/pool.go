package models

import (
	"strings"
	"time"
)

// PoolRecord represents one yield pool observation from the upstream
// aggregator. All money values are USD.
type PoolRecord struct {
	PoolID     string    `json:"pool_id"`
	Chain      string    `json:"chain"`
	Project    string    `json:"project"`
	Symbol     string    `json:"symbol"`
	TVLUsd     float64   `json:"tvl_usd"`
	APY        float64   `json:"apy"`
	APYBase    float64   `json:"apy_base,omitempty"`
	APYReward  float64   `json:"apy_reward,omitempty"`
	Stablecoin bool      `json:"stablecoin,omitempty"`
	ILRisk     string    `json:"il_risk,omitempty"`
	Exposure   string    `json:"exposure,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
}

// PoolQuery filters the pool listing. Chain is mandatory at the service
// surface; internal callers may use a zero query for unfiltered fetches.
type PoolQuery struct {
	Chain     string  `json:"chain" validate:"required"`
	Project   string  `json:"project,omitempty"`
	Symbol    string  `json:"symbol,omitempty"`
	MinTVLUsd float64 `json:"min_tvl_usd,omitempty" validate:"gte=0"`
}

// IsZero reports whether no filter is set.
func (q PoolQuery) IsZero() bool {
	return q.Chain == "" && q.Project == "" && q.Symbol == "" && q.MinTVLUsd == 0
}

// Matches reports whether a record passes the query filters. String
// matching is case-insensitive.
func (q PoolQuery) Matches(r PoolRecord) bool {
	if q.Chain != "" && !strings.EqualFold(r.Chain, q.Chain) {
		return false
	}
	if q.Project != "" && !strings.EqualFold(r.Project, q.Project) {
		return false
	}
	if q.Symbol != "" && !strings.EqualFold(r.Symbol, q.Symbol) {
		return false
	}
	if q.MinTVLUsd > 0 && r.TVLUsd < q.MinTVLUsd {
		return false
	}
	return true
}

// ProtocolRef identifies an upstream protocol listing used for
// project-scoped retrieval.
type ProtocolRef struct {
	Name   string   `json:"name"`
	Slug   string   `json:"slug"`
	Chains []string `json:"chains"`
	TVLUsd float64  `json:"tvl_usd"`
}

// PoolDetail pairs a pool record with its history and a quality report.
type PoolDetail struct {
	Record  PoolRecord        `json:"record"`
	History *HistoricalSeries `json:"history"`
	Quality *QualityReport    `json:"quality"`
}

// StrategyAttempt records one failed or empty retrieval attempt.
type StrategyAttempt struct {
	Strategy string `json:"strategy"`
	Reason   string `json:"reason"`
}
