package models

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"sort"
	"strconv"
	"time"

	"YieldGuard/pkg/util"
)

// HistoricalPoint is one daily TVL/APY observation. Date is truncated to
// UTC midnight.
type HistoricalPoint struct {
	Date   time.Time `json:"date"`
	TVLUsd float64   `json:"tvl_usd"`
	APY    float64   `json:"apy"`
}

// HistoricalSeries is an ascending daily series for a single pool. Dates
// are unique; gaps are allowed and accounted for by the risk engine.
type HistoricalSeries struct {
	PoolID string            `json:"pool_id"`
	Points []HistoricalPoint `json:"points"`
}

// NewHistoricalSeries normalizes raw observations into an ascending series
// keyed by UTC day. When a day carries several observations the latest one
// wins.
func NewHistoricalSeries(poolID string, points []HistoricalPoint) *HistoricalSeries {
	sorted := make([]HistoricalPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	byDay := make(map[int64]HistoricalPoint, len(sorted))
	for _, p := range sorted {
		day := util.DayFloor(p.Date)
		p.Date = day
		byDay[day.Unix()] = p
	}

	days := make([]int64, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })

	pts := make([]HistoricalPoint, 0, len(days))
	for _, d := range days {
		pts = append(pts, byDay[d])
	}

	return &HistoricalSeries{PoolID: poolID, Points: pts}
}

// Len returns the number of daily points.
func (s *HistoricalSeries) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Points)
}

// Tail returns the most recent n points (all points when n exceeds length).
func (s *HistoricalSeries) Tail(n int) []HistoricalPoint {
	if s == nil || n <= 0 {
		return nil
	}
	if n >= len(s.Points) {
		return s.Points
	}
	return s.Points[len(s.Points)-n:]
}

// Fingerprint hashes the series content (FNV-64a over day and TVL of every
// point). Cached risk scores are keyed by it so a changed snapshot forces a
// recompute.
func (s *HistoricalSeries) Fingerprint() string {
	if s == nil || len(s.Points) == 0 {
		return "0"
	}
	h := fnv.New64a()
	var buf [8]byte
	for _, p := range s.Points {
		binary.BigEndian.PutUint64(buf[:], uint64(p.Date.Unix()))
		_, _ = h.Write(buf[:])
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(p.TVLUsd))
		_, _ = h.Write(buf[:])
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
