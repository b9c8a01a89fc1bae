package llama

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"YieldGuard/internal/domain/models"
)

const poolsPayload = `{
	"status": "success",
	"data": [
		{"pool": "aa70268e", "chain": "Ethereum", "project": "lido", "symbol": "STETH", "tvlUsd": 1050000, "apy": 3.8, "apyBase": 3.8, "stablecoin": false, "ilRisk": "no", "exposure": "single"},
		{"pool": "bb81379f", "chain": "Arbitrum", "project": "aave-v3", "symbol": "USDC", "tvlUsd": 420000, "apy": 2.1, "stablecoin": true},
		{"pool": "cc92480a", "chain": "Ethereum", "project": "curve-dex", "symbol": "3CRV", "tvlUsd": -5, "apy": 1.0},
		{"chain": "Ethereum", "project": "aave-v3", "symbol": "DAI", "tvlUsd": 90000, "apy": 1.5},
		{"pool": "dd03591b", "chain": "Ethereum", "project": "aave-v3", "symbol": "DAI", "tvlUsd": 90000}
	]
}`

func TestPoolsParsesAndDropsMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/pools", r.URL.Path)
		assert.Equal(t, "Ethereum", r.URL.Query().Get("chain"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(poolsPayload))
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL), WithRetry(0, time.Millisecond, time.Millisecond))

	records, err := c.Pools(context.Background(), models.PoolQuery{Chain: "Ethereum"})
	require.NoError(t, err)

	// Negative TVL and missing pool id are dropped; the Arbitrum pool is
	// filtered out client-side; the APY-less record survives with APY 0.
	require.Len(t, records, 2)
	assert.Equal(t, "aa70268e", records[0].PoolID)
	assert.Equal(t, 3.8, records[0].APY)
	assert.Equal(t, "dd03591b", records[1].PoolID)
	assert.Zero(t, records[1].APY)
}

func TestPoolsFilterIsCaseInsensitive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(poolsPayload))
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL), WithRetry(0, time.Millisecond, time.Millisecond))

	records, err := c.Pools(context.Background(), models.PoolQuery{Chain: "ethereum", Project: "LIDO"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "aa70268e", records[0].PoolID)
}

func TestPoolsMapsRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL), WithRetry(0, time.Millisecond, time.Millisecond))

	_, err := c.Pools(context.Background(), models.PoolQuery{Chain: "Ethereum"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrRateLimited)
}

func TestPoolsRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(poolsPayload))
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL), WithRetry(3, time.Millisecond, 2*time.Millisecond))

	records, err := c.Pools(context.Background(), models.PoolQuery{Chain: "Ethereum"})
	require.NoError(t, err)
	assert.NotEmpty(t, records)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestPoolsErrorOnServerFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL), WithRetry(0, time.Millisecond, time.Millisecond))

	_, err := c.Pools(context.Background(), models.PoolQuery{Chain: "Ethereum"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestMirrorPoolsRequiresConfiguration(t *testing.T) {
	c := New(WithRetry(0, time.Millisecond, time.Millisecond))

	_, err := c.MirrorPools(context.Background(), models.PoolQuery{Chain: "Ethereum"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mirror url not configured")
}

func TestHistoryOrdersAndDeduplicates(t *testing.T) {
	payload := `{
		"status": "success",
		"data": [
			{"timestamp": "2026-08-03T11:00:00.000Z", "tvlUsd": 1020000, "apy": 3.9},
			{"timestamp": "2026-08-01T09:00:00.000Z", "tvlUsd": 1000000, "apy": 3.8},
			{"timestamp": "2026-08-03T23:00:00.000Z", "tvlUsd": 1030000, "apy": 4.0},
			{"timestamp": "2026-08-02T10:00:00.000Z", "tvlUsd": null, "apy": 3.7},
			{"tvlUsd": 999000, "apy": 3.6}
		]
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chart/aa70268e", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL), WithRetry(0, time.Millisecond, time.Millisecond))

	series, err := c.History(context.Background(), "aa70268e")
	require.NoError(t, err)
	require.Equal(t, 2, series.Len())

	assert.Equal(t, "2026-08-01", series.Points[0].Date.Format("2006-01-02"))
	assert.Equal(t, "2026-08-03", series.Points[1].Date.Format("2006-01-02"))
	// Two observations on Aug 3 collapse to the later one.
	assert.Equal(t, 1030000.0, series.Points[1].TVLUsd)
}

func TestHistoryRequiresPoolID(t *testing.T) {
	c := New()

	_, err := c.History(context.Background(), "")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestProtocolsParsesDirectory(t *testing.T) {
	payload := `[
		{"name": "Lido", "slug": "lido", "chains": ["Ethereum", "Solana"], "tvl": 14000000000},
		{"name": "Aave V3", "slug": "aave-v3", "chains": ["Ethereum", "Arbitrum"], "tvl": 5200000000},
		{"name": "No Slug", "chains": ["Ethereum"], "tvl": 100}
	]`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/protocols", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	c := New(WithProtocolsURL(srv.URL), WithRetry(0, time.Millisecond, time.Millisecond))

	refs, err := c.Protocols(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "lido", refs[0].Slug)
	assert.Equal(t, []string{"Ethereum", "Solana"}, refs[0].Chains)
	assert.Equal(t, 14000000000.0, refs[0].TVLUsd)
}

func TestPoolsHonorsContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(poolsPayload))
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL), WithRetry(0, time.Millisecond, time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Pools(ctx, models.PoolQuery{Chain: "Ethereum"})
	require.Error(t, err)
}
