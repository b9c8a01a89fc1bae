package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"YieldGuard/internal/domain/models"
	drepo "YieldGuard/internal/domain/repository"
)

// ClickHouseAuditStore persists pool snapshots and issued quotes for later
// analysis. Inserts are chunked multi-row VALUES to keep round-trips low.
type ClickHouseAuditStore struct {
	db             *sql.DB
	snapshotsTable string
	quotesTable    string
}

// NewClickHouseAuditStore creates a ClickHouse-backed audit store.
func NewClickHouseAuditStore(db *sql.DB, snapshotsTable, quotesTable string) drepo.AuditStore {
	return &ClickHouseAuditStore{
		db:             db,
		snapshotsTable: snapshotsTable,
		quotesTable:    quotesTable,
	}
}

// SchemaStatements returns idempotent DDL for the audit tables. The caller
// runs them through the ClickHouse client at startup.
func SchemaStatements(database, snapshotsTable, quotesTable string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			observed_at DateTime,
			pool_id String,
			chain LowCardinality(String),
			project LowCardinality(String),
			symbol String,
			tvl_usd Float64,
			apy Float64,
			apy_base Float64,
			apy_reward Float64,
			stablecoin UInt8,
			il_risk LowCardinality(String),
			exposure LowCardinality(String)
		) ENGINE=MergeTree ORDER BY (pool_id, observed_at) TTL observed_at + INTERVAL 180 DAY`,
			database, snapshotsTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			created_at DateTime,
			valid_until DateTime,
			pool_id String,
			chain LowCardinality(String),
			project LowCardinality(String),
			symbol String,
			deposit_amount Float64,
			lock_period_days UInt16,
			premium_usd Float64,
			coverage_usd Float64,
			coverage_ratio Float64,
			annual_premium_rate Float64,
			suggested_lock_days UInt16,
			risk_total Float64,
			risk_bucket LowCardinality(String),
			risk_confidence LowCardinality(String),
			confidence LowCardinality(String)
		) ENGINE=MergeTree ORDER BY (pool_id, created_at)`,
			database, quotesTable),
	}
}

// AppendSnapshots inserts pool observations in chunks of 2000 rows.
func (s *ClickHouseAuditStore) AppendSnapshots(ctx context.Context, records []models.PoolRecord) error {
	if len(records) == 0 {
		return nil
	}

	const chunkSize = 2000
	for start := 0; start < len(records); start += chunkSize {
		end := start + chunkSize
		if end > len(records) {
			end = len(records)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*12)
		for _, r := range records[start:end] {
			if r.PoolID == "" || r.ObservedAt.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				r.ObservedAt,
				r.PoolID,
				r.Chain,
				r.Project,
				r.Symbol,
				r.TVLUsd,
				r.APY,
				r.APYBase,
				r.APYReward,
				boolToUint8(r.Stablecoin),
				r.ILRisk,
				r.Exposure,
			)
		}
		if len(values) == 0 {
			continue
		}

		q := fmt.Sprintf("INSERT INTO %s (observed_at, pool_id, chain, project, symbol, tvl_usd, apy, apy_base, apy_reward, stablecoin, il_risk, exposure) VALUES %s",
			s.snapshotsTable, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert snapshots: %w", err)
		}
	}
	return nil
}

// AppendQuotes inserts issued quotes. Quotes without a risk score are
// recorded with zeroed risk columns.
func (s *ClickHouseAuditStore) AppendQuotes(ctx context.Context, quotes []*models.InsuranceQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	const chunkSize = 2000
	for start := 0; start < len(quotes); start += chunkSize {
		end := start + chunkSize
		if end > len(quotes) {
			end = len(quotes)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*17)
		for _, q := range quotes[start:end] {
			if q == nil || q.PoolID == "" {
				continue
			}
			var riskTotal float64
			var riskBucket, riskConfidence string
			if q.Risk != nil {
				riskTotal = q.Risk.Total
				riskBucket = string(q.Risk.Bucket)
				riskConfidence = string(q.Risk.Confidence)
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				q.CreatedAt,
				q.ValidUntil,
				q.PoolID,
				q.Chain,
				q.Project,
				q.Symbol,
				q.DepositAmount,
				uint16(q.LockPeriodDays),
				q.PremiumUsd,
				q.CoverageUsd,
				q.CoverageRatio,
				q.AnnualPremiumRate,
				uint16(q.SuggestedLockDays),
				riskTotal,
				riskBucket,
				riskConfidence,
				string(q.Confidence),
			)
		}
		if len(values) == 0 {
			continue
		}

		query := fmt.Sprintf("INSERT INTO %s (created_at, valid_until, pool_id, chain, project, symbol, deposit_amount, lock_period_days, premium_usd, coverage_usd, coverage_ratio, annual_premium_rate, suggested_lock_days, risk_total, risk_bucket, risk_confidence, confidence) VALUES %s",
			s.quotesTable, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert quotes: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseAuditStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseAuditStore) Close() error {
	return nil // connection pool owned by pkg/clickhouse
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
