package service

import (
	"YieldGuard/internal/domain/models"
)

// RecordValidator grades a fetched record set before it is served or priced.
type RecordValidator interface {
	Validate(records []models.PoolRecord) *models.QualityReport
}

// RiskScorer computes the composite risk score for a pool from its history.
type RiskScorer interface {
	Score(pool *models.PoolRecord, series *models.HistoricalSeries) *models.RiskScore
}

// QuotePricer turns a request, a pool snapshot and a risk score into an
// insurance quote. Pricing is deterministic for fixed inputs.
type QuotePricer interface {
	Price(req *models.QuoteRequest, pool *models.PoolRecord, risk *models.RiskScore) (*models.InsuranceQuote, error)
}

// CallBuilder prepares unsigned contract call parameters.
type CallBuilder interface {
	BuildDeposit(contractID, depositor string, amountUsd float64, insurancePercent int) (*models.CallParameters, error)
	BuildBuyInsurance(contractID, holder string, quote *models.InsuranceQuote) (*models.CallParameters, error)
}
