package models

import "time"

// QuoteRequest asks for insurance terms on a planned deposit.
type QuoteRequest struct {
	PoolID         string  `json:"pool_id" validate:"required"`
	DepositAmount  float64 `json:"deposit_amount" validate:"required,gt=0"`
	LockPeriodDays int     `json:"lock_period_days" default:"30" validate:"gt=0,lte=365"`
}

// InsuranceQuote is a priced, time-boxed insurance offer. All money values
// are USD. Two quotes computed from the same snapshot and request differ
// only in CreatedAt/ValidUntil.
type InsuranceQuote struct {
	PoolID            string          `json:"pool_id"`
	Chain             string          `json:"chain"`
	Project           string          `json:"project"`
	Symbol            string          `json:"symbol"`
	DepositAmount     float64         `json:"deposit_amount"`
	LockPeriodDays    int             `json:"lock_period_days"`
	PremiumUsd        float64         `json:"premium_usd"`
	CoverageUsd       float64         `json:"coverage_usd"`
	CoverageRatio     float64         `json:"coverage_ratio"`
	AnnualPremiumRate float64         `json:"annual_premium_rate"`
	SuggestedLockDays int             `json:"suggested_lock_days"`
	Risk              *RiskScore      `json:"risk"`
	Confidence        ConfidenceLevel `json:"confidence"`
	CreatedAt         time.Time       `json:"created_at"`
	ValidUntil        time.Time       `json:"valid_until"`
}

// Expired reports whether the quote validity window has passed.
func (q *InsuranceQuote) Expired(now time.Time) bool {
	return now.After(q.ValidUntil)
}
