package models

import "time"

// ConfidenceLevel grades how much history backs a figure.
type ConfidenceLevel string

const (
	ConfidenceHigh    ConfidenceLevel = "HIGH"
	ConfidenceMedium  ConfidenceLevel = "MEDIUM"
	ConfidenceLow     ConfidenceLevel = "LOW"
	ConfidenceVeryLow ConfidenceLevel = "VERY_LOW"
)

// RiskBucket is the coarse class derived from the composite score.
type RiskBucket string

const (
	BucketVeryLow RiskBucket = "VERY_LOW"
	BucketLow     RiskBucket = "LOW"
	BucketMedium  RiskBucket = "MEDIUM"
	BucketHigh    RiskBucket = "HIGH"
)

// BucketForScore maps a composite score to its bucket. The mapping is the
// single source of truth for bucket boundaries.
func BucketForScore(total float64) RiskBucket {
	switch {
	case total >= 70:
		return BucketHigh
	case total >= 50:
		return BucketMedium
	case total >= 30:
		return BucketLow
	default:
		return BucketVeryLow
	}
}

// RiskScore is the composite risk assessment for a pool, on a 0-100 scale
// where higher means riskier.
type RiskScore struct {
	PoolID               string             `json:"pool_id"`
	Total                float64            `json:"total"`
	Bucket               RiskBucket         `json:"bucket"`
	Components           map[string]float64 `json:"components"`
	AnnualizedVolatility float64            `json:"annualized_volatility"`
	MaxDrawdown          float64            `json:"max_drawdown"`
	Confidence           ConfidenceLevel    `json:"confidence"`
	DataPoints           int                `json:"data_points"`
	Drivers              []string           `json:"drivers,omitempty"`
	ComputedAt           time.Time          `json:"computed_at"`
}

// Component keys present in RiskScore.Components.
const (
	ComponentVolatility  = "volatility"
	ComponentMaxDrawdown = "max_drawdown"
	ComponentConfidence  = "confidence_penalty"
	ComponentTVL         = "tvl_penalty"
)
