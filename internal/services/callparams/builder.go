package callparams

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"YieldGuard/internal/domain/models"
	domsvc "YieldGuard/internal/domain/service"
)

// Contract methods prepared by the builder.
const (
	MethodDeposit      = "deposit"
	MethodBuyInsurance = "buyInsurance"
)

const (
	stroopScale  = 1e7
	bpsScale     = 10_000
	maxPercent   = 100
	maxRiskScore = 100
)

// Option configures Builder.
type Option func(*Builder)

// Builder prepares unsigned settlement-contract invocations. Amounts are
// serialized as 7-decimal fixed-point integer strings to match the
// contracts' fixed-point math.
type Builder struct {
	now func() time.Time
}

var _ domsvc.CallBuilder = (*Builder)(nil)

// NewBuilder creates a call parameter builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// BuildDeposit shapes a yield-contract deposit call. The insurance percent
// is the share of the deposit routed to the insurance reserve.
func (b *Builder) BuildDeposit(contractID, depositor string, amountUsd float64, insurancePercent int) (*models.CallParameters, error) {
	if contractID == "" {
		return nil, models.InvalidInputError("contract_id", "contract id is required")
	}
	if depositor == "" {
		return nil, models.InvalidInputError("depositor", "depositor address is required")
	}
	amount, err := fixedPoint(amountUsd)
	if err != nil {
		return nil, models.InvalidInputError("amount", err.Error())
	}
	if insurancePercent < 0 || insurancePercent > maxPercent {
		return nil, models.InvalidInputError("insurance_percent", "insurance percent must be between 0 and 100")
	}

	return &models.CallParameters{
		ContractID: contractID,
		Method:     MethodDeposit,
		Args: []models.CallArg{
			{Name: "depositor", Type: "address", Value: depositor},
			{Name: "amount", Type: "i128", Value: amount},
			{Name: "insurance_percent", Type: "u32", Value: strconv.Itoa(insurancePercent)},
		},
		PreparedAt: b.now().UTC(),
	}, nil
}

// BuildBuyInsurance shapes an insurance-contract purchase call from an
// issued quote. The annual premium rate rides along in the memo as basis
// points, the unit the contracts store premium percentages in.
func (b *Builder) BuildBuyInsurance(contractID, holder string, quote *models.InsuranceQuote) (*models.CallParameters, error) {
	if contractID == "" {
		return nil, models.InvalidInputError("contract_id", "contract id is required")
	}
	if holder == "" {
		return nil, models.InvalidInputError("holder", "holder address is required")
	}
	if quote == nil {
		return nil, models.InvalidInputError("quote", "quote is required")
	}
	if quote.Risk == nil {
		return nil, models.InvalidInputError("quote", "quote is missing its risk score")
	}

	premium, err := fixedPoint(quote.PremiumUsd)
	if err != nil {
		return nil, models.InvalidInputError("premium", err.Error())
	}
	coverage, err := fixedPoint(quote.CoverageUsd)
	if err != nil {
		return nil, models.InvalidInputError("coverage", err.Error())
	}
	if quote.LockPeriodDays <= 0 {
		return nil, models.InvalidInputError("lock_period_days", "lock period must be positive")
	}
	riskScore := int(math.Round(quote.Risk.Total))
	if riskScore < 0 || riskScore > maxRiskScore {
		return nil, models.InvalidInputError("risk_score", "risk score must be between 0 and 100")
	}

	bps := int(math.Round(quote.AnnualPremiumRate * bpsScale))

	return &models.CallParameters{
		ContractID: contractID,
		Method:     MethodBuyInsurance,
		Args: []models.CallArg{
			{Name: "holder", Type: "address", Value: holder},
			{Name: "premium", Type: "i128", Value: premium},
			{Name: "coverage", Type: "i128", Value: coverage},
			{Name: "lock_period_days", Type: "u32", Value: strconv.Itoa(quote.LockPeriodDays)},
			{Name: "risk_score", Type: "u32", Value: strconv.Itoa(riskScore)},
		},
		Memo:       fmt.Sprintf("pool=%s premium_bps=%d", quote.PoolID, bps),
		PreparedAt: b.now().UTC(),
	}, nil
}

// fixedPoint converts a USD amount to a 7-decimal fixed-point integer
// string.
func fixedPoint(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return "", fmt.Errorf("amount must be a positive number")
	}
	scaled := math.Round(v * stroopScale)
	if scaled > math.MaxInt64 {
		return "", fmt.Errorf("amount too large")
	}
	if scaled <= 0 {
		return "", fmt.Errorf("amount rounds to zero")
	}
	return strconv.FormatInt(int64(scaled), 10), nil
}
