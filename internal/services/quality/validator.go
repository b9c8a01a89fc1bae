package quality

import (
	"fmt"
	"math"

	"YieldGuard/internal/domain/models"
	domsvc "YieldGuard/internal/domain/service"
)

const defaultMaxAPYPercent = 1000.0

// Option configures Validator.
type Option func(*Validator)

// Validator grades fetched record sets. It reports, never errors: callers
// decide whether a grade is good enough for their purpose.
type Validator struct {
	maxAPYPercent float64
	minGrade      models.Grade
}

var _ domsvc.RecordValidator = (*Validator)(nil)

// NewValidator creates a validator.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{
		maxAPYPercent: defaultMaxAPYPercent,
		minGrade:      models.GradeC,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// WithMaxAPY sets the APY sanity ceiling in percent.
func WithMaxAPY(ceiling float64) Option {
	return func(v *Validator) {
		if ceiling > 0 {
			v.maxAPYPercent = ceiling
		}
	}
}

// WithMinGrade sets the grade a set must reach to be marked valid.
func WithMinGrade(grade models.Grade) Option {
	return func(v *Validator) {
		if grade != "" {
			v.minGrade = grade
		}
	}
}

// Validate checks every record and grades the set by the share that passed.
// A ≥0.90, B ≥0.80, C ≥0.70, else D; the set is valid when the grade meets
// the configured minimum. An empty set is invalid with grade D.
func (v *Validator) Validate(records []models.PoolRecord) *models.QualityReport {
	report := &models.QualityReport{
		Grade:        models.GradeD,
		TotalRecords: len(records),
	}
	if len(records) == 0 {
		report.Errors = append(report.Errors, "no records to validate")
		return report
	}

	for i, rec := range records {
		if errs := v.checkRecord(rec); len(errs) > 0 {
			for _, msg := range errs {
				report.Errors = append(report.Errors, fmt.Sprintf("record %d (%s): %s", i, rec.PoolID, msg))
			}
			continue
		}
		report.ValidRecords++
	}

	report.Completeness = float64(report.ValidRecords) / float64(report.TotalRecords)
	report.Grade = gradeFor(report.Completeness)
	report.Valid = report.Grade.AtLeast(v.minGrade)
	return report
}

func (v *Validator) checkRecord(rec models.PoolRecord) []string {
	var errs []string
	if rec.PoolID == "" {
		errs = append(errs, "missing pool id")
	}
	if rec.Chain == "" {
		errs = append(errs, "missing chain")
	}
	if rec.Project == "" {
		errs = append(errs, "missing project")
	}
	if rec.Symbol == "" {
		errs = append(errs, "missing symbol")
	}
	if math.IsNaN(rec.TVLUsd) || math.IsInf(rec.TVLUsd, 0) || rec.TVLUsd < 0 {
		errs = append(errs, "tvl out of range")
	}
	if math.IsNaN(rec.APY) || math.IsInf(rec.APY, 0) || rec.APY < 0 || rec.APY > v.maxAPYPercent {
		errs = append(errs, fmt.Sprintf("apy outside [0, %.0f]", v.maxAPYPercent))
	}
	return errs
}

func gradeFor(completeness float64) models.Grade {
	switch {
	case completeness >= 0.90:
		return models.GradeA
	case completeness >= 0.80:
		return models.GradeB
	case completeness >= 0.70:
		return models.GradeC
	default:
		return models.GradeD
	}
}
