package quality

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"YieldGuard/internal/domain/models"
)

func goodRecord(id string) models.PoolRecord {
	return models.PoolRecord{
		PoolID:     id,
		Chain:      "Ethereum",
		Project:    "lido",
		Symbol:     "STETH",
		TVLUsd:     1_000_000,
		APY:        3.8,
		ObservedAt: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
	}
}

func TestValidateAllGood(t *testing.T) {
	records := []models.PoolRecord{goodRecord("a"), goodRecord("b"), goodRecord("c")}

	report := NewValidator().Validate(records)

	assert.True(t, report.Valid)
	assert.Equal(t, models.GradeA, report.Grade)
	assert.Equal(t, 1.0, report.Completeness)
	assert.Equal(t, 3, report.ValidRecords)
	assert.Empty(t, report.Errors)
}

func TestValidateGradesByCompleteness(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		broken    int
		wantGrade models.Grade
		wantValid bool
	}{
		{"pristine", 10, 0, models.GradeA, true},
		{"one bad in ten", 10, 1, models.GradeA, true},
		{"B band", 10, 2, models.GradeB, true},
		{"C band", 10, 3, models.GradeC, true},
		{"D band", 10, 4, models.GradeD, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var records []models.PoolRecord
			for i := 0; i < tt.total-tt.broken; i++ {
				records = append(records, goodRecord("ok"))
			}
			for i := 0; i < tt.broken; i++ {
				bad := goodRecord("bad")
				bad.TVLUsd = -1
				records = append(records, bad)
			}

			report := NewValidator().Validate(records)

			assert.Equal(t, tt.wantGrade, report.Grade)
			assert.Equal(t, tt.wantValid, report.Valid)
		})
	}
}

func TestValidateFlagsFieldErrors(t *testing.T) {
	missing := goodRecord("")
	missing.Chain = ""

	nanTVL := goodRecord("nan")
	nanTVL.TVLUsd = math.NaN()

	absurdAPY := goodRecord("apy")
	absurdAPY.APY = 12_000

	negativeAPY := goodRecord("neg")
	negativeAPY.APY = -2

	report := NewValidator().Validate([]models.PoolRecord{missing, nanTVL, absurdAPY, negativeAPY})

	assert.Zero(t, report.ValidRecords)
	assert.Equal(t, models.GradeD, report.Grade)
	assert.False(t, report.Valid)
	require.NotEmpty(t, report.Errors)
	assert.Contains(t, report.Errors[0], "missing pool id")
}

func TestValidateEmptySet(t *testing.T) {
	report := NewValidator().Validate(nil)

	assert.False(t, report.Valid)
	assert.Equal(t, models.GradeD, report.Grade)
	assert.Zero(t, report.Completeness)
	assert.Contains(t, report.Errors, "no records to validate")
}

func TestValidateConfigurableCeilingAndGrade(t *testing.T) {
	hot := goodRecord("hot")
	hot.APY = 450

	report := NewValidator(WithMaxAPY(200)).Validate([]models.PoolRecord{hot})
	assert.False(t, report.Valid)

	report = NewValidator(WithMaxAPY(500)).Validate([]models.PoolRecord{hot})
	assert.True(t, report.Valid)

	// Grade B set fails when the floor is raised to A.
	var records []models.PoolRecord
	for i := 0; i < 8; i++ {
		records = append(records, goodRecord("ok"))
	}
	bad := goodRecord("bad")
	bad.TVLUsd = -1
	records = append(records, bad, bad)

	strict := NewValidator(WithMinGrade(models.GradeA)).Validate(records)
	assert.Equal(t, models.GradeB, strict.Grade)
	assert.False(t, strict.Valid)
}
