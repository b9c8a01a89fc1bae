package models

// Grade classifies the share of valid records in a fetched set.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
)

var gradeRank = map[Grade]int{GradeA: 4, GradeB: 3, GradeC: 2, GradeD: 1}

// AtLeast reports whether g meets or exceeds min.
func (g Grade) AtLeast(min Grade) bool {
	return gradeRank[g] >= gradeRank[min]
}

// QualityReport summarizes validation of a fetched record set.
type QualityReport struct {
	Valid        bool     `json:"valid"`
	Grade        Grade    `json:"grade"`
	Completeness float64  `json:"completeness"`
	TotalRecords int      `json:"total_records"`
	ValidRecords int      `json:"valid_records"`
	Errors       []string `json:"errors,omitempty"`
}
