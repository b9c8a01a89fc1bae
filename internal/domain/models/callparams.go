package models

import "time"

// CallParameters describes a prepared, unsigned contract invocation. The
// service never signs or submits; it only shapes arguments.
type CallParameters struct {
	ContractID string    `json:"contract_id"`
	Method     string    `json:"method"`
	Args       []CallArg `json:"args"`
	Memo       string    `json:"memo,omitempty"`
	PreparedAt time.Time `json:"prepared_at"`
}

// CallArg is a single positional argument. Values are decimal strings so
// 128-bit amounts survive JSON transport untouched.
type CallArg struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value string `json:"value"`
}
