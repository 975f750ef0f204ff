package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RequiredRecordFields must be present in every record handed to the categorizer.
var RequiredRecordFields = []FieldName{
	FieldDescription,
	FieldAmount,
	FieldTransactionType,
}

// Record is an immutable field to value mapping describing one transaction.
// Values are typically strings, decimal.Decimal or numbers; other keys may be present.
type Record map[string]any

// NewRecord builds a record carrying the three required fields.
func NewRecord(description string, amount decimal.Decimal, transactionType string) Record {
	return Record{
		string(FieldDescription):     description,
		string(FieldAmount):          amount,
		string(FieldTransactionType): transactionType,
	}
}

// Get returns the raw value stored under field.
func (r Record) Get(field FieldName) (any, bool) {
	v, ok := r[string(field)]
	return v, ok
}

// With returns a copy of r with key set to value.
func (r Record) With(key string, value any) Record {
	out := make(Record, len(r)+1)
	for k, v := range r {
		out[k] = v
	}
	out[key] = value
	return out
}

// Validate checks that every required field key is present.
func (r Record) Validate() error {
	for _, field := range RequiredRecordFields {
		if _, ok := r[string(field)]; !ok {
			return fmt.Errorf("record is missing required field %q", field)
		}
	}
	return nil
}

// Stats summarizes a categorization run.
type Stats struct {
	Total         int     `json:"total_transactions"`
	Categorized   int     `json:"categorized_transactions"`
	Uncategorized int     `json:"uncategorized_transactions"`
	Rate          float64 `json:"categorization_rate"`
}
