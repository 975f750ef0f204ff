package rules

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/spice-categorizer/internal/model"
)

func record(description string, amount string, txnType string) model.Record {
	return model.NewRecord(description, decimal.RequireFromString(amount), txnType)
}

func TestEvaluate_TextOperators(t *testing.T) {
	tests := []struct {
		name   string
		rec    model.Record
		value  string
		field  model.FieldName
		op     Operator
		wantOK bool
	}{
		{
			name:   "contains lower rule upper field",
			op:     OpContains,
			field:  model.FieldDescription,
			value:  "supermercado",
			rec:    record("COMPRA NO SUPERMERCADO", "50.00", "DEBIT"),
			wantOK: true,
		},
		{
			name:   "contains upper rule lower field",
			op:     OpContains,
			field:  model.FieldDescription,
			value:  "SUPERMERCADO",
			rec:    record("compra no supermercado", "50.00", "DEBIT"),
			wantOK: true,
		},
		{
			name:   "contains no match",
			op:     OpContains,
			field:  model.FieldDescription,
			value:  "farmacia",
			rec:    record("Compra no supermercado", "50.00", "DEBIT"),
			wantOK: false,
		},
		{
			name:   "equals amount keeps trailing zero",
			op:     OpEquals,
			field:  model.FieldAmount,
			value:  "19.90",
			rec:    record("x", "19.90", "DEBIT"),
			wantOK: true,
		},
		{
			name:   "equals whole amount with cents",
			op:     OpEquals,
			field:  model.FieldAmount,
			value:  "50.00",
			rec:    record("x", "50.00", "DEBIT"),
			wantOK: true,
		},
		{
			name:   "in list amount keeps trailing zero",
			op:     OpInList,
			field:  model.FieldAmount,
			value:  "9.90, 19.90",
			rec:    record("x", "19.90", "DEBIT"),
			wantOK: true,
		},
		{
			name:   "contains amount cents",
			op:     OpContains,
			field:  model.FieldAmount,
			value:  ".90",
			rec:    record("x", "19.90", "DEBIT"),
			wantOK: true,
		},
		{
			name:   "equals mixed case",
			op:     OpEquals,
			field:  model.FieldTransactionType,
			value:  "Debit",
			rec:    record("x", "1", "DEBIT"),
			wantOK: true,
		},
		{
			name:   "equals requires full string",
			op:     OpEquals,
			field:  model.FieldDescription,
			value:  "uber",
			rec:    record("Uber trip", "1", "DEBIT"),
			wantOK: false,
		},
		{
			name:   "starts with",
			op:     OpStartsWith,
			field:  model.FieldDescription,
			value:  "pix",
			rec:    record("PIX recebido", "1", "CREDIT"),
			wantOK: true,
		},
		{
			name:   "starts with mismatch",
			op:     OpStartsWith,
			field:  model.FieldDescription,
			value:  "ted",
			rec:    record("PIX recebido", "1", "CREDIT"),
			wantOK: false,
		},
		{
			name:   "ends with",
			op:     OpEndsWith,
			field:  model.FieldDescription,
			value:  "LTDA",
			rec:    record("Padaria Central ltda", "1", "DEBIT"),
			wantOK: true,
		},
		{
			name:   "in list trims and lowercases",
			op:     OpInList,
			field:  model.FieldTransactionType,
			value:  "debit , Credit,  TRANSFER",
			rec:    record("x", "1", "credit"),
			wantOK: true,
		},
		{
			name:   "in list is membership not substring",
			op:     OpInList,
			field:  model.FieldTransactionType,
			value:  "DEBIT,CREDIT",
			rec:    record("x", "1", "DEB"),
			wantOK: false,
		},
		{
			name:   "contains on amount uses string form",
			op:     OpContains,
			field:  model.FieldAmount,
			value:  "99",
			rec:    record("x", "199.90", "DEBIT"),
			wantOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := NewCondition(tt.field, tt.op, tt.value)
			assert.Equal(t, tt.wantOK, Evaluate(cond, tt.rec))

			// A literal condition that skipped NewCondition behaves the same.
			literal := Condition{Field: tt.field, Operator: tt.op, Value: tt.value}
			assert.Equal(t, tt.wantOK, Evaluate(literal, tt.rec))
		})
	}
}

func TestEvaluate_MissingNullAndEmptyNeverMatch(t *testing.T) {
	textOps := []Operator{OpEquals, OpContains, OpStartsWith, OpEndsWith, OpRegex, OpInList}

	records := map[string]model.Record{
		"missing": {"amount": decimal.NewFromInt(1), "transaction_type": "DEBIT"},
		"nil":     {"description": nil, "amount": decimal.NewFromInt(1), "transaction_type": "DEBIT"},
		"empty":   {"description": "", "amount": decimal.NewFromInt(1), "transaction_type": "DEBIT"},
		"nil ptr": {"description": (*string)(nil), "amount": decimal.NewFromInt(1), "transaction_type": "DEBIT"},
	}

	for name, rec := range records {
		for _, op := range textOps {
			t.Run(name+"/"+op.String(), func(t *testing.T) {
				// An empty rule value would otherwise match everything.
				cond := NewCondition(model.FieldDescription, op, "")
				assert.NotPanics(t, func() {
					assert.False(t, Evaluate(cond, rec))
				})
			})
		}
	}
}

func TestEvaluate_NumericOperators(t *testing.T) {
	tests := []struct {
		amount any
		name   string
		value  string
		op     Operator
		want   bool
	}{
		{name: "greater than matches", op: OpGreaterThan, value: "100.00", amount: decimal.RequireFromString("150.00"), want: true},
		{name: "greater than is strict", op: OpGreaterThan, value: "100.00", amount: decimal.RequireFromString("100.00"), want: false},
		{name: "greater than strict across scale", op: OpGreaterThan, value: "100", amount: decimal.RequireFromString("100.000"), want: false},
		{name: "less than matches", op: OpLessThan, value: "10", amount: decimal.RequireFromString("9.99"), want: true},
		{name: "less than is strict", op: OpLessThan, value: "10", amount: decimal.RequireFromString("10"), want: false},
		{name: "greater equal includes boundary", op: OpGreaterEqual, value: "10", amount: decimal.RequireFromString("10.00"), want: true},
		{name: "less equal includes boundary", op: OpLessEqual, value: "10", amount: decimal.RequireFromString("10.00"), want: true},
		{name: "float field", op: OpGreaterThan, value: "100.00", amount: 150.5, want: true},
		{name: "int field", op: OpLessThan, value: "100.00", amount: 99, want: true},
		{name: "string field", op: OpGreaterThan, value: "100.00", amount: " 150.00 ", want: true},
		{name: "json number field", op: OpGreaterThan, value: "100.00", amount: json.Number("100.01"), want: true},
		{name: "negative amounts", op: OpLessThan, value: "0", amount: decimal.RequireFromString("-25.50"), want: true},
		{name: "non numeric field", op: OpGreaterThan, value: "100.00", amount: "abc", want: false},
		{name: "non numeric literal", op: OpGreaterThan, value: "lots", amount: decimal.RequireFromString("150.00"), want: false},
		{name: "unsupported type", op: OpGreaterThan, value: "1", amount: []int{1}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := model.Record{"description": "x", "amount": tt.amount, "transaction_type": "DEBIT"}
			cond := NewCondition(model.FieldAmount, tt.op, tt.value)
			assert.Equal(t, tt.want, Evaluate(cond, rec))
		})
	}
}

func TestEvaluate_Regex(t *testing.T) {
	cond := NewCondition(model.FieldDescription, OpRegex, `^PIX.*\d{4}`)

	assert.True(t, Evaluate(cond, record("PIX para João 1234", "10", "DEBIT")))
	assert.False(t, Evaluate(cond, record("PIX para João", "10", "DEBIT")))
	assert.True(t, Evaluate(cond, record("pix para joão 9876", "10", "DEBIT")), "regex is case-insensitive")
	assert.True(t, Evaluate(NewCondition(model.FieldDescription, OpRegex, "mercado"), record("Supermercado X", "1", "DEBIT")),
		"regex matches anywhere in the string")
}

func TestEvaluate_InvalidRegexIsFalse(t *testing.T) {
	cond := NewCondition(model.FieldDescription, OpRegex, "([unclosed")

	assert.NotPanics(t, func() {
		assert.False(t, Evaluate(cond, record("([unclosed", "1", "DEBIT")))
	})
}

func TestEvaluate_InvalidOperatorIsFalse(t *testing.T) {
	cond := Condition{Field: model.FieldDescription, Value: "x"}
	assert.False(t, Evaluate(cond, record("x", "1", "DEBIT")))
}

func TestEvaluateAll(t *testing.T) {
	rec := record("Uber trip", "35.00", "DEBIT")
	isUber := NewCondition(model.FieldDescription, OpContains, "uber")
	isBig := NewCondition(model.FieldAmount, OpGreaterThan, "100")

	tests := []struct {
		name  string
		conds []Condition
		comb  Combinator
		want  bool
	}{
		{name: "empty AND is true", conds: nil, comb: And, want: true},
		{name: "empty OR is true", conds: []Condition{}, comb: Or, want: true},
		{name: "empty with unknown combinator is true", conds: nil, comb: Combinator("XOR"), want: true},
		{name: "AND one false", conds: []Condition{isUber, isBig}, comb: And, want: false},
		{name: "OR one true", conds: []Condition{isUber, isBig}, comb: Or, want: true},
		{name: "AND single true", conds: []Condition{isUber}, comb: And, want: true},
		{name: "OR single false", conds: []Condition{isBig}, comb: Or, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EvaluateAll(tt.conds, rec, tt.comb)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateAll_UnknownCombinator(t *testing.T) {
	rec := record("Uber trip", "35.00", "DEBIT")
	isUber := NewCondition(model.FieldDescription, OpContains, "uber")

	got, err := EvaluateAll([]Condition{isUber}, rec, Combinator("XOR"))
	assert.ErrorIs(t, err, ErrUnknownCombinator)
	assert.False(t, got)
}

func TestParseCombinator(t *testing.T) {
	c, err := ParseCombinator(" and ")
	assert.NoError(t, err)
	assert.Equal(t, And, c)

	c, err = ParseCombinator("OR")
	assert.NoError(t, err)
	assert.Equal(t, Or, c)

	_, err = ParseCombinator("NAND")
	assert.ErrorIs(t, err, ErrUnknownCombinator)
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "50.5", stringify(50.5))
	assert.Equal(t, "150.0", stringify(150.0))
	assert.Equal(t, "50", stringify(decimal.RequireFromString("50")))
	assert.Equal(t, "19.90", stringify(decimal.RequireFromString("19.90")))
	assert.Equal(t, "50.00", stringify(decimal.RequireFromString("50.00")))
	assert.Equal(t, "42", stringify(42))
	assert.Equal(t, "true", stringify(true))
	assert.Equal(t, "12.30", stringify(json.Number("12.30")))
}
