// Package ofx reads OFX/QFX statements into transaction records.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-categorizer/internal/model"
)

// Extra record keys set alongside the required fields.
const (
	KeyID          = "id"
	KeyDate        = "date"
	KeyAccountID   = "account_id"
	KeyMerchant    = "merchant"
	KeyCheckNumber = "check_number"
	KeyDirection   = "direction"
)

// Directions stored under KeyDirection.
const (
	DirectionDebit  = "debit"
	DirectionCredit = "credit"
)

var (
	severityPattern = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	openTagPattern  = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

var cardPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"COMPRA CARTAO ",
	"COMPRA NO DEBITO ",
	"PAG BOLETO ",
	"ACH DEBIT ",
	"VISA PURCHASE ",
}

var genericDescriptions = map[string]bool{
	"DEBIT":           true,
	"CREDIT":          true,
	"PAYMENT":         true,
	"PURCHASE":        true,
	"PAGAMENTO":       true,
	"COMPRA":          true,
	"TRANSFERENCIA":   true,
	"POS TRANSACTION": true,
}

// Parser reads OFX/QFX statements.
type Parser struct{}

// NewParser creates a new OFX parser.
func NewParser() *Parser {
	return &Parser{}
}

// preprocess fixes formatting issues common in bank exports.
func preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityPattern.ReplaceAllStringFunc(content, strings.ToUpper)
	return openTagPattern.ReplaceAllString(content, "$1>")
}

func (p *Parser) parse(reader io.Reader) (*ofxgo.Response, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}
	return resp, nil
}

// ParseFile parses an OFX/QFX statement and returns one record per transaction.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) ([]model.Record, error) {
	resp, err := p.parse(reader)
	if err != nil {
		return nil, err
	}

	var records []model.Record
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		bankStmts++
		for _, tx := range stmt.BankTranList.Transactions {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			records = append(records, p.convert(tx, string(stmt.BankAcctFrom.AcctID)))
		}
	}

	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok || stmt.BankTranList == nil {
			continue
		}
		ccStmts++
		for _, tx := range stmt.BankTranList.Transactions {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			records = append(records, p.convert(tx, string(stmt.CCAcctFrom.AcctID)))
		}
	}

	slog.Info("parsed OFX file",
		"records", len(records),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return records, nil
}

// convert maps an OFX transaction onto a record. Amounts are unsigned; the
// sign is kept under KeyDirection.
func (p *Parser) convert(tx ofxgo.Transaction, accountID string) model.Record {
	amount, err := decimal.NewFromString(tx.TrnAmt.FloatString(2))
	if err != nil {
		slog.Warn("unparseable OFX amount", "fitid", string(tx.FiTID), "error", err)
	}

	direction := DirectionCredit
	if amount.IsNegative() {
		direction = DirectionDebit
	}

	record := model.NewRecord(description(tx), amount.Abs(), tx.TrnType.String())
	record[KeyID] = string(tx.FiTID)
	record[KeyDate] = tx.DtPosted.Time
	record[KeyAccountID] = accountID
	record[KeyMerchant] = p.merchantName(tx)
	record[KeyDirection] = direction
	if tx.CheckNum != "" {
		record[KeyCheckNumber] = string(tx.CheckNum)
	}
	return record
}

// description prefers NAME and falls back to MEMO when NAME is generic.
func description(tx ofxgo.Transaction) string {
	name := strings.TrimSpace(string(tx.Name))
	if tx.Memo != "" && (name == "" || genericDescriptions[strings.ToUpper(name)]) {
		return strings.TrimSpace(string(tx.Memo))
	}
	return name
}

// merchantName derives a cleaned merchant name from PAYEE or the description.
func (p *Parser) merchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := description(tx)
	upper := strings.ToUpper(name)
	for _, prefix := range cardPrefixes {
		if strings.HasPrefix(upper, prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Strip a leading "DD/MM " date stamp.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = name[6:]
	}
	return strings.TrimSpace(name)
}

// Accounts returns the distinct account ids present in the statement.
func (p *Parser) Accounts(reader io.Reader) ([]string, error) {
	resp, err := p.parse(reader)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var accounts []string
	add := func(id ofxgo.String) {
		if id != "" && !seen[string(id)] {
			seen[string(id)] = true
			accounts = append(accounts, string(id))
		}
	}

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			add(stmt.BankAcctFrom.AcctID)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			add(stmt.CCAcctFrom.AcctID)
		}
	}
	return accounts, nil
}
