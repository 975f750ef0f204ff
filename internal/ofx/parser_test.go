package ofx

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-categorizer/internal/model"
)

const checkingStatement = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[-3:BRT]
<LANGUAGE>POR
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>BRL
<BANKACCTFROM>
<BANKID>341
<ACCTID>00012345
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[-3:BRT]
<DTEND>20240131120000[-3:BRT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240115120000[-3:BRT]
<TRNAMT>-50.00
<FITID>2024011501
<NAME>COMPRA CARTAO SUPERMERCADO PAO
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20240120120000[-3:BRT]
<TRNAMT>3500.00
<FITID>2024012001
<NAME>SALARIO ACME LTDA
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240125120000[-3:BRT]
<TRNAMT>-120.35
<FITID>2024012501
<NAME>PAGAMENTO
<MEMO>PIX para Joao 1234
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20240131120000[-3:BRT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

const cardStatement = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>POR
</SONRS>
</SIGNONMSGSRSV1>
<CREDITCARDMSGSRSV1>
<CCSTMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<CCSTMTRS>
<CURDEF>BRL
<CCACCTFROM>
<ACCTID>5500000000000004
</CCACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20240110120000[0:GMT]
<TRNAMT>-23.90
<FITID>CC2024011001
<NAME>UBER *TRIP
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>-23.90
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</CCSTMTRS>
</CCSTMTTRNRS>
</CREDITCARDMSGSRSV1>
</OFX>`

func TestParseFile(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    int
		wantErr bool
	}{
		{name: "checking statement", data: checkingStatement, want: 3},
		{name: "credit card statement", data: cardStatement, want: 1},
		{name: "invalid data", data: "not valid OFX", wantErr: true},
		{name: "empty", data: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := NewParser().ParseFile(context.Background(), strings.NewReader(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, records, tt.want)
			for _, r := range records {
				assert.NoError(t, r.Validate())
			}
		})
	}
}

func TestParseFile_RecordFields(t *testing.T) {
	records, err := NewParser().ParseFile(context.Background(), strings.NewReader(checkingStatement))
	require.NoError(t, err)
	require.Len(t, records, 3)

	groceries := records[0]
	assert.Equal(t, "COMPRA CARTAO SUPERMERCADO PAO", groceries[string(model.FieldDescription)])
	assert.True(t, decimal.RequireFromString("50").Equal(groceries[string(model.FieldAmount)].(decimal.Decimal)))
	assert.Equal(t, "DEBIT", groceries[string(model.FieldTransactionType)])
	assert.Equal(t, DirectionDebit, groceries[KeyDirection])
	assert.Equal(t, "2024011501", groceries[KeyID])
	assert.Equal(t, "00012345", groceries[KeyAccountID])
	assert.Equal(t, "SUPERMERCADO PAO", groceries[KeyMerchant])

	date, ok := groceries[KeyDate].(time.Time)
	require.True(t, ok)
	assert.Equal(t, 2024, date.Year())
	assert.Equal(t, time.January, date.Month())

	salary := records[1]
	assert.Equal(t, DirectionCredit, salary[KeyDirection])
	assert.Equal(t, "CREDIT", salary[string(model.FieldTransactionType)])

	pix := records[2]
	assert.Equal(t, "PIX para Joao 1234", pix[string(model.FieldDescription)])
	assert.True(t, decimal.RequireFromString("120.35").Equal(pix[string(model.FieldAmount)].(decimal.Decimal)))
}

func TestParseFile_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewParser().ParseFile(ctx, strings.NewReader(checkingStatement))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMerchantName(t *testing.T) {
	parser := NewParser()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "card prefix", input: "COMPRA CARTAO PADARIA", want: "PADARIA"},
		{name: "english prefix", input: "DEBIT CARD PURCHASE WHOLE FOODS", want: "WHOLE FOODS"},
		{name: "date stamp", input: "15/01 IFOOD", want: "IFOOD"},
		{name: "clean name", input: "NETFLIX.COM", want: "NETFLIX.COM"},
		{name: "whitespace", input: "  UBER  ", want: "UBER"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := ofxgo.Transaction{Name: ofxgo.String(tt.input)}
			assert.Equal(t, tt.want, parser.merchantName(tx))
		})
	}

	withPayee := ofxgo.Transaction{Name: "X", Payee: &ofxgo.Payee{Name: "Padaria Central"}}
	assert.Equal(t, "Padaria Central", parser.merchantName(withPayee))
}

func TestAccounts(t *testing.T) {
	parser := NewParser()

	accounts, err := parser.Accounts(strings.NewReader(checkingStatement))
	require.NoError(t, err)
	assert.Equal(t, []string{"00012345"}, accounts)

	accounts, err = parser.Accounts(strings.NewReader(cardStatement))
	require.NoError(t, err)
	assert.Equal(t, []string{"5500000000000004"}, accounts)
}
