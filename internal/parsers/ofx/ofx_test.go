package ofx

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rumor-ml/commons.systems/bankimport/internal/parser"
)

func testMeta(t *testing.T) *parser.Metadata {
	t.Helper()
	meta, err := parser.NewMetadata("statement.ofx", 1, time.Now())
	if err != nil {
		t.Fatalf("failed to create metadata: %v", err)
	}
	return meta
}

func TestName(t *testing.T) {
	p := NewParser()
	if got := p.Name(); got != "ofx" {
		t.Errorf("Name() = %q, want %q", got, "ofx")
	}
}

func TestCanParse(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		header   string
		expected bool
	}{
		{
			name:     "OFX file with OFXHEADER marker",
			path:     "test.ofx",
			header:   "OFXHEADER:100\nDATA:OFXSGML\n",
			expected: true,
		},
		{
			name:     "OFX file with XML header",
			path:     "test.ofx",
			header:   "<?xml version=\"1.0\"?><?OFX OFXHEADER=\"200\"?>\n",
			expected: true,
		},
		{
			name:     "QFX file with OFXHEADER marker",
			path:     "test.qfx",
			header:   "OFXHEADER:100\nDATA:OFXSGML\n",
			expected: true,
		},
		{
			name:     "OFX extension uppercase",
			path:     "test.OFX",
			header:   "OFXHEADER:100\n",
			expected: true,
		},
		{
			name:     "OFX file without valid header",
			path:     "test.ofx",
			header:   "This is not OFX content",
			expected: false,
		},
		{
			name:     "CSV file",
			path:     "test.csv",
			header:   "Date,Description,Amount\n",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser()
			got := p.CanParse(tt.path, []byte(tt.header))
			if got != tt.expected {
				t.Errorf("CanParse() = %v, want %v", got, tt.expected)
			}
		})
	}
}

const syntheticStatement = `OFXHEADER:100
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
<DTSERVER>20260301120000
<LANGUAGE>ENG
<FI>
<ORG>TESTBANK
<FID>12345
</FI>
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
<CURDEF>EUR
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>9876543210
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20260301000000
<DTEND>20260331235959
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20260305120000
<TRNAMT>-50.00
<FITID>TXN001
<NAME>Hosting Provider
<MEMO>Invoice H-2026-112
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20260315120000
<TRNAMT>1000.00
<FITID>TXN002
<NAME>Acme BV
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>2000.00
<DTASOF>20260331235959
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

func TestParse_SyntheticBankStatement(t *testing.T) {
	p := NewParser()

	result, err := p.Parse(context.Background(), strings.NewReader(syntheticStatement), testMeta(t))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(result.Transactions) != 2 {
		t.Fatalf("got %d transactions, want 2", len(result.Transactions))
	}

	debit := result.Transactions[0]
	if got := debit.Amount().StringFixed(2); got != "-50.00" {
		t.Errorf("amount = %s; want -50.00", got)
	}
	if debit.SourceRef() != "TXN001" {
		t.Errorf("source ref = %q; want %q", debit.SourceRef(), "TXN001")
	}
	if debit.Counterparty() != "Hosting Provider" {
		t.Errorf("counterparty = %q; want %q", debit.Counterparty(), "Hosting Provider")
	}
	if debit.Description() != "Invoice H-2026-112" {
		t.Errorf("description = %q; want memo text", debit.Description())
	}

	credit := result.Transactions[1]
	if got := credit.Amount().StringFixed(2); got != "1000.00" {
		t.Errorf("amount = %s; want 1000.00", got)
	}
	// No memo: the name doubles as the description.
	if credit.Description() != "Acme BV" {
		t.Errorf("description = %q; want name fallback", credit.Description())
	}
	wantDate := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	if !credit.Date().Equal(wantDate) {
		t.Errorf("date = %s; want %s", credit.Date(), wantDate)
	}
}

func TestParse_InvalidOFX(t *testing.T) {
	p := NewParser()
	_, err := p.Parse(context.Background(), strings.NewReader("not an ofx file"), testMeta(t))
	if err == nil {
		t.Fatal("expected error for invalid OFX content")
	}
}

func TestParse_ContextCancellation(t *testing.T) {
	p := NewParser()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Parse(ctx, strings.NewReader(syntheticStatement), testMeta(t))
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
