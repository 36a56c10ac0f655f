package camt

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rumor-ml/commons.systems/bankimport/internal/parser"
)

func testMeta(t *testing.T) *parser.Metadata {
	t.Helper()
	meta, err := parser.NewMetadata("camt053.xml", 1, time.Now())
	if err != nil {
		t.Fatalf("failed to create metadata: %v", err)
	}
	return meta
}

const sampleDocument = `<?xml version="1.0" encoding="UTF-8"?>
<Document xmlns="urn:iso:std:iso:20022:tech:xsd:camt.053.001.02">
  <BkToCstmrStmt>
    <Stmt>
      <Ntry>
        <NtryRef>2026-0001</NtryRef>
        <Amt Ccy="EUR">1210.00</Amt>
        <CdtDbtInd>CRDT</CdtDbtInd>
        <BookgDt><Dt>2026-03-02</Dt></BookgDt>
        <NtryDtls>
          <TxDtls>
            <RltdPties>
              <Dbtr><Nm>Acme BV</Nm></Dbtr>
              <DbtrAcct><Id><IBAN>NL44INGB0001234567</IBAN></Id></DbtrAcct>
            </RltdPties>
            <RmtInf>
              <Ustrd>Invoice 2026-042</Ustrd>
              <Ustrd>March consulting</Ustrd>
            </RmtInf>
          </TxDtls>
        </NtryDtls>
      </Ntry>
      <Ntry>
        <AcctSvcrRef>SVCR-77</AcctSvcrRef>
        <Amt Ccy="EUR">142.50</Amt>
        <CdtDbtInd>DBIT</CdtDbtInd>
        <BookgDt><DtTm>2026-03-05T09:30:00Z</DtTm></BookgDt>
        <NtryDtls>
          <TxDtls>
            <RltdPties>
              <Cdtr><Nm>Hosting Provider BV</Nm></Cdtr>
              <CdtrAcct><Id><IBAN>NL02RABO0123456789</IBAN></Id></CdtrAcct>
            </RltdPties>
            <RmtInf><Ustrd>Invoice H-2026-112</Ustrd></RmtInf>
          </TxDtls>
        </NtryDtls>
      </Ntry>
    </Stmt>
  </BkToCstmrStmt>
</Document>
`

func TestCanParse(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name     string
		filename string
		header   string
		want     bool
	}{
		{"xml extension", "statement.xml", "<?xml version=\"1.0\"?>", true},
		{"camt namespace in header", "download", "<?xml version=\"1.0\"?><Document xmlns=\"urn:iso:std:iso:20022:tech:xsd:camt.053.001.02\">", true},
		{"statement root in header", "download", "<Document><BkToCstmrStmt>", true},
		{"plain text", "export.csv", "Date,Amount", false},
		{"mt940 content", "export.sta", ":20:ref", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.CanParse(tt.filename, []byte(tt.header)); got != tt.want {
				t.Errorf("CanParse(%q) = %v; want %v", tt.filename, got, tt.want)
			}
		})
	}
}

func TestParse_Document(t *testing.T) {
	p := NewParser()

	result, err := p.Parse(context.Background(), strings.NewReader(sampleDocument), testMeta(t))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(result.Transactions) != 2 {
		t.Fatalf("got %d transactions; want 2", len(result.Transactions))
	}

	credit := result.Transactions[0]
	if got := credit.Amount().StringFixed(2); got != "1210.00" {
		t.Errorf("credit amount = %s; want 1210.00", got)
	}
	wantDate := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if !credit.Date().Equal(wantDate) {
		t.Errorf("credit date = %s; want %s", credit.Date(), wantDate)
	}
	// Credits name the debtor: the party that paid us.
	if credit.Counterparty() != "Acme BV" {
		t.Errorf("counterparty = %q; want %q", credit.Counterparty(), "Acme BV")
	}
	if credit.CounterpartyRef() != "NL44INGB0001234567" {
		t.Errorf("counterparty ref = %q; want %q", credit.CounterpartyRef(), "NL44INGB0001234567")
	}
	if credit.Description() != "Invoice 2026-042 March consulting" {
		t.Errorf("description = %q; want joined remittance lines", credit.Description())
	}
	if credit.SourceRef() != "2026-0001" {
		t.Errorf("source ref = %q; want %q", credit.SourceRef(), "2026-0001")
	}

	debit := result.Transactions[1]
	if got := debit.Amount().StringFixed(2); got != "-142.50" {
		t.Errorf("debit amount = %s; want -142.50", got)
	}
	// Debits name the creditor: the party we paid.
	if debit.Counterparty() != "Hosting Provider BV" {
		t.Errorf("counterparty = %q; want %q", debit.Counterparty(), "Hosting Provider BV")
	}
	// No NtryRef; the account servicer reference serves instead.
	if debit.SourceRef() != "SVCR-77" {
		t.Errorf("source ref = %q; want %q", debit.SourceRef(), "SVCR-77")
	}
	wantDate = time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC)
	if !debit.Date().Equal(wantDate) {
		t.Errorf("debit date = %s; want %s", debit.Date(), wantDate)
	}
}

func TestParse_BadEntrySkipped(t *testing.T) {
	p := NewParser()
	input := `<Document><BkToCstmrStmt><Stmt>
  <Ntry>
    <Amt Ccy="EUR">10.00</Amt>
    <CdtDbtInd>WEIRD</CdtDbtInd>
    <BookgDt><Dt>2026-03-01</Dt></BookgDt>
  </Ntry>
  <Ntry>
    <Amt Ccy="EUR">20.00</Amt>
    <CdtDbtInd>CRDT</CdtDbtInd>
    <BookgDt><Dt>2026-03-01</Dt></BookgDt>
    <NtryDtls><TxDtls><RmtInf><Ustrd>ok</Ustrd></RmtInf></TxDtls></NtryDtls>
  </Ntry>
</Stmt></BkToCstmrStmt></Document>`

	result, err := p.Parse(context.Background(), strings.NewReader(input), testMeta(t))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(result.Transactions) != 1 {
		t.Errorf("got %d transactions; want 1", len(result.Transactions))
	}
	if result.Skipped != 1 {
		t.Errorf("Skipped = %d; want 1", result.Skipped)
	}
}

func TestParse_AllEntriesUnparseable(t *testing.T) {
	p := NewParser()
	input := `<Document><BkToCstmrStmt><Stmt>
  <Ntry><Amt Ccy="EUR">10.00</Amt><CdtDbtInd>CRDT</CdtDbtInd></Ntry>
</Stmt></BkToCstmrStmt></Document>`

	_, err := p.Parse(context.Background(), strings.NewReader(input), testMeta(t))
	if err == nil {
		t.Fatal("expected error when every entry is unparseable")
	}
}

func TestParse_NoEntries(t *testing.T) {
	p := NewParser()
	input := `<Document><BkToCstmrStmt><Stmt></Stmt></BkToCstmrStmt></Document>`

	_, err := p.Parse(context.Background(), strings.NewReader(input), testMeta(t))
	if err == nil {
		t.Fatal("expected error for document without entries")
	}
}

func TestParse_InvalidXML(t *testing.T) {
	p := NewParser()
	_, err := p.Parse(context.Background(), strings.NewReader("<Document><unclosed"), testMeta(t))
	if err == nil {
		t.Fatal("expected error for invalid XML")
	}
}
