package filings

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample13F = `
<SEC-DOCUMENT>
<XML>
<ns1:informationTable xmlns:ns1="http://www.sec.gov/edgar/document/thirteenf/informationtable">
  <ns1:infoTable>
    <ns1:nameOfIssuer>APPLE   INC</ns1:nameOfIssuer>
    <ns1:cusip>037833100</ns1:cusip>
    <ns1:value>1500000</ns1:value>
    <ns1:shrsOrPrnAmt>
      <ns1:sshPrnamt>10000</ns1:sshPrnamt>
      <ns1:sshPrnamtType>SH</ns1:sshPrnamtType>
    </ns1:shrsOrPrnAmt>
  </ns1:infoTable>
  <ns1:infoTable>
    <ns1:nameOfIssuer>MICROSOFT CORP</ns1:nameOfIssuer>
    <ns1:cusip>594918104</ns1:cusip>
    <ns1:value>2000000</ns1:value>
    <ns1:shrsOrPrnAmt>
      <ns1:sshPrnamt>5000</ns1:sshPrnamt>
    </ns1:shrsOrPrnAmt>
    <ns1:putCall>Call</ns1:putCall>
  </ns1:infoTable>
</ns1:informationTable>
</XML>
</SEC-DOCUMENT>
`

func TestParser13F(t *testing.T) {
	parser := NewParser13F(zerolog.Nop())

	positions, err := parser.Parse([]byte(sample13F))
	require.NoError(t, err)
	require.Len(t, positions, 2)

	assert.Equal(t, "037833100", positions[0].CUSIP)
	assert.Equal(t, "APPLE INC", positions[0].Company)
	assert.Equal(t, int64(10000), positions[0].Shares)
	assert.Equal(t, int64(1500000), positions[0].Value)
	assert.Equal(t, "", positions[0].PutCall)

	assert.Equal(t, "call", positions[1].PutCall)
}

func TestParser13FWithoutEnvelope(t *testing.T) {
	parser := NewParser13F(zerolog.Nop())

	bare := `<informationTable>
		<infoTable>
			<nameOfIssuer>ACME CORP</nameOfIssuer>
			<cusip>abc123456</cusip>
			<value>100</value>
			<shrsOrPrnAmt><sshPrnamt>10</sshPrnamt></shrsOrPrnAmt>
		</infoTable>
	</informationTable>`

	positions, err := parser.Parse([]byte(bare))
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "ABC123456", positions[0].CUSIP)
}

func TestParser13FMissingField(t *testing.T) {
	parser := NewParser13F(zerolog.Nop())

	missingCUSIP := `<informationTable>
		<infoTable>
			<nameOfIssuer>ACME CORP</nameOfIssuer>
			<value>100</value>
			<shrsOrPrnAmt><sshPrnamt>10</sshPrnamt></shrsOrPrnAmt>
		</infoTable>
	</informationTable>`

	_, err := parser.Parse([]byte(missingCUSIP))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing cusip")
}

func TestParser13FNoTable(t *testing.T) {
	parser := NewParser13F(zerolog.Nop())

	_, err := parser.Parse([]byte("<SEC-DOCUMENT><XML><coverPage/></XML></SEC-DOCUMENT>"))
	require.Error(t, err)
}

func TestParseAmount(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want int64
	}{
		{"1500", 1500},
		{"1,500,000", 1500000},
		{" 42 ", 42},
		{"10.6", 11},
		{"10.4", 10},
	} {
		got, err := parseAmount(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := parseAmount("n/a")
	assert.Error(t, err)
}
