package filings

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// InsiderHolding is one reporting owner's post-transaction position from a
// Form 4. Form 4 identifies the issuer by ticker, not CUSIP; the caller
// resolves the ticker against the security catalog.
type InsiderHolding struct {
	Company   string
	Ticker    string
	IssuerCIK string
	Shares    int64
	OwnerCIK  string
	OwnerName string
	Date      time.Time
}

// Form4Parser extracts insider ownership from Form 4 documents. Only the
// non-derivative table counts; derivative positions (options, RSUs) are
// out of scope the same way 13F option rows are.
type Form4Parser struct {
	log zerolog.Logger
}

func NewForm4Parser(log zerolog.Logger) *Form4Parser {
	return &Form4Parser{log: log.With().Str("parser", "form4").Logger()}
}

// Parse extracts the issuer identity and each reporting owner's shares
// owned following the reported transactions. Shares are summed over the
// non-derivative table's entries.
func (p *Form4Parser) Parse(content []byte) ([]InsiderHolding, error) {
	var (
		issuer      = map[string]string{}
		owners      []map[string]string
		totalShares int64
		parsed      bool
	)

	for _, segment := range xmlSegments(content) {
		if !bytes.Contains(bytes.ToLower(segment), []byte("ownershipdocument")) {
			continue
		}
		parsed = true

		decoder := xml.NewDecoder(bytes.NewReader(segment))
		decoder.Strict = false

		var (
			owner      map[string]string
			field      string
			inIssuer   bool
			inNonDeriv bool
			softBuf    *strings.Builder
		)

		for {
			tok, err := decoder.Token()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("malformed ownership document: %w", err)
			}

			switch t := tok.(type) {
			case xml.StartElement:
				name := strings.ToLower(t.Name.Local)
				switch name {
				case "issuer":
					inIssuer = true
				case "reportingowner":
					owner = map[string]string{}
				case "nonderivativetable":
					inNonDeriv = true
				case "sharesownedfollowingtransaction":
					if inNonDeriv {
						softBuf = &strings.Builder{}
					}
				case "issuername", "issuertradingsymbol", "issuercik",
					"periodofreport", "rptownercik", "rptownername":
					field = name
				default:
					field = ""
				}
			case xml.CharData:
				switch {
				case softBuf != nil:
					softBuf.WriteString(string(t))
				case field == "periodofreport":
					issuer[field] += string(t)
				case inIssuer && field != "":
					issuer[field] += string(t)
				case owner != nil && (field == "rptownercik" || field == "rptownername"):
					owner[field] += string(t)
				}
			case xml.EndElement:
				name := strings.ToLower(t.Name.Local)
				field = ""
				switch name {
				case "issuer":
					inIssuer = false
				case "nonderivativetable":
					inNonDeriv = false
				case "reportingowner":
					if owner != nil {
						owners = append(owners, owner)
						owner = nil
					}
				case "sharesownedfollowingtransaction":
					if softBuf != nil {
						if n, err := parseAmount(softBuf.String()); err == nil {
							totalShares += n
						}
						softBuf = nil
					}
				}
			}
		}
	}

	if !parsed {
		return nil, fmt.Errorf("no ownership document found in filing")
	}

	date, _ := parseFilingDate(issuer["periodofreport"])
	company := collapseWhitespace(issuer["issuername"])
	ticker := strings.ToUpper(strings.TrimSpace(issuer["issuertradingsymbol"]))
	if ticker == "" {
		return nil, fmt.Errorf("no issuer trading symbol found in ownership document")
	}

	rows := make([]InsiderHolding, 0, len(owners))
	for _, o := range owners {
		rows = append(rows, InsiderHolding{
			Company:   company,
			Ticker:    ticker,
			IssuerCIK: strings.TrimSpace(issuer["issuercik"]),
			Shares:    totalShares,
			OwnerCIK:  strings.TrimSpace(o["rptownercik"]),
			OwnerName: strings.ToUpper(collapseWhitespace(o["rptownername"])),
			Date:      date,
		})
	}

	p.log.Debug().Str("ticker", ticker).Int("owners", len(rows)).Msg("Parsed form 4")
	return rows, nil
}
