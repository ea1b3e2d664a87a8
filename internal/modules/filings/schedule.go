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

// ScheduleHolding is one reporting person's beneficial ownership from a
// Schedule 13D/G filing. A single filing can carry several reporting
// persons; each becomes its own row.
type ScheduleHolding struct {
	Company   string
	CUSIP     string
	IssuerCIK string
	Shares    int64
	OwnerCIK  string
	OwnerName string // uppercased as filed
	Date      time.Time
}

// ScheduleParser extracts beneficial-ownership rows from Schedule 13D/G
// documents. EDGAR has shipped two generations of this form's XML; both
// tag vocabularies are handled.
type ScheduleParser struct {
	log zerolog.Logger
}

func NewScheduleParser(log zerolog.Logger) *ScheduleParser {
	return &ScheduleParser{log: log.With().Str("parser", "schedule").Logger()}
}

// Parse extracts the issuer identity and all reporting-person rows.
func (p *ScheduleParser) Parse(content []byte) ([]ScheduleHolding, error) {
	var (
		company, cusip, issuerCIK string
		date                      time.Time
		rows                      []ScheduleHolding
	)

	for _, segment := range xmlSegments(content) {
		lower := bytes.ToLower(segment)
		if !bytes.Contains(lower, []byte("formdata")) && !bytes.Contains(lower, []byte("reportingperson")) {
			continue
		}

		decoder := xml.NewDecoder(bytes.NewReader(segment))
		decoder.Strict = false

		var (
			person map[string]string
			field  string
			issuer = map[string]string{}
		)

		flush := func() {
			if person == nil {
				return
			}
			shares := firstNonEmpty(person["aggregateamountowned"],
				person["reportingpersonbeneficiallyownedaggregatenumberofshares"])
			n, _ := parseAmount(shares)
			rows = append(rows, ScheduleHolding{
				Shares:    n,
				OwnerCIK:  strings.TrimSpace(person["rptownercik"]),
				OwnerName: strings.ToUpper(collapseWhitespace(person["reportingpersonname"])),
			})
			person = nil
		}

		for {
			tok, err := decoder.Token()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("malformed schedule document: %w", err)
			}

			switch t := tok.(type) {
			case xml.StartElement:
				name := strings.ToLower(t.Name.Local)
				switch name {
				case "coverpageheaderreportingpersondetails", "reportingpersoninfo":
					person = map[string]string{}
					field = ""
				case "issuername", "issuercusip", "issuercik",
					"dateofevent", "eventdaterequiresfilingthisstatement",
					"aggregateamountowned", "reportingpersonbeneficiallyownedaggregatenumberofshares",
					"rptownercik", "reportingpersonname":
					field = name
				default:
					field = ""
				}
			case xml.CharData:
				if field == "" {
					continue
				}
				if person != nil {
					person[field] += string(t)
				} else {
					issuer[field] += string(t)
				}
			case xml.EndElement:
				field = ""
				switch strings.ToLower(t.Name.Local) {
				case "coverpageheaderreportingpersondetails", "reportingpersoninfo":
					flush()
				}
			}
		}
		flush()

		if v := collapseWhitespace(issuer["issuername"]); v != "" {
			company = v
		}
		if v := strings.ToUpper(strings.TrimSpace(issuer["issuercusip"])); v != "" {
			cusip = v
		}
		if v := strings.TrimSpace(issuer["issuercik"]); v != "" {
			issuerCIK = v
		}
		if raw := firstNonEmpty(issuer["dateofevent"], issuer["eventdaterequiresfilingthisstatement"]); raw != "" {
			if d, err := parseFilingDate(raw); err == nil {
				date = d
			}
		}
	}

	if cusip == "" {
		return nil, fmt.Errorf("no issuer CUSIP found in schedule filing")
	}

	for i := range rows {
		rows[i].Company = company
		rows[i].CUSIP = cusip
		rows[i].IssuerCIK = issuerCIK
		rows[i].Date = date
	}

	p.log.Debug().Str("cusip", cusip).Int("owners", len(rows)).Msg("Parsed schedule filing")
	return rows, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// parseFilingDate handles the date spellings EDGAR uses across form
// generations.
func parseFilingDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{"01/02/2006", "2006-01-02"} {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
