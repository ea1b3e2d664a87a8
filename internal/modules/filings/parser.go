package filings

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// Position is a raw 13F information-table row before normalization.
// Rows still carry option markers and may be duplicated per CUSIP.
type Position struct {
	CUSIP   string
	Company string
	Shares  int64
	Value   int64
	PutCall string // "put", "call", or empty for plain equity
}

// Parser13F extracts information-table rows from a 13F-HR document.
// EDGAR wraps the XML table in an SGML submission envelope and filers use
// inconsistent namespace prefixes, so matching is done on local tag names.
type Parser13F struct {
	log zerolog.Logger
}

func NewParser13F(log zerolog.Logger) *Parser13F {
	return &Parser13F{log: log.With().Str("parser", "13f").Logger()}
}

var xmlBlockRe = regexp.MustCompile(`(?is)<XML>(.*?)</XML>`)

// xmlSegments returns the embedded <XML> blocks of an EDGAR submission,
// or the whole document when no envelope is present.
func xmlSegments(content []byte) [][]byte {
	matches := xmlBlockRe.FindAllSubmatch(content, -1)
	if len(matches) == 0 {
		return [][]byte{content}
	}
	segments := make([][]byte, 0, len(matches))
	for _, m := range matches {
		segments = append(segments, bytes.TrimSpace(m[1]))
	}
	return segments
}

// Parse extracts all information-table entries from a 13F-HR document.
// Every entry must carry issuer name, CUSIP, value and share count; a
// missing field fails the whole filing rather than silently dropping rows.
func (p *Parser13F) Parse(content []byte) ([]Position, error) {
	var positions []Position
	found := false

	for _, segment := range xmlSegments(content) {
		if !bytes.Contains(bytes.ToLower(segment), []byte("infotable")) {
			continue
		}
		found = true

		rows, err := p.parseTable(segment)
		if err != nil {
			return nil, err
		}
		positions = append(positions, rows...)
	}

	if !found {
		return nil, fmt.Errorf("no information table found in filing")
	}

	p.log.Debug().Int("positions", len(positions)).Msg("Parsed 13F information table")
	return positions, nil
}

func (p *Parser13F) parseTable(segment []byte) ([]Position, error) {
	decoder := xml.NewDecoder(bytes.NewReader(segment))
	decoder.Strict = false

	var (
		positions []Position
		entry     map[string]string
		field     string
	)

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("malformed information table: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := strings.ToLower(t.Name.Local)
			if name == "infotable" {
				entry = map[string]string{}
				continue
			}
			switch name {
			case "nameofissuer", "cusip", "value", "sshprnamt", "putcall":
				field = name
			default:
				field = ""
			}
		case xml.CharData:
			if entry != nil && field != "" {
				entry[field] += string(t)
			}
		case xml.EndElement:
			field = ""
			if strings.ToLower(t.Name.Local) == "infotable" && entry != nil {
				pos, err := buildPosition(entry, len(positions))
				if err != nil {
					return nil, err
				}
				positions = append(positions, pos)
				entry = nil
			}
		}
	}

	return positions, nil
}

func buildPosition(entry map[string]string, index int) (Position, error) {
	required := []string{"nameofissuer", "cusip", "value", "sshprnamt"}
	for _, key := range required {
		if strings.TrimSpace(entry[key]) == "" {
			return Position{}, fmt.Errorf("information table entry %d: missing %s", index, key)
		}
	}

	value, err := parseAmount(entry["value"])
	if err != nil {
		return Position{}, fmt.Errorf("information table entry %d: invalid value %q: %w", index, entry["value"], err)
	}
	shares, err := parseAmount(entry["sshprnamt"])
	if err != nil {
		return Position{}, fmt.Errorf("information table entry %d: invalid share count %q: %w", index, entry["sshprnamt"], err)
	}

	return Position{
		CUSIP:   strings.ToUpper(strings.TrimSpace(entry["cusip"])),
		Company: collapseWhitespace(entry["nameofissuer"]),
		Shares:  shares,
		Value:   value,
		PutCall: strings.ToLower(strings.TrimSpace(entry["putcall"])),
	}, nil
}

// parseAmount parses a numeric filing field, tolerating thousands
// separators and fractional share counts (rounded to whole shares).
func parseAmount(s string) (int64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f < 0 {
		return int64(f - 0.5), nil
	}
	return int64(f + 0.5), nil
}

var whitespaceRe = regexp.MustCompile(`\s+`)

func collapseWhitespace(s string) string {
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}
