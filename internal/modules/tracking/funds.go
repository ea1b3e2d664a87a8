package tracking

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// Fund is a tracked institution: the denomination as it appears on
// filings, and its EDGAR CIK.
type Fund struct {
	Name string
	CIK  string
}

// LoadFunds reads the tracked-fund registry from a CSV file with a
// Fund,CIK header. Blank lines and rows without a CIK are skipped.
func LoadFunds(path string) ([]Fund, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fund registry: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read fund registry: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("fund registry is empty")
	}

	nameCol, cikCol := 0, 1
	for i, col := range records[0] {
		switch strings.ToUpper(strings.TrimSpace(col)) {
		case "FUND":
			nameCol = i
		case "CIK", "CIKS":
			cikCol = i
		}
	}

	var funds []Fund
	for _, record := range records[1:] {
		if len(record) <= nameCol || len(record) <= cikCol {
			continue
		}
		fund := Fund{
			Name: strings.TrimSpace(record[nameCol]),
			CIK:  strings.TrimSpace(record[cikCol]),
		}
		if fund.Name == "" || fund.CIK == "" {
			continue
		}
		funds = append(funds, fund)
	}
	if len(funds) == 0 {
		return nil, fmt.Errorf("fund registry has no usable entries")
	}
	return funds, nil
}
