package docparse

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// ParseCSVRecords reads a header-first CSV into one map per data row, keyed
// by the trimmed header names. Column semantics vary wildly between banks,
// so rows stay untyped here and get standardized downstream.
func ParseCSVRecords(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty csv")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var records []map[string]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		record := make(map[string]string, len(header))
		empty := true
		for i, name := range header {
			if name == "" {
				continue
			}
			var value string
			if i < len(row) {
				value = strings.TrimSpace(row[i])
			}
			if value != "" {
				empty = false
			}
			record[name] = value
		}
		if !empty {
			records = append(records, record)
		}
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv has no data rows")
	}
	return records, nil
}
