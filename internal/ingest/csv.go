package ingest

import (
	"encoding/csv"
	"strings"
)

// Record is one CSV row keyed by header column name, fields trimmed.
type Record map[string]string

// ParseSalesReportCSV parses a sales-report export. The export carries a
// variable-length banner (title lines, "sep=" markers, blank lines) ahead of
// the real header row, which is found by scanning for the first non-empty
// line that is not part of the banner and contains a comma. Returns an empty
// slice when no header row exists.
func ParseSalesReportCSV(content string) ([]Record, error) {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	headerIdx := -1
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "sep=") ||
			strings.HasPrefix(trimmed, "Sales report") ||
			strings.HasPrefix(trimmed, "Export") {
			continue
		}
		if !strings.Contains(trimmed, ",") {
			continue
		}
		headerIdx = i
		break
	}
	if headerIdx == -1 {
		return []Record{}, nil
	}

	reader := csv.NewReader(strings.NewReader(strings.Join(lines[headerIdx:], "\n")))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []Record{}, nil
	}

	header := rows[0]
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isEmptyRow(row) {
			continue
		}
		rec := make(Record, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(row) {
				rec[col] = strings.TrimSpace(row[i])
			} else {
				rec[col] = ""
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func isEmptyRow(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
