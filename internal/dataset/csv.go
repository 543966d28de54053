package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

const dateLayout = "2006-01-02"

func readCSVTable(name string, r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return Table{}, fmt.Errorf("read %s header: %w", name, err)
	}

	rows := make([][]any, 0)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read %s row: %w", name, err)
		}
		row := make([]any, len(record))
		for i, cell := range record {
			row[i] = inferCell(cell)
		}
		rows = append(rows, row)
	}

	return Table{Name: name, Columns: header, Rows: rows}, nil
}

// inferCell types a CSV cell: int64, float64, ISO date, or string. Empty
// cells become nil.
func inferCell(cell string) any {
	if cell == "" {
		return nil
	}
	if value, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return value
	}
	if value, err := strconv.ParseFloat(cell, 64); err == nil {
		return value
	}
	if value, err := time.Parse(dateLayout, cell); err == nil {
		return value
	}
	return cell
}
