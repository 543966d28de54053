package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

type Loader struct {
	Source Source
	Format string
}

// Load fetches, decodes and validates all three tables. It fails if any
// dataset is missing or malformed; the warehouse never sees a partial bundle.
func (l Loader) Load(ctx context.Context) (Bundle, error) {
	if l.Source == nil {
		return Bundle{}, fmt.Errorf("dataset source is required")
	}
	switch l.Format {
	case "csv", "parquet":
	default:
		return Bundle{}, fmt.Errorf("unsupported dataset format %q", l.Format)
	}

	bundle := Bundle{}
	for _, load := range []struct {
		name string
		dst  *Table
	}{
		{TableClients, &bundle.Clients},
		{TableInvoices, &bundle.Invoices},
		{TableLineItems, &bundle.LineItems},
	} {
		table, err := l.loadTable(ctx, load.name)
		if err != nil {
			return Bundle{}, err
		}
		*load.dst = table
	}

	if err := Validate(bundle); err != nil {
		return Bundle{}, err
	}
	return bundle, nil
}

func (l Loader) loadTable(ctx context.Context, name string) (Table, error) {
	fileName := name + "." + l.Format
	reader, err := l.Source.Fetch(ctx, fileName)
	if err != nil {
		return Table{}, err
	}
	defer func() { _ = reader.Close() }()

	if l.Format == "parquet" {
		return readParquetTable(name, reader)
	}
	return readCSVTable(name, reader)
}

// WriteCSV encodes a table for distribution; the inverse of readCSVTable.
func WriteCSV(w io.Writer, t Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return fmt.Errorf("write %s header: %w", t.Name, err)
	}
	for _, row := range t.Rows {
		record := make([]string, len(row))
		for i, value := range row {
			record[i] = formatCell(value)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write %s row: %w", t.Name, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush %s csv: %w", t.Name, err)
	}
	return nil
}

func formatCell(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case time.Time:
		return typed.Format(dateLayout)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(typed, 10)
	default:
		return fmt.Sprint(typed)
	}
}
