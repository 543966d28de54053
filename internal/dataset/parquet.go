package dataset

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"
)

// Parquet row shapes for the three fixed tables. Dates travel as ISO strings
// and are parsed back to time.Time on read.
type clientRecord struct {
	ClientID   string `parquet:"client_id"`
	ClientName string `parquet:"client_name"`
	Industry   string `parquet:"industry"`
	Country    string `parquet:"country"`
}

type invoiceRecord struct {
	InvoiceID   string  `parquet:"invoice_id"`
	ClientID    string  `parquet:"client_id"`
	InvoiceDate string  `parquet:"invoice_date"`
	DueDate     string  `parquet:"due_date"`
	Status      string  `parquet:"status"`
	Currency    string  `parquet:"currency"`
	FxRateToUSD float64 `parquet:"fx_rate_to_usd"`
}

type lineItemRecord struct {
	LineID      string  `parquet:"line_id"`
	InvoiceID   string  `parquet:"invoice_id"`
	ServiceName string  `parquet:"service_name"`
	Quantity    int64   `parquet:"quantity"`
	UnitPrice   float64 `parquet:"unit_price"`
	TaxRate     float64 `parquet:"tax_rate"`
}

func readParquetTable(name string, r io.Reader) (Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Table{}, fmt.Errorf("read %s parquet: %w", name, err)
	}
	reader := bytes.NewReader(data)
	size := int64(len(data))

	switch name {
	case TableClients:
		records, err := parquet.Read[clientRecord](reader, size)
		if err != nil {
			return Table{}, fmt.Errorf("decode %s parquet: %w", name, err)
		}
		rows := make([][]any, 0, len(records))
		for _, record := range records {
			rows = append(rows, []any{record.ClientID, record.ClientName, record.Industry, record.Country})
		}
		return Table{Name: name, Columns: clientColumns, Rows: rows}, nil
	case TableInvoices:
		records, err := parquet.Read[invoiceRecord](reader, size)
		if err != nil {
			return Table{}, fmt.Errorf("decode %s parquet: %w", name, err)
		}
		rows := make([][]any, 0, len(records))
		for _, record := range records {
			invoiceDate, err := time.Parse(dateLayout, record.InvoiceDate)
			if err != nil {
				return Table{}, fmt.Errorf("decode %s parquet: invoice_date %q: %w", name, record.InvoiceDate, err)
			}
			dueDate, err := time.Parse(dateLayout, record.DueDate)
			if err != nil {
				return Table{}, fmt.Errorf("decode %s parquet: due_date %q: %w", name, record.DueDate, err)
			}
			rows = append(rows, []any{record.InvoiceID, record.ClientID, invoiceDate, dueDate, record.Status, record.Currency, record.FxRateToUSD})
		}
		return Table{Name: name, Columns: invoiceColumns, Rows: rows}, nil
	case TableLineItems:
		records, err := parquet.Read[lineItemRecord](reader, size)
		if err != nil {
			return Table{}, fmt.Errorf("decode %s parquet: %w", name, err)
		}
		rows := make([][]any, 0, len(records))
		for _, record := range records {
			rows = append(rows, []any{record.LineID, record.InvoiceID, record.ServiceName, record.Quantity, record.UnitPrice, record.TaxRate})
		}
		return Table{Name: name, Columns: lineItemColumns, Rows: rows}, nil
	default:
		return Table{}, fmt.Errorf("unknown dataset table %q", name)
	}
}

// WriteParquet encodes a validated table into parquet for distribution.
func WriteParquet(w io.Writer, t Table) error {
	switch t.Name {
	case TableClients:
		records := make([]clientRecord, 0, len(t.Rows))
		for _, row := range t.Rows {
			records = append(records, clientRecord{
				ClientID:   asString(row[t.ColumnIndex("client_id")]),
				ClientName: asString(row[t.ColumnIndex("client_name")]),
				Industry:   asString(row[t.ColumnIndex("industry")]),
				Country:    asString(row[t.ColumnIndex("country")]),
			})
		}
		return writeParquetRecords(w, records)
	case TableInvoices:
		records := make([]invoiceRecord, 0, len(t.Rows))
		for _, row := range t.Rows {
			records = append(records, invoiceRecord{
				InvoiceID:   asString(row[t.ColumnIndex("invoice_id")]),
				ClientID:    asString(row[t.ColumnIndex("client_id")]),
				InvoiceDate: formatDate(row[t.ColumnIndex("invoice_date")]),
				DueDate:     formatDate(row[t.ColumnIndex("due_date")]),
				Status:      asString(row[t.ColumnIndex("status")]),
				Currency:    asString(row[t.ColumnIndex("currency")]),
				FxRateToUSD: asFloat(row[t.ColumnIndex("fx_rate_to_usd")]),
			})
		}
		return writeParquetRecords(w, records)
	case TableLineItems:
		records := make([]lineItemRecord, 0, len(t.Rows))
		for _, row := range t.Rows {
			records = append(records, lineItemRecord{
				LineID:      asString(row[t.ColumnIndex("line_id")]),
				InvoiceID:   asString(row[t.ColumnIndex("invoice_id")]),
				ServiceName: asString(row[t.ColumnIndex("service_name")]),
				Quantity:    asInt(row[t.ColumnIndex("quantity")]),
				UnitPrice:   asFloat(row[t.ColumnIndex("unit_price")]),
				TaxRate:     asFloat(row[t.ColumnIndex("tax_rate")]),
			})
		}
		return writeParquetRecords(w, records)
	default:
		return fmt.Errorf("unknown dataset table %q", t.Name)
	}
}

func writeParquetRecords[T any](w io.Writer, records []T) error {
	writer := parquet.NewGenericWriter[T](w)
	if _, err := writer.Write(records); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

func asString(value any) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return s
	}
	return fmt.Sprint(value)
}

func asInt(value any) int64 {
	switch typed := value.(type) {
	case int64:
		return typed
	case float64:
		return int64(typed)
	default:
		return 0
	}
}

func asFloat(value any) float64 {
	switch typed := value.(type) {
	case float64:
		return typed
	case int64:
		return float64(typed)
	default:
		return 0
	}
}

func formatDate(value any) string {
	if date, ok := value.(time.Time); ok {
		return date.Format(dateLayout)
	}
	return asString(value)
}
