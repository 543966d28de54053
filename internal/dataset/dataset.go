// Package dataset loads the three fixed business tables from a file source
// and validates them before they reach the warehouse. It replaces any ambient
// caching with an explicit Bundle value handed to the store at startup.
package dataset

import (
	"fmt"
	"time"
)

const (
	TableClients   = "Clients"
	TableInvoices  = "Invoices"
	TableLineItems = "InvoiceLineItems"
)

var (
	clientColumns   = []string{"client_id", "client_name", "industry", "country"}
	invoiceColumns  = []string{"invoice_id", "client_id", "invoice_date", "due_date", "status", "currency", "fx_rate_to_usd"}
	lineItemColumns = []string{"line_id", "invoice_id", "service_name", "quantity", "unit_price", "tax_rate"}
)

// TableColumns reports the canonical column order for one of the three
// tables, or nil for an unknown name.
func TableColumns(name string) []string {
	switch name {
	case TableClients:
		return append([]string(nil), clientColumns...)
	case TableInvoices:
		return append([]string(nil), invoiceColumns...)
	case TableLineItems:
		return append([]string(nil), lineItemColumns...)
	default:
		return nil
	}
}

// Table is one rectangular dataset. Cell values are string, int64, float64,
// time.Time or nil.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

func (t Table) ColumnIndex(name string) int {
	for i, column := range t.Columns {
		if column == name {
			return i
		}
	}
	return -1
}

// Bundle holds all three business tables.
type Bundle struct {
	Clients   Table
	Invoices  Table
	LineItems Table
}

func (b Bundle) Tables() []Table {
	return []Table{b.Clients, b.Invoices, b.LineItems}
}

// Validate checks the column contracts, row shapes, date typing on the
// invoice table, and referential integrity across the bundle.
func Validate(b Bundle) error {
	if err := validateTable(b.Clients, TableClients, clientColumns); err != nil {
		return err
	}
	if err := validateTable(b.Invoices, TableInvoices, invoiceColumns); err != nil {
		return err
	}
	if err := validateTable(b.LineItems, TableLineItems, lineItemColumns); err != nil {
		return err
	}
	if err := validateDates(b.Invoices); err != nil {
		return err
	}
	return validateReferences(b)
}

func validateTable(t Table, wantName string, wantColumns []string) error {
	if t.Name != wantName {
		return fmt.Errorf("dataset %q: unexpected table name (want %q)", t.Name, wantName)
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("dataset %q: empty column set", wantName)
	}
	want := make(map[string]bool, len(wantColumns))
	for _, column := range wantColumns {
		want[column] = true
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, column := range t.Columns {
		if !want[column] {
			return fmt.Errorf("dataset %q: unexpected column %q", wantName, column)
		}
		if seen[column] {
			return fmt.Errorf("dataset %q: duplicate column %q", wantName, column)
		}
		seen[column] = true
	}
	for _, column := range wantColumns {
		if !seen[column] {
			return fmt.Errorf("dataset %q: missing column %q", wantName, column)
		}
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("dataset %q: row %d has %d values, want %d", wantName, i, len(row), len(t.Columns))
		}
	}
	return nil
}

func validateDates(invoices Table) error {
	for _, column := range []string{"invoice_date", "due_date"} {
		idx := invoices.ColumnIndex(column)
		for i, row := range invoices.Rows {
			if _, ok := row[idx].(time.Time); !ok {
				return fmt.Errorf("dataset %q: row %d: %s is not a date (got %T)", TableInvoices, i, column, row[idx])
			}
		}
	}
	return nil
}

func validateReferences(b Bundle) error {
	clientIDs := make(map[string]bool, len(b.Clients.Rows))
	idx := b.Clients.ColumnIndex("client_id")
	for _, row := range b.Clients.Rows {
		clientIDs[fmt.Sprint(row[idx])] = true
	}

	invoiceIDs := make(map[string]bool, len(b.Invoices.Rows))
	invoiceIDIdx := b.Invoices.ColumnIndex("invoice_id")
	invoiceClientIdx := b.Invoices.ColumnIndex("client_id")
	for i, row := range b.Invoices.Rows {
		invoiceIDs[fmt.Sprint(row[invoiceIDIdx])] = true
		if client := fmt.Sprint(row[invoiceClientIdx]); !clientIDs[client] {
			return fmt.Errorf("dataset %q: row %d references unknown client %q", TableInvoices, i, client)
		}
	}

	lineInvoiceIdx := b.LineItems.ColumnIndex("invoice_id")
	for i, row := range b.LineItems.Rows {
		if invoice := fmt.Sprint(row[lineInvoiceIdx]); !invoiceIDs[invoice] {
			return fmt.Errorf("dataset %q: row %d references unknown invoice %q", TableLineItems, i, invoice)
		}
	}
	return nil
}
