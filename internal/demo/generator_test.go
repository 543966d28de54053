package demo

import (
	"reflect"
	"testing"
	"time"

	"github.com/tabletalk/tabletalk/internal/dataset"
)

func TestGenerateValidBundle(t *testing.T) {
	bundle := NewGenerator(Config{Seed: 7}).Generate()

	if err := dataset.Validate(bundle); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if len(bundle.Clients.Rows) != 8 {
		t.Fatalf("clients = %d, want 8", len(bundle.Clients.Rows))
	}
	if len(bundle.Invoices.Rows) != 40 {
		t.Fatalf("invoices = %d, want 40", len(bundle.Invoices.Rows))
	}
	if len(bundle.LineItems.Rows) < 40 {
		t.Fatalf("line items = %d, want at least one per invoice", len(bundle.LineItems.Rows))
	}
}

func TestGenerateDeterministic(t *testing.T) {
	first := NewGenerator(Config{Seed: 42, Clients: 5, Invoices: 10}).Generate()
	second := NewGenerator(Config{Seed: 42, Clients: 5, Invoices: 10}).Generate()

	if !reflect.DeepEqual(first, second) {
		t.Fatal("expected identical bundles for the same seed")
	}

	third := NewGenerator(Config{Seed: 43, Clients: 5, Invoices: 10}).Generate()
	if reflect.DeepEqual(first, third) {
		t.Fatal("expected different bundles for different seeds")
	}
}

func TestGenerateDateRange(t *testing.T) {
	bundle := NewGenerator(Config{Seed: 1, Invoices: 200}).Generate()

	dateIdx := bundle.Invoices.ColumnIndex("invoice_date")
	dueIdx := bundle.Invoices.ColumnIndex("due_date")
	low := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	high := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	saw2024 := false
	for _, row := range bundle.Invoices.Rows {
		issued := row[dateIdx].(time.Time)
		due := row[dueIdx].(time.Time)
		if issued.Before(low) || !issued.Before(high) {
			t.Fatalf("invoice_date %v out of range", issued)
		}
		if !due.After(issued) {
			t.Fatalf("due_date %v not after invoice_date %v", due, issued)
		}
		if issued.Year() == 2024 {
			saw2024 = true
		}
	}
	if !saw2024 {
		t.Fatal("expected at least one 2024 invoice in 200 draws")
	}
}
