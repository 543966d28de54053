// Package demo generates a deterministic sample dataset for local
// development and seeding. The same seed always produces the same
// bundle.
package demo

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/tabletalk/tabletalk/internal/dataset"
)

type Config struct {
	Seed     int64
	Clients  int
	Invoices int
}

type Generator struct {
	rnd *rand.Rand
	cfg Config
}

var (
	clientNames = []string{
		"Acme Corp", "Globex Ltd", "Initech GmbH", "Umbrella Health",
		"Stark Industries", "Wayne Enterprises", "Hooli", "Vandelay Imports",
		"Soylent Foods", "Wonka Confections", "Cyberdyne Systems", "Tyrell Corp",
	}
	industries = []string{"Software", "Manufacturing", "Healthcare", "Retail", "Logistics", "Finance"}
	countries  = []string{"UK", "USA", "Germany", "France", "Netherlands", "Japan"}
	statuses   = []string{"Paid", "Paid", "Paid", "Sent", "Overdue", "Draft"}
	services   = []string{
		"Consulting", "Implementation", "Support Retainer",
		"Training", "Cloud Hosting", "Data Migration", "License Fee",
	}
	currencyRates = map[string]float64{
		"USD": 1.0,
		"EUR": 1.08,
		"GBP": 1.27,
		"JPY": 0.0067,
	}
	currencies = []string{"USD", "EUR", "GBP", "JPY"}
)

func NewGenerator(cfg Config) *Generator {
	if cfg.Clients <= 0 {
		cfg.Clients = 8
	}
	if cfg.Clients > len(clientNames) {
		cfg.Clients = len(clientNames)
	}
	if cfg.Invoices <= 0 {
		cfg.Invoices = 40
	}
	return &Generator{rnd: rand.New(rand.NewSource(cfg.Seed)), cfg: cfg}
}

// Generate produces a bundle that passes dataset.Validate: every
// invoice references a generated client and every line item references
// a generated invoice. Invoice dates span 2023 through 2025 so that
// year-based questions have data on both sides of 2024.
func (g *Generator) Generate() dataset.Bundle {
	clients := make([][]any, 0, g.cfg.Clients)
	clientIDs := make([]string, 0, g.cfg.Clients)
	for i := 0; i < g.cfg.Clients; i++ {
		clientID := fmt.Sprintf("C%03d", i+1)
		clientIDs = append(clientIDs, clientID)
		clients = append(clients, []any{
			clientID,
			clientNames[i],
			pickOne(g.rnd, industries),
			pickOne(g.rnd, countries),
		})
	}

	invoices := make([][]any, 0, g.cfg.Invoices)
	lineItems := make([][]any, 0, g.cfg.Invoices*3)
	lineSeq := 0
	for i := 0; i < g.cfg.Invoices; i++ {
		invoiceID := fmt.Sprintf("INV-%04d", i+1001)
		currency := pickOne(g.rnd, currencies)
		issued := g.pickInvoiceDate()
		due := issued.AddDate(0, 0, 14+g.rnd.Intn(45))
		invoices = append(invoices, []any{
			invoiceID,
			pickOne(g.rnd, clientIDs),
			issued,
			due,
			pickOne(g.rnd, statuses),
			currency,
			currencyRates[currency],
		})

		lines := 1 + g.rnd.Intn(4)
		for j := 0; j < lines; j++ {
			lineSeq++
			lineItems = append(lineItems, []any{
				fmt.Sprintf("L%05d", lineSeq),
				invoiceID,
				pickOne(g.rnd, services),
				int64(1 + g.rnd.Intn(20)),
				round2(50 + g.rnd.Float64()*950),
				pickOne(g.rnd, []float64{0, 0.05, 0.1, 0.2}),
			})
		}
	}

	return dataset.Bundle{
		Clients: dataset.Table{
			Name:    dataset.TableClients,
			Columns: dataset.TableColumns(dataset.TableClients),
			Rows:    clients,
		},
		Invoices: dataset.Table{
			Name:    dataset.TableInvoices,
			Columns: dataset.TableColumns(dataset.TableInvoices),
			Rows:    invoices,
		},
		LineItems: dataset.Table{
			Name:    dataset.TableLineItems,
			Columns: dataset.TableColumns(dataset.TableLineItems),
			Rows:    lineItems,
		},
	}
}

func (g *Generator) pickInvoiceDate() time.Time {
	start := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC)
	days := int(end.Sub(start).Hours() / 24)
	return start.AddDate(0, 0, g.rnd.Intn(days+1))
}

func pickOne[T any](rnd *rand.Rand, values []T) T {
	return values[rnd.Intn(len(values))]
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
