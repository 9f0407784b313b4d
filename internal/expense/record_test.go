package expense

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

func validParams() Params {
	return Params{
		MessageID:         47,
		Amount:            22.35,
		Currency:          "BRL",
		Description:       "Compras No Mercado",
		Categories:        []string{"market"},
		PaymentMethod:     "debit",
		PaymentIdentifier: "Nubank",
		OccurredAt:        civil.Date{Year: 2026, Month: time.January, Day: 4},
		RegisteredAt:      time.Date(2026, time.January, 5, 1, 47, 39, 0, time.UTC),
	}
}

func TestNew(t *testing.T) {
	record, err := New(validParams())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if record.MessageID != 47 {
		t.Errorf("Expected messageId 47, got %d", record.MessageID)
	}
	if record.PaymentMethod != PaymentDebit {
		t.Errorf("Expected debit, got %s", record.PaymentMethod)
	}
	if len(record.Categories) != 1 || record.Categories[0] != "market" {
		t.Errorf("Unexpected categories: %v", record.Categories)
	}
}

func TestNew_TrimsTextFields(t *testing.T) {
	params := validParams()
	params.Description = "  Compras No Mercado  "
	params.PaymentIdentifier = " Nubank "

	record, err := New(params)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if record.Description != "Compras No Mercado" {
		t.Errorf("Expected trimmed description, got %q", record.Description)
	}
	if record.PaymentIdentifier != "Nubank" {
		t.Errorf("Expected trimmed identifier, got %q", record.PaymentIdentifier)
	}
}

func TestNew_FlattensCommaJoinedCategories(t *testing.T) {
	params := validParams()
	params.Categories = []string{"subscriptions,entertainment", "subscriptions-1-month"}

	record, err := New(params)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	want := []Category{"subscriptions", "entertainment", "subscriptions-1-month"}
	if !reflect.DeepEqual(record.Categories, want) {
		t.Errorf("Categories = %v, want %v", record.Categories, want)
	}
}

func TestNew_Violations(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Params)
		wantField string
	}{
		{name: "zero message id", mutate: func(p *Params) { p.MessageID = 0 }, wantField: "messageId"},
		{name: "negative message id", mutate: func(p *Params) { p.MessageID = -1 }, wantField: "messageId"},
		{name: "zero amount", mutate: func(p *Params) { p.Amount = 0 }, wantField: "amount"},
		{name: "negative amount", mutate: func(p *Params) { p.Amount = -10 }, wantField: "amount"},
		{name: "wrong currency", mutate: func(p *Params) { p.Currency = "USD" }, wantField: "currency"},
		{name: "blank description", mutate: func(p *Params) { p.Description = "   " }, wantField: "description"},
		{name: "no categories", mutate: func(p *Params) { p.Categories = nil }, wantField: "categories"},
		{name: "category outside taxonomy", mutate: func(p *Params) { p.Categories = []string{"groceries"} }, wantField: "categories"},
		{name: "case-sensitive taxonomy match", mutate: func(p *Params) { p.Categories = []string{"Market"} }, wantField: "categories"},
		{name: "unknown payment method", mutate: func(p *Params) { p.PaymentMethod = "cash" }, wantField: "paymentMethod"},
		{name: "blank payment identifier", mutate: func(p *Params) { p.PaymentIdentifier = "" }, wantField: "paymentIdentifier"},
		{name: "invalid occurred date", mutate: func(p *Params) { p.OccurredAt = civil.Date{} }, wantField: "occurredAt"},
		{name: "zero registered time", mutate: func(p *Params) { p.RegisteredAt = time.Time{} }, wantField: "registeredAt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := validParams()
			tt.mutate(&params)

			_, err := New(params)
			if err == nil {
				t.Fatal("Expected validation error")
			}

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected *ValidationError, got %T", err)
			}

			found := false
			for _, field := range verr.Fields() {
				if field == tt.wantField {
					found = true
				}
			}
			if !found {
				t.Errorf("Expected violation on %q, got %v", tt.wantField, verr.Fields())
			}
		})
	}
}

func TestNew_EnumeratesEveryViolation(t *testing.T) {
	params := validParams()
	params.Amount = -5
	params.Description = ""
	params.PaymentIdentifier = "  "
	params.Categories = []string{"groceries"}

	_, err := New(params)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected *ValidationError, got %T", err)
	}

	want := []string{"amount", "description", "categories", "paymentIdentifier"}
	got := verr.Fields()
	if len(got) != len(want) {
		t.Fatalf("Expected %d violations, got %d: %v", len(want), len(got), got)
	}
	for _, field := range want {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("Expected error text to mention %q, got: %v", field, err)
		}
	}
}

func TestRecord_ToRow(t *testing.T) {
	record, err := New(validParams())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	row := record.ToRow()
	want := []any{
		"2026-01-04",
		22.35,
		"Compras No Mercado",
		"market",
		"debit",
		"Nubank",
		"BRL",
		int64(47),
		"2026-01-05T01:47:39Z",
	}

	if !reflect.DeepEqual(row, want) {
		t.Errorf("ToRow() = %v, want %v", row, want)
	}

	// Serialization is deterministic.
	if !reflect.DeepEqual(record.ToRow(), row) {
		t.Error("Expected ToRow to be deterministic")
	}
}

func TestInTaxonomy(t *testing.T) {
	for _, c := range Taxonomy {
		if !InTaxonomy(c) {
			t.Errorf("Expected %q to be in taxonomy", c)
		}
	}

	for _, c := range []Category{"", "Market", "MARKET", "groceries", "market "} {
		if InTaxonomy(c) {
			t.Errorf("Expected %q to be outside taxonomy", c)
		}
	}
}

func TestTaxonomyStrings_MatchesTaxonomy(t *testing.T) {
	strs := TaxonomyStrings()
	if len(strs) != len(Taxonomy) {
		t.Fatalf("Expected %d entries, got %d", len(Taxonomy), len(strs))
	}
	for i, s := range strs {
		if s != string(Taxonomy[i]) {
			t.Errorf("Entry %d = %q, want %q", i, s, Taxonomy[i])
		}
	}
}
