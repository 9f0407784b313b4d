// Package expense defines the canonical expense record schema, the category
// taxonomy, and the spreadsheet row contract. Construction validates every
// field eagerly; nothing that violates the schema can become a Record.
package expense

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Currency is the single supported transaction currency.
const Currency = "BRL"

// PaymentMethod is how the expense was paid.
type PaymentMethod string

// Supported payment methods.
const (
	PaymentPix    PaymentMethod = "pix"
	PaymentDebit  PaymentMethod = "debit"
	PaymentCredit PaymentMethod = "credit"
	PaymentBoleto PaymentMethod = "boleto"
)

var paymentMethods = map[PaymentMethod]struct{}{
	PaymentPix:    {},
	PaymentDebit:  {},
	PaymentCredit: {},
	PaymentBoleto: {},
}

// FieldViolation names one schema violation found during construction.
type FieldViolation struct {
	Field  string
	Reason string
}

// ValidationError reports every violated field of a candidate record.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Field + ": " + v.Reason
	}
	return "invalid expense record: " + strings.Join(parts, "; ")
}

// Fields returns the names of the violated fields, in order.
func (e *ValidationError) Fields() []string {
	fields := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		fields[i] = v.Field
	}
	return fields
}

// Params carries the candidate values for a Record.
type Params struct {
	MessageID         int64
	Amount            float64
	Currency          string
	Description       string
	Categories        []string
	PaymentMethod     string
	PaymentIdentifier string
	OccurredAt        civil.Date
	RegisteredAt      time.Time
}

// Record is one validated, immutable expense. It is constructed once per
// successfully extracted message and consumed exactly once by persistence.
type Record struct {
	MessageID         int64
	Amount            float64
	Currency          string
	Description       string
	Categories        []Category
	PaymentMethod     PaymentMethod
	PaymentIdentifier string
	OccurredAt        civil.Date
	RegisteredAt      time.Time
}

// New validates params and constructs a Record. On failure it returns a
// *ValidationError enumerating every violated field.
func New(params Params) (*Record, error) {
	var violations []FieldViolation

	if params.MessageID <= 0 {
		violations = append(violations, FieldViolation{"messageId", "must be positive"})
	}
	if params.Amount <= 0 {
		violations = append(violations, FieldViolation{"amount", "must be positive"})
	}
	if params.Currency != Currency {
		violations = append(violations, FieldViolation{"currency", fmt.Sprintf("must be %q", Currency)})
	}

	description := strings.TrimSpace(params.Description)
	if description == "" {
		violations = append(violations, FieldViolation{"description", "must not be blank"})
	}

	categories, catViolation := normalizeCategories(params.Categories)
	if catViolation != nil {
		violations = append(violations, *catViolation)
	}

	method := PaymentMethod(params.PaymentMethod)
	if _, ok := paymentMethods[method]; !ok {
		violations = append(violations, FieldViolation{"paymentMethod", fmt.Sprintf("unknown method %q", params.PaymentMethod)})
	}

	identifier := strings.TrimSpace(params.PaymentIdentifier)
	if identifier == "" {
		violations = append(violations, FieldViolation{"paymentIdentifier", "must not be blank"})
	}

	if !params.OccurredAt.IsValid() {
		violations = append(violations, FieldViolation{"occurredAt", "must be a valid calendar date"})
	}
	if params.RegisteredAt.IsZero() {
		violations = append(violations, FieldViolation{"registeredAt", "must be a valid date-time"})
	}

	if len(violations) > 0 {
		return nil, &ValidationError{Violations: violations}
	}

	return &Record{
		MessageID:         params.MessageID,
		Amount:            params.Amount,
		Currency:          params.Currency,
		Description:       description,
		Categories:        categories,
		PaymentMethod:     method,
		PaymentIdentifier: identifier,
		OccurredAt:        params.OccurredAt,
		RegisteredAt:      params.RegisteredAt,
	}, nil
}

// normalizeCategories flattens comma-joined entries and checks every element
// against the taxonomy. Membership is case-sensitive and exact.
func normalizeCategories(raw []string) ([]Category, *FieldViolation) {
	var categories []Category
	var invalid []string

	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			c := Category(part)
			if !InTaxonomy(c) {
				invalid = append(invalid, part)
				continue
			}
			categories = append(categories, c)
		}
	}

	if len(invalid) > 0 {
		return nil, &FieldViolation{"categories", fmt.Sprintf("not in taxonomy: %s", strings.Join(invalid, ", "))}
	}
	if len(categories) == 0 {
		return nil, &FieldViolation{"categories", "must contain at least one category"}
	}
	return categories, nil
}

// CategoriesJoined returns the categories as a single comma-joined cell value.
func (r *Record) CategoriesJoined() string {
	parts := make([]string, len(r.Categories))
	for i, c := range r.Categories {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}

// ToRow serializes the record into the fixed spreadsheet column order:
// occurredAt, amount, description, categories, paymentMethod,
// paymentIdentifier, currency, messageId, registeredAt.
func (r *Record) ToRow() []any {
	return []any{
		r.OccurredAt.String(),
		r.Amount,
		r.Description,
		r.CategoriesJoined(),
		string(r.PaymentMethod),
		r.PaymentIdentifier,
		r.Currency,
		r.MessageID,
		r.RegisteredAt.UTC().Format(time.RFC3339),
	}
}
