// Package ledger mirrors appended expenses into BigQuery for analytics.
// The spreadsheet stays the system of record; mirroring is best-effort and
// a mirror failure never changes the user-visible outcome of a message.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dvloznov/expensebot/internal/expense"
)

const expensesTable = "expenses"

// Row is the BigQuery schema for one mirrored expense.
type Row struct {
	MessageID         int64      `bigquery:"message_id"`
	OccurredAt        civil.Date `bigquery:"occurred_date"`
	Amount            float64    `bigquery:"amount"`
	Currency          string     `bigquery:"currency"`
	Description       string     `bigquery:"description"`
	Categories        string     `bigquery:"categories"`
	PaymentMethod     string     `bigquery:"payment_method"`
	PaymentIdentifier string     `bigquery:"payment_identifier"`
	RegisteredAt      time.Time  `bigquery:"registered_ts"`
	TaxonomyVersion   string     `bigquery:"taxonomy_version"`
	MirroredAt        time.Time  `bigquery:"mirrored_ts"`
}

// Mirror records an expense into the analytics store.
type Mirror interface {
	Record(ctx context.Context, record *expense.Record)
}

// Noop is the mirror used when BigQuery is not configured.
type Noop struct{}

// Record does nothing.
func (Noop) Record(context.Context, *expense.Record) {}

// BigQueryMirror streams expense rows into <dataset>.expenses. The client
// is constructed lazily on first use; construction is guarded because
// webhook requests may race on it.
type BigQueryMirror struct {
	project string
	dataset string
	log     zerolog.Logger

	mu     sync.Mutex
	client *bigquery.Client
}

// NewBigQueryMirror creates a mirror for the given project and dataset.
func NewBigQueryMirror(project, dataset string, log zerolog.Logger) *BigQueryMirror {
	return &BigQueryMirror{
		project: project,
		dataset: dataset,
		log:     log,
	}
}

// Record streams one expense row. Failures are logged and swallowed.
func (m *BigQueryMirror) Record(ctx context.Context, record *expense.Record) {
	client, err := m.getClient(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("Failed to create bigquery client")
		return
	}

	row := rowFromRecord(record, time.Now())

	inserter := client.Dataset(m.dataset).Table(expensesTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		m.log.Error().
			Err(err).
			Int64("message_id", record.MessageID).
			Str("dataset", m.dataset).
			Msg("Failed to mirror expense row")
		return
	}

	m.log.Debug().Int64("message_id", record.MessageID).Msg("Expense row mirrored")
}

func (m *BigQueryMirror) getClient(ctx context.Context) (*bigquery.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		return m.client, nil
	}

	client, err := bigquery.NewClient(ctx, m.project)
	if err != nil {
		return nil, fmt.Errorf("getClient: bigquery client: %w", err)
	}

	m.client = client
	return m.client, nil
}

// rowFromRecord maps a validated expense onto the BigQuery row schema.
func rowFromRecord(record *expense.Record, mirroredAt time.Time) *Row {
	return &Row{
		MessageID:         record.MessageID,
		OccurredAt:        record.OccurredAt,
		Amount:            record.Amount,
		Currency:          record.Currency,
		Description:       record.Description,
		Categories:        record.CategoriesJoined(),
		PaymentMethod:     string(record.PaymentMethod),
		PaymentIdentifier: record.PaymentIdentifier,
		RegisteredAt:      record.RegisteredAt,
		TaxonomyVersion:   expense.TaxonomyVersion,
		MirroredAt:        mirroredAt,
	}
}
