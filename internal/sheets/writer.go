// Package sheets appends validated expense records to the backlog sheet of
// a Google spreadsheet. Append never raises: every transport or auth
// failure reduces to false plus a logged diagnostic, and a call either
// appends exactly one full row or appends nothing.
package sheets

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/dvloznov/expensebot/internal/expense"
)

// Appender persists one validated expense as one spreadsheet row.
type Appender interface {
	Append(ctx context.Context, record *expense.Record) bool
}

// Config locates the target sheet and carries the service-account
// credentials used to authenticate appends.
type Config struct {
	CredentialsJSON string
	SpreadsheetID   string
	SheetName       string
}

// Writer appends expense rows through the Google Sheets API. The API
// service is constructed lazily on first append; construction is guarded
// because webhook requests may race on it.
type Writer struct {
	config Config
	log    zerolog.Logger

	mu      sync.Mutex
	service *sheetsapi.Service
}

// NewWriter creates a sheet writer. No network calls happen until the
// first append.
func NewWriter(config Config, log zerolog.Logger) *Writer {
	return &Writer{
		config: config,
		log:    log,
	}
}

// Append writes the record as one row to the configured sheet and reports
// whether the append succeeded.
func (w *Writer) Append(ctx context.Context, record *expense.Record) bool {
	service, err := w.getService(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("Failed to create sheets service")
		return false
	}

	valueRange := &sheetsapi.ValueRange{
		Values: [][]any{record.ToRow()},
	}

	_, err = service.Spreadsheets.Values.
		Append(w.config.SpreadsheetID, w.config.SheetName, valueRange).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		w.log.Error().
			Err(err).
			Int64("message_id", record.MessageID).
			Str("spreadsheet_id", w.config.SpreadsheetID).
			Msg("Failed to append expense row")
		return false
	}

	w.log.Info().
		Int64("message_id", record.MessageID).
		Str("sheet", w.config.SheetName).
		Msg("Expense row appended")
	return true
}

func (w *Writer) getService(ctx context.Context) (*sheetsapi.Service, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.service != nil {
		return w.service, nil
	}

	jwtConfig, err := google.JWTConfigFromJSON([]byte(w.config.CredentialsJSON), sheetsapi.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("getService: parse service account key: %w", err)
	}

	service, err := sheetsapi.NewService(ctx, option.WithTokenSource(jwtConfig.TokenSource(ctx)))
	if err != nil {
		return nil, fmt.Errorf("getService: create sheets service: %w", err)
	}

	w.service = service
	return w.service, nil
}
