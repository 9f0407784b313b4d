// Package bot contains the per-message processing state machine: authorize,
// acknowledge, extract, persist, report. Each inbound message runs the
// machine once, to exactly one terminal state; nothing that happens here
// raises past Process.
package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/expensebot/internal/allowlist"
	"github.com/dvloznov/expensebot/internal/expense"
	"github.com/dvloznov/expensebot/internal/extraction"
	"github.com/dvloznov/expensebot/internal/ledger"
	"github.com/dvloznov/expensebot/internal/sheets"
)

// State is one step of the message processing machine.
type State int

// Machine states. Completed, Exited and Dropped are terminal.
const (
	StateReceived State = iota
	StateAcknowledged
	StateExtracting
	StatePersisting
	StateCompleted
	StateExited
	StateDropped
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateAcknowledged:
		return "acknowledged"
	case StateExtracting:
		return "extracting"
	case StatePersisting:
		return "persisting"
	case StateCompleted:
		return "completed"
	case StateExited:
		return "exited"
	case StateDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

func (s State) terminal() bool {
	return s == StateCompleted || s == StateExited || s == StateDropped
}

// User-visible status texts.
const (
	msgProcessing       = "Processando..."
	msgExtracting       = "Processando via " + extraction.Provider + "..."
	msgSaving           = "Salvando na planilha..."
	msgSaveFailed       = "Erro ao salvar na planilha. Por favor, tente novamente."
	msgInvalidExpense   = "🔴 Não consegui entender a despesa. Verifique a mensagem e tente novamente."
	msgExtractionFailed = "🔴 Falha ao extrair a despesa. Tente novamente mais tarde."
	msgUnexpected       = "🔴 Algo inesperado aconteceu. Verifique os logs e tente novamente mais tarde."
)

// Message is one inbound chat message as seen by the state machine.
type Message struct {
	ChatID     int64
	UserID     int64
	MessageID  int
	Text       string
	IsGroup    bool
	ReceivedAt time.Time
}

// Extractor turns message text into a validated expense record.
type Extractor interface {
	Extract(ctx context.Context, req extraction.Request) (*expense.Record, error)
}

// Processor runs the state machine for inbound messages.
type Processor struct {
	policy    *allowlist.Policy
	transport Transport
	extractor Extractor
	appender  sheets.Appender
	mirror    ledger.Mirror
	log       zerolog.Logger
	now       func() time.Time
}

// NewProcessor wires the state machine to its collaborators.
func NewProcessor(
	policy *allowlist.Policy,
	transport Transport,
	extractor Extractor,
	appender sheets.Appender,
	mirror ledger.Mirror,
	log zerolog.Logger,
) *Processor {
	return &Processor{
		policy:    policy,
		transport: transport,
		extractor: extractor,
		appender:  appender,
		mirror:    mirror,
		log:       log,
		now:       time.Now,
	}
}

// run holds the mutable state of one machine execution.
type run struct {
	msg       Message
	startedAt time.Time

	// statusID identifies the StatusMessage once acknowledged; zero means
	// no status message exists yet.
	statusID int

	record *expense.Record
}

// Process drives one message to a terminal state. It never returns an
// error and never panics: any fault after acknowledgment is logged with
// full detail and surfaced to the user as a single generic notice.
func (p *Processor) Process(ctx context.Context, msg Message) (final State) {
	r := &run{msg: msg, startedAt: p.now()}

	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error().
				Interface("panic", rec).
				Str("stack", string(debug.Stack())).
				Int64("chat_id", msg.ChatID).
				Int("message_id", msg.MessageID).
				Msg("Message processing panicked")
			p.editStatus(ctx, r, msgUnexpected)
			final = StateDropped
		}
	}()

	state := StateReceived
	for !state.terminal() {
		next := p.transition(ctx, state, r)
		p.log.Debug().
			Stringer("from", state).
			Stringer("to", next).
			Int("message_id", msg.MessageID).
			Msg("State transition")
		state = next
	}

	return state
}

func (p *Processor) transition(ctx context.Context, state State, r *run) State {
	switch state {
	case StateReceived:
		return p.received(ctx, r)
	case StateAcknowledged:
		return p.acknowledged(ctx, r)
	case StateExtracting:
		return p.extracting(ctx, r)
	case StatePersisting:
		return p.persisting(ctx, r)
	default:
		p.log.Error().Stringer("state", state).Msg("No transition defined, dropping message")
		return StateDropped
	}
}

// received applies the allow-list policy. Unauthorized group chats are left
// without a reply; unauthorized private chats are ignored entirely.
func (p *Processor) received(ctx context.Context, r *run) State {
	if p.policy.CanInteract(r.msg.ChatID, r.msg.UserID) {
		return StateAcknowledged
	}

	if r.msg.IsGroup {
		if err := p.transport.LeaveChat(ctx, r.msg.ChatID); err != nil {
			p.log.Error().Err(err).Int64("chat_id", r.msg.ChatID).Msg("Failed to leave unauthorized group")
		} else {
			p.log.Info().Int64("chat_id", r.msg.ChatID).Msg("Left unauthorized group")
		}
		return StateExited
	}

	p.log.Debug().
		Int64("chat_id", r.msg.ChatID).
		Int64("user_id", r.msg.UserID).
		Msg("Ignoring message outside allow-list")
	return StateDropped
}

// acknowledged sends the StatusMessage. Messages without extractable text
// or without an identifier stop here, silently.
func (p *Processor) acknowledged(ctx context.Context, r *run) State {
	statusID, err := p.transport.SendMessage(ctx, r.msg.ChatID, msgProcessing)
	if err != nil {
		p.log.Error().Err(err).Int64("chat_id", r.msg.ChatID).Msg("Failed to send status message")
		return StateDropped
	}
	r.statusID = statusID

	if r.msg.Text == "" || r.msg.MessageID <= 0 {
		p.log.Debug().Int64("chat_id", r.msg.ChatID).Msg("Message has nothing to process")
		return StateDropped
	}

	return StateExtracting
}

func (p *Processor) extracting(ctx context.Context, r *run) State {
	p.editStatus(ctx, r, msgExtracting)

	record, err := p.extractor.Extract(ctx, extraction.Request{
		Text:         r.msg.Text,
		MessageID:    int64(r.msg.MessageID),
		RegisteredAt: r.msg.ReceivedAt,
	})
	if err != nil {
		var verr *extraction.ValidationError
		if errors.As(err, &verr) {
			p.log.Warn().Err(err).Int("message_id", r.msg.MessageID).Msg("Extracted expense is invalid")
			p.editStatus(ctx, r, msgInvalidExpense)
		} else {
			p.log.Error().Err(err).Int("message_id", r.msg.MessageID).Msg("Expense extraction failed")
			p.editStatus(ctx, r, msgExtractionFailed)
		}
		return StateDropped
	}

	r.record = record
	return StatePersisting
}

func (p *Processor) persisting(ctx context.Context, r *run) State {
	p.editStatus(ctx, r, msgSaving)

	if !p.appender.Append(ctx, r.record) {
		p.editStatus(ctx, r, msgSaveFailed)
		return StateDropped
	}

	p.mirror.Record(ctx, r.record)

	elapsed := p.now().Sub(r.startedAt)
	p.editStatus(ctx, r, fmt.Sprintf("✅ Despesa registrada com sucesso em %ss", formatSeconds(elapsed)))

	p.log.Info().
		Int("message_id", r.msg.MessageID).
		Float64("amount", r.record.Amount).
		Str("categories", r.record.CategoriesJoined()).
		Dur("elapsed", elapsed).
		Msg("Expense registered")
	return StateCompleted
}

// editStatus rewrites the StatusMessage, if one exists. Edit failures are
// logged and do not interrupt the machine.
func (p *Processor) editStatus(ctx context.Context, r *run, text string) {
	if r.statusID == 0 {
		return
	}
	if err := p.transport.EditMessage(ctx, r.msg.ChatID, r.statusID, text); err != nil {
		p.log.Warn().Err(err).Int("status_id", r.statusID).Msg("Failed to edit status message")
	}
}

// formatSeconds renders elapsed wall-clock time with two significant figures.
func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.2g", d.Seconds())
}
