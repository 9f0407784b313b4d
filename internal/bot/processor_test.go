package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/expensebot/internal/allowlist"
	"github.com/dvloznov/expensebot/internal/expense"
	"github.com/dvloznov/expensebot/internal/extraction"
	"github.com/dvloznov/expensebot/internal/logger"
)

type fakeTransport struct {
	sends  []string
	edits  []string
	leaves []int64

	sendErr error
	editErr error
}

func (f *fakeTransport) SendMessage(_ context.Context, _ int64, text string) (int, error) {
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.sends = append(f.sends, text)
	return 900 + len(f.sends), nil
}

func (f *fakeTransport) EditMessage(_ context.Context, _ int64, _ int, text string) error {
	if f.editErr != nil {
		return f.editErr
	}
	f.edits = append(f.edits, text)
	return nil
}

func (f *fakeTransport) LeaveChat(_ context.Context, chatID int64) error {
	f.leaves = append(f.leaves, chatID)
	return nil
}

type fakeExtractor struct {
	record *expense.Record
	err    error
	calls  int
	panics bool
}

func (f *fakeExtractor) Extract(_ context.Context, _ extraction.Request) (*expense.Record, error) {
	f.calls++
	if f.panics {
		panic("extractor exploded")
	}
	return f.record, f.err
}

type fakeAppender struct {
	result bool
	calls  int
}

func (f *fakeAppender) Append(_ context.Context, _ *expense.Record) bool {
	f.calls++
	return f.result
}

type fakeMirror struct {
	calls int
}

func (f *fakeMirror) Record(_ context.Context, _ *expense.Record) {
	f.calls++
}

func testExpense(t *testing.T) *expense.Record {
	t.Helper()
	record, err := expense.New(expense.Params{
		MessageID:         47,
		Amount:            100,
		Currency:          "BRL",
		Description:       "Mercado",
		Categories:        []string{"market"},
		PaymentMethod:     "debit",
		PaymentIdentifier: "Nubank",
		OccurredAt:        civil.Date{Year: 2026, Month: time.January, Day: 5},
		RegisteredAt:      time.Date(2026, time.January, 5, 1, 47, 39, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Failed to build record: %v", err)
	}
	return record
}

type fixture struct {
	processor *Processor
	transport *fakeTransport
	extractor *fakeExtractor
	appender  *fakeAppender
	mirror    *fakeMirror
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		transport: &fakeTransport{},
		extractor: &fakeExtractor{record: testExpense(t)},
		appender:  &fakeAppender{result: true},
		mirror:    &fakeMirror{},
	}
	policy := allowlist.NewPolicy([]int64{100}, []int64{1})
	f.processor = NewProcessor(
		policy,
		f.transport,
		f.extractor,
		f.appender,
		f.mirror,
		logger.NewWithWriter(&strings.Builder{}),
	)
	return f
}

func allowedMessage() Message {
	return Message{
		ChatID:     100,
		UserID:     1,
		MessageID:  47,
		Text:       "100 mercado hoje débito nubank",
		ReceivedAt: time.Date(2026, time.January, 5, 1, 47, 39, 0, time.UTC),
	}
}

func TestProcess_SuccessPath(t *testing.T) {
	f := newFixture(t)

	state := f.processor.Process(context.Background(), allowedMessage())

	if state != StateCompleted {
		t.Errorf("Expected completed, got %s", state)
	}
	if len(f.transport.sends) != 1 || f.transport.sends[0] != msgProcessing {
		t.Errorf("Expected single %q send, got %v", msgProcessing, f.transport.sends)
	}

	wantEdits := []string{msgExtracting, msgSaving}
	if len(f.transport.edits) != 3 {
		t.Fatalf("Expected 3 edits, got %v", f.transport.edits)
	}
	for i, want := range wantEdits {
		if f.transport.edits[i] != want {
			t.Errorf("Edit %d = %q, want %q", i, f.transport.edits[i], want)
		}
	}
	if !strings.HasPrefix(f.transport.edits[2], "✅ Despesa registrada com sucesso em ") {
		t.Errorf("Unexpected final edit: %q", f.transport.edits[2])
	}
	if !strings.HasSuffix(f.transport.edits[2], "s") {
		t.Errorf("Expected elapsed seconds suffix, got %q", f.transport.edits[2])
	}

	if f.appender.calls != 1 {
		t.Errorf("Expected exactly one append, got %d", f.appender.calls)
	}
	if f.mirror.calls != 1 {
		t.Errorf("Expected exactly one mirror call, got %d", f.mirror.calls)
	}
}

func TestProcess_UnauthorizedGroupLeavesWithoutReply(t *testing.T) {
	f := newFixture(t)

	msg := allowedMessage()
	msg.ChatID = 999
	msg.IsGroup = true

	state := f.processor.Process(context.Background(), msg)

	if state != StateExited {
		t.Errorf("Expected exited, got %s", state)
	}
	if len(f.transport.leaves) != 1 || f.transport.leaves[0] != 999 {
		t.Errorf("Expected exactly one leave of chat 999, got %v", f.transport.leaves)
	}
	if len(f.transport.sends) != 0 || len(f.transport.edits) != 0 {
		t.Error("Expected zero chat replies for unauthorized group")
	}
}

func TestProcess_UnauthorizedPrivateChatIsSilent(t *testing.T) {
	f := newFixture(t)

	msg := allowedMessage()
	msg.UserID = 42

	state := f.processor.Process(context.Background(), msg)

	if state != StateDropped {
		t.Errorf("Expected dropped, got %s", state)
	}
	if len(f.transport.sends)+len(f.transport.edits)+len(f.transport.leaves) != 0 {
		t.Error("Expected no transport activity for unauthorized private chat")
	}
	if f.extractor.calls != 0 {
		t.Error("Expected extractor to stay untouched")
	}
}

func TestProcess_NoTextStopsAfterAck(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Message)
	}{
		{name: "empty text", mutate: func(m *Message) { m.Text = "" }},
		{name: "no message id", mutate: func(m *Message) { m.MessageID = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			msg := allowedMessage()
			tt.mutate(&msg)

			state := f.processor.Process(context.Background(), msg)

			if state != StateDropped {
				t.Errorf("Expected dropped, got %s", state)
			}
			if len(f.transport.sends) != 1 {
				t.Errorf("Expected the ack to be sent, got %v", f.transport.sends)
			}
			if len(f.transport.edits) != 0 {
				t.Errorf("Expected no further edits, got %v", f.transport.edits)
			}
			if f.extractor.calls != 0 {
				t.Error("Expected extractor to stay untouched")
			}
		})
	}
}

func TestProcess_ExtractionValidationFailure(t *testing.T) {
	f := newFixture(t)
	f.extractor.record = nil
	f.extractor.err = &extraction.ValidationError{Cause: fmt.Errorf("categories: not in taxonomy")}

	state := f.processor.Process(context.Background(), allowedMessage())

	if state != StateDropped {
		t.Errorf("Expected dropped, got %s", state)
	}
	last := f.transport.edits[len(f.transport.edits)-1]
	if last != msgInvalidExpense {
		t.Errorf("Expected %q, got %q", msgInvalidExpense, last)
	}
	if f.appender.calls != 0 {
		t.Error("Expected nothing to be persisted")
	}
}

func TestProcess_ExtractionTransportFailure(t *testing.T) {
	f := newFixture(t)
	f.extractor.record = nil
	f.extractor.err = errors.New("api unreachable")

	f.processor.Process(context.Background(), allowedMessage())

	last := f.transport.edits[len(f.transport.edits)-1]
	if last != msgExtractionFailed {
		t.Errorf("Expected %q, got %q", msgExtractionFailed, last)
	}
}

func TestProcess_PersistenceFailure(t *testing.T) {
	f := newFixture(t)
	f.appender.result = false

	state := f.processor.Process(context.Background(), allowedMessage())

	if state != StateDropped {
		t.Errorf("Expected dropped, got %s", state)
	}

	last := f.transport.edits[len(f.transport.edits)-1]
	if last != msgSaveFailed {
		t.Errorf("Expected %q as final status, got %q", msgSaveFailed, last)
	}
	for _, edit := range f.transport.edits {
		if strings.Contains(edit, "✅") {
			t.Errorf("Success notice must never appear after save failure, got %v", f.transport.edits)
		}
	}
	if f.mirror.calls != 0 {
		t.Error("Expected mirror to be skipped when append fails")
	}
}

func TestProcess_PanicIsContained(t *testing.T) {
	f := newFixture(t)
	f.extractor.panics = true

	state := f.processor.Process(context.Background(), allowedMessage())

	if state != StateDropped {
		t.Errorf("Expected dropped, got %s", state)
	}
	last := f.transport.edits[len(f.transport.edits)-1]
	if last != msgUnexpected {
		t.Errorf("Expected generic notice, got %q", last)
	}
}

func TestProcess_SendFailureDropsSilently(t *testing.T) {
	f := newFixture(t)
	f.transport.sendErr = errors.New("chat unreachable")

	state := f.processor.Process(context.Background(), allowedMessage())

	if state != StateDropped {
		t.Errorf("Expected dropped, got %s", state)
	}
	if f.extractor.calls != 0 {
		t.Error("Expected extractor to stay untouched when ack fails")
	}
}

func TestProcess_EditFailureDoesNotStopTheMachine(t *testing.T) {
	f := newFixture(t)
	f.transport.editErr = errors.New("message gone")

	state := f.processor.Process(context.Background(), allowedMessage())

	if state != StateCompleted {
		t.Errorf("Expected completed despite edit failures, got %s", state)
	}
	if f.appender.calls != 1 {
		t.Errorf("Expected one append, got %d", f.appender.calls)
	}
}

func TestFormatSeconds(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{d: 1500 * time.Millisecond, want: "1.5"},
		{d: 850 * time.Millisecond, want: "0.85"},
		{d: 12340 * time.Millisecond, want: "12"},
		{d: 2 * time.Second, want: "2"},
	}

	for _, tt := range tests {
		if got := formatSeconds(tt.d); got != tt.want {
			t.Errorf("formatSeconds(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestStateString(t *testing.T) {
	states := map[State]string{
		StateReceived:     "received",
		StateAcknowledged: "acknowledged",
		StateExtracting:   "extracting",
		StatePersisting:   "persisting",
		StateCompleted:    "completed",
		StateExited:       "exited",
		StateDropped:      "dropped",
		State(99):         "unknown",
	}
	for state, want := range states {
		if state.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", state, state.String(), want)
		}
	}
}
