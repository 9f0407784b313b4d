// Package extraction turns free-text expense messages into validated
// expense records using Gemini structured output. The model output is
// never trusted directly: every candidate goes through the expense record
// validation before it can leave this package.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/dvloznov/expensebot/internal/expense"
	"github.com/dvloznov/expensebot/internal/secrets"
)

// ErrNoUsableOutput reports that the extraction backend returned nothing
// that could be interpreted as a candidate expense.
var ErrNoUsableOutput = errors.New("extraction: no usable model output")

// ValidationError reports that the model produced a candidate expense that
// violates the record schema. It is distinct from transport failures so the
// caller can name the failure class to the user.
type ValidationError struct {
	Cause error
}

func (e *ValidationError) Error() string {
	return "extraction: extracted expense failed validation: " + e.Cause.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// Generator produces the raw structured-output text for an extraction prompt.
type Generator interface {
	GenerateExpense(ctx context.Context, prompt string) (string, error)
}

// Gateway builds extraction prompts, calls the generator, and validates the
// response into an expense record.
type Gateway struct {
	generator Generator
	log       zerolog.Logger
	now       func() time.Time
	location  *time.Location
}

// NewGateway creates an extraction gateway on top of a generator.
func NewGateway(generator Generator, log zerolog.Logger) *Gateway {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.UTC
	}
	return &Gateway{
		generator: generator,
		log:       log,
		now:       time.Now,
		location:  loc,
	}
}

// payload is the wire shape the model is instructed to produce.
type payload struct {
	MessageID         int64    `json:"messageId"`
	Amount            float64  `json:"amount"`
	Currency          string   `json:"currency"`
	Description       string   `json:"description"`
	Categories        []string `json:"categories"`
	PaymentMethod     string   `json:"paymentMethod"`
	PaymentIdentifier string   `json:"paymentIdentifier"`
	OccurredAt        string   `json:"occurredAt"`
	RegisteredAt      string   `json:"registeredAt"`
}

// Extract converts one message into a validated expense record.
//
// Failure classes: ErrNoUsableOutput (wrapped) when the backend is unusable,
// *ValidationError when the candidate violates the record schema, and plain
// wrapped errors for transport faults.
func (g *Gateway) Extract(ctx context.Context, req Request) (*expense.Record, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("extraction.Extract: empty message text")
	}
	if req.MessageID <= 0 {
		return nil, fmt.Errorf("extraction.Extract: message id must be positive, got %d", req.MessageID)
	}

	currentDate := civil.DateOf(g.now().In(g.location))
	prompt := buildPrompt(req, currentDate)

	raw, err := g.generator.GenerateExpense(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("extraction.Extract: generate: %w", err)
	}

	clean := cleanModelJSON(raw)
	if clean == "" {
		return nil, fmt.Errorf("extraction.Extract: empty response: %w", ErrNoUsableOutput)
	}

	var candidate payload
	if err := json.Unmarshal([]byte(clean), &candidate); err != nil {
		g.log.Debug().Str("raw", raw).Msg("Model output is not valid JSON")
		return nil, fmt.Errorf("extraction.Extract: unmarshal model output: %v: %w", err, ErrNoUsableOutput)
	}

	// The message identity and registration timestamp come from the
	// transport, not from whatever the model echoed back.
	occurredAt, dateErr := civil.ParseDate(candidate.OccurredAt)
	if dateErr != nil {
		occurredAt = civil.Date{}
	}

	record, err := expense.New(expense.Params{
		MessageID:         req.MessageID,
		Amount:            candidate.Amount,
		Currency:          candidate.Currency,
		Description:       candidate.Description,
		Categories:        candidate.Categories,
		PaymentMethod:     candidate.PaymentMethod,
		PaymentIdentifier: candidate.PaymentIdentifier,
		OccurredAt:        occurredAt,
		RegisteredAt:      req.RegisteredAt,
	})
	if err != nil {
		g.log.Warn().Err(err).Int64("message_id", req.MessageID).Msg("Extracted expense failed validation")
		return nil, &ValidationError{Cause: err}
	}

	return record, nil
}

// cleanModelJSON strips Markdown fences and surrounding junk if the model
// ignored the raw-JSON instruction.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}

	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	s = strings.TrimSpace(s)

	// Keep only the outermost JSON object if junk remains around it.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}

	return s
}

// GeminiGenerator calls Gemini with a JSON response schema. The client is
// constructed lazily on first use; construction is guarded because multiple
// webhook requests may race on it.
type GeminiGenerator struct {
	resolver secrets.Resolver
	model    string

	mu     sync.Mutex
	client *genai.Client
}

// NewGeminiGenerator creates a generator for the given model.
func NewGeminiGenerator(resolver secrets.Resolver, model string) *GeminiGenerator {
	return &GeminiGenerator{
		resolver: resolver,
		model:    model,
	}
}

// GenerateExpense sends the prompt to Gemini and returns the raw response text.
func (g *GeminiGenerator) GenerateExpense(ctx context.Context, prompt string) (string, error) {
	client, err := g.getClient(ctx)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
			},
		},
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   expenseSchema(),
		Temperature:      genai.Ptr[float32](0),
		MaxOutputTokens:  256,
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("GenerateExpense: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("GenerateExpense: empty response from model: %w", ErrNoUsableOutput)
	}

	return text, nil
}

func (g *GeminiGenerator) getClient(ctx context.Context) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.client != nil {
		return g.client, nil
	}

	apiKey, ok := g.resolver.Get(secrets.GeminiAPIKey)
	if !ok {
		return nil, fmt.Errorf("getClient: secret %s is not configured", secrets.GeminiAPIKey)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("getClient: create genai client: %w", err)
	}

	g.client = client
	return g.client, nil
}

// expenseSchema mirrors the expense record contract as a Gemini response
// schema so the model is constrained to the exact output shape.
func expenseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"messageId": {Type: genai.TypeInteger},
			"amount":    {Type: genai.TypeNumber},
			"currency": {
				Type: genai.TypeString,
				Enum: []string{expense.Currency},
			},
			"description": {Type: genai.TypeString},
			"categories": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeString,
					Enum: expense.TaxonomyStrings(),
				},
			},
			"paymentMethod": {
				Type: genai.TypeString,
				Enum: []string{
					string(expense.PaymentPix),
					string(expense.PaymentDebit),
					string(expense.PaymentCredit),
					string(expense.PaymentBoleto),
				},
			},
			"paymentIdentifier": {Type: genai.TypeString},
			"occurredAt":        {Type: genai.TypeString, Format: "date"},
			"registeredAt":      {Type: genai.TypeString, Format: "date-time"},
		},
		Required: []string{
			"messageId", "amount", "currency", "description", "categories",
			"paymentMethod", "paymentIdentifier", "occurredAt", "registeredAt",
		},
	}
}
