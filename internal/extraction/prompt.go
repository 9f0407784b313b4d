package extraction

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/expensebot/internal/expense"
)

// Provider names the extraction backend in user-visible status messages.
const Provider = "Gemini"

// Request carries one message into the extraction gateway.
type Request struct {
	Text         string
	MessageID    int64
	RegisteredAt time.Time
}

// buildPrompt constructs the extraction instruction set for one message.
// The relative-date vocabulary and the category heuristics encoded here are
// the system of record for what the bot understands; occurredAt is always
// computed from currentDate, never from the model's idea of "now".
func buildPrompt(req Request, currentDate civil.Date) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Parse: %q\n\n", fmt.Sprintf("%d %s %s %s",
		req.MessageID,
		req.RegisteredAt.UTC().Format(time.RFC3339),
		currentDate.String(),
		req.Text,
	))

	b.WriteString("FORMAT: {id} {registeredAt} {currentDate} {amount} {description} {temporal_ref} {payment_type} {provider} [category]\n\n")

	b.WriteString("OUTPUT FIELDS:\n")
	b.WriteString("- messageId: id (number)\n")
	b.WriteString("- amount: numeric value\n")
	b.WriteString("- currency: \"BRL\"\n")
	b.WriteString("- registeredAt: as-is\n")
	b.WriteString("- occurredAt: YYYY-MM-DD from currentDate + temporal_ref\n")
	b.WriteString("- paymentMethod: débito→debit, crédito→credit, pix→pix, boleto→boleto\n")
	b.WriteString("- paymentIdentifier: provider (capitalized)\n")
	b.WriteString("- description: title case, STRIPPED of temporal refs (keep frequency: mensal, anual, trimestral)\n")
	b.WriteString("- categories: array of strings; if the input ends with an explicit category, standardize and use it, otherwise infer\n\n")

	b.WriteString("TEMPORAL REFS (calculate occurredAt from currentDate, then DELETE from description):\n")
	b.WriteString("hoje, ontem, anteontem, [N] dia(s) atrás, semana passada (currentDate - 7 days), ")
	b.WriteString("mês passado, ano passado, segunda, terça, quarta, quinta, sexta, sábado, domingo ")
	b.WriteString("(weekday names mean the most recent past occurrence)\n\n")

	b.WriteString("STRIPPING EXAMPLES:\n")
	b.WriteString("\"mercado hoje\" → \"Mercado\"\n")
	b.WriteString("\"oxxo 3 dias atrás\" → \"Oxxo\"\n")
	b.WriteString("\"oxxo (verduras) ontem\" → \"Oxxo (Verduras)\"\n")
	b.WriteString("\"spotify mensal hoje\" → \"Spotify (Mensal)\" [mensal kept, hoje removed]\n\n")

	fmt.Fprintf(&b, "VALID CATEGORIES (use EXACTLY these spellings):\n%s\n\n",
		strings.Join(expense.TaxonomyStrings(), ", "))

	b.WriteString("CATEGORY HEURISTICS:\n")
	b.WriteString("market: mercado,oxxo,sacolão,supermercado,compras\n")
	b.WriteString("food: restaurante,ifood,padaria,pastel,lanchonete,bar\n")
	b.WriteString("car: gasolina,posto,combustível,mecânico\n")
	b.WriteString("health: farmácia,consulta,médico,dentista,plano de saúde\n")
	b.WriteString("monthly-expenses: aluguel,conta,luz,água,internet,fatura,gás\n")
	b.WriteString("candomble: candomblé,axé,ebó,orixá,charutos\n")
	b.WriteString("entertainment: steam,jogo,show,cinema\n")
	b.WriteString("taxes: iof,ipva,iptu,juros\n")
	b.WriteString("transport: uber,99,taxi,metrô,estacionamento\n")
	b.WriteString("pets: petz,ração,veterinário\n")
	b.WriteString("gifts: presente,cesta básica\n")
	b.WriteString("self-care: salão,barbeiro,academia\n")
	b.WriteString("education: curso,livro,faculdade\n")
	b.WriteString("appliances: eletrodoméstico,geladeira\n")
	b.WriteString("work: créditos anthropic/openai/aws\n")
	b.WriteString("credit-allowance: liberação de crédito\n")
	b.WriteString("unrecognized: unclear\n\n")

	b.WriteString("SUBSCRIPTIONS:\n")
	b.WriteString("Entertainment (spotify,netflix,youtube,disney,hbo,prime): [\"subscriptions\",\"entertainment\"]\n")
	b.WriteString("Work (cursor,grammarly,github,claude,chatgpt): [\"subscriptions\",\"work\"]\n")
	b.WriteString("Education (coursera,udemy): [\"subscriptions\",\"education\"]\n")
	b.WriteString("+frequency ONLY when mentioned: mensal→subscriptions-1-month, trimestral→subscriptions-3-months, ")
	b.WriteString("semestral→subscriptions-6-months, anual→subscriptions-1-year\n")
	b.WriteString("Usage-based (aws,cloudflare,vercel): [\"work\"] only, never subscriptions\n\n")

	b.WriteString("MULTI-CATEGORY: plano de saúde→[\"monthly-expenses\",\"health\"] | juros unifor→[\"taxes\",\"education\"]\n\n")

	b.WriteString("EXAMPLES:\n")
	b.WriteString(`Input: 47 2026-01-05T01:47:39Z 2026-01-05 22.35 compras no mercado ontem débito nubank` + "\n")
	b.WriteString(`Output: {"messageId":47,"amount":22.35,"currency":"BRL","registeredAt":"2026-01-05T01:47:39Z","occurredAt":"2026-01-04","paymentMethod":"debit","paymentIdentifier":"Nubank","description":"Compras No Mercado","categories":["market"]}` + "\n")
	b.WriteString(`Input: 49 2026-01-05T01:47:39Z 2026-01-05 31.90 spotify mensal hoje débito nubank` + "\n")
	b.WriteString(`Output: {"messageId":49,"amount":31.90,"currency":"BRL","registeredAt":"2026-01-05T01:47:39Z","occurredAt":"2026-01-05","paymentMethod":"debit","paymentIdentifier":"Nubank","description":"Spotify (Mensal)","categories":["subscriptions","subscriptions-1-month","entertainment"]}` + "\n")
	b.WriteString(`Input: 50 2026-01-05T01:47:39Z 2026-01-05 50.00 compras hoje débito nubank entertainment` + "\n")
	b.WriteString(`Output: {"messageId":50,"amount":50.00,"currency":"BRL","registeredAt":"2026-01-05T01:47:39Z","occurredAt":"2026-01-05","paymentMethod":"debit","paymentIdentifier":"Nubank","description":"Compras","categories":["entertainment"]}` + "\n")
	b.WriteString(`Input: 51 2026-01-05T01:47:39Z 2026-01-05 3.13 aws hoje crédito neon` + "\n")
	b.WriteString(`Output: {"messageId":51,"amount":3.13,"currency":"BRL","registeredAt":"2026-01-05T01:47:39Z","occurredAt":"2026-01-05","paymentMethod":"credit","paymentIdentifier":"Neon","description":"AWS","categories":["work"]}` + "\n")

	return b.String()
}
