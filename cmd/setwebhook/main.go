// Command setwebhook registers the bot's webhook URL with Telegram,
// attaching the shared secret token that the server's secret guard checks
// on every delivery.
package main

import (
	"flag"
	"fmt"
	"net/url"
	"os"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dvloznov/expensebot/internal/logger"
	"github.com/dvloznov/expensebot/internal/secrets"
)

func main() {
	log := logger.New()

	var publicURL string
	flag.StringVar(&publicURL, "url", os.Getenv("WEBHOOK_URL"), "Public HTTPS URL of the /webhook endpoint (or set WEBHOOK_URL env)")
	flag.Parse()

	if publicURL == "" {
		log.Fatal().Msg("Usage: setwebhook -url https://host/webhook")
	}

	resolver := secrets.NewEnvResolver()

	token, ok := resolver.Get(secrets.TelegramBotToken)
	if !ok {
		log.Fatal().Str("secret", secrets.TelegramBotToken).Msg("Bot token is not configured")
	}
	secret, ok := resolver.Get(secrets.TelegramWebhookSecretToken)
	if !ok {
		log.Fatal().Str("secret", secrets.TelegramWebhookSecretToken).Msg("Webhook secret is not configured")
	}

	parsed, err := url.Parse(publicURL)
	if err != nil || parsed.Scheme != "https" {
		log.Fatal().Str("url", publicURL).Msg("Webhook URL must be a valid https:// URL")
	}
	if !strings.HasSuffix(parsed.Path, "/webhook") {
		log.Warn().Str("url", publicURL).Msg("URL does not end in /webhook; the server only accepts deliveries there")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create telegram client")
	}

	webhook, err := tgbotapi.NewWebhook(publicURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build webhook config")
	}
	webhook.SecretToken = secret

	resp, err := api.Request(webhook)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register webhook")
	}
	if !resp.Ok {
		log.Fatal().Str("description", resp.Description).Msg("Telegram rejected the webhook")
	}

	info, err := api.GetWebhookInfo()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read back webhook info")
	}

	fmt.Printf("Webhook set to %s (pending updates: %d)\n", info.URL, info.PendingUpdateCount)
}
