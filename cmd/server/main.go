package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/expensebot/internal/allowlist"
	"github.com/dvloznov/expensebot/internal/api/handlers"
	"github.com/dvloznov/expensebot/internal/api/middleware"
	"github.com/dvloznov/expensebot/internal/bot"
	"github.com/dvloznov/expensebot/internal/config"
	"github.com/dvloznov/expensebot/internal/extraction"
	"github.com/dvloznov/expensebot/internal/ledger"
	"github.com/dvloznov/expensebot/internal/logger"
	"github.com/dvloznov/expensebot/internal/secrets"
	"github.com/dvloznov/expensebot/internal/sheets"
)

// container wires the long-lived dependencies and resolves the message
// processor for webhook requests. The Telegram client needs the bot token,
// a secret, so it is constructed lazily on the first delivery instead of at
// startup; a missing token surfaces as a per-request failure.
type container struct {
	cfg      *config.Config
	resolver secrets.Resolver
	log      zerolog.Logger

	policy    *allowlist.Policy
	extractor *extraction.Gateway
	appender  sheets.Appender
	mirror    ledger.Mirror

	mu        sync.Mutex
	processor *bot.Processor
}

func newContainer(cfg *config.Config, resolver secrets.Resolver, log zerolog.Logger) *container {
	c := &container{
		cfg:      cfg,
		resolver: resolver,
		log:      log,
		policy:   allowlist.NewPolicy(cfg.AllowedChatIDs, cfg.AllowedUserIDs),
		extractor: extraction.NewGateway(
			extraction.NewGeminiGenerator(resolver, cfg.GeminiModel),
			log,
		),
		appender: sheets.NewWriter(sheets.Config{
			CredentialsJSON: cfg.GoogleServiceAccountCredentials,
			SpreadsheetID:   cfg.SpreadsheetID,
			SheetName:       cfg.SpreadsheetSheetName,
		}, log),
		mirror: ledger.Noop{},
	}

	if cfg.MirrorEnabled() {
		c.mirror = ledger.NewBigQueryMirror(cfg.BigQueryProject, cfg.BigQueryDataset, log)
	}

	return c
}

// Processor returns the message processor, building the Telegram transport
// on first use. Construction is guarded because deliveries may race on it.
func (c *container) Processor(context.Context) (handlers.Processor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.processor != nil {
		return c.processor, nil
	}

	token, ok := c.resolver.Get(secrets.TelegramBotToken)
	if !ok {
		return nil, fmt.Errorf("secret %s is not configured", secrets.TelegramBotToken)
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram client: %w", err)
	}

	c.processor = bot.NewProcessor(
		c.policy,
		bot.NewTelegramTransport(api),
		c.extractor,
		c.appender,
		c.mirror,
		c.log,
	)
	return c.processor, nil
}

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	resolver := secrets.NewEnvResolver()
	c := newContainer(cfg, resolver, log)
	webhookHandler := handlers.NewWebhookHandler(c, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", webhookHandler.HandleUpdate)

	// The route guard runs before the secret guard so probes to unknown
	// paths get the same empty 204 whether or not they carry the secret.
	handler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.RouteGuard(http.MethodPost, "/webhook")(
					middleware.SecretGuard(resolver, log)(mux),
				),
			),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Bool("mirror_enabled", cfg.MirrorEnabled()).
			Msg("Starting webhook server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
