// Package secrets resolves named runtime secrets. Resolution never fails
// with an error: any lookup problem collapses to absence, and callers must
// treat absence as a configuration fault rather than something retryable.
package secrets

import "os"

// Names of the secrets the service resolves at runtime.
const (
	TelegramBotToken           = "TELEGRAM_BOT_TOKEN"
	TelegramWebhookSecretToken = "TELEGRAM_WEBHOOK_SECRET_TOKEN"
	GeminiAPIKey               = "GEMINI_API_KEY"
)

// Resolver looks up secrets by name.
type Resolver interface {
	Get(name string) (value string, ok bool)
}

// EnvResolver resolves secrets from the process environment.
type EnvResolver struct{}

// NewEnvResolver creates a resolver backed by the process environment.
func NewEnvResolver() *EnvResolver {
	return &EnvResolver{}
}

// Get returns the secret value and true, or "" and false when the secret
// is unset or empty.
func (r *EnvResolver) Get(name string) (string, bool) {
	value, ok := os.LookupEnv(name)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// StaticResolver serves secrets from a fixed map. Used in tests.
type StaticResolver map[string]string

// Get returns the secret value and true, or "" and false when absent.
func (r StaticResolver) Get(name string) (string, bool) {
	value, ok := r[name]
	if !ok || value == "" {
		return "", false
	}
	return value, true
}
