// Package config performs the single startup-time parse of the process
// environment into an immutable configuration struct. Parse failures are
// fatal at startup and never deferred into request handling. Secrets are
// deliberately excluded; they resolve at request time via internal/secrets.
package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all non-secret runtime configuration.
type Config struct {
	// Port is the HTTP listen port for the webhook server.
	Port string

	// AllowedChatIDs and AllowedUserIDs form the interaction allow-list.
	AllowedChatIDs []int64
	AllowedUserIDs []int64

	// GoogleServiceAccountCredentials is the service-account JSON used to
	// authenticate Google Sheets appends.
	GoogleServiceAccountCredentials string

	// SpreadsheetID and SpreadsheetSheetName locate the backlog sheet that
	// expenses are appended to.
	SpreadsheetID        string
	SpreadsheetSheetName string

	// GeminiModel is the model used for expense extraction.
	GeminiModel string

	// BigQueryProject and BigQueryDataset enable the optional analytics
	// mirror when both are set.
	BigQueryProject string
	BigQueryDataset string
}

// Load parses the environment into a Config. It returns an error naming
// every missing or malformed variable, not just the first.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash")

	cfg := &Config{
		Port:                            v.GetString("PORT"),
		GoogleServiceAccountCredentials: v.GetString("GOOGLE_SERVICE_ACCOUNT_CREDENTIALS"),
		SpreadsheetID:                   v.GetString("SPREADSHEET_ID"),
		SpreadsheetSheetName:            v.GetString("SPREADSHEET_SHEET_NAME"),
		GeminiModel:                     v.GetString("GEMINI_MODEL"),
		BigQueryProject:                 v.GetString("BIGQUERY_PROJECT"),
		BigQueryDataset:                 v.GetString("BIGQUERY_DATASET"),
	}

	var problems []string

	chats, err := parseIDList(v.GetString("ALLOWED_CHAT_IDS"))
	if err != nil {
		problems = append(problems, fmt.Sprintf("ALLOWED_CHAT_IDS: %v", err))
	}
	cfg.AllowedChatIDs = chats

	users, err := parseIDList(v.GetString("ALLOWED_USER_IDS"))
	if err != nil {
		problems = append(problems, fmt.Sprintf("ALLOWED_USER_IDS: %v", err))
	}
	cfg.AllowedUserIDs = users

	required := []struct {
		name  string
		value string
	}{
		{"GOOGLE_SERVICE_ACCOUNT_CREDENTIALS", cfg.GoogleServiceAccountCredentials},
		{"SPREADSHEET_ID", cfg.SpreadsheetID},
		{"SPREADSHEET_SHEET_NAME", cfg.SpreadsheetSheetName},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			problems = append(problems, r.name+": required")
		}
	}

	if (cfg.BigQueryProject == "") != (cfg.BigQueryDataset == "") {
		problems = append(problems, "BIGQUERY_PROJECT and BIGQUERY_DATASET must be set together")
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("config.Load: %s", strings.Join(problems, "; "))
	}

	return cfg, nil
}

// MirrorEnabled reports whether the BigQuery mirror is configured.
func (c *Config) MirrorEnabled() bool {
	return c.BigQueryProject != "" && c.BigQueryDataset != ""
}

// parseIDList decodes a JSON array of integer identifiers, e.g. "[1,2,3]".
func parseIDList(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("required, expected a JSON array of numbers")
	}

	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("invalid JSON array: %w", err)
	}
	return ids, nil
}
