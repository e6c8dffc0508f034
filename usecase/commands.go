package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/kirana/domain"
	"github.com/satriahrh/kirana/domain/repositories"
)

// command pairs an intent pattern with its handler. The table is evaluated in
// order, first match wins, and every handler is terminal.
type command struct {
	name    string
	pattern *regexp.Regexp
	run     func(ctx context.Context, o *Orchestrator, sessionID, text string, match []string)
}

// The note command sits above open-site on purpose: "open a note about X"
// must create a note, not navigate to "a.com".
func commandTable() []command {
	return []command{
		{
			name:    "email",
			pattern: regexp.MustCompile(`(?i)\b(?:send|write|compose)\s+(?:an?\s+)?e-?mail\b`),
			run:     runEmailCommand,
		},
		{
			name:    "media_search",
			pattern: regexp.MustCompile(`(?i)\b(?:search(?:\s+for)?|find|play)\s+(.+?)\s+on\s+youtube\b`),
			run:     runMediaSearchCommand,
		},
		{
			name:    "note",
			pattern: regexp.MustCompile(`(?i)\b(?:create|make|take|write|open)\s+(?:a\s+|new\s+)?note\b(?:\s+(?:about|that|saying)\s+(.+))?`),
			run:     runNoteCommand,
		},
		{
			name:    "open_site",
			pattern: regexp.MustCompile(`(?i)\b(?:open|go\s+to|launch)\s+([^\s]+)`),
			run:     runOpenSiteCommand,
		},
	}
}

// emailDraftSchema describes the structured extraction requested for email intents
func emailDraftSchema() repositories.Schema {
	return repositories.Schema{
		Type: "object",
		Properties: map[string]repositories.Schema{
			"recipient": {Type: "string", Desc: "Email address or name of the recipient"},
			"subject":   {Type: "string", Desc: "Subject line for the email"},
			"body":      {Type: "string", Desc: "Body text of the email"},
		},
		Required: []string{"recipient", "subject", "body"},
	}
}

func runEmailCommand(ctx context.Context, o *Orchestrator, sessionID, text string, _ []string) {
	prompt := fmt.Sprintf(
		"Extract the email details from this request. Use an empty string for anything not stated.\nRequest: %q", text)

	raw, err := o.provider.GenerateJSON(ctx, prompt, emailDraftSchema())
	if err != nil {
		o.logger.Error("Email extraction failed", zap.Error(err))
		o.appendAssistantText(sessionID, domain.UserMessage(err))
		return
	}

	var draft repositories.EmailDraft
	if err := json.Unmarshal(raw, &draft); err != nil {
		o.logger.Error("Email extraction returned malformed JSON", zap.Error(err))
		o.appendAssistantText(sessionID, domain.UserMessage(domain.ErrValidation))
		return
	}

	if strings.TrimSpace(draft.Recipient) == "" {
		o.appendAssistantText(sessionID, "I couldn't determine who the email should go to. Could you tell me the recipient?")
		return
	}

	o.actions.ComposeEmail(draft)
	o.appendAssistantText(sessionID, fmt.Sprintf("Opening an email to %s.", draft.Recipient))
}

func runMediaSearchCommand(_ context.Context, o *Orchestrator, sessionID, _ string, match []string) {
	query := strings.TrimSpace(match[1])
	o.actions.OpenURL("https://www.youtube.com/results?search_query=" + url.QueryEscape(query))
	o.appendAssistantText(sessionID, fmt.Sprintf("Searching YouTube for %q.", query))
}

func runNoteCommand(_ context.Context, o *Orchestrator, sessionID, _ string, match []string) {
	content := ""
	if len(match) > 1 {
		content = strings.TrimSpace(match[1])
	}
	if content == "" {
		o.appendAssistantText(sessionID, "Sure — what should the note say?")
		return
	}

	o.actions.OfferNoteDownload("note.txt", content)
	o.appendAssistantText(sessionID, "Done. Your note is ready to download.")
}

func runOpenSiteCommand(_ context.Context, o *Orchestrator, sessionID, _ string, match []string) {
	target := normalizeURL(match[1])
	o.actions.OpenURL(target)
	o.appendAssistantText(sessionID, fmt.Sprintf("Opening %s.", target))
}

// normalizeURL turns a spoken site name into a navigable URL: ".com" is
// appended when the target has no dot and is not localhost, and "https://"
// is prefixed when no scheme is present.
func normalizeURL(target string) string {
	t := strings.TrimSpace(strings.ToLower(target))
	t = strings.TrimRight(t, ".,!?")

	if strings.HasPrefix(t, "http://") || strings.HasPrefix(t, "https://") {
		return t
	}
	if !strings.Contains(t, ".") && !strings.HasPrefix(t, "localhost") {
		t += ".com"
	}
	return "https://" + t
}
