package repositories

// EmailDraft is the structured extraction result for an email intent
type EmailDraft struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// ActionRunner performs the external side effects computed by local commands.
// The core only computes the inputs; execution (opening a browser context,
// offering a download) belongs to the integration.
type ActionRunner interface {
	// OpenURL opens a URL in a new external context
	OpenURL(url string)
	// ComposeEmail opens a mail-compose action
	ComposeEmail(draft EmailDraft)
	// OfferNoteDownload offers text as a named downloadable file
	OfferNoteDownload(filename string, content string)
}
