package entities

// FileAttachment is a file handed in alongside an utterance. Immutable once
// passed to the orchestrator.
type FileAttachment struct {
	Name       string `json:"name" bson:"name"`
	MIMEType   string `json:"mime_type" bson:"mime_type"`
	Base64Data string `json:"base64_data" bson:"base64_data"`
}

// Utterance is one unit of user input, produced by the speech channel or
// direct text entry and consumed exactly once by the orchestrator.
type Utterance struct {
	Text        string
	Attachments []FileAttachment
}

// IsEmpty reports whether the utterance carries neither text nor attachments
func (u Utterance) IsEmpty() bool {
	return u.Text == "" && len(u.Attachments) == 0
}
