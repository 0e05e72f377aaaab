package chat

// Sender identifies who authored a transcript message.
type Sender string

const (
	User Sender = "user"
	Bot  Sender = "bot"
)

// Message is one transcript line. Failed marks a bot-side placeholder shown
// in place of a reply that never arrived.
type Message struct {
	Sender Sender `json:"sender"`
	Text   string `json:"text"`
	Failed bool   `json:"failed,omitempty"`
}
