package domain

// ChatMessage is the provider-agnostic completion message shape used by the
// resolver and LLM integrations.
type ChatMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}
