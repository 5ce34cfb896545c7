package domain

// Source identifies where a resolved answer came from.
type Source string

const (
	SourceKnowledgeBase Source = "knowledge_base"
	SourceRemoteModel   Source = "remote_model"
)

// Answer is a resolved reply to a user question, tagged with its origin.
type Answer struct {
	Text   string
	Source Source
}
