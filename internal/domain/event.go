package domain

// EventKind distinguishes inbound gateway events.
type EventKind int

const (
	// EventMessage is a plain text message, possibly a /command.
	EventMessage EventKind = iota
	// EventCallback is an inline button press carrying a payload.
	EventCallback
)

// Event is one inbound item delivered by the messaging gateway.
type Event struct {
	Kind      EventKind
	Identity  int64 // stable sender id; rate limiting and session state key
	Chat      int64 // where replies go
	FirstName string
	Text      string

	// Callback fields, set only for EventCallback.
	CallbackID string
	Payload    string
	MessageID  int // message the pressed button was attached to
}

// Choice is an inline confirm/decline style button offered with an outbound
// message. Payload comes back verbatim in the corresponding callback event.
type Choice struct {
	Label   string
	Payload string
}
