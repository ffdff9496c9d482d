package bridge

// EventType discriminates the variants a session stream can carry.
type EventType string

const (
	EventTypeElicitation EventType = "elicitation"
	EventTypeResult      EventType = "result"
	EventTypeError       EventType = "error"
)

// Event is one item on a session's stream. Content is a string for result and
// error events and an ElicitationContent for elicitation events; the JSON
// encoding is the wire shape consumers see, one object per line.
type Event struct {
	Type    EventType `json:"type"`
	Content any       `json:"content"`
}

// ElicitKind distinguishes how a human is expected to answer: by filling a
// form described by a schema, or by completing an action at a URL.
type ElicitKind string

const (
	ElicitKindForm ElicitKind = "form"
	ElicitKindURL  ElicitKind = "url"
)

// ElicitationContent is the content of an elicitation event.
type ElicitationContent struct {
	ElicitationType ElicitKind     `json:"elicitation_type"`
	Data            map[string]any `json:"data"`
}

func resultEvent(text string) Event {
	return Event{Type: EventTypeResult, Content: text}
}

func errorEvent(msg string) Event {
	return Event{Type: EventTypeError, Content: msg}
}

func elicitationEvent(kind ElicitKind, data map[string]any) Event {
	return Event{Type: EventTypeElicitation, Content: ElicitationContent{
		ElicitationType: kind,
		Data:            data,
	}}
}
