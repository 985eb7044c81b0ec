package conversation

// State is the closed set of conversation positions. The zero value is Idle.
type State int

const (
	StateIdle State = iota
	StateTitle
	StateBody
	StateCategory
	StateTags
	StateImage
	StatePreview
	StatePublish
	StateScheduleDate
	StateScheduleTime
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTitle:
		return "title"
	case StateBody:
		return "body"
	case StateCategory:
		return "category"
	case StateTags:
		return "tags"
	case StateImage:
		return "image"
	case StatePreview:
		return "preview"
	case StatePublish:
		return "publish"
	case StateScheduleDate:
		return "schedule_date"
	case StateScheduleTime:
		return "schedule_time"
	}
	return "unknown"
}

// EventKind tags an inbound user event.
type EventKind int

const (
	// EventCommand carries the command name (without slash) in Text.
	EventCommand EventKind = iota
	// EventText carries plain text in Text and, when the message had
	// formatting entities, its HTML rendering in HTML.
	EventText
	// EventPhoto carries the fetchable URL of the largest photo variant.
	EventPhoto
	// EventCallback carries a button payload in Data.
	EventCallback
)

// Event is one inbound user input, already detached from the transport.
type Event struct {
	UserID   int64
	ChatID   int64
	Kind     EventKind
	Text     string
	HTML     string
	PhotoURL string
	Data     string
}

// Button is one labeled inline action.
type Button struct {
	Label string
	Data  string
}

// Reply is one outbound message. When PhotoURL is set, Text is the caption.
type Reply struct {
	Text     string
	PhotoURL string
	Markdown bool
	Buttons  [][]Button
}

// Callback payloads shared between the engine and the reply buttons it emits.
const (
	callbackCancel     = "cancel"
	callbackSkip       = "skip"
	callbackPublishNow = "now"
	callbackSchedule   = "schedule"
)
