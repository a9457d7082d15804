package events

// Event is the base interface for everything published on the bus.
type Event interface {
	EventType() string
	RunID() string
}

// Topic constants.
const (
	// TopicState carries full orchestration snapshots on phase transitions
	// and task settlements.
	TopicState = "state"
	// TopicStream carries per-task streaming text batches. Split from
	// TopicState so slow observers can skip the high-frequency traffic.
	TopicStream = "stream"
)

// Event type constants.
const (
	EventTypeState  = "orchestration.state"
	EventTypeStream = "orchestration.stream"
)

// StateEvent wraps an immutable orchestration snapshot. The payload is a
// deep copy taken by the state machine; observers may retain it freely.
type StateEvent struct {
	Run      string
	Snapshot any // *orchestrator.Snapshot; typed loosely to avoid an import cycle
}

func (e StateEvent) EventType() string { return EventTypeState }
func (e StateEvent) RunID() string     { return e.Run }

// StreamEvent carries the full accumulated text for one task after a
// streamed batch.
type StreamEvent struct {
	Run    string
	TaskID string
	Text   string
}

func (e StreamEvent) EventType() string { return EventTypeStream }
func (e StreamEvent) RunID() string     { return e.Run }
