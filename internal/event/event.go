package event

// Type names what happened. Clients of the activity feed switch on it.
type Type string

const (
	TypeActivityRecorded Type = "activity.recorded"
	TypeLogsCleared      Type = "activity.cleared"
)

// Event is the envelope pushed to live activity subscribers.
type Event struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	ActorID   string `json:"actorId,omitempty"`
	Timestamp string `json:"timestamp"`
	Payload   any    `json:"payload"`
}

// Bus delivers events to every current subscriber without blocking publishers.
type Bus interface {
	Publish(e Event)
	// Subscribe returns the event channel and a func that ends the subscription.
	Subscribe() (<-chan Event, func())
}
