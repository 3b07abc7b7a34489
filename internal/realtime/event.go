package realtime

type EventType string

const (
	EventJobQueued    EventType = "job_queued"
	EventJobTurn      EventType = "job_turn"
	EventJobCompleted EventType = "job_completed"
	EventJobFailed    EventType = "job_failed"
	EventJobRestarted EventType = "job_restarted"
)

// Event is one message on the bus. Channel is the owning user id so subscribers can fan out per user.
type Event struct {
	Channel string    `json:"channel"`
	Event   EventType `json:"event"`
	Data    any       `json:"data"`
}
