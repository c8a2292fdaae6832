package lib

import "time"

// State is the lifecycle state of the supervised process.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// ParseState is the inverse of State.String. Unknown names map to StateIdle.
func ParseState(name string) State {
	switch name {
	case "Starting":
		return StateStarting
	case "Running":
		return StateRunning
	case "Stopping":
		return StateStopping
	default:
		return StateIdle
	}
}

// StatusEvent is a single status notification. Message is optional.
type StatusEvent struct {
	Running bool
	Message *string
}

// NewStatusEvent builds an event carrying a message.
func NewStatusEvent(running bool, message string) StatusEvent {
	return StatusEvent{Running: running, Message: &message}
}

// Text returns the message or an empty string when there is none.
func (e StatusEvent) Text() string {
	if e.Message == nil {
		return ""
	}
	return *e.Message
}

// Sink receives status events. It is invoked from background goroutines;
// implementations handle any thread affinity they need themselves.
type Sink interface {
	OnStatus(running bool, message *string)
}

// SinkFunc adapts a plain function to Sink.
type SinkFunc func(running bool, message *string)

func (f SinkFunc) OnStatus(running bool, message *string) { f(running, message) }

// MultiSink delivers every event to each sink in order.
type MultiSink []Sink

func (m MultiSink) OnStatus(running bool, message *string) {
	for _, s := range m {
		if s != nil {
			s.OnStatus(running, message)
		}
	}
}

// Status is a point-in-time snapshot of the supervisor.
type Status struct {
	State          State
	RunID          string
	Pid            int
	ExecutablePath string
	ConfigDir      string
	TempDir        string
	StartTime      *time.Time
	StopRequested  bool
}
