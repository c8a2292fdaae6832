package journal

import "github.com/SanjoDeundiak/oscam-supervisor/pkg/lib"

// Events is a journal of supervisor status events.
type Events = Journal[lib.StatusEvent]

// Sink returns a lib.Sink that records every event into j.
func Sink(j *Events) lib.Sink {
	return lib.SinkFunc(func(running bool, message *string) {
		ev := lib.StatusEvent{Running: running}
		if message != nil {
			m := *message
			ev.Message = &m
		}
		j.Append(ev)
	})
}
