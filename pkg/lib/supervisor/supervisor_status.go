package supervisor

import (
	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib"
)

// Status returns a consistent snapshot of the supervisor.
func (s *Supervisor) Status() lib.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := lib.Status{State: s.state}
	r := s.run
	if r == nil {
		return st
	}
	st.RunID = r.id
	st.ConfigDir = r.layout.ConfigDir
	st.TempDir = r.layout.TempDir
	st.StopRequested = r.stopRequested
	if r.handle != nil {
		if pid, err := r.handle.Pid(); err == nil {
			st.Pid = pid
		}
		st.ExecutablePath = r.executablePath
		started := r.started
		st.StartTime = &started
	}
	return st
}
