package supervisor

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib"
)

// killWait bounds how long Shutdown waits after a forced kill.
const killWait = 5 * time.Second

// Stop asks the running process to terminate and returns immediately; the
// exit waiter moves the supervisor back to Idle once the process is gone.
// When idle, Stop only reports the stopped status.
func (s *Supervisor) Stop() {
	s.emitMu.Lock()
	s.mu.Lock()
	if s.state == lib.StateIdle {
		s.mu.Unlock()
		s.deliver(false, s.stoppedMessage())
		s.emitMu.Unlock()
		return
	}
	s.emitMu.Unlock()

	r := s.run
	r.stopRequested = true
	state := s.state
	if state != lib.StateStarting {
		s.state = lib.StateStopping
	}
	s.mu.Unlock()

	if state == lib.StateStarting {
		// startSequence picks the request up before or right after launching.
		s.logger.Info("Stop requested while starting", "run", r.id)
		return
	}
	s.signal(r)
}

// signal delivers the termination request for run r. A failed delivery leaves
// the process running.
func (s *Supervisor) signal(r *run) {
	err := r.handle.Terminate()
	if errors.Is(err, os.ErrProcessDone) {
		return
	}
	if err != nil {
		s.logger.Error("Failed to deliver termination signal", "run", r.id, "error", err)
		s.mu.Lock()
		if s.run == r && s.state == lib.StateStopping {
			s.state = lib.StateRunning
			r.stopRequested = false
		}
		s.mu.Unlock()
		return
	}

	pid, _ := r.handle.Pid()
	s.logger.Info("Termination signal sent", "run", r.id, "pid", pid)

	if s.killTimeout <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run == r && r.killTimer == nil {
		r.killTimer = time.AfterFunc(s.killTimeout, func() { s.escalate(r) })
	}
}

func (s *Supervisor) escalate(r *run) {
	s.logger.Warn("Process ignored termination signal, killing", "run", r.id, "timeout", s.killTimeout)
	if err := r.handle.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Error("Failed to kill process", "run", r.id, "error", err)
	}
}

// Shutdown stops the process and waits until the supervisor is idle. If ctx
// expires first the process is killed.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	idle := s.Idle()
	select {
	case <-idle:
		return nil
	default:
	}

	s.Stop()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
	}

	s.mu.RLock()
	r := s.run
	s.mu.RUnlock()
	if r != nil && r.handle != nil {
		s.escalate(r)
	}

	select {
	case <-idle:
		return nil
	case <-time.After(killWait):
		return errors.Wrap(ctx.Err(), "supervisor did not become idle")
	}
}
