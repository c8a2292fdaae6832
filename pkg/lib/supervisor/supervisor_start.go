package supervisor

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib"
	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib/deployer"
	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib/relay"
)

// Start stages and launches the executable on a background goroutine.
// It is a no-op unless the supervisor is idle.
func (s *Supervisor) Start() {
	s.mu.Lock()
	if s.state != lib.StateIdle {
		state := s.state
		s.mu.Unlock()
		s.logger.Debug("Start ignored", "state", state)
		return
	}
	r := &run{
		id:     lib.NewID(),
		layout: s.deployer.Layout(),
		done:   make(chan struct{}),
	}
	s.run = r
	s.state = lib.StateStarting
	s.mu.Unlock()

	s.logger.Info("Starting", "run", r.id)
	go s.startSequence(r)
}

func (s *Supervisor) startSequence(r *run) {
	s.emit(true, MsgInitializing)

	path, err := s.deployer.Deploy(s.payload)
	if err != nil {
		s.logger.Error("Deploy failed", "run", r.id, "error", err)
		s.finish(r, s.deployFailureMessage(err))
		return
	}

	if s.stopRequested(r) {
		s.logger.Info("Stop requested before launch", "run", r.id)
		s.finish(r, s.stoppedMessage())
		return
	}

	s.emit(true, MsgLaunching)
	s.logger.Info("Launching", "run", r.id, "path", path, "config_dir", r.layout.ConfigDir, "temp_dir", r.layout.TempDir)

	h, err := s.launch(path, r.layout.ConfigDir, r.layout.TempDir)
	if err != nil {
		s.logger.Error("Launch failed", "run", r.id, "error", err)
		s.finish(r, fmt.Sprintf("%s binary is not runnable!", s.name))
		return
	}

	pid, _ := h.Pid()
	s.logger.Info("Process started", "run", r.id, "pid", pid)

	s.mu.Lock()
	r.handle = h
	r.executablePath = path
	r.started = time.Now()
	r.relay = relay.Start(h.Output(), func(line string) {
		s.emit(true, line)
	}, s.logger.With("component", "relay", "run", r.id))
	stop := r.stopRequested
	if stop {
		s.state = lib.StateStopping
	} else {
		s.state = lib.StateRunning
	}
	s.mu.Unlock()

	go s.waitExit(r)

	if stop {
		s.signal(r)
	}
}

func (s *Supervisor) stopRequested(r *run) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return r.stopRequested
}

func (s *Supervisor) deployFailureMessage(err error) string {
	var de *deployer.DeployError
	if errors.As(err, &de) {
		switch de.Reason {
		case deployer.DirCreationFailed:
			return MsgDirsUnusable
		case deployer.PermissionFailed:
			return fmt.Sprintf("%s is not executable!", s.name)
		}
	}
	return fmt.Sprintf("%s binary not found!", s.name)
}

// waitExit is the exit waiter: it blocks until the process is gone, lets the
// relay drain what is left, and returns the supervisor to Idle.
func (s *Supervisor) waitExit(r *run) {
	err := r.handle.Wait()
	if err != nil {
		s.logger.Info("Process exited", "run", r.id, "exit_code", r.handle.ExitCode(), "error", err)
	} else {
		s.logger.Info("Process exited", "run", r.id, "exit_code", 0)
	}

	select {
	case <-r.relay.Done():
	case <-time.After(s.drainTimeout):
		s.logger.Warn("Output still open after exit, cancelling relay", "run", r.id)
	}
	r.relay.Cancel()
	<-r.relay.Done()
	r.handle.Release()
	s.logger.Info("Output relayed", "run", r.id, "lines", r.relay.Lines())

	s.finish(r, s.stoppedMessage())
}
