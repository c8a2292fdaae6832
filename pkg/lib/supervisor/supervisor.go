package supervisor

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib"
	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib/deployer"
	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib/launcher"
	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib/relay"
)

const (
	DefaultName         = "Oscam"
	DefaultDrainTimeout = 500 * time.Millisecond

	MsgInitializing = "Initializing..."
	MsgLaunching    = "Launching..."
	MsgDirsUnusable = "Unable to read/write configuration and tmp folder!"
)

// Options configures a Supervisor.
type Options struct {
	// Name is used in user-visible messages, e.g. "Oscam stopped!".
	Name    string
	Layout  deployer.Layout
	Payload deployer.Payload
	// Sink receives every status event, serialized and in order. It must not
	// call Stop synchronously.
	Sink   lib.Sink
	Logger *slog.Logger

	// KillTimeout is how long a process may take to honour SIGTERM before it
	// is killed. Zero waits forever.
	KillTimeout time.Duration
	// DrainTimeout bounds how long buffered output is relayed after exit.
	DrainTimeout time.Duration
}

// process is the part of launcher.Handle the supervisor relies on.
type process interface {
	Output() io.ReadCloser
	Pid() (int, error)
	Terminate() error
	Kill() error
	Wait() error
	ExitCode() int
	Release()
}

// Supervisor runs at most one instance of the staged executable.
type Supervisor struct {
	name         string
	deployer     *deployer.Deployer
	payload      deployer.Payload
	sink         lib.Sink
	logger       *slog.Logger
	killTimeout  time.Duration
	drainTimeout time.Duration

	launch func(path, configDir, tempDir string) (process, error)

	// emitMu serializes sink deliveries. Lock order: emitMu, then mu.
	emitMu sync.Mutex

	// mu guards the state machine and the active run.
	mu    sync.RWMutex
	state lib.State
	run   *run
}

// run is one supervised process, from Start until its exit has been handled.
type run struct {
	id             string
	layout         deployer.Layout
	executablePath string
	handle         process
	relay          *relay.Relay
	started        time.Time
	stopRequested  bool
	killTimer      *time.Timer
	done           chan struct{}
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// New creates an idle Supervisor.
func New(opts Options) (*Supervisor, error) {
	if opts.Payload == nil {
		return nil, errors.New("payload is required")
	}
	if opts.Layout.ConfigDir == "" || opts.Layout.TempDir == "" || opts.Layout.ExecutablePath == "" {
		return nil, errors.Errorf("incomplete layout: %+v", opts.Layout)
	}
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}
	if opts.Sink == nil {
		opts.Sink = lib.SinkFunc(func(bool, *string) {})
	}
	logger := lib.OrDiscard(opts.Logger)

	return &Supervisor{
		name:         opts.Name,
		deployer:     deployer.New(opts.Layout, logger.With("component", "deployer")),
		payload:      opts.Payload,
		sink:         opts.Sink,
		logger:       logger,
		killTimeout:  opts.KillTimeout,
		drainTimeout: opts.DrainTimeout,
		launch: func(path, configDir, tempDir string) (process, error) {
			return launcher.Launch(path, configDir, tempDir)
		},
		state: lib.StateIdle,
	}, nil
}

// Name returns the display name of the supervised executable.
func (s *Supervisor) Name() string {
	return s.name
}

// Idle returns a channel that is closed once no run is active.
func (s *Supervisor) Idle() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.run == nil {
		return closedChan
	}
	return s.run.done
}

func (s *Supervisor) stoppedMessage() string {
	return fmt.Sprintf("%s stopped!", s.name)
}

func (s *Supervisor) emit(running bool, message string) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	s.deliver(running, message)
}

// deliver must be called with emitMu held.
func (s *Supervisor) deliver(running bool, message string) {
	s.logger.Debug("Status", "running", running, "message", message)
	s.sink.OnStatus(running, &message)
}

// finish ends run r: the state returns to Idle and message is the run's last event.
func (s *Supervisor) finish(r *run, message string) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	if r.killTimer != nil {
		r.killTimer.Stop()
	}
	if s.run == r {
		s.run = nil
		s.state = lib.StateIdle
	}
	s.mu.Unlock()

	s.deliver(false, message)
	close(r.done)
}
