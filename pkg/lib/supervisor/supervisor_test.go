package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib"
	"github.com/SanjoDeundiak/oscam-supervisor/pkg/lib/deployer"
)

const waitTimeout = 5 * time.Second

// recorder is a Sink that keeps every event.
type recorder struct {
	mu     sync.Mutex
	events []lib.StatusEvent
}

func (r *recorder) OnStatus(running bool, message *string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev := lib.StatusEvent{Running: running}
	if message != nil {
		m := *message
		ev.Message = &m
	}
	r.events = append(r.events, ev)
}

func (r *recorder) get() []lib.StatusEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]lib.StatusEvent(nil), r.events...)
}

func (r *recorder) texts() []string {
	var out []string
	for _, ev := range r.get() {
		out = append(out, ev.Text())
	}
	return out
}

func (r *recorder) has(text string) bool {
	for _, t := range r.texts() {
		if t == text {
			return true
		}
	}
	return false
}

func script(body string) deployer.BytesPayload {
	return deployer.BytesPayload("#!/bin/sh\n" + body + "\n")
}

func newTestSupervisor(t *testing.T, payload deployer.Payload, mutate ...func(*Options)) (*Supervisor, *recorder) {
	t.Helper()
	root := t.TempDir()
	rec := &recorder{}
	opts := Options{
		Layout:  deployer.DefaultLayout(filepath.Join(root, "storage"), filepath.Join(root, "private"), "oscam"),
		Payload: payload,
		Sink:    rec,
	}
	for _, m := range mutate {
		m(&opts)
	}
	s, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s, rec
}

func waitIdle(t *testing.T, s *Supervisor) {
	t.Helper()
	select {
	case <-s.Idle():
	case <-time.After(waitTimeout):
		t.Fatalf("supervisor did not become idle, state=%v", s.Status().State)
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{Layout: deployer.DefaultLayout("/a", "/b", "oscam")})
	require.Error(t, err)

	_, err = New(Options{Payload: script("true")})
	require.Error(t, err)

	s, err := New(Options{Payload: script("true"), Layout: deployer.DefaultLayout("/a", "/b", "oscam")})
	require.NoError(t, err)
	require.Equal(t, DefaultName, s.Name())
	require.Equal(t, lib.StateIdle, s.Status().State)
}

func TestStart_HappyPath(t *testing.T) {
	s, rec := newTestSupervisor(t, script(`echo "line one"
echo "pid $$"
sleep 0.3
echo "line two"`))

	s.Start()
	require.Eventually(t, func() bool { return rec.has("line one") }, waitTimeout, 5*time.Millisecond)

	st := s.Status()
	require.Equal(t, lib.StateRunning, st.State)
	require.NotEmpty(t, st.RunID)
	require.NotNil(t, st.StartTime)
	require.Greater(t, st.Pid, 0)

	waitIdle(t, s)

	require.Equal(t, []string{
		MsgInitializing,
		MsgLaunching,
		"line one",
		"pid " + strconv.Itoa(st.Pid),
		"line two",
		"Oscam stopped!",
	}, rec.texts())

	events := rec.get()
	for _, ev := range events[:len(events)-1] {
		require.True(t, ev.Running, "event %q should report running", ev.Text())
	}
	require.False(t, events[len(events)-1].Running)
	require.Equal(t, lib.StateIdle, s.Status().State)
}

func TestStart_PassesLayoutArguments(t *testing.T) {
	s, rec := newTestSupervisor(t, script(`echo "$@"`))

	s.Start()
	waitIdle(t, s)

	layout := s.deployer.Layout()
	want := "--config-dir " + layout.ConfigDir + " --temp-dir " + layout.TempDir
	require.Contains(t, rec.texts(), want)
}

func TestStart_SingleInstance(t *testing.T) {
	s, rec := newTestSupervisor(t, script(`echo started
while :; do sleep 0.05; done`))

	s.Start()
	s.Start()
	require.Eventually(t, func() bool { return rec.has("started") }, waitTimeout, 5*time.Millisecond)
	s.Start()

	s.Stop()
	waitIdle(t, s)

	count := 0
	for _, text := range rec.texts() {
		if text == MsgInitializing {
			count++
		}
	}
	require.Equal(t, 1, count)
	require.Equal(t, 1, strings.Count(strings.Join(rec.texts(), "\n"), "started"))
}

func TestStop_IdleEmitsStopped(t *testing.T) {
	s, rec := newTestSupervisor(t, script("true"))

	s.Stop()

	events := rec.get()
	require.Len(t, events, 1)
	require.False(t, events[0].Running)
	require.Equal(t, "Oscam stopped!", events[0].Text())
	require.Equal(t, lib.StateIdle, s.Status().State)

	_, err := os.Stat(s.deployer.Layout().ExecutablePath)
	require.True(t, os.IsNotExist(err), "idle stop must not deploy anything")
}

func TestStart_DirectoryFailure(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "storage")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	s, rec := newTestSupervisor(t, script("echo never"), func(o *Options) {
		o.Layout = deployer.DefaultLayout(blocker, filepath.Join(root, "private"), "oscam")
	})

	s.Start()
	waitIdle(t, s)

	events := rec.get()
	require.Len(t, events, 2)
	require.Equal(t, MsgInitializing, events[0].Text())
	require.True(t, events[0].Running)
	require.Equal(t, MsgDirsUnusable, events[1].Text())
	require.False(t, events[1].Running)
	require.Equal(t, lib.StateIdle, s.Status().State)

	_, err := os.Stat(s.deployer.Layout().ExecutablePath)
	require.True(t, os.IsNotExist(err))
}

type errPayload struct{}

func (errPayload) Open() (io.ReadCloser, error) { return nil, errors.New("resource missing") }

func TestStart_PayloadFailure(t *testing.T) {
	s, rec := newTestSupervisor(t, errPayload{})

	s.Start()
	waitIdle(t, s)

	require.Equal(t, []string{MsgInitializing, "Oscam binary not found!"}, rec.texts())
}

func TestStart_SpawnFailure(t *testing.T) {
	s, rec := newTestSupervisor(t, deployer.BytesPayload("\x00\x01 not an executable"), func(o *Options) {
		o.Name = "Wrapped"
	})

	s.Start()
	waitIdle(t, s)

	require.Equal(t, []string{MsgInitializing, MsgLaunching, "Wrapped binary is not runnable!"}, rec.texts())
	require.Equal(t, lib.StateIdle, s.Status().State)
}

func TestStart_RestagesPayloadEveryRun(t *testing.T) {
	payload := script("echo run")
	s, _ := newTestSupervisor(t, payload)
	target := s.deployer.Layout().ExecutablePath

	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o700))
	require.NoError(t, os.WriteFile(target, []byte("#!/bin/sh\necho stale\n"), 0o700))

	for i := 0; i < 2; i++ {
		s.Start()
		waitIdle(t, s)

		data, err := os.ReadFile(target)
		require.NoError(t, err)
		require.Equal(t, []byte(payload), data)

		// Tamper between runs; the next start must refresh it.
		require.NoError(t, os.WriteFile(target, []byte("#!/bin/sh\necho tampered\n"), 0o700))
	}
}

func TestStop_GracefulTermination(t *testing.T) {
	s, rec := newTestSupervisor(t, script(`trap 'echo "terminating $$"; sleep 0.2; exit 0' TERM
echo ready
while :; do sleep 0.05; done`))

	s.Start()
	require.Eventually(t, func() bool { return rec.has("ready") }, waitTimeout, 5*time.Millisecond)
	pid := s.Status().Pid
	require.Greater(t, pid, 0)

	s.Stop()

	// Stop returns before the process has exited.
	st := s.Status()
	require.Equal(t, lib.StateStopping, st.State)
	require.True(t, st.StopRequested)
	select {
	case <-s.Idle():
		t.Fatalf("supervisor must not be idle before the process exits")
	default:
	}

	waitIdle(t, s)

	texts := rec.texts()
	require.Contains(t, texts, "terminating "+strconv.Itoa(pid))
	require.Equal(t, "Oscam stopped!", texts[len(texts)-1])
	require.Equal(t, lib.StateIdle, s.Status().State)
}

func TestStop_WhileStoppingResendsSignal(t *testing.T) {
	s, rec := newTestSupervisor(t, script(`n=0
trap 'n=$((n+1)); echo "term $n"; [ $n -ge 2 ] && exit 0' TERM
echo ready
while :; do sleep 0.05; done`))

	s.Start()
	require.Eventually(t, func() bool { return rec.has("ready") }, waitTimeout, 5*time.Millisecond)

	s.Stop()
	require.Eventually(t, func() bool { return rec.has("term 1") }, waitTimeout, 5*time.Millisecond)
	require.Equal(t, lib.StateStopping, s.Status().State)

	s.Stop()
	waitIdle(t, s)
	require.True(t, rec.has("term 2"))
}

func TestStop_KillAfterTimeout(t *testing.T) {
	s, rec := newTestSupervisor(t, script(`trap 'echo ignoring' TERM
echo ready
while :; do sleep 0.05; done`), func(o *Options) {
		o.KillTimeout = 300 * time.Millisecond
	})

	s.Start()
	require.Eventually(t, func() bool { return rec.has("ready") }, waitTimeout, 5*time.Millisecond)

	s.Stop()
	require.Eventually(t, func() bool { return rec.has("ignoring") }, waitTimeout, 5*time.Millisecond)
	waitIdle(t, s)

	texts := rec.texts()
	require.Equal(t, "Oscam stopped!", texts[len(texts)-1])
}

// failingTerminate wraps a real process but refuses to signal it.
type failingTerminate struct {
	process
}

func (failingTerminate) Terminate() error { return errors.New("operation not permitted") }

func TestStop_SignalFailureKeepsRunning(t *testing.T) {
	s, rec := newTestSupervisor(t, script(`echo ready
while :; do sleep 0.05; done`))
	realLaunch := s.launch
	s.launch = func(path, configDir, tempDir string) (process, error) {
		p, err := realLaunch(path, configDir, tempDir)
		if err != nil {
			return nil, err
		}
		return failingTerminate{p}, nil
	}

	s.Start()
	require.Eventually(t, func() bool { return rec.has("ready") }, waitTimeout, 5*time.Millisecond)

	s.Stop()
	st := s.Status()
	require.Equal(t, lib.StateRunning, st.State)
	require.False(t, st.StopRequested)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	require.Equal(t, lib.StateIdle, s.Status().State)
}

// gatedPayload blocks Open until released.
type gatedPayload struct {
	deployer.Payload
	opened  chan struct{}
	release chan struct{}
}

func (g *gatedPayload) Open() (io.ReadCloser, error) {
	close(g.opened)
	<-g.release
	return g.Payload.Open()
}

func TestStop_WhileStartingAbandonsLaunch(t *testing.T) {
	g := &gatedPayload{Payload: script("echo launched"), opened: make(chan struct{}), release: make(chan struct{})}
	s, rec := newTestSupervisor(t, g)

	s.Start()
	<-g.opened
	require.Equal(t, lib.StateStarting, s.Status().State)

	s.Stop()
	require.True(t, s.Status().StopRequested)
	close(g.release)
	waitIdle(t, s)

	require.Equal(t, []string{MsgInitializing, "Oscam stopped!"}, rec.texts())
}

func TestRelay_AbruptCloseMidLine(t *testing.T) {
	s, rec := newTestSupervisor(t, script(`printf 'complete\nhalf a li'
exit 0`))

	s.Start()
	waitIdle(t, s)

	require.Equal(t, []string{MsgInitializing, MsgLaunching, "complete", "half a li", "Oscam stopped!"}, rec.texts())
}

func TestRelay_OutputHeldByGrandchild(t *testing.T) {
	// The background sleep keeps the pipe open after the main process exits.
	s, rec := newTestSupervisor(t, script(`sleep 5 &
echo parent done`), func(o *Options) {
		o.DrainTimeout = 100 * time.Millisecond
	})

	s.Start()
	waitIdle(t, s)

	texts := rec.texts()
	require.Contains(t, texts, "parent done")
	require.Equal(t, "Oscam stopped!", texts[len(texts)-1])
}

func TestShutdown_Idle(t *testing.T) {
	s, rec := newTestSupervisor(t, script("true"))

	require.NoError(t, s.Shutdown(context.Background()))
	require.Empty(t, rec.get())
}

func TestStatus_ConcurrentWithTransitions(t *testing.T) {
	s, _ := newTestSupervisor(t, script(`echo hi
sleep 0.1`))

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				st := s.Status()
				if st.State == lib.StateIdle && st.RunID != "" {
					t.Errorf("idle snapshot must not carry a run: %+v", st)
					return
				}
			}
		}()
	}

	for i := 0; i < 3; i++ {
		s.Start()
		waitIdle(t, s)
	}
	close(stop)
	wg.Wait()
}

func TestStart_AfterFailureIsRestartable(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "storage")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	s, rec := newTestSupervisor(t, script("echo second run"), func(o *Options) {
		o.Layout = deployer.DefaultLayout(blocker, filepath.Join(root, "private"), "oscam")
	})

	s.Start()
	waitIdle(t, s)
	require.True(t, rec.has(MsgDirsUnusable))

	require.NoError(t, os.Remove(blocker))
	s.Start()
	waitIdle(t, s)
	require.True(t, rec.has("second run"))
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestExit_LogsRelayedLineCount(t *testing.T) {
	logs := &lockedBuffer{}
	s, rec := newTestSupervisor(t, script("echo one\necho two\nprintf three"), func(o *Options) {
		o.Logger = slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	})

	s.Start()
	waitIdle(t, s)

	require.Equal(t, []string{MsgInitializing, MsgLaunching, "one", "two", "three", "Oscam stopped!"}, rec.texts())
	require.Contains(t, logs.String(), `msg="Output relayed"`)
	require.Contains(t, logs.String(), "lines=3")
}
