package launcher

import (
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/pkg/errors"
)

const (
	ConfigDirFlag = "--config-dir"
	TempDirFlag   = "--temp-dir"
)

var errNoPid = errors.New("process id unavailable")

// LaunchError reports that the executable could not be spawned.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	if e.Err == nil {
		return "launch " + e.Path
	}
	return errors.Wrapf(e.Err, "launch %s", e.Path).Error()
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Handle owns one spawned process and the read end of its combined output.
type Handle struct {
	cmd    *exec.Cmd
	output *os.File

	// pid is the best-effort identifier accessor; tests replace it.
	pid func() (int, error)

	done    chan struct{}
	waitErr error
	once    sync.Once
}

// Args returns the startup arguments passed to the executable.
func Args(configDir, tempDir string) []string {
	return []string{ConfigDirFlag, configDir, TempDirFlag, tempDir}
}

// Launch starts executablePath with the config and temp dir flags. Standard
// error and standard output share a single pipe exposed by Handle.Output.
func Launch(executablePath, configDir, tempDir string) (*Handle, error) {
	if executablePath == "" {
		return nil, &LaunchError{Path: executablePath, Err: errors.New("executable path is required")}
	}

	r, w, err := os.Pipe()
	if err != nil {
		return nil, &LaunchError{Path: executablePath, Err: err}
	}

	cmd := exec.Command(executablePath, Args(configDir, tempDir)...)
	// cmd.Stdin is left nil, so it will use /dev/null
	cmd.Stdout = w
	cmd.Stderr = w
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		_ = r.Close()
		_ = w.Close()
		return nil, &LaunchError{Path: executablePath, Err: err}
	}
	// The child holds its own copy of the write end; EOF on r now means the child side closed.
	_ = w.Close()

	h := &Handle{
		cmd:    cmd,
		output: r,
		done:   make(chan struct{}),
	}
	h.pid = h.processID

	go func() {
		h.waitErr = cmd.Wait()
		close(h.done)
	}()

	return h, nil
}

// Output is the combined stdout/stderr stream. Closing it cancels readers.
func (h *Handle) Output() io.ReadCloser {
	return h.output
}

// Pid returns the process identifier if the platform exposes one.
func (h *Handle) Pid() (int, error) {
	return h.pid()
}

func (h *Handle) processID() (int, error) {
	if h.cmd.Process == nil || h.cmd.Process.Pid <= 0 {
		return 0, errNoPid
	}
	return h.cmd.Process.Pid, nil
}

// exited is closed once the process has exited and been reaped.
func (h *Handle) exited() <-chan struct{} {
	return h.done
}

// Wait blocks until the process exits and returns its wait error.
func (h *Handle) Wait() error {
	<-h.done
	return h.waitErr
}

// ExitCode returns the exit code once the process has exited, or -1.
func (h *Handle) ExitCode() int {
	select {
	case <-h.done:
	default:
		return -1
	}
	if h.cmd.ProcessState == nil {
		return -1
	}
	return h.cmd.ProcessState.ExitCode()
}

// Terminate asks the process to shut down cooperatively. The signal goes to
// the pid; when no pid can be obtained the handle's own signalling is used.
func (h *Handle) Terminate() error {
	select {
	case <-h.done:
		return os.ErrProcessDone
	default:
	}

	pid, err := h.Pid()
	if err != nil {
		return terminateHandle(h.cmd.Process)
	}
	return terminatePid(pid)
}

// Kill forcibly stops the process and everything in its process group.
func (h *Handle) Kill() error {
	select {
	case <-h.done:
		return os.ErrProcessDone
	default:
	}

	pid, err := h.Pid()
	if err != nil {
		return h.cmd.Process.Kill()
	}
	return killGroup(pid, h.cmd.Process)
}

// Release closes the output stream. Safe to call more than once.
func (h *Handle) Release() {
	h.once.Do(func() {
		_ = h.output.Close()
	})
}
