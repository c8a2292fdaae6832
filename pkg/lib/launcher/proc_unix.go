//go:build unix

package launcher

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		// New process group to manage children as a unit
		Setpgid: true,
	}
}

func terminatePid(pid int) error {
	return unix.Kill(pid, unix.SIGTERM)
}

func terminateHandle(p *os.Process) error {
	return p.Signal(unix.SIGTERM)
}

func killGroup(pid int, p *os.Process) error {
	// Negative PID means process group
	if err := unix.Kill(-pid, unix.SIGKILL); err != nil {
		return p.Kill()
	}
	return nil
}
