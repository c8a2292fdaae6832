//go:build !unix

package launcher

import (
	"os"
	"syscall"
)

func sysProcAttr() *syscall.SysProcAttr {
	return nil
}

// There is no SIGTERM; an interrupt is the nearest request, and Kill is the
// only primitive left when the platform refuses it.
func terminatePid(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return terminateHandle(p)
}

func terminateHandle(p *os.Process) error {
	if err := p.Signal(os.Interrupt); err != nil {
		return p.Kill()
	}
	return nil
}

func killGroup(_ int, p *os.Process) error {
	return p.Kill()
}
