//go:build unix

package worker

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// configureProcess starts the worker in its own process group so cancellation
// reaches anything the worker spawned.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
}
