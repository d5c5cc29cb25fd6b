//go:build !unix

package worker

import "os/exec"

func configureProcess(cmd *exec.Cmd) {}
