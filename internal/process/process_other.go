//go:build !unix

package process

import "os/exec"

func setKillProcessGroup(cmd *exec.Cmd) {
	cmd.Cancel = func() error {
		return cmd.Process.Kill()
	}
}
