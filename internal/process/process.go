// Package process controls converter subprocesses and their children.
package process

import "os/exec"

// Prepare configures cmd to run in its own process group and replaces the
// default context cancellation (which only kills the direct child) with a
// kill of the whole group. Converters such as pandoc spawn PDF engines that
// would otherwise outlive a canceled job.
func Prepare(cmd *exec.Cmd) {
	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		KillProcessGroup(cmd.Process.Pid)
		return nil
	}
}
