//go:build !unix

package solver

import "os/exec"

// setProcessGroup is a no-op where process groups are unavailable; only
// the direct child is killed and WaitDelay bounds the pipe drain.
func setProcessGroup(cmd *exec.Cmd) {}
