//go:build !windows

package render

import "os/exec"

func configureCmd(_ *exec.Cmd) {}
