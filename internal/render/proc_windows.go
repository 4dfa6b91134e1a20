//go:build windows

package render

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// configureCmd keeps the rasterizer from flashing a console window and from
// competing with the foreground application for CPU.
func configureCmd(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NO_WINDOW | windows.BELOW_NORMAL_PRIORITY_CLASS,
	}
}
