//go:build !windows

package device

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Reexec replaces the running process with a fresh copy of itself.
func Reexec() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}
	return unix.Exec(exe, os.Args, os.Environ())
}
