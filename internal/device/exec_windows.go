//go:build windows

package device

import "errors"

func Reexec() error { return errors.New("re-exec not supported on windows") }
