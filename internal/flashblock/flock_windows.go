//go:build windows

package flashblock

import (
	"errors"
	"os"
	"time"
)

// flockExclusive serializes writers of the configuration block across
// processes (epaperd and a second copy started by hand or a re-exec that
// overlaps shutdown), so two writes never interleave on the block. Windows
// has no flock; a create-excl lock file stands in and is removed on unlock.
func flockExclusive(lockPath string) (func(), error) {
	deadline := time.Now().Add(5 * time.Second)
	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
		if err == nil {
			unlocked := false
			return func() {
				if unlocked {
					return
				}
				_ = f.Close()
				_ = os.Remove(lockPath)
				unlocked = true
			}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, errors.New("lock timeout")
		}
		time.Sleep(25 * time.Millisecond)
	}
}
