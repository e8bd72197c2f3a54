package shell

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"
)

func TestRunCapturesStdout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix shell required")
	}
	res, err := Exec{}.Run(context.Background(), "sh", "-c", "echo hello")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Text() != "hello" || res.Code != 0 {
		t.Fatalf("unexpected result: %q code=%d", res.Text(), res.Code)
	}
}

func TestRunExitCodeAndStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix shell required")
	}
	res, err := Run(context.Background(), time.Second, "sh", "-c", "echo boom >&2; exit 3")
	if err == nil {
		t.Fatal("expected error")
	}
	if res.Code != 3 {
		t.Fatalf("code: %d", res.Code)
	}
}

func TestRunTimeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix shell required")
	}
	_, err := Run(context.Background(), 50*time.Millisecond, "sleep", "2")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}
