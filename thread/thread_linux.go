//go:build linux

package thread

import (
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Realtime locks the calling goroutine to its own kernel thread and elevates that
// thread's priority to realtime, using the round-robin policy at DefaultPriority.
//
// The goroutine stays locked: when it exits its thread is discarded instead of being
// returned to the runtime with a realtime priority.
func Realtime() error {
	return SetPolicy(RR, DefaultPriority)
}

// SetPolicy locks the calling goroutine to its kernel thread and applies the scheduling
// policy and priority to that thread. It needs CAP_SYS_NICE.
func SetPolicy(policy, priority int) error {
	runtime.LockOSThread()
	attr := unix.SchedAttr{Policy: uint32(policy), Priority: uint32(priority)}
	if err := unix.SchedSetAttr(unix.Gettid(), &attr, 0); err != nil {
		return errors.Wrapf(err, "thread: cannot set policy %d priority %d", policy, priority)
	}
	return nil
}
