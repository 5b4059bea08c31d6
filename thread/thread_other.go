//go:build !linux

package thread

import "github.com/pkg/errors"

var errUnsupported = errors.New("thread: realtime scheduling is only supported on linux")

// Realtime is not supported on this platform.
func Realtime() error {
	return errUnsupported
}

// SetPolicy is not supported on this platform.
func SetPolicy(policy, priority int) error {
	return errUnsupported
}
